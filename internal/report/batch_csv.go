package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/tturner/labcheck/internal/validation"
)

// WriteBatchCSV writes one row per submission for spreadsheet grading.
func WriteBatchCSV(path string, rep *BatchReport) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil && filepath.Dir(path) != "." {
		return fmt.Errorf("create csv directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	defer writer.Flush()

	header := []string{
		"Submission", "Challenge", "OK", "Errors", "Warnings",
		"HTTP_Token_Headers", "Distinct_Backends", "Signature",
		"Pcap_SHA256", "First_Error",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, entry := range rep.Submissions {
		res := entry.Result
		if res == nil {
			res = &validation.Result{}
		}
		firstError := ""
		if len(res.Errors) > 0 {
			firstError = res.Errors[0]
		}
		record := []string{
			submissionName(rep.Root, entry.Inputs),
			entry.Inputs.ChallengePath,
			strconv.FormatBool(res.OK),
			strconv.Itoa(len(res.Errors)),
			strconv.Itoa(len(res.Warnings)),
			metricString(res, validation.MetricHTTPTokenHeaders),
			metricString(res, validation.MetricDistinctBackends),
			metricString(res, validation.MetricSignature),
			metricString(res, validation.MetricPcapSHA256),
			firstError,
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func metricString(res *validation.Result, name string) string {
	v, ok := res.Metrics[name]
	if !ok {
		return ""
	}
	return fmt.Sprint(v)
}

// submissionName is the submission directory relative to root.
func submissionName(root string, in validation.Inputs) string {
	dir := filepath.Dir(in.ChallengePath)
	if root == "" {
		return dir
	}
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return dir
	}
	return filepath.ToSlash(rel)
}
