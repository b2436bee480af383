package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tturner/labcheck/internal/validation"
)

func sampleResult(ok bool) *validation.Result {
	b := validation.NewBuilder()
	b.Metric(validation.MetricHTTPTokenHeaders, 7)
	b.Metric(validation.MetricSignature, "unsigned")
	b.Warnf("Challenge is unsigned; its authenticity was not verified")
	if !ok {
		b.Errorf("Too few token HTTP requests: 7 < 10")
		b.Errorf("Capture hash mismatch: evidence declares aa, file is bb")
	}
	return b.Result()
}

func TestWriteJSON(t *testing.T) {
	report := SubmissionReport{
		GeneratedAt:     "2025-01-06T10:00:00Z",
		LabcheckVersion: "1.0.0",
		ExpectedWeek:    11,
		Inputs:          validation.Inputs{ChallengePath: "c.json", EvidencePath: "e.json", CapturePath: "p.pcap"},
		Result:          sampleResult(false),
	}

	var buf bytes.Buffer
	if err := WriteJSON(&buf, report); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	var decoded struct {
		GeneratedAt string `json:"generated_at"`
		Inputs      struct {
			Capture string `json:"capture"`
		} `json:"inputs"`
		Result struct {
			OK      bool                   `json:"ok"`
			Errors  []string               `json:"errors"`
			Metrics map[string]interface{} `json:"metrics"`
		} `json:"result"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}
	if decoded.GeneratedAt != report.GeneratedAt {
		t.Errorf("GeneratedAt mismatch: got %q, want %q", decoded.GeneratedAt, report.GeneratedAt)
	}
	if decoded.Inputs.Capture != "p.pcap" {
		t.Errorf("capture = %q", decoded.Inputs.Capture)
	}
	if decoded.Result.OK || len(decoded.Result.Errors) != 2 {
		t.Errorf("result = %+v", decoded.Result)
	}
	if decoded.Result.Metrics[validation.MetricHTTPTokenHeaders] != float64(7) {
		t.Errorf("metrics = %v", decoded.Result.Metrics)
	}
}

func TestWriteJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	if err := WriteJSONFile(path, SubmissionReport{GeneratedAt: "2025-01-06T10:00:00Z", Result: sampleResult(true)}); err != nil {
		t.Fatalf("WriteJSONFile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read output file: %v", err)
	}
	var decoded SubmissionReport
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Output file is not valid JSON: %v", err)
	}
	if decoded.Result == nil || !decoded.Result.OK {
		t.Errorf("decoded result = %+v", decoded.Result)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Failed to stat file: %v", err)
	}
	if info.Mode().Perm()&0444 != 0444 {
		t.Errorf("report mode = %v, want world-readable", info.Mode().Perm())
	}
}

func TestWriteJSONFileIsReadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "week11", "s1234567.json")
	if err := WriteJSONFile(path, SubmissionReport{Result: sampleResult(false)}); err != nil {
		t.Fatalf("WriteJSONFile failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read output file: %v", err)
	}
	if !bytes.HasSuffix(data, []byte("}\n")) {
		t.Errorf("report should end with a newline: %q", data[len(data)-3:])
	}
	if !bytes.Contains(data, []byte("7 < 10")) {
		t.Errorf("comparison should not be HTML-escaped:\n%s", data)
	}
}

func TestWriteJSONIndentation(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleResult(true)); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("\n  \"ok\": true")) {
		t.Errorf("output is not indented:\n%s", buf.String())
	}
}

func TestNewBatchReport(t *testing.T) {
	results := []validation.BatchResult{
		{Inputs: validation.Inputs{ChallengePath: "/subs/a/challenge.json"}, Result: sampleResult(true)},
		{Inputs: validation.Inputs{ChallengePath: "/subs/b/challenge.json"}, Result: sampleResult(false)},
		{Inputs: validation.Inputs{ChallengePath: "/subs/c/challenge.json"}, Result: sampleResult(false)},
	}
	rep := NewBatchReport("/subs", "1.0.0", 11, results)
	if rep.Passed != 1 || rep.Failed != 2 || rep.GeneratedAt == "" {
		t.Errorf("report = %+v", rep)
	}

	var buf bytes.Buffer
	if err := WriteJSON(&buf, rep); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	var decoded BatchReport
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}
	if len(decoded.Submissions) != 3 || decoded.Submissions[1].Result.OK {
		t.Errorf("decoded submissions = %+v", decoded.Submissions)
	}
}

func TestFormatTimestamp(t *testing.T) {
	orig := now
	defer func() { now = orig }()
	now = func() time.Time { return time.Date(2025, 1, 6, 10, 30, 0, 0, time.FixedZone("CET", 3600)) }
	if got := FormatTimestamp(); got != "2025-01-06T09:30:00Z" {
		t.Errorf("FormatTimestamp = %q", got)
	}
}
