package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// WriteBatchMarkdown renders a batch report in Markdown format.
func WriteBatchMarkdown(w io.Writer, rep *BatchReport) {
	fmt.Fprintf(w, "# Lab Submission Report\n\nGenerated: %s\n\n", rep.GeneratedAt)
	fmt.Fprintf(w, "Submissions root: %s\n\nExpected week: %d\n\n", rep.Root, rep.ExpectedWeek)
	fmt.Fprintf(w, "Passed: %d, failed: %d\n\n", rep.Passed, rep.Failed)

	fmt.Fprintf(w, "| Submission | Verdict | Errors | Warnings |\n|---|---|---|---|\n")
	for _, entry := range rep.Submissions {
		verdict, errs, warns := "FAIL", 0, 0
		if entry.Result != nil {
			if entry.Result.OK {
				verdict = "PASS"
			}
			errs, warns = len(entry.Result.Errors), len(entry.Result.Warnings)
		}
		fmt.Fprintf(w, "| %s | %s | %d | %d |\n", submissionName(rep.Root, entry.Inputs), verdict, errs, warns)
	}
	fmt.Fprintln(w)

	counts := errorFrequencies(rep)
	if len(counts) == 0 {
		return
	}
	fmt.Fprintf(w, "## Most Common Errors\n\n```text\n")
	for _, msg := range sortedByCount(counts) {
		fmt.Fprintf(w, "%4d  %s\n", counts[msg], msg)
	}
	fmt.Fprintf(w, "```\n")
}

// errorFrequencies groups errors by their text before the first colon so
// that per-submission details (hashes, paths) do not split the counts.
func errorFrequencies(rep *BatchReport) map[string]int {
	counts := map[string]int{}
	for _, entry := range rep.Submissions {
		if entry.Result == nil {
			continue
		}
		for _, e := range entry.Result.Errors {
			key := e
			if i := strings.Index(e, ":"); i > 0 {
				key = e[:i]
			}
			counts[key]++
		}
	}
	return counts
}

func sortedByCount(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}
