package report

import (
	"time"

	"github.com/tturner/labcheck/internal/validation"
)

// now is swapped in tests.
var now = time.Now

// FormatTimestamp returns the current time as an RFC3339 UTC string.
func FormatTimestamp() string {
	return now().UTC().Format(time.RFC3339)
}

// SubmissionReport captures one validation run.
type SubmissionReport struct {
	GeneratedAt     string             `json:"generated_at"`
	LabcheckVersion string             `json:"labcheck_version"`
	LabcheckCommit  string             `json:"labcheck_commit,omitempty"`
	ExpectedWeek    int                `json:"expected_week"`
	Inputs          validation.Inputs  `json:"inputs"`
	Result          *validation.Result `json:"result"`
}

// BatchReport captures a batch run over a submissions directory.
type BatchReport struct {
	GeneratedAt     string                   `json:"generated_at"`
	LabcheckVersion string                   `json:"labcheck_version"`
	ExpectedWeek    int                      `json:"expected_week"`
	Root            string                   `json:"root"`
	Passed          int                      `json:"passed"`
	Failed          int                      `json:"failed"`
	Submissions     []validation.BatchResult `json:"submissions"`
}

// NewBatchReport summarises results under root.
func NewBatchReport(root, version string, week int, results []validation.BatchResult) *BatchReport {
	passed, failed := validation.Summary(results)
	return &BatchReport{
		GeneratedAt:     FormatTimestamp(),
		LabcheckVersion: version,
		ExpectedWeek:    week,
		Root:            root,
		Passed:          passed,
		Failed:          failed,
		Submissions:     results,
	}
}
