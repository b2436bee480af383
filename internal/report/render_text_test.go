package report

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tturner/labcheck/internal/validation"
)

func TestWriteTextPass(t *testing.T) {
	var buf bytes.Buffer
	WriteText(&buf, sampleResult(true), false)
	output := buf.String()

	if !strings.HasPrefix(output, "[PASS] Submission accepted (1 warnings)") {
		t.Errorf("unexpected banner:\n%s", output)
	}
	if strings.Contains(output, "WARNING") || strings.Contains(output, "Metrics:") {
		t.Errorf("warnings and metrics belong to verbose output:\n%s", output)
	}
}

func TestWriteTextFail(t *testing.T) {
	var buf bytes.Buffer
	WriteText(&buf, sampleResult(false), false)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")

	want := []string{
		"[FAIL] Submission rejected: 2 errors, 1 warnings",
		"  - ERROR: Too few token HTTP requests: 7 < 10",
		"  - ERROR: Capture hash mismatch: evidence declares aa, file is bb",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(want), buf.String())
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestWriteTextVerbose(t *testing.T) {
	var buf bytes.Buffer
	WriteText(&buf, sampleResult(false), true)
	output := buf.String()

	if !strings.Contains(output, "  - WARNING: Challenge is unsigned") {
		t.Error("Expected warning line")
	}
	// Metrics are listed in name order.
	iHTTP := strings.Index(output, "  http_token_headers: 7")
	iPcap := strings.Index(output, "  pcap_sha256: ")
	iSig := strings.Index(output, "  signature: unsigned")
	if iHTTP < 0 || iPcap < 0 || iSig < 0 || !(iHTTP < iPcap && iPcap < iSig) {
		t.Errorf("metrics missing or unsorted:\n%s", output)
	}
}

func batchFixture() *BatchReport {
	return NewBatchReport("/subs", "1.0.0", 11, []validation.BatchResult{
		{Inputs: validation.Inputs{ChallengePath: "/subs/alice/challenge.json"}, Result: sampleResult(true)},
		{Inputs: validation.Inputs{ChallengePath: "/subs/cohort/bob/challenge.json"}, Result: sampleResult(false)},
	})
}

func TestWriteBatchText(t *testing.T) {
	var buf bytes.Buffer
	WriteBatchText(&buf, batchFixture(), false)
	output := buf.String()

	for _, want := range []string{
		"[PASS] alice\n",
		"[FAIL] cohort/bob\n",
		"  - ERROR: Too few token HTTP requests: 7 < 10\n",
		"1 passed, 1 failed\n",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestWriteBatchCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "grades.csv")
	if err := WriteBatchCSV(path, batchFixture()); err != nil {
		t.Fatalf("WriteBatchCSV error: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	bob := rows[2]
	if bob[0] != "cohort/bob" || bob[2] != "false" || bob[3] != "2" || bob[5] != "7" || bob[7] != "unsigned" {
		t.Errorf("row = %v", bob)
	}
	if bob[9] != "Too few token HTTP requests: 7 < 10" {
		t.Errorf("first error = %q", bob[9])
	}
}

func TestWriteBatchMarkdown(t *testing.T) {
	var buf bytes.Buffer
	WriteBatchMarkdown(&buf, batchFixture())
	output := buf.String()

	for _, want := range []string{
		"# Lab Submission Report",
		"| alice | PASS | 0 | 1 |",
		"| cohort/bob | FAIL | 2 | 1 |",
		"## Most Common Errors",
		"   1  Too few token HTTP requests\n",
		"   1  Capture hash mismatch\n",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}
