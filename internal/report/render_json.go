package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// encodeReport renders a submission or batch report as indented JSON with a
// trailing newline. HTML escaping is off so messages such as "7 < 10" read
// the same as in the text report.
func encodeReport(w io.Writer, report any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(report)
}

// WriteJSONFile writes a SubmissionReport or BatchReport to path, creating
// the parent directory when it is missing.
func WriteJSONFile(path string, report any) error {
	var buf bytes.Buffer
	if err := encodeReport(&buf, report); err != nil {
		return fmt.Errorf("encode validation report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write validation report %s: %w", path, err)
	}
	return nil
}

// WriteJSON writes a SubmissionReport or BatchReport to w.
func WriteJSON(w io.Writer, report any) error {
	if err := encodeReport(w, report); err != nil {
		return fmt.Errorf("encode validation report: %w", err)
	}
	return nil
}
