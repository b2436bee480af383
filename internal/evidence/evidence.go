// Package evidence models the student-submitted manifest that binds a capture
// and artefact files to one challenge.
package evidence

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tturner/labcheck/internal/schema"
)

// Artefact is one submitted file and its declared content hash.
type Artefact struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
}

// Evidence is the submission manifest.
type Evidence struct {
	Token       string     `json:"token"`
	ChallengeID string     `json:"challenge_id"`
	PcapSHA256  string     `json:"pcap_sha256,omitempty"`
	Artefacts   []Artefact `json:"artefacts"`
}

const evidenceSchemaSource = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "labcheck evidence",
  "type": "object",
  "properties": {
    "token": {"type": "string"},
    "challenge_id": {"type": "string"},
    "pcap_sha256": {"type": ["string", "null"]},
    "artefacts": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "properties": {
          "path": {"type": "string"},
          "sha256": {"type": "string"}
        }
      }
    }
  }
}`

var evidenceSchema = schema.MustCompile("evidence.schema.json", evidenceSchemaSource)

// Parse decodes and schema-checks an evidence document. Only shape and value
// types are checked; absent keys decode to empty strings.
func Parse(data []byte) (*Evidence, error) {
	if err := evidenceSchema.ValidateJSON(data); err != nil {
		return nil, fmt.Errorf("evidence: %w", err)
	}
	var ev Evidence
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("evidence: decode: %w", err)
	}
	return &ev, nil
}

// Load reads and parses an evidence file.
func Load(path string) (*Evidence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read evidence: %w", err)
	}
	return Parse(data)
}

// Save writes the evidence as indented JSON.
func (e *Evidence) Save(path string) error {
	if e.Artefacts == nil {
		e.Artefacts = []Artefact{}
	}
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal evidence: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write evidence: %w", err)
	}
	return nil
}
