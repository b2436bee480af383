// Package challenge models the per-student challenge document: issuance,
// HMAC signing, expiry and JSON persistence.
package challenge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// Requirements are the capture-level thresholds a submission must meet.
type Requirements struct {
	MinHTTPRequests     int    `json:"min_http_requests"`
	MinDistinctBackends int    `json:"min_distinct_backends"`
	DNSQueryName        string `json:"dns_query_name"`
	HTTPHeaderName      string `json:"http_header_name"`
	// RequireTCPHandshake asks the validator to look for SYN, SYN+ACK, ACK.
	RequireTCPHandshake bool `json:"require_tcp_handshake,omitempty"`
}

// Challenge is one issued assignment instance.
type Challenge struct {
	ChallengeID  string         `json:"challenge_id"`
	Week         int            `json:"week"`
	StudentID    string         `json:"student_id"`
	IssuedAt     string         `json:"issued_at"`
	ExpiresAt    string         `json:"expires_at"`
	Seed         string         `json:"seed"`
	Token        string         `json:"token"`
	Ports        map[string]int `json:"ports,omitempty"`
	Requirements Requirements   `json:"requirements"`
	Signature    string         `json:"signature,omitempty"`

	// raw holds the document as loaded so fields this version does not model
	// stay covered by the signature. loaded is the struct re-encoded right
	// after loading, used to tell edits from defaults.
	raw    []byte
	loaded []byte
}

// Signed reports whether the challenge carries a signature.
func (c *Challenge) Signed() bool {
	return c.Signature != ""
}

// Parse decodes and schema-checks a challenge document.
func Parse(data []byte) (*Challenge, error) {
	if err := challengeSchema.ValidateJSON(data); err != nil {
		return nil, fmt.Errorf("challenge: %w", err)
	}
	var ch Challenge
	if err := json.Unmarshal(data, &ch); err != nil {
		return nil, fmt.Errorf("challenge: decode: %w", err)
	}
	loaded, err := json.Marshal(&ch)
	if err != nil {
		return nil, fmt.Errorf("challenge: encode: %w", err)
	}
	ch.raw = bytes.Clone(data)
	ch.loaded = loaded
	return &ch, nil
}

// Load reads and parses a challenge file.
func Load(path string) (*Challenge, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read challenge: %w", err)
	}
	return Parse(data)
}

// Marshal renders the challenge as indented JSON. Fields of a loaded document
// that the struct does not model are written back unchanged.
func (c *Challenge) Marshal() ([]byte, error) {
	doc, err := c.document()
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal challenge: %w", err)
	}
	return append(data, '\n'), nil
}

// Save writes the challenge as indented JSON.
func (c *Challenge) Save(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write challenge: %w", err)
	}
	return nil
}
