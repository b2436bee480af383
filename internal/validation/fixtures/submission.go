package fixtures

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/tturner/labcheck/internal/challenge"
	"github.com/tturner/labcheck/internal/evidence"
	"github.com/tturner/labcheck/internal/pcap"
)

// Capture container formats WriteSubmission can produce.
const (
	FormatPcap   = "pcap"
	FormatPcapBE = "pcap-be"
	FormatPcapNG = "pcapng"
)

// Epoch is the issue time of fixture challenges.
var Epoch = time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)

// Options describe a synthetic submission. Zero values give a week 11,
// unsigned challenge with token W11-abc123 and no thresholds.
type Options struct {
	Week                int
	StudentID           string
	Token               string
	ChallengeID         string
	TTL                 time.Duration
	MinHTTPRequests     int
	MinDistinctBackends int
	HTTPHeaderName      string
	DNSQueryName        string
	RequireTCPHandshake bool
	Secret              []byte

	Frames [][]byte
	Format string
	// Artefacts maps relative paths under the submission directory to content.
	Artefacts map[string]string
	// SkipPcapHash leaves pcap_sha256 out of the evidence.
	SkipPcapHash bool
}

// Submission is a written fixture.
type Submission struct {
	Dir           string
	ChallengePath string
	EvidencePath  string
	CapturePath   string
	Challenge     *challenge.Challenge
	Evidence      *evidence.Evidence
}

// NewChallenge returns the deterministic fixture challenge for opts.
func NewChallenge(opts Options) (*challenge.Challenge, error) {
	applyDefaults(&opts)
	ch := &challenge.Challenge{
		ChallengeID: opts.ChallengeID,
		Week:        opts.Week,
		StudentID:   opts.StudentID,
		IssuedAt:    challenge.FormatTimestamp(Epoch),
		ExpiresAt:   challenge.FormatTimestamp(Epoch.Add(opts.TTL)),
		Seed:        "0011223344556677",
		Token:       opts.Token,
		Ports:       map[string]int{"http": 8080, "udp": 5007},
		Requirements: challenge.Requirements{
			MinHTTPRequests:     opts.MinHTTPRequests,
			MinDistinctBackends: opts.MinDistinctBackends,
			DNSQueryName:        opts.DNSQueryName,
			HTTPHeaderName:      opts.HTTPHeaderName,
			RequireTCPHandshake: opts.RequireTCPHandshake,
		},
	}
	if len(opts.Secret) > 0 {
		if err := challenge.Sign(ch, opts.Secret); err != nil {
			return nil, err
		}
	}
	return ch, nil
}

func applyDefaults(opts *Options) {
	if opts.Week == 0 {
		opts.Week = 11
	}
	if opts.StudentID == "" {
		opts.StudentID = "s1234567"
	}
	if opts.Token == "" {
		opts.Token = "W11-abc123"
	}
	if opts.ChallengeID == "" {
		opts.ChallengeID = "7f3c2a9e-1b2d-4c5e-8f90-a1b2c3d4e5f6"
	}
	if opts.TTL == 0 {
		opts.TTL = 7 * 24 * time.Hour
	}
	if opts.HTTPHeaderName == "" {
		opts.HTTPHeaderName = "X-AI-Challenge"
	}
	if opts.Format == "" {
		opts.Format = FormatPcap
	}
}

// EncodeCapture renders frames in the given container format.
func EncodeCapture(frames [][]byte, format string) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case FormatPcap, "":
		err = pcap.WritePCAP(&buf, frames)
	case FormatPcapBE:
		err = pcap.WriteClassic(&buf, frames, binary.BigEndian, false)
	case FormatPcapNG:
		err = pcap.WritePCAPNG(&buf, frames)
	default:
		return nil, fmt.Errorf("unknown capture format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteSubmission writes challenge.json, evidence.json, a capture and any
// artefacts into dir. The evidence carries correct hashes.
func WriteSubmission(dir string, opts Options) (*Submission, error) {
	applyDefaults(&opts)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create submission dir: %w", err)
	}
	ch, err := NewChallenge(opts)
	if err != nil {
		return nil, err
	}

	sub := &Submission{
		Dir:           dir,
		ChallengePath: filepath.Join(dir, "challenge.json"),
		EvidencePath:  filepath.Join(dir, "evidence.json"),
		CapturePath:   filepath.Join(dir, "capture."+captureExt(opts.Format)),
		Challenge:     ch,
	}
	if err := ch.Save(sub.ChallengePath); err != nil {
		return nil, err
	}

	data, err := EncodeCapture(opts.Frames, opts.Format)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(sub.CapturePath, data, 0644); err != nil {
		return nil, fmt.Errorf("write capture: %w", err)
	}

	var names []string
	for name, content := range opts.Artefacts {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create artefact dir: %w", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return nil, fmt.Errorf("write artefact: %w", err)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	ev, err := evidence.Build(evidence.BuildOptions{
		Challenge:   ch,
		CapturePath: sub.CapturePath,
		BaseDir:     dir,
		Artefacts:   names,
	})
	if err != nil {
		return nil, err
	}
	if opts.SkipPcapHash {
		ev.PcapSHA256 = ""
	}
	if err := ev.Save(sub.EvidencePath); err != nil {
		return nil, err
	}
	sub.Evidence = ev
	return sub, nil
}

func captureExt(format string) string {
	if format == FormatPcapNG {
		return "pcapng"
	}
	return "pcap"
}
