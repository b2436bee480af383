// Package validation cross-checks a challenge, an evidence manifest and a
// packet capture and reports every problem it finds in one pass.
package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tturner/labcheck/internal/challenge"
	"github.com/tturner/labcheck/internal/config"
	"github.com/tturner/labcheck/internal/evidence"
	"github.com/tturner/labcheck/internal/logging"
	"github.com/tturner/labcheck/internal/packet"
	"github.com/tturner/labcheck/internal/pcap"
)

// Inputs names the three files of one submission.
type Inputs struct {
	ChallengePath string `json:"challenge"`
	EvidencePath  string `json:"evidence"`
	CapturePath   string `json:"capture"`
	// BaseDir anchors artefact paths. Empty means the evidence file's directory.
	BaseDir string `json:"base_dir,omitempty"`
}

// Validator holds the policy for validating submissions. It is safe for
// concurrent use once configured.
type Validator struct {
	ExpectedWeek      int
	Secret            []byte
	Now               func() time.Time
	Logger            *logging.Logger
	BackendHeaders    []string
	DefaultHeaderName string
	HashChunkBytes    int
	ArtefactCheckers  []ArtefactChecker
}

// NewValidator returns a validator with the built-in defaults.
func NewValidator(expectedWeek int, secret []byte) *Validator {
	return &Validator{
		ExpectedWeek:      expectedWeek,
		Secret:            secret,
		Now:               time.Now,
		Logger:            logging.Discard(),
		BackendHeaders:    append([]string(nil), config.DefaultBackendHeaders...),
		DefaultHeaderName: config.DefaultHTTPHeaderName,
		HashChunkBytes:    evidence.DefaultChunkSize,
		ArtefactCheckers:  []ArtefactChecker{JSONArtefactChecker{}},
	}
}

// NewFromConfig builds a validator from a loaded configuration.
func NewFromConfig(cfg *config.Config, secret []byte, logger *logging.Logger) (*Validator, error) {
	checkers, err := CheckersFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	v := NewValidator(cfg.ExpectedWeek, secret)
	v.BackendHeaders = append([]string(nil), cfg.BackendHeaders...)
	v.DefaultHeaderName = cfg.ChallengeDefaults.HTTPHeaderName
	v.HashChunkBytes = cfg.HashChunkBytes
	v.ArtefactCheckers = checkers
	if logger != nil {
		v.Logger = logger
	}
	return v, nil
}

// Validate runs every check with the default policy for week 11.
func Validate(challengePath, evidencePath, capturePath string, secret []byte) *Result {
	return NewValidator(config.DefaultExpectedWeek, secret).Validate(Inputs{
		ChallengePath: challengePath,
		EvidencePath:  evidencePath,
		CapturePath:   capturePath,
	})
}

// Validate checks one submission. It never returns an error: unreadable or
// malformed inputs become entries in Result.Errors.
func (v *Validator) Validate(in Inputs) *Result {
	b := NewBuilder()
	log := v.Logger

	if !v.checkInputsExist(b, in) {
		log.Info("FAIL: %s", b.errors[0])
		return b.Result()
	}

	ch, err := challenge.Load(in.ChallengePath)
	if err != nil {
		b.Errorf("Malformed challenge file %s: %v", in.ChallengePath, err)
		log.Info("FAIL: challenge unreadable")
		return b.Result()
	}
	ev, err := evidence.Load(in.EvidencePath)
	if err != nil {
		b.Errorf("Malformed evidence file %s: %v", in.EvidencePath, err)
		log.Info("FAIL: evidence unreadable")
		return b.Result()
	}

	v.checkWeek(b, ch)
	v.checkSignature(b, ch)
	v.checkExpiry(b, ch)
	v.checkCrossReference(b, ch, ev)
	v.checkCaptureHash(b, in.CapturePath, ev)
	v.checkArtefacts(b, v.baseDir(in), ev)

	capture, err := pcap.ReadFile(in.CapturePath)
	if err != nil {
		b.Errorf("Cannot read capture file %s: %v", in.CapturePath, err)
	} else {
		v.checkCapture(b, ch, capture)
	}

	res := b.Result()
	if res.OK {
		log.Info("PASS: %s week %d (%d warnings)", ch.StudentID, ch.Week, len(res.Warnings))
	} else {
		log.Info("FAIL: %s week %d (%d errors, %d warnings)", ch.StudentID, ch.Week, len(res.Errors), len(res.Warnings))
	}
	return res
}

func (v *Validator) baseDir(in Inputs) string {
	if in.BaseDir != "" {
		return in.BaseDir
	}
	return filepath.Dir(in.EvidencePath)
}

func (v *Validator) now() time.Time {
	if v.Now == nil {
		return time.Now()
	}
	return v.Now()
}

// checkInputsExist stops at the first missing input.
func (v *Validator) checkInputsExist(b *Builder, in Inputs) bool {
	inputs := []struct{ kind, path string }{
		{"challenge", in.ChallengePath},
		{"evidence", in.EvidencePath},
		{"capture", in.CapturePath},
	}
	for _, input := range inputs {
		if input.path == "" {
			b.Errorf("Missing %s file: no path given", input.kind)
			return false
		}
		info, err := os.Stat(input.path)
		switch {
		case err != nil:
			b.Errorf("Missing %s file: %s", input.kind, input.path)
			return false
		case info.IsDir():
			b.Errorf("Missing %s file: %s is a directory", input.kind, input.path)
			return false
		}
	}
	v.Logger.LogCheck("inputs", true, "")
	return true
}

func (v *Validator) checkWeek(b *Builder, ch *challenge.Challenge) {
	ok := ch.Week == v.ExpectedWeek
	if !ok {
		b.Errorf("Challenge is for week %d, expected week %d", ch.Week, v.ExpectedWeek)
	}
	v.Logger.LogCheck("week", ok, fmt.Sprintf("week %d", ch.Week))
}

// checkSignature only ever warns.
func (v *Validator) checkSignature(b *Builder, ch *challenge.Challenge) {
	status := "valid"
	switch {
	case !ch.Signed():
		status = "unsigned"
		b.Warnf("Challenge is unsigned; its authenticity was not verified")
	case len(v.Secret) == 0:
		status = "unverified"
		b.Warnf("Challenge is signed but no secret is configured; signature not verified")
	case !challenge.VerifySignature(ch, v.Secret):
		status = "invalid"
		b.Warnf("Challenge signature does not match; the challenge may have been altered")
	}
	b.Metric(MetricSignature, status)
	v.Logger.LogCheck("signature", status == "valid", status)
}

func (v *Validator) checkExpiry(b *Builder, ch *challenge.Challenge) {
	expired, err := challenge.IsExpired(ch, v.now())
	switch {
	case err != nil:
		b.Errorf("Cannot parse challenge expiry %q: %v", ch.ExpiresAt, err)
	case expired:
		b.Errorf("Challenge expired at %s", ch.ExpiresAt)
	}
	v.Logger.LogCheck("expiry", err == nil && !expired, ch.ExpiresAt)
}

func (v *Validator) checkCrossReference(b *Builder, ch *challenge.Challenge, ev *evidence.Evidence) {
	ok := true
	if ev.Token != ch.Token {
		b.Errorf("Evidence token %q does not match challenge token %q", ev.Token, ch.Token)
		ok = false
	}
	if ev.ChallengeID != ch.ChallengeID {
		b.Errorf("Evidence challenge_id %q does not match challenge %q", ev.ChallengeID, ch.ChallengeID)
		ok = false
	}
	v.Logger.LogCheck("cross-reference", ok, "")
}

func (v *Validator) checkCaptureHash(b *Builder, capturePath string, ev *evidence.Evidence) {
	actual, err := evidence.HashFileChunked(capturePath, v.HashChunkBytes)
	if err != nil {
		b.Errorf("Cannot hash capture file: %v", err)
		v.Logger.LogCheck("capture-hash", false, "unreadable")
		return
	}
	b.Metric(MetricPcapSHA256, actual)

	declared := evidence.NormalizeHash(ev.PcapSHA256)
	switch {
	case declared == "":
		b.Warnf("Evidence does not declare pcap_sha256; capture binding not verified")
	case declared != actual:
		b.Errorf("Capture hash mismatch: evidence declares %s, file is %s", declared, actual)
	}
	v.Logger.LogCheck("capture-hash", declared == actual, actual)
}

func (v *Validator) checkArtefacts(b *Builder, baseDir string, ev *evidence.Evidence) {
	verified := 0
	for _, a := range ev.Artefacts {
		path, err := evidence.ResolveArtefact(baseDir, a.Path)
		if err != nil {
			b.Errorf("Artefact %q rejected: %v", a.Path, err)
			continue
		}
		actual, err := evidence.HashFileChunked(path, v.HashChunkBytes)
		if err != nil {
			b.Errorf("Artefact missing or unreadable: %s", a.Path)
			continue
		}
		if declared := evidence.NormalizeHash(a.SHA256); declared != actual {
			b.Errorf("Artefact hash mismatch for %s: declared %s, actual %s", a.Path, declared, actual)
			continue
		}
		if !v.checkArtefactContent(b, a.Path, path) {
			continue
		}
		verified++
	}
	b.Metric(MetricArtefactsDeclared, len(ev.Artefacts))
	b.Metric(MetricArtefactsVerified, verified)
	v.Logger.LogCheck("artefacts", verified == len(ev.Artefacts), fmt.Sprintf("%d/%d", verified, len(ev.Artefacts)))
}

func (v *Validator) checkArtefactContent(b *Builder, rel, path string) bool {
	var data []byte
	ok := true
	for _, checker := range v.ArtefactCheckers {
		if !checker.Match(rel) {
			continue
		}
		if data == nil {
			var err error
			if data, err = os.ReadFile(path); err != nil {
				b.Errorf("Artefact missing or unreadable: %s", rel)
				return false
			}
		}
		if err := checker.Check(data); err != nil {
			b.Errorf("Artefact %s failed %s check: %v", rel, checker.Name(), err)
			ok = false
		}
	}
	return ok
}

// checkCapture runs the byte-stream checks over the extracted frames. All
// searches use one ASCII lower-cased copy of the concatenated frames.
func (v *Validator) checkCapture(b *Builder, ch *challenge.Challenge, capture pcap.Capture) {
	b.Metric(MetricCaptureFormat, capture.Format.String())
	b.Metric(MetricCaptureFrames, len(capture.Frames))
	b.Metric(MetricCaptureBytes, capture.Len())
	if capture.Truncated {
		b.Warnf("Capture appears truncated; checked the %d complete frames", len(capture.Frames))
	}
	if capture.Format == pcap.FormatRaw {
		b.Warnf("Capture format not recognised; searching the file as raw bytes")
	}
	if len(capture.Frames) > 0 {
		first := capture.Frames[0]
		if len(first) > 64 {
			first = first[:64]
		}
		v.Logger.LogHex("first frame", first)
	}

	hay := packet.NewHaystack(capture.Bytes())
	token := strings.ToLower(ch.Token)
	req := ch.Requirements

	tokenFound := hay.Contains(token)
	switch {
	case token == "":
		b.Errorf("Challenge has no token to search the capture for")
	case !tokenFound:
		b.Errorf("Challenge token %s not found in capture", ch.Token)
	}
	v.Logger.LogCheck("token", tokenFound, "")

	header := req.HTTPHeaderName
	if header == "" {
		header = v.DefaultHeaderName
	}
	count := 0
	if token != "" {
		count = hay.Count("\r\n" + strings.ToLower(header) + ": " + token)
	}
	b.Metric(MetricHTTPTokenHeaders, count)
	if req.MinHTTPRequests > 0 && count < req.MinHTTPRequests {
		b.Errorf("Too few token HTTP requests: %d < %d", count, req.MinHTTPRequests)
	}
	v.Logger.LogCheck("http-requests", req.MinHTTPRequests <= 0 || count >= req.MinHTTPRequests,
		fmt.Sprintf("%d with %s", count, header))

	observed := 0
	for _, name := range v.BackendHeaders {
		n := hay.DistinctHeaderValues(name)
		b.Metric(backendMetricName(name), n)
		if n > observed {
			observed = n
		}
	}
	b.Metric(MetricDistinctBackends, observed)
	if req.MinDistinctBackends > 0 && observed < req.MinDistinctBackends {
		b.Errorf("Too few distinct backends: %d < %d (max of %s)", observed, req.MinDistinctBackends, strings.Join(v.BackendHeaders, ", "))
	}
	v.Logger.LogCheck("backends", req.MinDistinctBackends <= 0 || observed >= req.MinDistinctBackends,
		fmt.Sprintf("%d distinct", observed))

	if name := strings.TrimSuffix(req.DNSQueryName, "."); name != "" {
		lowered := strings.ToLower(name)
		seen := hay.Contains(lowered) || hay.ContainsBytes(packet.EncodeDNSName(lowered))
		b.Metric(MetricDNSQuerySeen, seen)
		if !seen {
			b.Errorf("DNS query for %s not found in capture", req.DNSQueryName)
		}
		v.Logger.LogCheck("dns", seen, req.DNSQueryName)
	}

	handshake := packet.HandshakeSeen(capture.Frames)
	b.Metric(MetricTCPHandshake, handshake)
	if req.RequireTCPHandshake {
		if !handshake {
			b.Errorf("No TCP three-way handshake (SYN, SYN+ACK, ACK) found in capture")
		}
		v.Logger.LogCheck("handshake", handshake, "")
	}

	recordStructuredFacts(b, pcap.Inspect(capture))
}

// backendMetricName maps "X-Served-By" to "distinct_x_served_by".
func backendMetricName(header string) string {
	return "distinct_" + strings.ReplaceAll(strings.ToLower(header), "-", "_")
}

func recordStructuredFacts(b *Builder, facts pcap.Facts) {
	b.Metric(structuredMetricPrefix+"frames_decoded", facts.Decoded)
	b.Metric(structuredMetricPrefix+"tcp_segments", facts.TCPSegments)
	b.Metric(structuredMetricPrefix+"udp_datagrams", facts.UDPDatagrams)
	b.Metric(structuredMetricPrefix+"http_requests", facts.HTTPRequests)
	b.Metric(structuredMetricPrefix+"http_responses", facts.HTTPResponses)
	b.Metric(structuredMetricPrefix+"handshakes", facts.Handshakes)
	b.Metric(structuredMetricPrefix+"dns_questions", len(facts.DNSQuestions))
}
