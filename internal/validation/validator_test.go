package validation

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/tturner/labcheck/internal/challenge"
	"github.com/tturner/labcheck/internal/evidence"
	"github.com/tturner/labcheck/internal/validation/fixtures"
)

func newTestValidator(secret []byte) *Validator {
	v := NewValidator(11, secret)
	v.Now = func() time.Time { return fixtures.ValidationTime }
	return v
}

func writeSubmission(t *testing.T, opts fixtures.Options) *fixtures.Submission {
	t.Helper()
	sub, err := fixtures.WriteSubmission(t.TempDir(), opts)
	if err != nil {
		t.Fatalf("WriteSubmission error: %v", err)
	}
	return sub
}

func inputsOf(sub *fixtures.Submission) Inputs {
	return Inputs{
		ChallengePath: sub.ChallengePath,
		EvidencePath:  sub.EvidencePath,
		CapturePath:   sub.CapturePath,
	}
}

func udpOptions(t *testing.T, payload string) fixtures.Options {
	t.Helper()
	frames, err := fixtures.UDPPayloadFrames(payload)
	if err != nil {
		t.Fatalf("UDPPayloadFrames error: %v", err)
	}
	return fixtures.Options{Frames: frames}
}

func hasMessage(list []string, substr string) bool {
	for _, s := range list {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}

func TestScenarios(t *testing.T) {
	for _, sc := range fixtures.Scenarios() {
		t.Run(sc.Name, func(t *testing.T) {
			opts, err := sc.Build()
			if err != nil {
				t.Fatalf("Build error: %v", err)
			}
			sub := writeSubmission(t, opts)
			res := newTestValidator(opts.Secret).Validate(inputsOf(sub))
			if res.OK != sc.WantOK {
				t.Fatalf("OK = %v, want %v (errors %v)", res.OK, sc.WantOK, res.Errors)
			}
			if !sc.WantOK && !hasMessage(res.Errors, sc.WantError) {
				t.Errorf("errors %v do not mention %q", res.Errors, sc.WantError)
			}
		})
	}
}

func TestTokenSearchIgnoresCase(t *testing.T) {
	sub := writeSubmission(t, udpOptions(t, "payload w11-ABC123 end"))
	res := newTestValidator(nil).Validate(inputsOf(sub))
	if !res.OK {
		t.Fatalf("expected pass, got errors %v", res.Errors)
	}
	if res.Metrics[MetricCaptureFormat] != "pcap-le" {
		t.Errorf("capture_format = %v", res.Metrics[MetricCaptureFormat])
	}
}

func TestTokenMissing(t *testing.T) {
	sub := writeSubmission(t, udpOptions(t, "W11-abc12"))
	res := newTestValidator(nil).Validate(inputsOf(sub))
	if res.OK {
		t.Fatal("expected failure for a partial token")
	}
	want := "Challenge token W11-abc123 not found in capture"
	if !hasMessage(res.Errors, want) {
		t.Errorf("errors %v, want %q", res.Errors, want)
	}
}

func TestCaptureHashBinding(t *testing.T) {
	sub := writeSubmission(t, udpOptions(t, "W11-abc123"))
	data, err := os.ReadFile(sub.CapturePath)
	if err != nil {
		t.Fatal(err)
	}
	data[len(data)-1] ^= 0xff
	if err := os.WriteFile(sub.CapturePath, data, 0644); err != nil {
		t.Fatal(err)
	}
	res := newTestValidator(nil).Validate(inputsOf(sub))
	if res.OK || !hasMessage(res.Errors, "Capture hash mismatch") {
		t.Errorf("expected hash mismatch, got %v", res.Errors)
	}
	sum, _ := evidence.HashFile(sub.CapturePath)
	if res.Metrics[MetricPcapSHA256] != sum {
		t.Errorf("pcap_sha256 metric = %v, want %s", res.Metrics[MetricPcapSHA256], sum)
	}
}

func TestValidateIsIdempotent(t *testing.T) {
	opts, err := fixtures.Scenarios()[3].Build()
	if err != nil {
		t.Fatal(err)
	}
	sub := writeSubmission(t, opts)
	v := newTestValidator(opts.Secret)
	first := v.Validate(inputsOf(sub))
	second := v.Validate(inputsOf(sub))
	if !reflect.DeepEqual(first, second) {
		t.Errorf("results differ:\n%+v\n%+v", first, second)
	}
}

func TestMetricsFromHTTPExchange(t *testing.T) {
	opts, err := fixtures.Scenarios()[3].Build()
	if err != nil {
		t.Fatal(err)
	}
	sub := writeSubmission(t, opts)
	res := newTestValidator(opts.Secret).Validate(inputsOf(sub))
	if !res.OK {
		t.Fatalf("expected pass, got %v", res.Errors)
	}
	want := map[string]interface{}{
		MetricHTTPTokenHeaders:  10,
		MetricDistinctServedBy:  2,
		MetricDistinctBackendID: 2,
		MetricDistinctBackends:  2,
		MetricDNSQuerySeen:      true,
		MetricTCPHandshake:      true,
		MetricSignature:         "valid",
		MetricCaptureFormat:     "pcapng",
		MetricArtefactsDeclared: 1,
		MetricArtefactsVerified: 1,
		"structured_handshakes": 1,
	}
	for name, value := range want {
		if got := res.Metrics[name]; got != value {
			t.Errorf("metric %s = %v, want %v", name, got, value)
		}
	}
	if len(res.Warnings) != 0 {
		t.Errorf("unexpected warnings %v", res.Warnings)
	}
}

func TestMissingInputShortCircuits(t *testing.T) {
	sub := writeSubmission(t, udpOptions(t, "W11-abc123"))
	if err := os.Remove(sub.EvidencePath); err != nil {
		t.Fatal(err)
	}
	res := newTestValidator(nil).Validate(inputsOf(sub))
	if res.OK || len(res.Errors) != 1 {
		t.Fatalf("errors = %v, want exactly one", res.Errors)
	}
	if !strings.HasPrefix(res.Errors[0], "Missing evidence file") {
		t.Errorf("error = %q", res.Errors[0])
	}
	for _, name := range []string{MetricPcapSHA256, MetricHTTPTokenHeaders, MetricDistinctServedBy, MetricDistinctBackendID} {
		if _, ok := res.Metrics[name]; !ok {
			t.Errorf("metric %s missing after short circuit", name)
		}
	}

	in := inputsOf(sub)
	in.CapturePath = ""
	in.EvidencePath = sub.ChallengePath
	res = newTestValidator(nil).Validate(in)
	if len(res.Errors) != 1 || res.Errors[0] != "Missing capture file: no path given" {
		t.Errorf("errors = %v", res.Errors)
	}
}

func TestMalformedInputsAreFatal(t *testing.T) {
	tests := []struct {
		name   string
		target func(*fixtures.Submission) string
		body   string
		prefix string
	}{
		{"challenge json", func(s *fixtures.Submission) string { return s.ChallengePath }, "{not json", "Malformed challenge file"},
		{"challenge schema", func(s *fixtures.Submission) string { return s.ChallengePath }, `{"week": "eleven"}`, "Malformed challenge file"},
		{"evidence json", func(s *fixtures.Submission) string { return s.EvidencePath }, "[", "Malformed evidence file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := writeSubmission(t, udpOptions(t, "W11-abc123"))
			if err := os.WriteFile(tt.target(sub), []byte(tt.body), 0644); err != nil {
				t.Fatal(err)
			}
			res := newTestValidator(nil).Validate(inputsOf(sub))
			if len(res.Errors) != 1 || !strings.HasPrefix(res.Errors[0], tt.prefix) {
				t.Errorf("errors = %v, want one starting %q", res.Errors, tt.prefix)
			}
		})
	}
}

// dropKeys rewrites a JSON document file without the given top-level keys.
func dropKeys(t *testing.T, path string, keys ...string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	for _, k := range keys {
		delete(doc, k)
	}
	if data, err = json.Marshal(doc); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestAbsentKeysAccumulate(t *testing.T) {
	t.Run("evidence without token", func(t *testing.T) {
		sub := writeSubmission(t, udpOptions(t, "nothing to see here"))
		dropKeys(t, sub.EvidencePath, "token")
		res := newTestValidator(nil).Validate(inputsOf(sub))
		if res.OK {
			t.Fatal("expected failure")
		}
		for _, want := range []string{
			`Evidence token "" does not match challenge token "W11-abc123"`,
			"Challenge token W11-abc123 not found in capture",
		} {
			if !hasMessage(res.Errors, want) {
				t.Errorf("errors %v missing %q", res.Errors, want)
			}
		}
		if hasMessage(res.Errors, "Malformed evidence file") {
			t.Errorf("absent token should not be fatal: %v", res.Errors)
		}
	})

	t.Run("challenge without week and token", func(t *testing.T) {
		sub := writeSubmission(t, udpOptions(t, "W11-abc123"))
		dropKeys(t, sub.ChallengePath, "week", "token", "student_id", "requirements")
		res := newTestValidator(nil).Validate(inputsOf(sub))
		for _, want := range []string{
			"Challenge is for week 0, expected week 11",
			"does not match challenge token",
			"Challenge has no token",
		} {
			if !hasMessage(res.Errors, want) {
				t.Errorf("errors %v missing %q", res.Errors, want)
			}
		}
		if _, ok := res.Metrics[MetricPcapSHA256]; !ok {
			t.Error("capture checks should still run")
		}
	})
}

func TestWeekMismatch(t *testing.T) {
	opts := udpOptions(t, "W11-abc123")
	opts.Week = 12
	sub := writeSubmission(t, opts)
	res := newTestValidator(nil).Validate(inputsOf(sub))
	if !hasMessage(res.Errors, "Challenge is for week 12, expected week 11") {
		t.Errorf("errors = %v", res.Errors)
	}
}

func TestExpiry(t *testing.T) {
	sub := writeSubmission(t, udpOptions(t, "W11-abc123"))
	expires := fixtures.Epoch.Add(7 * 24 * time.Hour)

	v := newTestValidator(nil)
	v.Now = func() time.Time { return expires }
	if res := v.Validate(inputsOf(sub)); !res.OK {
		t.Errorf("challenge rejected at its expiry instant: %v", res.Errors)
	}

	v.Now = func() time.Time { return expires.Add(time.Second) }
	res := v.Validate(inputsOf(sub))
	if res.OK || !hasMessage(res.Errors, "Challenge expired at 2025-01-13T09:00:00Z") {
		t.Errorf("errors = %v", res.Errors)
	}
}

func TestSignatureOnlyWarns(t *testing.T) {
	secret := []byte("course-secret")
	tests := []struct {
		name      string
		signWith  []byte
		verify    []byte
		tamper    bool
		status    string
		wantWarns int
	}{
		{"unsigned", nil, secret, false, "unsigned", 1},
		{"no secret", secret, nil, false, "unverified", 1},
		{"wrong secret", secret, []byte("other"), false, "invalid", 1},
		{"tampered", secret, secret, true, "invalid", 1},
		{"valid", secret, secret, false, "valid", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := udpOptions(t, "W11-abc123")
			opts.Secret = tt.signWith
			sub := writeSubmission(t, opts)
			if tt.tamper {
				ch, err := challenge.Load(sub.ChallengePath)
				if err != nil {
					t.Fatal(err)
				}
				ch.StudentID = "s7654321"
				if err := ch.Save(sub.ChallengePath); err != nil {
					t.Fatal(err)
				}
			}
			res := newTestValidator(tt.verify).Validate(inputsOf(sub))
			if !res.OK {
				t.Errorf("signature problems must not fail validation: %v", res.Errors)
			}
			if res.Metrics[MetricSignature] != tt.status {
				t.Errorf("signature = %v, want %s", res.Metrics[MetricSignature], tt.status)
			}
			if len(res.Warnings) != tt.wantWarns {
				t.Errorf("warnings = %v, want %d", res.Warnings, tt.wantWarns)
			}
		})
	}
}

func TestCrossReference(t *testing.T) {
	sub := writeSubmission(t, udpOptions(t, "W11-abc123"))
	sub.Evidence.Token = "W11-zzz999"
	sub.Evidence.ChallengeID = "other"
	if err := sub.Evidence.Save(sub.EvidencePath); err != nil {
		t.Fatal(err)
	}
	res := newTestValidator(nil).Validate(inputsOf(sub))
	if !hasMessage(res.Errors, "does not match challenge token") || !hasMessage(res.Errors, "challenge_id") {
		t.Errorf("errors = %v", res.Errors)
	}
}

func TestMissingPcapHashWarns(t *testing.T) {
	opts := udpOptions(t, "W11-abc123")
	opts.SkipPcapHash = true
	sub := writeSubmission(t, opts)
	res := newTestValidator(nil).Validate(inputsOf(sub))
	if !res.OK {
		t.Fatalf("errors = %v", res.Errors)
	}
	if !hasMessage(res.Warnings, "pcap_sha256") {
		t.Errorf("warnings = %v", res.Warnings)
	}
}

func TestArtefacts(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(t *testing.T, sub *fixtures.Submission)
		wantErr string
	}{
		{"verified", func(*testing.T, *fixtures.Submission) {}, ""},
		{"traversal", func(t *testing.T, sub *fixtures.Submission) {
			sub.Evidence.Artefacts = append(sub.Evidence.Artefacts, evidence.Artefact{Path: "../challenge.json", SHA256: "00"})
		}, `Artefact "../challenge.json" rejected`},
		{"absolute", func(t *testing.T, sub *fixtures.Submission) {
			sub.Evidence.Artefacts = append(sub.Evidence.Artefacts, evidence.Artefact{Path: "/etc/passwd", SHA256: "00"})
		}, `Artefact "/etc/passwd" rejected`},
		{"missing", func(t *testing.T, sub *fixtures.Submission) {
			sub.Evidence.Artefacts = append(sub.Evidence.Artefacts, evidence.Artefact{Path: "nope.txt", SHA256: "00"})
		}, "Artefact missing or unreadable: nope.txt"},
		{"altered", func(t *testing.T, sub *fixtures.Submission) {
			if err := os.WriteFile(filepath.Join(sub.Dir, "notes.txt"), []byte("edited"), 0644); err != nil {
				t.Fatal(err)
			}
		}, "Artefact hash mismatch for notes.txt"},
		{"broken json", func(t *testing.T, sub *fixtures.Submission) {
			path := filepath.Join(sub.Dir, "out", "bad.json")
			if err := os.WriteFile(path, []byte("{"), 0644); err != nil {
				t.Fatal(err)
			}
			sum, _ := evidence.HashFile(path)
			sub.Evidence.Artefacts = append(sub.Evidence.Artefacts, evidence.Artefact{Path: "out/bad.json", SHA256: strings.ToUpper(sum)})
		}, "Artefact out/bad.json failed json check"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := udpOptions(t, "W11-abc123")
			opts.Artefacts = map[string]string{"notes.txt": "observations", "out/report.json": `{"backends":["web1"]}`}
			sub := writeSubmission(t, opts)
			tt.mutate(t, sub)
			if err := sub.Evidence.Save(sub.EvidencePath); err != nil {
				t.Fatal(err)
			}
			res := newTestValidator(nil).Validate(inputsOf(sub))
			if tt.wantErr == "" {
				if !res.OK || res.Metrics[MetricArtefactsVerified] != 2 {
					t.Errorf("errors = %v, metrics = %v", res.Errors, res.Metrics)
				}
				return
			}
			if res.OK || !hasMessage(res.Errors, tt.wantErr) {
				t.Errorf("errors = %v, want %q", res.Errors, tt.wantErr)
			}
		})
	}
}

func TestArtefactBaseDirOverride(t *testing.T) {
	opts := udpOptions(t, "W11-abc123")
	opts.Artefacts = map[string]string{"notes.txt": "observations"}
	sub := writeSubmission(t, opts)

	in := inputsOf(sub)
	in.BaseDir = t.TempDir()
	res := newTestValidator(nil).Validate(in)
	if !hasMessage(res.Errors, "Artefact missing or unreadable: notes.txt") {
		t.Errorf("errors = %v", res.Errors)
	}
}

func TestSchemaArtefactCheck(t *testing.T) {
	schemaPath := filepath.Join(t.TempDir(), "report.schema.json")
	schemaDoc := `{"type":"object","required":["backends"],"properties":{"backends":{"type":"array","minItems":2}}}`
	if err := os.WriteFile(schemaPath, []byte(schemaDoc), 0644); err != nil {
		t.Fatal(err)
	}
	checker, err := NewSchemaArtefactChecker("report.json", schemaPath)
	if err != nil {
		t.Fatalf("NewSchemaArtefactChecker error: %v", err)
	}

	opts := udpOptions(t, "W11-abc123")
	opts.Artefacts = map[string]string{"out/report.json": `{"backends":["web1"]}`}
	sub := writeSubmission(t, opts)
	v := newTestValidator(nil)
	v.ArtefactCheckers = append(v.ArtefactCheckers, checker)
	res := v.Validate(inputsOf(sub))
	if res.OK || !hasMessage(res.Errors, "failed schema report.schema.json check") {
		t.Errorf("errors = %v", res.Errors)
	}
}

func TestDNSQueryMatchesWireEncoding(t *testing.T) {
	frames, err := fixtures.Concat(
		func() ([][]byte, error) { return fixtures.UDPPayloadFrames("W11-abc123") },
		func() ([][]byte, error) { return fixtures.DNSQueryFrames("w11-abc123.lab.local") },
	)
	if err != nil {
		t.Fatal(err)
	}
	for _, tt := range []struct {
		query string
		ok    bool
	}{
		{"W11-ABC123.lab.local.", true},
		{"other.lab.local", false},
	} {
		sub := writeSubmission(t, fixtures.Options{Frames: frames, DNSQueryName: tt.query})
		res := newTestValidator(nil).Validate(inputsOf(sub))
		if res.OK != tt.ok || res.Metrics[MetricDNSQuerySeen] != tt.ok {
			t.Errorf("query %s: OK = %v, dns_query_seen = %v, errors %v", tt.query, res.OK, res.Metrics[MetricDNSQuerySeen], res.Errors)
		}
		if !tt.ok && !hasMessage(res.Errors, "DNS query for other.lab.local not found in capture") {
			t.Errorf("errors = %v", res.Errors)
		}
	}
}

func TestHandshakeRequirement(t *testing.T) {
	opts := udpOptions(t, "W11-abc123")
	opts.RequireTCPHandshake = true
	sub := writeSubmission(t, opts)
	res := newTestValidator(nil).Validate(inputsOf(sub))
	if !hasMessage(res.Errors, "No TCP three-way handshake") {
		t.Errorf("errors = %v", res.Errors)
	}
	if res.Metrics[MetricTCPHandshake] != false {
		t.Errorf("tcp_handshake = %v", res.Metrics[MetricTCPHandshake])
	}
}

func TestRawCaptureWarns(t *testing.T) {
	opts := udpOptions(t, "unused")
	opts.SkipPcapHash = true
	sub := writeSubmission(t, opts)
	if err := os.WriteFile(sub.CapturePath, []byte("plain text with W11-abc123 inside"), 0644); err != nil {
		t.Fatal(err)
	}
	res := newTestValidator(nil).Validate(inputsOf(sub))
	if !res.OK {
		t.Fatalf("errors = %v", res.Errors)
	}
	if res.Metrics[MetricCaptureFormat] != "raw" || !hasMessage(res.Warnings, "format not recognised") {
		t.Errorf("metrics = %v, warnings = %v", res.Metrics, res.Warnings)
	}
}

func TestPackageValidate(t *testing.T) {
	opts := udpOptions(t, "W11-abc123")
	opts.TTL = 100 * 365 * 24 * time.Hour
	sub := writeSubmission(t, opts)
	res := Validate(sub.ChallengePath, sub.EvidencePath, sub.CapturePath, nil)
	if !res.OK {
		t.Errorf("errors = %v", res.Errors)
	}
}

func TestBackendMetricName(t *testing.T) {
	tests := map[string]string{
		"X-Served-By":  "distinct_x_served_by",
		"X-Backend-ID": "distinct_x_backend_id",
		"Via":          "distinct_via",
	}
	for header, want := range tests {
		if got := backendMetricName(header); got != want {
			t.Errorf("backendMetricName(%q) = %q, want %q", header, got, want)
		}
	}
}
