package evidence

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tturner/labcheck/internal/challenge"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestHashFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "abc.txt")
	writeFile(t, path, "abc")
	const want = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"

	got, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile error: %v", err)
	}
	if got != want {
		t.Errorf("HashFile = %s, want %s", got, want)
	}
	// A chunk smaller than the file must give the same digest.
	if got, _ := HashFileChunked(path, 1); got != want {
		t.Errorf("HashFileChunked(1) = %s, want %s", got, want)
	}
	if _, err := HashFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestNormalizeHash(t *testing.T) {
	if got := NormalizeHash("  SHA256:ABCDEF \n"); got != "abcdef" {
		t.Errorf("NormalizeHash = %q", got)
	}
}

func TestResolveArtefact(t *testing.T) {
	base := filepath.Join(t.TempDir(), "submission")
	tests := []struct {
		rel     string
		want    string
		wantErr string
	}{
		{"report.json", filepath.Join(base, "report.json"), ""},
		{"out/plan.json", filepath.Join(base, "out", "plan.json"), ""},
		{"out/../report.json", filepath.Join(base, "report.json"), ""},
		{"", "", "empty"},
		{"/etc/passwd", "", "must be relative"},
		{"../secret.json", "", "escapes"},
		{"out/../../secret.json", "", "escapes"},
	}
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			got, err := ResolveArtefact(base, tt.rel)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error = %v, want to contain %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolveArtefact = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{"full", `{"token":"W11-abc123","challenge_id":"id","pcap_sha256":"00","artefacts":[{"path":"a.json","sha256":"11"}]}`, false},
		{"no hash, no artefacts", `{"token":"t","challenge_id":"id"}`, false},
		{"null hash", `{"token":"t","challenge_id":"id","pcap_sha256":null}`, false},
		{"missing token", `{"challenge_id":"id"}`, false},
		{"artefact without hash", `{"token":"t","challenge_id":"id","artefacts":[{"path":"a"}]}`, false},
		{"token as number", `{"token":7,"challenge_id":"id"}`, true},
		{"artefact as string", `{"token":"t","challenge_id":"id","artefacts":["a.json"]}`, true},
		{"artefacts not a list", `{"token":"t","challenge_id":"id","artefacts":{}}`, true},
		{"malformed", `{"token":`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if (err != nil) != tt.wantErr {
				t.Errorf("Parse error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBuildAndSave(t *testing.T) {
	dir := t.TempDir()
	capture := filepath.Join(dir, "lab.pcap")
	writeFile(t, capture, "capture bytes")
	writeFile(t, filepath.Join(dir, "out", "report.json"), `{"ok":true}`)

	ch, err := challenge.Generate(challenge.GenerateOptions{Week: 11, StudentID: "s1", TTL: time.Hour})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	ev, err := Build(BuildOptions{
		Challenge:   ch,
		CapturePath: capture,
		BaseDir:     dir,
		Artefacts:   []string{"out/report.json", filepath.Join(dir, "lab.pcap")},
	})
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if ev.Token != ch.Token || ev.ChallengeID != ch.ChallengeID {
		t.Error("evidence not bound to challenge")
	}
	captureHash, _ := HashFile(capture)
	if ev.PcapSHA256 != captureHash {
		t.Errorf("PcapSHA256 = %s, want %s", ev.PcapSHA256, captureHash)
	}
	if len(ev.Artefacts) != 2 || ev.Artefacts[0].Path != "out/report.json" || ev.Artefacts[1].Path != "lab.pcap" {
		t.Fatalf("Artefacts = %+v", ev.Artefacts)
	}

	path := filepath.Join(dir, "evidence.json")
	if err := ev.Save(path); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if loaded.Artefacts[0] != ev.Artefacts[0] {
		t.Errorf("reloaded artefact = %+v", loaded.Artefacts[0])
	}

	if _, err := Build(BuildOptions{Challenge: ch, BaseDir: dir, Artefacts: []string{"../x"}}); err == nil {
		t.Error("Build should reject an escaping artefact path")
	}
	if _, err := Build(BuildOptions{}); err == nil {
		t.Error("Build should require a challenge")
	}
}
