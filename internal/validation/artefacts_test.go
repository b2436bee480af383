package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tturner/labcheck/internal/config"
)

func TestJSONArtefactChecker(t *testing.T) {
	c := JSONArtefactChecker{}
	if !c.Match("out/Report.JSON") || c.Match("notes.txt") {
		t.Error("Match should select .json paths only")
	}
	if err := c.Check([]byte(`{"a":1}`)); err != nil {
		t.Errorf("Check valid JSON: %v", err)
	}
	if err := c.Check([]byte(`{"a":`)); err == nil {
		t.Error("Check should reject truncated JSON")
	}
}

func TestSchemaArtefactCheckerMatch(t *testing.T) {
	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "s.json")
	if err := os.WriteFile(schemaPath, []byte(`{"type":"object"}`), 0644); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		glob string
		rel  string
		want bool
	}{
		{"out/*.json", "out/report.json", true},
		{"report.json", "deep/dir/report.json", true},
		{"*.json", "out/report.json", true},
		{"out/*.json", "other/report.json", false},
		{"*.yaml", "report.json", false},
	}
	for _, tt := range tests {
		c, err := NewSchemaArtefactChecker(tt.glob, schemaPath)
		if err != nil {
			t.Fatalf("NewSchemaArtefactChecker(%q) error: %v", tt.glob, err)
		}
		if got := c.Match(tt.rel); got != tt.want {
			t.Errorf("Match(%q, %q) = %v, want %v", tt.glob, tt.rel, got, tt.want)
		}
	}
	if _, err := NewSchemaArtefactChecker("[", schemaPath); err == nil {
		t.Error("expected error for a bad glob")
	}
	if _, err := NewSchemaArtefactChecker("*.json", filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for a missing schema")
	}
}

func TestCheckersFromConfig(t *testing.T) {
	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "report.schema.json")
	if err := os.WriteFile(schemaPath, []byte(`{"type":"object","required":["ok"]}`), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := config.CreateDefaultConfig()
	cfg.ArtefactSchemas = []config.ArtefactSchema{{Glob: "report.json", Schema: schemaPath}}
	checkers, err := CheckersFromConfig(cfg)
	if err != nil {
		t.Fatalf("CheckersFromConfig error: %v", err)
	}
	if len(checkers) != 2 || checkers[1].Name() != "schema report.schema.json" {
		t.Fatalf("checkers = %v", checkers)
	}
	if err := checkers[1].Check([]byte(`{"ok":true}`)); err != nil {
		t.Errorf("Check conforming document: %v", err)
	}
	if err := checkers[1].Check([]byte(`{}`)); err == nil {
		t.Error("Check should reject a document missing a required field")
	}

	v, err := NewFromConfig(cfg, nil, nil)
	if err != nil {
		t.Fatalf("NewFromConfig error: %v", err)
	}
	if len(v.ArtefactCheckers) != 2 || v.ExpectedWeek != cfg.ExpectedWeek || v.Logger == nil {
		t.Errorf("validator = %+v", v)
	}
}

func TestBuilderAccumulates(t *testing.T) {
	b := NewBuilder()
	b.Errorf("first %d", 1)
	b.Warnf("careful")
	b.Errorf("second")
	b.Metric("custom", 3)
	res := b.Result()
	if res.OK || len(res.Errors) != 2 || len(res.Warnings) != 1 || b.ErrorCount() != 2 {
		t.Fatalf("result = %+v", res)
	}
	names := res.MetricNames()
	want := []string{"custom", MetricDistinctBackendID, MetricDistinctServedBy, MetricHTTPTokenHeaders, MetricPcapSHA256}
	if len(names) != len(want) {
		t.Fatalf("MetricNames = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("MetricNames[%d] = %s, want %s", i, names[i], want[i])
		}
	}

	b.Metric("custom", 4)
	if res.Metrics["custom"] != 3 {
		t.Error("Result must not alias the builder's metrics")
	}
	if clean := NewBuilder().Result(); !clean.OK || clean.Errors == nil || clean.Warnings == nil {
		t.Errorf("empty result = %+v", clean)
	}
}
