package validation

import (
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/tturner/labcheck/internal/config"
	"github.com/tturner/labcheck/internal/schema"
)

// ArtefactChecker runs a structural check on artefact content after its hash
// has been verified.
type ArtefactChecker interface {
	Name() string
	// Match receives the artefact path as declared in the evidence.
	Match(rel string) bool
	Check(data []byte) error
}

// JSONArtefactChecker requires every .json artefact to be well-formed JSON.
type JSONArtefactChecker struct{}

func (JSONArtefactChecker) Name() string { return "json" }

func (JSONArtefactChecker) Match(rel string) bool {
	return strings.EqualFold(path.Ext(rel), ".json")
}

func (JSONArtefactChecker) Check(data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("not valid JSON")
	}
	return nil
}

// SchemaArtefactChecker validates artefacts matching a glob against a JSON Schema.
type SchemaArtefactChecker struct {
	Glob   string
	Schema *schema.Schema
}

// NewSchemaArtefactChecker compiles the schema file for glob.
func NewSchemaArtefactChecker(glob, schemaPath string) (*SchemaArtefactChecker, error) {
	if _, err := path.Match(glob, ""); err != nil {
		return nil, fmt.Errorf("artefact glob %q: %w", glob, err)
	}
	s, err := schema.CompileFile(schemaPath)
	if err != nil {
		return nil, err
	}
	return &SchemaArtefactChecker{Glob: glob, Schema: s}, nil
}

func (c *SchemaArtefactChecker) Name() string {
	return "schema " + filepath.Base(c.Schema.Name())
}

// Match tries the glob against the full declared path, then its base name.
func (c *SchemaArtefactChecker) Match(rel string) bool {
	rel = filepath.ToSlash(rel)
	if ok, _ := path.Match(c.Glob, rel); ok {
		return true
	}
	ok, _ := path.Match(c.Glob, path.Base(rel))
	return ok
}

func (c *SchemaArtefactChecker) Check(data []byte) error {
	return c.Schema.ValidateJSON(data)
}

// CheckersFromConfig returns the JSON checker plus one schema checker per
// configured artefact schema.
func CheckersFromConfig(cfg *config.Config) ([]ArtefactChecker, error) {
	checkers := []ArtefactChecker{JSONArtefactChecker{}}
	for _, s := range cfg.ArtefactSchemas {
		c, err := NewSchemaArtefactChecker(s.Glob, s.Schema)
		if err != nil {
			return nil, err
		}
		checkers = append(checkers, c)
	}
	return checkers, nil
}
