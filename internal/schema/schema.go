// Package schema compiles JSON Schema (draft 2020-12) documents and validates
// raw JSON against them.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema is a compiled JSON Schema.
type Schema struct {
	name     string
	compiled *jsonschema.Schema
}

// Name returns the resource name the schema was compiled under.
func (s *Schema) Name() string {
	return s.name
}

// Compile compiles schema source registered under name.
func Compile(name, source string) (*Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := "https://labcheck.schemas.local/" + strings.TrimPrefix(filepath.ToSlash(name), "/")
	if err := c.AddResource(url, strings.NewReader(source)); err != nil {
		return nil, fmt.Errorf("load schema %s: %w", name, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &Schema{name: name, compiled: compiled}, nil
}

// MustCompile is Compile for schemas built into the binary.
func MustCompile(name, source string) *Schema {
	s, err := Compile(name, source)
	if err != nil {
		panic(err)
	}
	return s
}

// CompileFile compiles a schema file from disk.
func CompileFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return Compile(path, string(data))
}

// Decode parses a JSON document keeping numbers exact.
func Decode(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("invalid JSON: trailing data after document")
	}
	return doc, nil
}

// ValidateJSON parses data and validates it against the schema.
func (s *Schema) ValidateJSON(data []byte) error {
	doc, err := Decode(data)
	if err != nil {
		return err
	}
	return s.Validate(doc)
}

// Validate checks an already decoded document.
func (s *Schema) Validate(doc interface{}) error {
	if err := s.compiled.Validate(doc); err != nil {
		return fmt.Errorf("schema %s: %w", s.name, err)
	}
	return nil
}
