package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// UserFriendlyError provides user-friendly error messages with context and hints
type UserFriendlyError struct {
	Message string
	Reason  string
	Hint    string
	Try     string
	Err     error
}

func (e UserFriendlyError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Message)
	if e.Reason != "" {
		buf.WriteString("\n  Reason: " + e.Reason)
	}
	if e.Hint != "" {
		buf.WriteString("\n  Hint: " + e.Hint)
	}
	if e.Try != "" {
		buf.WriteString("\n  Try: " + e.Try)
	}
	if e.Err != nil {
		buf.WriteString("\n  Details: " + e.Err.Error())
	}
	return buf.String()
}

func (e UserFriendlyError) Unwrap() error {
	return e.Err
}

// WrapInputError wraps failures to read a submission input (challenge,
// evidence, capture or artefact) with user-friendly context
func WrapInputError(err error, kind, path string) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Cannot use %s file %s", kind, path),
		Reason:  extractInputReason(err),
		Hint:    "Paths are resolved relative to the current directory unless absolute",
		Try:     fmt.Sprintf("ls -l %s", path),
		Err:     err,
	}
}

// WrapSecretError wraps HMAC secret resolution errors with user-friendly context
func WrapSecretError(err error, envVar string) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: "No challenge signing secret available",
		Reason:  err.Error(),
		Hint:    fmt.Sprintf("Signing needs the shared course secret; set %s or pass --secret", envVar),
		Try:     fmt.Sprintf("export %s=<shared secret>", envVar),
		Err:     err,
	}
}

// WrapConfigError wraps configuration errors with user-friendly context
func WrapConfigError(err error, configPath string) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Configuration error in %s", configPath),
		Reason:  err.Error(),
		Hint:    "See docs/CONFIGURATION.md for configuration examples",
		Try:     fmt.Sprintf("Check your config: labcheck validate --config %s --verbose", configPath),
		Err:     err,
	}
}

func extractInputReason(err error) string {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "File does not exist"
	case errors.Is(err, fs.ErrPermission):
		return "Permission denied"
	}

	errStr := err.Error()
	if strings.Contains(errStr, "is a directory") {
		return "Path is a directory, not a file"
	}
	if strings.Contains(errStr, "invalid character") || strings.Contains(errStr, "unexpected end of JSON") {
		return "File is not valid JSON"
	}
	if strings.Contains(errStr, "jsonschema") || strings.Contains(errStr, "schema") {
		return "Document does not match the expected schema"
	}

	return "File could not be read"
}
