package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DefaultChunkSize is the read size used when streaming files into SHA-256.
const DefaultChunkSize = 1 << 20

// HashFile returns the lower-case hex SHA-256 of a file, streamed in 1 MiB chunks.
func HashFile(path string) (string, error) {
	return HashFileChunked(path, DefaultChunkSize)
}

// HashFileChunked is HashFile with an explicit chunk size.
func HashFileChunked(path string, chunk int) (string, error) {
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.CopyBuffer(h, f, make([]byte, chunk)); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// NormalizeHash lower-cases a declared hex digest and strips blanks and an
// optional "sha256:" prefix.
func NormalizeHash(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimPrefix(s, "sha256:")
}

// ResolveArtefact joins a declared artefact path onto baseDir. Absolute paths
// and paths that climb out of baseDir are rejected.
func ResolveArtefact(baseDir, rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("empty artefact path")
	}
	if filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") || strings.HasPrefix(rel, `\`) {
		return "", fmt.Errorf("artefact path %q must be relative", rel)
	}
	clean := filepath.Clean(filepath.FromSlash(rel))
	if !filepath.IsLocal(clean) {
		return "", fmt.Errorf("artefact path %q escapes the base directory", rel)
	}
	return filepath.Join(baseDir, clean), nil
}
