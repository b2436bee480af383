package packet

import (
	"bytes"
	"strings"
)

// Lower returns an ASCII-only lower-cased copy of b. Non-ASCII bytes are kept
// as-is so offsets in the copy line up with offsets in b.
func Lower(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return out
}

// CountOccurrences counts non-overlapping occurrences of needle in haystack.
// An empty needle never matches.
func CountOccurrences(haystack, needle []byte) int {
	if len(needle) == 0 {
		return 0
	}
	count := 0
	for pos := 0; pos <= len(haystack)-len(needle); {
		idx := bytes.Index(haystack[pos:], needle)
		if idx < 0 {
			break
		}
		count++
		pos += idx + len(needle)
	}
	return count
}

// Haystack is a captured byte stream together with its lower-cased copy.
// All searches run against the lower-cased copy; header values are read back
// from the original bytes so their case is preserved.
type Haystack struct {
	Raw   []byte
	Lower []byte
}

// NewHaystack lower-cases raw once.
func NewHaystack(raw []byte) Haystack {
	return Haystack{Raw: raw, Lower: Lower(raw)}
}

// Contains reports whether needle occurs, ignoring ASCII case.
func (h Haystack) Contains(needle string) bool {
	if needle == "" {
		return false
	}
	return bytes.Contains(h.Lower, Lower([]byte(needle)))
}

// ContainsBytes is Contains for a byte needle.
func (h Haystack) ContainsBytes(needle []byte) bool {
	if len(needle) == 0 {
		return false
	}
	return bytes.Contains(h.Lower, Lower(needle))
}

// Count counts non-overlapping occurrences of needle, ignoring ASCII case.
func (h Haystack) Count(needle string) int {
	return CountOccurrences(h.Lower, Lower([]byte(needle)))
}

// HeaderValues returns the value of every "\r\n<name>:" header line in the
// stream, in stream order. The name matches case-insensitively; values keep
// their original case with surrounding blanks trimmed. Blanks after the colon
// are spaces and tabs only, so an empty value never swallows the next line.
func (h Haystack) HeaderValues(name string) []string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil
	}
	prefix := []byte("\r\n" + name + ":")
	var values []string
	for off := 0; ; {
		i := bytes.Index(h.Lower[off:], prefix)
		if i < 0 {
			return values
		}
		start := off + i + len(prefix)
		for start < len(h.Lower) && isBlank(h.Lower[start]) {
			start++
		}
		end := start
		for end < len(h.Lower) && h.Lower[end] != '\r' && h.Lower[end] != '\n' {
			end++
		}
		values = append(values, string(bytes.TrimRight(h.Raw[start:end], " \t")))
		off = end
	}
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t' || c == '\v' || c == '\f'
}

// DistinctHeaderValues returns the number of distinct non-empty values of a header.
func (h Haystack) DistinctHeaderValues(name string) int {
	seen := map[string]struct{}{}
	for _, v := range h.HeaderValues(name) {
		if v == "" {
			continue
		}
		seen[v] = struct{}{}
	}
	return len(seen)
}

// EncodeDNSName returns the wire-format label sequence of a dotted name,
// without the terminating root label. It returns nil when a label is longer
// than 63 bytes or the name has no labels.
func EncodeDNSName(name string) []byte {
	var out []byte
	for _, label := range strings.Split(strings.Trim(name, "."), ".") {
		if label == "" {
			continue
		}
		if len(label) > 63 {
			return nil
		}
		out = append(out, byte(len(label)))
		out = append(out, label...)
	}
	return out
}
