package challenge

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	tokenBytes = 4
	seedBytes  = 8
)

// GenerateOptions describe a challenge to issue.
type GenerateOptions struct {
	Week                int
	StudentID           string
	TTL                 time.Duration
	MinHTTPRequests     int
	MinDistinctBackends int
	HTTPHeaderName      string
	// DNSSuffix, when set, makes the expected query name <token>.<suffix>.
	DNSSuffix           string
	RequireTCPHandshake bool
	Secret              []byte
	// Now defaults to time.Now.
	Now func() time.Time
}

// Generate issues a new challenge with a random token, id and seed. It is
// signed when a secret is given.
func Generate(opts GenerateOptions) (*Challenge, error) {
	if opts.Week <= 0 {
		return nil, fmt.Errorf("week must be positive, got %d", opts.Week)
	}
	if strings.TrimSpace(opts.StudentID) == "" {
		return nil, fmt.Errorf("student id is required")
	}
	if opts.TTL <= 0 {
		return nil, fmt.Errorf("ttl must be positive, got %s", opts.TTL)
	}
	if opts.MinHTTPRequests < 0 || opts.MinDistinctBackends < 0 {
		return nil, fmt.Errorf("minimums must not be negative")
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	tokenRand, err := randomBytes(tokenBytes)
	if err != nil {
		return nil, err
	}
	seedRand, err := randomBytes(seedBytes)
	if err != nil {
		return nil, err
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("generate challenge id: %w", err)
	}

	token := fmt.Sprintf("W%d-%s", opts.Week, hex.EncodeToString(tokenRand))
	issued := now().UTC().Truncate(time.Second)
	ch := &Challenge{
		ChallengeID: id.String(),
		Week:        opts.Week,
		StudentID:   opts.StudentID,
		IssuedAt:    FormatTimestamp(issued),
		ExpiresAt:   FormatTimestamp(issued.Add(opts.TTL)),
		Seed:        hex.EncodeToString(seedRand),
		Token:       token,
		Ports:       portsFromSeed(seedRand),
		Requirements: Requirements{
			MinHTTPRequests:     opts.MinHTTPRequests,
			MinDistinctBackends: opts.MinDistinctBackends,
			HTTPHeaderName:      opts.HTTPHeaderName,
			RequireTCPHandshake: opts.RequireTCPHandshake,
		},
	}
	if opts.DNSSuffix != "" {
		ch.Requirements.DNSQueryName = strings.ToLower(token) + "." + strings.Trim(opts.DNSSuffix, ".")
	}
	if len(opts.Secret) > 0 {
		if err := Sign(ch, opts.Secret); err != nil {
			return nil, err
		}
	}
	return ch, nil
}

// portsFromSeed spreads students over distinct lab ports.
func portsFromSeed(seed []byte) map[string]int {
	v := binary.BigEndian.Uint64(seed)
	return map[string]int{
		"http":    8000 + int(v%1000),
		"backend": 9000 + int((v/1000)%1000),
		"udp":     5000 + int((v/1000000)%1000),
	}
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("read random bytes: %w", err)
	}
	return b, nil
}
