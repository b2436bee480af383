package evidence

import (
	"fmt"
	"path/filepath"

	"github.com/tturner/labcheck/internal/challenge"
)

// BuildOptions describe the files a student submits.
type BuildOptions struct {
	Challenge   *challenge.Challenge
	CapturePath string
	// BaseDir anchors artefact paths; they are recorded relative to it.
	BaseDir   string
	Artefacts []string
}

// Build hashes the capture and artefacts and returns a manifest bound to the
// challenge.
func Build(opts BuildOptions) (*Evidence, error) {
	if opts.Challenge == nil {
		return nil, fmt.Errorf("challenge is required")
	}
	ev := &Evidence{
		Token:       opts.Challenge.Token,
		ChallengeID: opts.Challenge.ChallengeID,
		Artefacts:   []Artefact{},
	}
	if opts.CapturePath != "" {
		sum, err := HashFile(opts.CapturePath)
		if err != nil {
			return nil, fmt.Errorf("hash capture: %w", err)
		}
		ev.PcapSHA256 = sum
	}

	base := opts.BaseDir
	if base == "" {
		base = "."
	}
	for _, name := range opts.Artefacts {
		rel := name
		if filepath.IsAbs(name) {
			r, err := filepath.Rel(base, name)
			if err != nil {
				return nil, fmt.Errorf("artefact %s: %w", name, err)
			}
			rel = r
		}
		rel = filepath.ToSlash(filepath.Clean(rel))
		path, err := ResolveArtefact(base, rel)
		if err != nil {
			return nil, err
		}
		sum, err := HashFile(path)
		if err != nil {
			return nil, fmt.Errorf("hash artefact: %w", err)
		}
		ev.Artefacts = append(ev.Artefacts, Artefact{Path: rel, SHA256: sum})
	}
	return ev, nil
}
