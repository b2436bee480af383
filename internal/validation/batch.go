package validation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/tturner/labcheck/internal/pcap"
)

// Submission file names looked up by DiscoverSubmissions.
const (
	ChallengeFileName = "challenge.json"
	EvidenceFileName  = "evidence.json"
)

// BatchResult pairs a submission with its result.
type BatchResult struct {
	Inputs Inputs  `json:"inputs"`
	Result *Result `json:"result"`
}

// ValidateBatch validates each submission on its own goroutine, at most
// parallelism at a time. Results come back in input order. Cancelling ctx
// stops submissions that have not started yet.
func (v *Validator) ValidateBatch(ctx context.Context, inputs []Inputs, parallelism int) ([]BatchResult, error) {
	return v.ValidateBatchFunc(ctx, inputs, parallelism, nil)
}

// ValidateBatchFunc is ValidateBatch with a callback run as each submission
// finishes. onDone is called from the worker goroutines.
func (v *Validator) ValidateBatchFunc(ctx context.Context, inputs []Inputs, parallelism int, onDone func(BatchResult)) ([]BatchResult, error) {
	if parallelism < 1 {
		parallelism = 1
	}
	results := make([]BatchResult, len(inputs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, in := range inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = BatchResult{Inputs: in, Result: v.Validate(in)}
			if onDone != nil {
				onDone(results[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch validation: %w", err)
	}
	return results, nil
}

// DiscoverSubmissions treats every directory under root that holds a
// challenge.json as one submission. The evidence file is evidence.json next
// to it and the capture is the first capture file in the same directory.
// Missing pieces are left for Validate to report.
func DiscoverSubmissions(root string) ([]Inputs, error) {
	var subs []Inputs
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		challengePath := filepath.Join(path, ChallengeFileName)
		if _, err := os.Stat(challengePath); err != nil {
			return nil
		}
		subs = append(subs, Inputs{
			ChallengePath: challengePath,
			EvidencePath:  filepath.Join(path, EvidenceFileName),
			CapturePath:   firstCapture(path),
			BaseDir:       path,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover submissions: %w", err)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ChallengePath < subs[j].ChallengePath })
	return subs, nil
}

func firstCapture(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if !e.IsDir() && pcap.IsCaptureFile(e.Name()) {
			return filepath.Join(dir, e.Name())
		}
	}
	return ""
}

// Summary counts passing and failing submissions.
func Summary(results []BatchResult) (passed, failed int) {
	for _, r := range results {
		if r.Result != nil && r.Result.OK {
			passed++
		} else {
			failed++
		}
	}
	return passed, failed
}
