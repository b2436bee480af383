// Package progress draws a one-line progress bar for batch grading.
package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

const barWidth = 40

// Bar counts finished submissions. It is safe for concurrent use by the
// batch workers.
type Bar struct {
	mu          sync.Mutex
	output      io.Writer
	description string
	total       int
	passed      int
	failed      int
	startTime   time.Time
	lastUpdate  time.Time
	interval    time.Duration
	now         func() time.Time
}

// NewBar returns a bar for total submissions writing to w, usually stderr so
// it does not mix with the report.
func NewBar(w io.Writer, total int, description string) *Bar {
	start := time.Now()
	return &Bar{
		output:      w,
		description: description,
		total:       total,
		startTime:   start,
		interval:    100 * time.Millisecond,
		now:         time.Now,
	}
}

// Done records one finished submission.
func (b *Bar) Done(passed bool) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if passed {
		b.passed++
	} else {
		b.failed++
	}
	b.render(false)
}

// Finish draws the final state and ends the line.
func (b *Bar) Finish() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.render(true)
	fmt.Fprint(b.output, "\n")
}

// render throttles redraws unless force is set or the batch is complete.
func (b *Bar) render(force bool) {
	now := b.now()
	current := b.passed + b.failed
	if !force && current < b.total && now.Sub(b.lastUpdate) < b.interval {
		return
	}
	b.lastUpdate = now

	var percent float64
	if b.total > 0 {
		percent = float64(current) / float64(b.total) * 100
	}
	filled := int(float64(barWidth) * percent / 100)
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("=", filled)
	if filled < barWidth {
		bar += ">" + strings.Repeat("-", barWidth-filled-1)
	}

	line := fmt.Sprintf("\r[%s] %d/%d (%.1f%%) | %d passed, %d failed | Elapsed: %s",
		bar, current, b.total, percent, b.passed, b.failed, formatDuration(now.Sub(b.startTime)))
	if b.description != "" {
		line = "\r" + b.description + " " + line[1:]
	}
	fmt.Fprint(b.output, line)
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm%ds", minutes, seconds)
}
