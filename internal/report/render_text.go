package report

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/tturner/labcheck/internal/validation"
)

// Banner colours. The renderer drops them when w is not a colour terminal.
var (
	passColor = lipgloss.Color("#9ece6a")
	failColor = lipgloss.Color("#f7768e")
	warnColor = lipgloss.Color("#e0af68")
	dimColor  = lipgloss.Color("#565f89")
)

type textStyles struct {
	pass, fail, warn, dim lipgloss.Style
}

func newTextStyles(w io.Writer) textStyles {
	r := lipgloss.NewRenderer(w)
	return textStyles{
		pass: r.NewStyle().Bold(true).Foreground(passColor),
		fail: r.NewStyle().Bold(true).Foreground(failColor),
		warn: r.NewStyle().Foreground(warnColor),
		dim:  r.NewStyle().Foreground(dimColor),
	}
}

// WriteText renders a result for people: a [PASS] or [FAIL] banner, then one
// line per error. Verbose output adds warnings and every metric in name order.
func WriteText(w io.Writer, res *validation.Result, verbose bool) {
	st := newTextStyles(w)
	if res.OK {
		fmt.Fprintf(w, "%s Submission accepted (%d warnings)\n", st.pass.Render("[PASS]"), len(res.Warnings))
	} else {
		fmt.Fprintf(w, "%s Submission rejected: %d errors, %d warnings\n", st.fail.Render("[FAIL]"), len(res.Errors), len(res.Warnings))
	}
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  - ERROR: %s\n", e)
	}
	if !verbose {
		return
	}
	for _, warning := range res.Warnings {
		fmt.Fprintf(w, "  - %s %s\n", st.warn.Render("WARNING:"), warning)
	}
	if len(res.Metrics) == 0 {
		return
	}
	fmt.Fprintln(w, st.dim.Render("Metrics:"))
	for _, name := range res.MetricNames() {
		fmt.Fprintf(w, "  %s: %v\n", name, res.Metrics[name])
	}
}

// WriteBatchText renders one verdict line per submission and a summary.
func WriteBatchText(w io.Writer, rep *BatchReport, verbose bool) {
	st := newTextStyles(w)
	for _, entry := range rep.Submissions {
		label := st.pass.Render("[PASS]")
		if entry.Result == nil || !entry.Result.OK {
			label = st.fail.Render("[FAIL]")
		}
		fmt.Fprintf(w, "%s %s\n", label, submissionName(rep.Root, entry.Inputs))
		if entry.Result == nil {
			continue
		}
		for _, e := range entry.Result.Errors {
			fmt.Fprintf(w, "  - ERROR: %s\n", e)
		}
		if verbose {
			for _, warning := range entry.Result.Warnings {
				fmt.Fprintf(w, "  - %s %s\n", st.warn.Render("WARNING:"), warning)
			}
		}
	}
	fmt.Fprintf(w, "\n%d passed, %d failed\n", rep.Passed, rep.Failed)
}
