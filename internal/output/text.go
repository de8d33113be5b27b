package output

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/maxvaer/wafpierce/internal/scanerr"
	"github.com/maxvaer/wafpierce/internal/scanner"
)

// ANSI color codes.
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorCyan   = "\033[36m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorDim    = "\033[2m"
)

// TextWriter prints each bypass as it is found and a summary grouped by
// severity at the end.
type TextWriter struct {
	w       io.Writer
	closer  io.Closer
	noColor bool
	quiet   bool
	results []*scanner.ProbeResult
}

// NewTextWriter creates a text output writer. If outputFile is empty, stdout
// is used. noColor disables ANSI escape codes.
func NewTextWriter(outputFile string, noColor, quiet bool) (*TextWriter, error) {
	w, closer, err := openOutput(outputFile)
	if err != nil {
		return nil, err
	}
	return &TextWriter{w: w, closer: closer, noColor: noColor || outputFile != "", quiet: quiet}, nil
}

func (t *TextWriter) WriteHeader(meta Meta) error {
	if t.quiet {
		return nil
	}
	_, err := fmt.Fprintf(t.w, "%sTarget:   %s\nBaseline: %d | Size: %d bytes%s\n\n",
		t.color(colorDim), meta.Target, meta.Baseline.Status, meta.Baseline.Size, t.color(colorReset))
	return err
}

func (t *TextWriter) WriteResult(result *scanner.ProbeResult) error {
	cpy := *result
	t.results = append(t.results, &cpy)

	_, err := fmt.Fprintf(t.w, "%s[%-8s]%s %s | %s\n",
		t.color(severityColor(result.Severity)), result.Severity, t.color(colorReset),
		result.Technique, result.Reason)
	return err
}

func (t *TextWriter) WriteFooter(stats Stats) error {
	if t.quiet {
		return nil
	}

	var b strings.Builder
	rule := strings.Repeat("=", 60)
	fmt.Fprintf(&b, "\n%s\nScan complete: found %d bypasses\n%s\n", rule, len(t.results), rule)

	if len(t.results) == 0 {
		fmt.Fprintf(&b, "%sNo bypasses found: the target appears properly protected%s\n",
			t.color(colorGreen), t.color(colorReset))
	}

	SortResults(t.results, "technique")
	for _, sev := range []scanner.Severity{scanner.SeverityCritical, scanner.SeverityHigh, scanner.SeverityMedium} {
		group := slices.DeleteFunc(slices.Clone(t.results), func(r *scanner.ProbeResult) bool {
			return r.Severity != sev
		})
		if len(group) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%s%s (%d):%s\n", t.color(severityColor(sev)), sev, len(group), t.color(colorReset))
		for _, r := range group {
			fmt.Fprintf(&b, "  - %s\n    Reason: %s\n", r.Technique, r.Reason)
		}
	}

	fmt.Fprintf(&b, "\nProbes: %d | Errors: %d | Duration: %s",
		stats.Probes, stats.Errors, stats.Duration.Round(time.Millisecond))
	if stats.Interrupted {
		b.WriteString(" | interrupted")
	}
	b.WriteString("\n")
	if len(stats.ErrorKinds) > 0 {
		fmt.Fprintf(&b, "Errors by kind: %s\n", formatKinds(stats.ErrorKinds))
	}

	_, err := io.WriteString(t.w, b.String())
	return err
}

func (t *TextWriter) Close() error {
	if t.closer != nil && t.w != os.Stdout {
		return t.closer.Close()
	}
	return nil
}

func (t *TextWriter) color(c string) string {
	if t.noColor {
		return ""
	}
	return c
}

func severityColor(s scanner.Severity) string {
	switch s {
	case scanner.SeverityCritical:
		return colorRed
	case scanner.SeverityHigh:
		return colorYellow
	case scanner.SeverityMedium:
		return colorCyan
	default:
		return ""
	}
}

// formatKinds renders "kind=n" pairs, most frequent first.
func formatKinds(s scanerr.Summary) string {
	kinds := make([]scanerr.Kind, 0, len(s))
	for k := range s {
		kinds = append(kinds, k)
	}
	slices.SortFunc(kinds, func(a, b scanerr.Kind) int {
		if s[a] != s[b] {
			return s[b] - s[a]
		}
		return strings.Compare(a.String(), b.String())
	})
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = fmt.Sprintf("%s=%d", k, s[k])
	}
	return strings.Join(parts, ", ")
}
