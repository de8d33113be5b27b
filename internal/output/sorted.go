package output

import (
	"cmp"
	"slices"

	"github.com/maxvaer/wafpierce/internal/scanner"
)

// SortedWriter buffers results and replays them sorted by a field when
// WriteFooter is called. It wraps any other Writer. Results arrive in
// completion order, which differs between runs; sorting makes the output
// stable.
type SortedWriter struct {
	inner   Writer
	sortBy  string
	results []*scanner.ProbeResult
}

// NewSortedWriter wraps inner and buffers results for sorted replay.
// sortBy is "severity" (highest first), "technique" or "status".
func NewSortedWriter(inner Writer, sortBy string) *SortedWriter {
	return &SortedWriter{inner: inner, sortBy: sortBy}
}

func (w *SortedWriter) WriteHeader(meta Meta) error {
	return w.inner.WriteHeader(meta)
}

func (w *SortedWriter) WriteResult(result *scanner.ProbeResult) error {
	cpy := *result
	w.results = append(w.results, &cpy)
	return nil
}

func (w *SortedWriter) WriteFooter(stats Stats) error {
	SortResults(w.results, w.sortBy)
	for _, r := range w.results {
		if err := w.inner.WriteResult(r); err != nil {
			return err
		}
	}
	return w.inner.WriteFooter(stats)
}

func (w *SortedWriter) Close() error {
	return w.inner.Close()
}

// SortResults orders results in place. Ties are broken by technique label.
func SortResults(results []*scanner.ProbeResult, sortBy string) {
	slices.SortStableFunc(results, func(a, b *scanner.ProbeResult) int {
		var c int
		switch sortBy {
		case "severity":
			c = cmp.Compare(b.Severity, a.Severity)
		case "status":
			c = cmp.Compare(a.Status, b.Status)
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.Technique, b.Technique)
	})
}
