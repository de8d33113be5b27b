package output

import (
	"encoding/csv"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/maxvaer/wafpierce/internal/scanner"
)

// CSVWriter writes results in CSV format.
type CSVWriter struct {
	w      *csv.Writer
	closer io.Closer
}

// NewCSVWriter creates a CSV output writer.
func NewCSVWriter(outputFile string) (*CSVWriter, error) {
	w, closer, err := openOutput(outputFile)
	if err != nil {
		return nil, err
	}
	return &CSVWriter{w: csv.NewWriter(w), closer: closer}, nil
}

func (c *CSVWriter) WriteHeader(Meta) error {
	return c.w.Write([]string{"severity", "technique", "method", "path", "status", "size", "reason", "headers"})
}

func (c *CSVWriter) WriteResult(result *scanner.ProbeResult) error {
	return c.w.Write([]string{
		result.Severity.String(),
		result.Technique,
		result.Method,
		result.Path,
		strconv.Itoa(result.Status),
		strconv.FormatInt(result.Size, 10),
		result.Reason,
		joinHeaders(result.Headers),
	})
}

func (c *CSVWriter) WriteFooter(_ Stats) error {
	c.w.Flush()
	return c.w.Error()
}

func (c *CSVWriter) Close() error {
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

// joinHeaders renders headers as "Name: value" pairs separated by "; ",
// sorted by name. CR and LF are escaped so each record stays on one line.
func joinHeaders(h map[string]string) string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	esc := strings.NewReplacer("\r", `\r`, "\n", `\n`)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + esc.Replace(h[k])
	}
	return strings.Join(parts, "; ")
}
