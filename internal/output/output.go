package output

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/maxvaer/wafpierce/internal/scanerr"
	"github.com/maxvaer/wafpierce/internal/scanner"
)

// Meta describes the scan a report belongs to.
type Meta struct {
	ScanID    string
	Target    string
	StartedAt time.Time
	Baseline  BaselineInfo
}

// BaselineInfo is the part of the baseline worth reporting.
type BaselineInfo struct {
	Status int    `json:"status"`
	Size   int64  `json:"size"`
	Hash   string `json:"hash"`
}

// Stats holds aggregate scan statistics.
type Stats struct {
	Probes      int64
	Errors      int64
	ErrorKinds  scanerr.Summary
	Duration    time.Duration
	Interrupted bool
}

// Writer is implemented by each output format. WriteResult is only called
// with bypass-positive results.
type Writer interface {
	WriteHeader(meta Meta) error
	WriteResult(result *scanner.ProbeResult) error
	WriteFooter(stats Stats) error
	Close() error
}

// New returns the writer for format. An empty outputFile writes to stdout.
func New(format, outputFile string, noColor, quiet bool) (Writer, error) {
	switch format {
	case "", "text":
		return NewTextWriter(outputFile, noColor, quiet)
	case "json":
		return NewJSONWriter(outputFile)
	case "csv":
		w, err := NewCSVWriter(outputFile)
		if err != nil {
			return nil, err
		}
		return NewSortedWriter(w, "severity"), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// MultiWriter fans every call out to several writers.
type MultiWriter []Writer

func (m MultiWriter) WriteHeader(meta Meta) error {
	var errs []error
	for _, w := range m {
		errs = append(errs, w.WriteHeader(meta))
	}
	return errors.Join(errs...)
}

func (m MultiWriter) WriteResult(result *scanner.ProbeResult) error {
	var errs []error
	for _, w := range m {
		errs = append(errs, w.WriteResult(result))
	}
	return errors.Join(errs...)
}

func (m MultiWriter) WriteFooter(stats Stats) error {
	var errs []error
	for _, w := range m {
		errs = append(errs, w.WriteFooter(stats))
	}
	return errors.Join(errs...)
}

func (m MultiWriter) Close() error {
	var errs []error
	for _, w := range m {
		errs = append(errs, w.Close())
	}
	return errors.Join(errs...)
}

// openOutput returns stdout for an empty path, otherwise a new file.
func openOutput(path string) (io.Writer, io.Closer, error) {
	if path == "" {
		return os.Stdout, nil, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file: %w", err)
	}
	return f, f, nil
}
