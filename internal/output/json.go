package output

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	json "github.com/json-iterator/go"

	"github.com/maxvaer/wafpierce/internal/scanner"
)

// Report is the JSON document written by JSONWriter. Bypasses carry the
// request headers that produced them so a later run can replay them.
type Report struct {
	ScanID      string                `json:"scan_id,omitempty"`
	Target      string                `json:"target"`
	StartedAt   time.Time             `json:"started_at"`
	DurationMS  int64                 `json:"duration_ms"`
	Baseline    BaselineInfo          `json:"baseline"`
	Probes      int64                 `json:"probes"`
	Errors      int64                 `json:"errors"`
	ErrorKinds  map[string]int        `json:"error_kinds,omitempty"`
	Interrupted bool                  `json:"interrupted,omitempty"`
	Bypasses    []scanner.ProbeResult `json:"bypasses"`
}

// JSONWriter buffers results and writes one Report on WriteFooter.
type JSONWriter struct {
	w      io.Writer
	closer io.Closer
	report Report
}

// NewJSONWriter creates a JSON output writer.
func NewJSONWriter(outputFile string) (*JSONWriter, error) {
	w, closer, err := openOutput(outputFile)
	if err != nil {
		return nil, err
	}
	return &JSONWriter{w: w, closer: closer, report: Report{Bypasses: []scanner.ProbeResult{}}}, nil
}

func (j *JSONWriter) WriteHeader(meta Meta) error {
	j.report.ScanID = meta.ScanID
	j.report.Target = meta.Target
	j.report.StartedAt = meta.StartedAt
	j.report.Baseline = meta.Baseline
	return nil
}

func (j *JSONWriter) WriteResult(result *scanner.ProbeResult) error {
	j.report.Bypasses = append(j.report.Bypasses, *result)
	return nil
}

func (j *JSONWriter) WriteFooter(stats Stats) error {
	j.report.DurationMS = stats.Duration.Milliseconds()
	j.report.Probes = stats.Probes
	j.report.Errors = stats.Errors
	j.report.Interrupted = stats.Interrupted
	if len(stats.ErrorKinds) > 0 {
		j.report.ErrorKinds = make(map[string]int, len(stats.ErrorKinds))
		for k, n := range stats.ErrorKinds {
			j.report.ErrorKinds[k.String()] = n
		}
	}

	enc := json.NewEncoder(j.w)
	enc.SetIndent("", "  ")
	return enc.Encode(j.report)
}

func (j *JSONWriter) Close() error {
	if j.closer != nil {
		return j.closer.Close()
	}
	return nil
}

// ReadJSON decodes a report written by JSONWriter. A bare array of results
// is accepted as well and yields a Report with only Bypasses set.
func ReadJSON(r io.Reader) (*Report, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var results []scanner.ProbeResult
		if err := json.Unmarshal(trimmed, &results); err != nil {
			return nil, fmt.Errorf("decoding results: %w", err)
		}
		return &Report{Bypasses: results}, nil
	}

	var rep Report
	if err := json.Unmarshal(trimmed, &rep); err != nil {
		return nil, fmt.Errorf("decoding report: %w", err)
	}
	return &rep, nil
}

// ReadJSONFile opens path and decodes it with ReadJSON.
func ReadJSONFile(path string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadJSON(f)
}
