package output

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxvaer/wafpierce/internal/scanerr"
	"github.com/maxvaer/wafpierce/internal/scanner"
)

func sampleResults() []scanner.ProbeResult {
	return []scanner.ProbeResult{
		{
			Bypass: true, Status: 200, Method: "GET", Path: "/", Size: 520,
			Headers:   map[string]string{"X-Forwarded-For": "127.0.0.1"},
			Technique: "X-Forwarded-For: 127.0.0.1",
			Reason:    "auth bypass: status changed 403 -> 200",
			Severity:  scanner.SeverityCritical,
		},
		{
			Bypass: true, Status: 200, Method: "GET", Path: "/%2e/", Size: 1300,
			Technique: "Path Encoding: /%2e/",
			Reason:    "content difference: 300 bytes (30.0% change)",
			Severity:  scanner.SeverityHigh,
		},
		{
			Bypass: true, Status: 302, Method: "GET", Path: "/",
			Headers:   map[string]string{"Host": "evil.com\r\nX-Injected: true"},
			Technique: "Host Header Injection: evil.com",
			Reason:    "different redirect: /admin",
			Severity:  scanner.SeverityMedium,
		},
	}
}

func writeAll(t *testing.T, w Writer, results []scanner.ProbeResult) {
	t.Helper()
	require.NoError(t, w.WriteHeader(Meta{
		ScanID:    "0b4a6c0e-47a7-4d54-a0c3-8e6c9f6bb3f1",
		Target:    "https://example.com",
		StartedAt: time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC),
		Baseline:  BaselineInfo{Status: 403, Size: 512, Hash: "abc"},
	}))
	for i := range results {
		require.NoError(t, w.WriteResult(&results[i]))
	}
	require.NoError(t, w.WriteFooter(Stats{
		Probes:     53,
		Errors:     2,
		ErrorKinds: scanerr.Summary{scanerr.Timeout: 2},
		Duration:   1500 * time.Millisecond,
	}))
	require.NoError(t, w.Close())
}

func TestJSONRoundTripIsSetEqual(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	w, err := NewJSONWriter(path)
	require.NoError(t, err)

	results := sampleResults()
	// Completion order is arbitrary; write in reverse.
	reversed := []scanner.ProbeResult{results[2], results[1], results[0]}
	writeAll(t, w, reversed)

	rep, err := ReadJSONFile(path)
	require.NoError(t, err)

	byLabel := cmpopts.SortSlices(func(a, b scanner.ProbeResult) bool { return a.Technique < b.Technique })
	if diff := cmp.Diff(results, rep.Bypasses, byLabel); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "https://example.com", rep.Target)
	assert.Equal(t, 403, rep.Baseline.Status)
	assert.EqualValues(t, 53, rep.Probes)
	assert.EqualValues(t, 1500, rep.DurationMS)
	assert.Equal(t, map[string]int{"timeout": 2}, rep.ErrorKinds)
}

func TestJSONFieldNames(t *testing.T) {
	var buf bytes.Buffer
	w := &JSONWriter{w: &buf, report: Report{Bypasses: []scanner.ProbeResult{}}}
	writeAll(t, w, sampleResults()[:1])

	out := buf.String()
	for _, key := range []string{`"bypass"`, `"status"`, `"headers"`, `"method"`, `"path"`, `"size"`, `"technique"`, `"reason"`, `"severity": "CRITICAL"`} {
		assert.Contains(t, out, key)
	}
}

func TestJSONEmptyBypassesIsArray(t *testing.T) {
	var buf bytes.Buffer
	w := &JSONWriter{w: &buf, report: Report{Bypasses: []scanner.ProbeResult{}}}
	writeAll(t, w, nil)
	assert.Contains(t, buf.String(), `"bypasses": []`)
}

func TestReadJSONBareArray(t *testing.T) {
	in := `[{"bypass":true,"status":200,"headers":{"X-Forwarded-For":"127.0.0.1"},"method":"GET","path":"/","size":10,"technique":"X-Forwarded-For: 127.0.0.1","reason":"r","severity":"HIGH"}]`
	rep, err := ReadJSON(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rep.Bypasses, 1)
	assert.Equal(t, scanner.SeverityHigh, rep.Bypasses[0].Severity)
	assert.Equal(t, "127.0.0.1", rep.Bypasses[0].Headers["X-Forwarded-For"])
}

func TestReadJSONRejectsUnknownSeverity(t *testing.T) {
	_, err := ReadJSON(strings.NewReader(`[{"severity":"URGENT"}]`))
	assert.Error(t, err)
}

func TestTextWriterGroupsBySeverity(t *testing.T) {
	var buf bytes.Buffer
	w := &TextWriter{w: &buf, noColor: true}
	writeAll(t, w, sampleResults())

	out := buf.String()
	assert.Contains(t, out, "Baseline: 403 | Size: 512 bytes")
	assert.Contains(t, out, "[CRITICAL] X-Forwarded-For: 127.0.0.1 | auth bypass")
	assert.Contains(t, out, "Scan complete: found 3 bypasses")

	crit := strings.Index(out, "CRITICAL (1):")
	high := strings.Index(out, "HIGH (1):")
	med := strings.Index(out, "MEDIUM (1):")
	require.True(t, crit > 0 && high > 0 && med > 0, out)
	assert.Less(t, crit, high)
	assert.Less(t, high, med)
	assert.Contains(t, out, "Errors by kind: timeout=2")
	assert.NotContains(t, out, "\033[")
}

func TestTextWriterNoBypasses(t *testing.T) {
	var buf bytes.Buffer
	w := &TextWriter{w: &buf, noColor: true}
	writeAll(t, w, nil)
	assert.Contains(t, buf.String(), "No bypasses found")
}

func TestTextWriterQuiet(t *testing.T) {
	var buf bytes.Buffer
	w := &TextWriter{w: &buf, noColor: true, quiet: true}
	writeAll(t, w, sampleResults()[:1])

	assert.Equal(t, "[CRITICAL] X-Forwarded-For: 127.0.0.1 | auth bypass: status changed 403 -> 200\n", buf.String())
}

func TestCSVWriterSortedBySeverity(t *testing.T) {
	var buf bytes.Buffer
	inner := &CSVWriter{w: csv.NewWriter(&buf)}
	w := NewSortedWriter(inner, "severity")

	results := sampleResults()
	writeAll(t, w, []scanner.ProbeResult{results[2], results[0], results[1]})

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, "severity", records[0][0])
	assert.Equal(t, "CRITICAL", records[1][0])
	assert.Equal(t, "HIGH", records[2][0])
	assert.Equal(t, "MEDIUM", records[3][0])
	assert.Equal(t, `Host: evil.com\r\nX-Injected: true`, records[3][7])
}

func TestSortResultsTieBreak(t *testing.T) {
	a := &scanner.ProbeResult{Technique: "b", Severity: scanner.SeverityHigh, Status: 200}
	b := &scanner.ProbeResult{Technique: "a", Severity: scanner.SeverityHigh, Status: 302}
	rs := []*scanner.ProbeResult{a, b}

	SortResults(rs, "severity")
	assert.Equal(t, "a", rs[0].Technique)

	SortResults(rs, "status")
	assert.Equal(t, 200, rs[0].Status)
}

func TestMultiWriter(t *testing.T) {
	var text, js bytes.Buffer
	m := MultiWriter{
		&TextWriter{w: &text, noColor: true},
		&JSONWriter{w: &js, report: Report{Bypasses: []scanner.ProbeResult{}}},
	}
	writeAll(t, m, sampleResults())

	assert.Contains(t, text.String(), "found 3 bypasses")
	rep, err := ReadJSON(&js)
	require.NoError(t, err)
	assert.Len(t, rep.Bypasses, 3)
}

func TestNewUnknownFormat(t *testing.T) {
	_, err := New("xml", "", true, true)
	assert.Error(t, err)
}

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	w, err := New("csv", path, true, false)
	require.NoError(t, err)
	writeAll(t, w, sampleResults())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "severity,technique"))
}

func TestProgressLine(t *testing.T) {
	p := NewProgress(10, true)
	p.Increment()
	p.Increment()
	p.IncrementBypasses()
	p.IncrementErrors()

	line := p.line()
	assert.Contains(t, line, "2/10")
	assert.Contains(t, line, "Bypasses: 1")
	assert.Contains(t, line, "Errors: 1")

	p.SetPausedFunc(func() bool { return true })
	assert.Contains(t, p.line(), "PAUSED")
}

func TestProgressStartStop(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(1, false)
	p.out = &buf
	p.Start()
	p.Increment()
	p.Stop()
	p.Stop()
	assert.Contains(t, buf.String(), "1/1")
}
