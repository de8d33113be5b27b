package scanner

import (
	"fmt"
	"strings"
)

// Severity ranks the impact of a detected bypass.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = [...]string{
	SeverityInfo:     "INFO",
	SeverityMedium:   "MEDIUM",
	SeverityHigh:     "HIGH",
	SeverityCritical: "CRITICAL",
}

func (s Severity) String() string {
	if s.Valid() {
		return severityNames[s]
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// Valid reports whether s is one of the four defined severities.
func (s Severity) Valid() bool {
	return s >= SeverityInfo && s <= SeverityCritical
}

// ParseSeverity parses a severity name, case-insensitively.
func ParseSeverity(name string) (Severity, error) {
	for i, n := range severityNames {
		if strings.EqualFold(n, name) {
			return Severity(i), nil
		}
	}
	return SeverityInfo, fmt.Errorf("unknown severity %q", name)
}

func (s Severity) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid severity %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	v, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Verdict is the classifier's decision for one response.
type Verdict struct {
	Bypass   bool
	Reason   string
	Severity Severity
}

// ProbeResult is the outcome of one classified probe. Headers are the
// request headers the probe sent, so they can be replayed against other
// paths.
type ProbeResult struct {
	Bypass    bool              `json:"bypass"`
	Status    int               `json:"status"`
	Headers   map[string]string `json:"headers"`
	Method    string            `json:"method"`
	Path      string            `json:"path"`
	Size      int64             `json:"size"`
	Technique string            `json:"technique"`
	Reason    string            `json:"reason"`
	Severity  Severity          `json:"severity"`
}

// Outcome is what executing one ProbeSpec produced: either a classified
// Result or a Skip error explaining why the probe yielded nothing.
type Outcome struct {
	Result ProbeResult
	Skip   error
}

// Skipped reports whether the probe failed and was dropped.
func (o Outcome) Skipped() bool { return o.Skip != nil }
