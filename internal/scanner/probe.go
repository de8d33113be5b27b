package scanner

import (
	"net/http"
	"strings"
)

// ProbeSpec is one outbound request variant generated by a technique.
type ProbeSpec struct {
	Method    string            // HTTP method. Empty defaults to GET.
	Path      string            // Request path, sent verbatim (pre-encoded sequences survive).
	Headers   map[string]string // Probe-specific headers. "Host" overrides the Host header.
	Technique string            // Label, e.g. "X-Forwarded-For: 127.0.0.1".
}

// method returns the effective HTTP method.
func (p ProbeSpec) method() string {
	if p.Method == "" {
		return http.MethodGet
	}
	return p.Method
}

// path returns the effective request path, always rooted.
func (p ProbeSpec) path() string {
	if !strings.HasPrefix(p.Path, "/") {
		return "/" + p.Path
	}
	return p.Path
}

// Technique is one category of request mutation together with the probes
// it generated for the current target.
type Technique struct {
	Name   string
	Probes []ProbeSpec
}
