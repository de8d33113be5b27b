// Package technique holds the catalogue of request mutations. Each entry is
// a named generator producing the probe variants for one target; adding a
// technique means appending one entry to the catalogue.
package technique

import (
	"fmt"
	"strings"

	"github.com/maxvaer/wafpierce/internal/scanner"
	"github.com/maxvaer/wafpierce/internal/target"
)

// Generator produces the probes of one technique for a target.
type Generator func(tgt target.Target) []scanner.ProbeSpec

// Entry is one catalogue item.
type Entry struct {
	Name        string
	Description string
	Generate    Generator
}

var catalog = []Entry{
	{"Host Header Injection", "Override the Host header with loopback, port and CRLF variants", hostHeaderInjection},
	{"X-Forwarded-For", "Claim a loopback, private or metadata client address", xForwardedFor},
	{"X-Forwarded-Host", "Advertise an alternative original host", xForwardedHost},
	{"X-Original-URL", "Smuggle a path through URL rewrite headers", xOriginalURL},
	{"Cache-Control", "Force the edge to skip its cache", cacheControl},
	{"Path Encoding", "Percent-encoded dot segments in the request path", pathEncoding},
	{"HTTP Method", "Substitute the request method", httpMethod},
	{"Content-Type", "POST with alternative content types", contentType},
	{"HTTP/2 Downgrade", "h2c upgrade and protocol version headers", http2Downgrade},
	{"WebSocket Upgrade", "WebSocket upgrade header sets", websocketUpgrade},
	{"Range Header", "Partial content requests", rangeHeader},
	{"Double Encoding", "Double, triple and overlong encoded traversal", doubleEncoding},
}

// Catalog returns the catalogue in its fixed order.
func Catalog() []Entry {
	out := make([]Entry, len(catalog))
	copy(out, catalog)
	return out
}

// Names returns the technique names in catalogue order.
func Names() []string {
	names := make([]string, len(catalog))
	for i, e := range catalog {
		names[i] = e.Name
	}
	return names
}

// Lookup finds an entry by name, case-insensitively.
func Lookup(name string) (Entry, bool) {
	for _, e := range catalog {
		if strings.EqualFold(e.Name, strings.TrimSpace(name)) {
			return e, true
		}
	}
	return Entry{}, false
}

// Build generates the probes for tgt. An empty selection builds the whole
// catalogue; otherwise only the named techniques are built, still in
// catalogue order. Unknown names are an error.
func Build(tgt target.Target, selected []string) ([]scanner.Technique, error) {
	want := make(map[string]struct{}, len(selected))
	for _, name := range selected {
		e, ok := Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown technique %q (use --list-techniques)", name)
		}
		want[e.Name] = struct{}{}
	}

	var out []scanner.Technique
	for _, e := range catalog {
		if len(want) > 0 {
			if _, ok := want[e.Name]; !ok {
				continue
			}
		}
		out = append(out, scanner.Technique{Name: e.Name, Probes: e.Generate(tgt)})
	}
	return out, nil
}

// headerVariants builds one GET / probe per value of header.
func headerVariants(category, header string, values ...string) []scanner.ProbeSpec {
	specs := make([]scanner.ProbeSpec, 0, len(values))
	for _, v := range values {
		specs = append(specs, scanner.ProbeSpec{
			Method:    "GET",
			Path:      "/",
			Headers:   map[string]string{header: v},
			Technique: label(category, v),
		})
	}
	return specs
}

// pathVariants builds one GET probe per path.
func pathVariants(category string, paths ...string) []scanner.ProbeSpec {
	specs := make([]scanner.ProbeSpec, 0, len(paths))
	for _, p := range paths {
		specs = append(specs, scanner.ProbeSpec{
			Method:    "GET",
			Path:      p,
			Technique: label(category, p),
		})
	}
	return specs
}

func label(category, variant string) string {
	return category + ": " + variant
}
