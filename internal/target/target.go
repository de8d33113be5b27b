// Package target validates the URL a scan points at.
package target

import (
	"net/url"
	"strings"

	"github.com/maxvaer/wafpierce/internal/scanerr"
)

// Target is a validated scan target. It is immutable once returned by
// Validate.
type Target struct {
	Raw    string // as given by the caller
	Scheme string // "http" or "https"
	Host   string // host[:port] as it appears in the URL
	Base   string // scheme://host plus any base path, without trailing slash
}

// Validate parses raw and checks it has an http(s) scheme, a host and no
// query string. A fragment is dropped. It performs no I/O.
func Validate(raw string) (Target, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Target{}, scanerr.Wrap(scanerr.InvalidTarget, err, "malformed URL %q", raw)
	}

	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case "http", "https":
	case "":
		return Target{}, scanerr.New(scanerr.InvalidScheme, "URL %q must include scheme (http:// or https://)", raw)
	default:
		return Target{}, scanerr.New(scanerr.InvalidScheme, "invalid scheme %q, must be http or https", u.Scheme)
	}

	if u.Hostname() == "" {
		return Target{}, scanerr.New(scanerr.InvalidTarget, "URL %q must include a host", raw)
	}

	// Probe paths are appended to the base, so a query has nowhere to go.
	if u.RawQuery != "" || u.ForceQuery {
		return Target{}, scanerr.New(scanerr.InvalidTarget, "URL %q must not include a query string", raw)
	}

	base := scheme + "://" + u.Host + strings.TrimRight(u.EscapedPath(), "/")
	return Target{
		Raw:    raw,
		Scheme: scheme,
		Host:   u.Host,
		Base:   base,
	}, nil
}

// URL joins path onto the target base. The path is used verbatim so that
// pre-encoded sequences such as %2e survive.
func (t Target) URL(path string) string {
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return t.Base + path
}

// Hostname returns the host without any port or IPv6 brackets.
func (t Target) Hostname() string {
	return (&url.URL{Host: t.Host}).Hostname()
}
