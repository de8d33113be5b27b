package classify

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/maxvaer/wafpierce/internal/scanner"
)

type indicator struct {
	needle   string
	severity scanner.Severity
}

// errorIndicators are checked in order; the first hit wins.
var errorIndicators = []indicator{
	{"exception", scanner.SeverityCritical},
	{"traceback", scanner.SeverityCritical},
	{"stack trace", scanner.SeverityCritical},
	{"sql syntax", scanner.SeverityCritical},
	{"mysql_", scanner.SeverityCritical},
	{"postgresql", scanner.SeverityCritical},
	{"ora-", scanner.SeverityCritical},
	{"internal server error", scanner.SeverityHigh},
	{"500 internal", scanner.SeverityHigh},
	{"apache/", scanner.SeverityMedium},
	{"nginx/", scanner.SeverityMedium},
	{"iis/", scanner.SeverityMedium},
	{"tomcat/", scanner.SeverityMedium},
	{"debug mode", scanner.SeverityHigh},
	{"fatal error", scanner.SeverityHigh},
	{"warning:", scanner.SeverityMedium},
}

// bodyRule looks for backend error text leaking into the response body.
type bodyRule struct {
	indicators []indicator
}

func newBodyRule(ind []indicator) bodyRule {
	return bodyRule{indicators: ind}
}

func (bodyRule) Name() string { return "body" }

func (r bodyRule) Match(resp *scanner.Response, _ *Baseline) (scanner.Verdict, bool) {
	if len(resp.Body) == 0 {
		return scanner.Verdict{}, false
	}
	lower := bytes.ToLower(resp.Body)
	for _, ind := range r.indicators {
		if bytes.Contains(lower, []byte(ind.needle)) {
			return scanner.Verdict{
				Bypass:   true,
				Reason:   fmt.Sprintf("backend exposed: %q found in response", ind.needle),
				Severity: ind.severity,
			}, true
		}
	}
	return scanner.Verdict{}, false
}

var backendServers = []string{"apache", "nginx", "iis", "tomcat", "jetty", "gunicorn", "uwsgi"}

// serverRule fires when the Server header names a backend the baseline
// Server header did not.
type serverRule struct {
	backends []string
}

func (serverRule) Name() string { return "server" }

func (r serverRule) Match(resp *scanner.Response, base *Baseline) (scanner.Verdict, bool) {
	server := resp.Header.Get("Server")
	if server == "" {
		return scanner.Verdict{}, false
	}
	lower := strings.ToLower(server)
	baseServer := strings.ToLower(base.Headers["server"])
	for _, b := range r.backends {
		if strings.Contains(lower, b) && !strings.Contains(baseServer, b) {
			return scanner.Verdict{
				Bypass:   true,
				Reason:   "backend server exposed: " + server,
				Severity: scanner.SeverityMedium,
			}, true
		}
	}
	return scanner.Verdict{}, false
}

// poweredByRule fires when X-Powered-By appears and the baseline had none.
type poweredByRule struct{}

func (poweredByRule) Name() string { return "powered-by" }

func (poweredByRule) Match(resp *scanner.Response, base *Baseline) (scanner.Verdict, bool) {
	if _, ok := resp.Header["X-Powered-By"]; !ok {
		return scanner.Verdict{}, false
	}
	if _, ok := base.Headers["x-powered-by"]; ok {
		return scanner.Verdict{}, false
	}
	return scanner.Verdict{
		Bypass:   true,
		Reason:   "backend tech exposed: " + resp.Header.Get("X-Powered-By"),
		Severity: scanner.SeverityMedium,
	}, true
}
