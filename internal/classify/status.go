package classify

import (
	"fmt"
	"net/http"

	"github.com/maxvaer/wafpierce/internal/scanner"
)

// blockedRule: any 4xx or 5xx response means the probe was stopped.
type blockedRule struct{}

func (blockedRule) Name() string { return "blocked" }

func (blockedRule) Match(resp *scanner.Response, _ *Baseline) (scanner.Verdict, bool) {
	if resp.StatusCode < 400 {
		return scanner.Verdict{}, false
	}
	return scanner.Verdict{
		Reason:   fmt.Sprintf("blocked: %d", resp.StatusCode),
		Severity: scanner.SeverityInfo,
	}, true
}

// authBypassRule fires when a baseline 401/403 turns into a 200.
type authBypassRule struct{}

func (authBypassRule) Name() string { return "auth-bypass" }

func (authBypassRule) Match(resp *scanner.Response, base *Baseline) (scanner.Verdict, bool) {
	if base.StatusCode != http.StatusUnauthorized && base.StatusCode != http.StatusForbidden {
		return scanner.Verdict{}, false
	}
	if resp.StatusCode != http.StatusOK {
		return scanner.Verdict{}, false
	}
	return scanner.Verdict{
		Bypass:   true,
		Reason:   fmt.Sprintf("auth bypass: status changed %d -> %d", base.StatusCode, resp.StatusCode),
		Severity: scanner.SeverityCritical,
	}, true
}

var redirectCodes = map[int]struct{}{
	http.StatusMovedPermanently:  {},
	http.StatusFound:             {},
	http.StatusTemporaryRedirect: {},
	http.StatusPermanentRedirect: {},
}

// redirectRule fires on a redirect to somewhere the baseline did not point.
type redirectRule struct{}

func (redirectRule) Name() string { return "redirect" }

func (redirectRule) Match(resp *scanner.Response, base *Baseline) (scanner.Verdict, bool) {
	if _, ok := redirectCodes[resp.StatusCode]; !ok {
		return scanner.Verdict{}, false
	}
	loc := resp.Header.Get("Location")
	if loc == "" || loc == base.Headers["location"] {
		return scanner.Verdict{}, false
	}
	return scanner.Verdict{
		Bypass:   true,
		Reason:   "different redirect: " + loc,
		Severity: scanner.SeverityMedium,
	}, true
}
