package scanerr

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
)

// Classify maps a raw transport failure for rawURL onto a network kind.
// Already-classified errors and context cancellation pass through unchanged.
func Classify(rawURL string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	kind, msg := classifyKind(err)
	return Wrap(kind, err, "%s for %s", msg, rawURL).
		WithURL(rawURL).
		WithDetail("original_error", err.Error())
}

func classifyKind(err error) (Kind, string) {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && !dnsErr.IsTimeout {
		return DNSResolution, "DNS lookup failed"
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout, "request timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout, "request timed out"
	}

	var (
		unknownAuth x509.UnknownAuthorityError
		hostnameErr x509.HostnameError
		certInvalid x509.CertificateInvalidError
		recordErr   tls.RecordHeaderError
		verifyErr   *tls.CertificateVerificationError
	)
	if errors.As(err, &unknownAuth) || errors.As(err, &hostnameErr) ||
		errors.As(err, &certInvalid) || errors.As(err, &recordErr) || errors.As(err, &verifyErr) {
		return SSLError, "TLS handshake failed"
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "proxyconnect" {
		return ProxyError, "proxy connection failed"
	}

	// Fall back to message inspection for errors the stdlib only exposes as text.
	text := strings.ToLower(err.Error())
	switch {
	case strings.Contains(text, "no such host"),
		strings.Contains(text, "name or service not known"),
		strings.Contains(text, "nodename nor servname"):
		return DNSResolution, "DNS lookup failed"
	case strings.Contains(text, "timeout"), strings.Contains(text, "deadline exceeded"):
		return Timeout, "request timed out"
	case strings.Contains(text, "certificate"),
		strings.Contains(text, "tls:"),
		strings.Contains(text, "x509"):
		return SSLError, "TLS handshake failed"
	case strings.Contains(text, "proxy"):
		return ProxyError, "proxy connection failed"
	case strings.Contains(text, "stopped after") && strings.Contains(text, "redirect"):
		return TooManyRedirects, "too many redirects"
	}
	return TargetUnreachable, "cannot connect"
}

// FromStatus converts rate-limiting responses into a RateLimit error.
// It returns nil for any other status.
func FromStatus(rawURL string, status int, header http.Header) error {
	if status != http.StatusTooManyRequests {
		return nil
	}
	retryAfter := header.Get("Retry-After")
	if retryAfter == "" {
		retryAfter = "unknown"
	}
	return New(RateLimit, "rate limit exceeded for %s", rawURL).
		WithURL(rawURL).
		WithDetail("status_code", strconv.Itoa(status)).
		WithDetail("retry_after", retryAfter)
}

// Summary counts errors by kind.
type Summary map[Kind]int

// Add records err under its kind.
func (s Summary) Add(err error) {
	s[KindOf(err)]++
}

// Total returns the number of recorded errors.
func (s Summary) Total() int {
	n := 0
	for _, c := range s {
		n += c
	}
	return n
}
