package scanner

import (
	"context"
	"crypto/md5"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http/httpguts"
	"golang.org/x/net/http2"

	"github.com/maxvaer/wafpierce/internal/config"
	"github.com/maxvaer/wafpierce/internal/scanerr"
	"github.com/maxvaer/wafpierce/internal/target"
)

// maxBodySize caps how much of a response body is read and hashed. Tests
// lower it.
var maxBodySize int64 = 10 << 20

// ErrInvalidProbe is returned for probes the HTTP stack refuses to encode
// (for example a Host header containing CRLF). It is not a network error, so
// the retry layer does not retry it.
var ErrInvalidProbe = errors.New("probe cannot be encoded as an HTTP request")

// StatusError is returned when a response arrived but its status is treated
// as a failure (429). Response is the fully read response; Err is the
// classified *scanerr.Error.
type StatusError struct {
	Response *Response
	Err      error
}

func (e *StatusError) Error() string { return e.Err.Error() }
func (e *StatusError) Unwrap() error { return e.Err }

// Response holds the parsed HTTP response data.
type Response struct {
	StatusCode    int
	ContentLength int64
	Body          []byte
	BodyHash      [16]byte // MD5
	Header        http.Header
	URL           string
	RedirectURL   string
	Duration      time.Duration
	Truncated     bool // body exceeded maxBodySize; size and hash cover the prefix
}

// Requester wraps an HTTP client for probing a single target.
type Requester struct {
	client    *http.Client
	target    target.Target
	base      *url.URL
	headers   map[string]string
	userAgent string
	proxied   bool
	logger    *zap.Logger
}

// NewRequester creates a Requester from the provided options. Redirects are
// never followed: a redirect is itself a signal the classifier inspects.
func NewRequester(tgt target.Target, opts *config.Options, logger *zap.Logger) (*Requester, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	base, err := url.Parse(tgt.Base)
	if err != nil {
		return nil, fmt.Errorf("invalid target base %q: %w", tgt.Base, err)
	}

	threads := max(opts.Threads, 1)
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: opts.Insecure},
		DialContext: (&net.Dialer{
			Timeout: opts.Timeout,
		}).DialContext,
		TLSHandshakeTimeout: opts.Timeout,
		MaxIdleConnsPerHost: threads,
		MaxIdleConns:        threads,
		// Probes compare raw body bytes against the baseline.
		DisableCompression: true,
	}

	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", opts.Proxy, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	if opts.HTTP2 {
		if err := http2.ConfigureTransport(transport); err != nil {
			logger.Warn("Failed to configure HTTP/2 transport, falling back to HTTP/1.1", zap.Error(err))
		}
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   opts.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	}

	return &Requester{
		client:    client,
		target:    tgt,
		base:      base,
		headers:   opts.Headers,
		userAgent: ua,
		proxied:   opts.Proxy != "",
		logger:    logger,
	}, nil
}

// Close releases idle connections held by the underlying transport.
func (r *Requester) Close() {
	r.client.CloseIdleConnections()
}

// Do sends the request described by spec and returns the parsed response.
// Transport failures are returned as classified *scanerr.Error values; a
// 429 response is returned as a *StatusError wrapping a RateLimit error.
func (r *Requester) Do(ctx context.Context, spec ProbeSpec) (*Response, error) {
	method := spec.method()
	path := spec.path()
	targetURL := r.target.URL(path)

	req, err := http.NewRequestWithContext(ctx, method, r.base.Scheme+"://"+r.base.Host+"/", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProbe, err)
	}
	// Opaque keeps the path byte-for-byte on the request line. Proxies need
	// the absolute form.
	req.URL.Opaque = strings.TrimRight(r.base.EscapedPath(), "/") + path
	if r.proxied {
		req.URL.Opaque = "//" + r.base.Host + req.URL.Opaque
	}

	req.Header.Set("User-Agent", r.userAgent)
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	for k, v := range spec.Headers {
		if strings.EqualFold(k, "Host") {
			if !httpguts.ValidHostHeader(v) {
				return nil, fmt.Errorf("%w: invalid Host header %q", ErrInvalidProbe, v)
			}
			req.Host = v
			continue
		}
		if !httpguts.ValidHeaderFieldName(k) || !httpguts.ValidHeaderFieldValue(v) {
			return nil, fmt.Errorf("%w: invalid header %q", ErrInvalidProbe, k)
		}
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, scanerr.Classify(targetURL, err)
	}
	defer resp.Body.Close()

	var body []byte
	// A 101 hands over the connection: there is no body to read.
	if resp.StatusCode != http.StatusSwitchingProtocols {
		body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
		if err != nil {
			return nil, scanerr.Classify(targetURL, fmt.Errorf("reading response body for %s: %w", path, err))
		}
	}
	truncated := int64(len(body)) > maxBodySize
	if truncated {
		body = body[:maxBodySize]
		r.logger.Debug("Response body truncated",
			zap.String("url", targetURL),
			zap.Int64("limit", maxBodySize))
	}
	elapsed := time.Since(start)

	result := &Response{
		StatusCode:    resp.StatusCode,
		ContentLength: int64(len(body)),
		Body:          body,
		BodyHash:      md5.Sum(body),
		Header:        resp.Header,
		URL:           targetURL,
		Duration:      elapsed,
		Truncated:     truncated,
	}

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		result.RedirectURL = resp.Header.Get("Location")
	}

	if rlErr := scanerr.FromStatus(targetURL, resp.StatusCode, resp.Header); rlErr != nil {
		return nil, &StatusError{Response: result, Err: rlErr}
	}

	r.logger.Debug("Probe response",
		zap.String("method", method),
		zap.String("url", targetURL),
		zap.Int("status", resp.StatusCode),
		zap.Int64("size", result.ContentLength),
		zap.Duration("duration", elapsed))

	return result, nil
}

// LowerHeaders flattens h into a lower-cased key map, joining repeated
// values with ", ".
func LowerHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vs := range h {
		out[strings.ToLower(k)] = strings.Join(vs, ", ")
	}
	return out
}
