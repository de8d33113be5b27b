// Package reqparse imports a captured raw HTTP request so its session
// headers (cookies, authorization) accompany the baseline and every probe.
package reqparse

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
)

// ParsedRequest holds the extracted data from a raw HTTP request file.
type ParsedRequest struct {
	Method  string
	URL     string            // scheme://host plus the request path, no query
	Headers map[string]string // canonical names; Host and hop-by-hop headers removed
}

// droppedHeaders are rewritten per probe or meaningless when replayed.
var droppedHeaders = map[string]struct{}{
	"Host":              {},
	"Content-Length":    {},
	"Connection":        {},
	"Keep-Alive":        {},
	"Transfer-Encoding": {},
	"Upgrade":           {},
	"Accept-Encoding":   {}, // bodies are compared byte-for-byte
}

// ParseFile reads a raw HTTP request (e.g. Burp Suite export).
func ParseFile(path string) (*ParsedRequest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening request file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse extracts the target URL and replayable headers from a raw request.
func Parse(r io.Reader) (*ParsedRequest, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024) // 1MB lines for large cookies

	// Parse request line: GET /path HTTP/1.1
	if !scanner.Scan() {
		return nil, fmt.Errorf("request file is empty")
	}
	requestLine := strings.TrimSpace(scanner.Text())
	parts := strings.SplitN(requestLine, " ", 3)
	if len(parts) < 2 {
		return nil, fmt.Errorf("invalid request line: %q", requestLine)
	}
	method := parts[0]
	requestPath := parts[1]

	// Parse headers until blank line.
	var host string
	headers := make(map[string]string)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			break // end of headers
		}
		colonIdx := strings.Index(line, ":")
		if colonIdx < 0 {
			continue
		}
		key := http.CanonicalHeaderKey(strings.TrimSpace(line[:colonIdx]))
		value := strings.TrimSpace(line[colonIdx+1:])
		if key == "Host" {
			host = value
		}
		if _, drop := droppedHeaders[key]; drop {
			continue
		}
		headers[key] = value
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading request file: %w", err)
	}

	// If the request path is already a full URL (some proxies do this), use it directly.
	if strings.HasPrefix(requestPath, "http://") || strings.HasPrefix(requestPath, "https://") {
		parsedURL, err := url.Parse(requestPath)
		if err != nil {
			return nil, fmt.Errorf("invalid URL in request line: %w", err)
		}
		return &ParsedRequest{
			Method:  method,
			URL:     parsedURL.Scheme + "://" + parsedURL.Host + strings.TrimRight(parsedURL.EscapedPath(), "/"),
			Headers: headers,
		}, nil
	}

	if host == "" {
		return nil, fmt.Errorf("request file missing Host header")
	}

	// Burp exports rarely say which scheme was used. Default to https
	// unless port 80 is explicit.
	scheme := "https"
	if strings.HasSuffix(host, ":80") {
		scheme = "http"
	}

	path := requestPath
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	return &ParsedRequest{
		Method:  method,
		URL:     scheme + "://" + host + strings.TrimRight(path, "/"),
		Headers: headers,
	}, nil
}

// MergeHeaders returns the imported headers overlaid with extra. Keys in
// extra win, compared case-insensitively.
func (p *ParsedRequest) MergeHeaders(extra map[string]string) map[string]string {
	out := make(map[string]string, len(p.Headers)+len(extra))
	for k, v := range p.Headers {
		out[k] = v
	}
	for k, v := range extra {
		out[http.CanonicalHeaderKey(k)] = v
	}
	return out
}
