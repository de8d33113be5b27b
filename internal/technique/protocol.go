package technique

import (
	"github.com/maxvaer/wafpierce/internal/scanner"
	"github.com/maxvaer/wafpierce/internal/target"
)

func httpMethod(target.Target) []scanner.ProbeSpec {
	methods := []string{"POST", "OPTIONS", "TRACE", "TRACK", "PUT", "DELETE"}
	specs := make([]scanner.ProbeSpec, 0, len(methods))
	for _, m := range methods {
		specs = append(specs, scanner.ProbeSpec{
			Method:    m,
			Path:      "/",
			Technique: label("HTTP Method", m),
		})
	}
	return specs
}

// contentType sends empty-bodied POSTs.
func contentType(target.Target) []scanner.ProbeSpec {
	types := []string{"application/json", "application/xml", "text/plain", "multipart/form-data"}
	specs := make([]scanner.ProbeSpec, 0, len(types))
	for _, ct := range types {
		specs = append(specs, scanner.ProbeSpec{
			Method:    "POST",
			Path:      "/",
			Headers:   map[string]string{"Content-Type": ct},
			Technique: label("Content-Type", ct),
		})
	}
	return specs
}

type headerSet struct {
	variant string
	headers map[string]string
}

func headerSets(category string, sets []headerSet) []scanner.ProbeSpec {
	specs := make([]scanner.ProbeSpec, 0, len(sets))
	for _, s := range sets {
		specs = append(specs, scanner.ProbeSpec{
			Method:    "GET",
			Path:      "/",
			Headers:   s.headers,
			Technique: label(category, s.variant),
		})
	}
	return specs
}

// http2Downgrade asks the origin to switch protocols or pins an older HTTP
// version. Over an HTTP/2 connection the hop-by-hop headers are rejected by
// the transport and those probes are skipped.
func http2Downgrade(target.Target) []scanner.ProbeSpec {
	return headerSets("HTTP/2 Downgrade", []headerSet{
		{"h2c upgrade", map[string]string{
			"Upgrade":        "h2c",
			"Connection":     "Upgrade, HTTP2-Settings",
			"HTTP2-Settings": "AAMAAABkAARAAAAAAAIAAAAA",
		}},
		{"Connection: close", map[string]string{"Connection": "close"}},
		{"X-HTTP-Version: 1.0", map[string]string{"X-HTTP-Version": "1.0"}},
		{"X-HTTP-Version: 1.1", map[string]string{"X-HTTP-Version": "1.1"}},
	})
}

const websocketKey = "dGhlIHNhbXBsZSBub25jZQ=="

func websocketUpgrade(target.Target) []scanner.ProbeSpec {
	return headerSets("WebSocket Upgrade", []headerSet{
		{"version 13", map[string]string{
			"Upgrade":               "websocket",
			"Connection":            "Upgrade",
			"Sec-WebSocket-Version": "13",
			"Sec-WebSocket-Key":     websocketKey,
		}},
		{"version 8", map[string]string{
			"Upgrade":               "websocket",
			"Connection":            "Upgrade",
			"Sec-WebSocket-Version": "8",
			"Sec-WebSocket-Key":     websocketKey,
		}},
		{"no key", map[string]string{
			"Upgrade":    "websocket",
			"Connection": "Upgrade",
		}},
		{"Connection: Upgrade", map[string]string{"Connection": "Upgrade"}},
	})
}
