package technique

import (
	"github.com/maxvaer/wafpierce/internal/scanner"
	"github.com/maxvaer/wafpierce/internal/target"
)

// hostHeaderInjection includes a CRLF variant. The requester refuses to
// encode it, so on most stacks that probe is skipped rather than sent.
func hostHeaderInjection(tgt target.Target) []scanner.ProbeSpec {
	host := tgt.Hostname()
	return headerVariants("Host Header Injection", "Host",
		"localhost",
		"127.0.0.1",
		host+":80",
		host+":443",
		"evil.com\r\nX-Injected: true",
	)
}

func xForwardedFor(target.Target) []scanner.ProbeSpec {
	return headerVariants("X-Forwarded-For", "X-Forwarded-For",
		"127.0.0.1",
		"0.0.0.0",
		"10.0.0.1",
		"192.168.1.1",
		"169.254.169.254",
	)
}

func xForwardedHost(tgt target.Target) []scanner.ProbeSpec {
	return headerVariants("X-Forwarded-Host", "X-Forwarded-Host",
		"localhost",
		"127.0.0.1",
		tgt.Host,
		"evil.com",
	)
}

func xOriginalURL(target.Target) []scanner.ProbeSpec {
	return headerVariants("X-Original-URL", "X-Original-URL",
		"/",
		"/admin",
		"/%2e%2e/",
		"/..;/",
	)
}

func cacheControl(target.Target) []scanner.ProbeSpec {
	specs := headerVariants("Cache-Control", "Cache-Control", "no-cache", "no-store", "max-age=0")
	return append(specs, scanner.ProbeSpec{
		Method:    "GET",
		Path:      "/",
		Headers:   map[string]string{"Pragma": "no-cache"},
		Technique: label("Cache-Control", "Pragma no-cache"),
	})
}

func rangeHeader(target.Target) []scanner.ProbeSpec {
	return headerVariants("Range Header", "Range",
		"bytes=0-",
		"bytes=0-0",
		"bytes=-1",
		"bytes=0-1,2-3",
	)
}
