package technique

import (
	"github.com/maxvaer/wafpierce/internal/scanner"
	"github.com/maxvaer/wafpierce/internal/target"
)

// Paths are sent byte-for-byte; none of them is decoded before sending.

func pathEncoding(target.Target) []scanner.ProbeSpec {
	return pathVariants("Path Encoding",
		"/%2e/",
		"/..%2f",
		"/%252e%252e/",
		"/%u002e%u002e/",
	)
}

func doubleEncoding(target.Target) []scanner.ProbeSpec {
	return pathVariants("Double Encoding",
		"/%252e%252e%252f",
		"/%25252e%25252e%25252f",
		"/%255c..%255c",
		"/%c0%ae%c0%ae/",
	)
}
