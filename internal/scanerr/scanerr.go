// Package scanerr defines the error taxonomy shared by every wafpierce
// component. Errors carry a Kind; callers match on kinds or on the broader
// category with errors.Is rather than on concrete types.
package scanerr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Category groups related kinds.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryNetwork
	CategoryValidation
	CategoryScan
	CategoryConfiguration
)

func (c Category) String() string {
	switch c {
	case CategoryNetwork:
		return "network"
	case CategoryValidation:
		return "validation"
	case CategoryScan:
		return "scan"
	case CategoryConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// Kind identifies one failure mode.
type Kind int

const (
	KindUnknown Kind = iota

	// Network
	TargetUnreachable
	Timeout
	SSLError
	DNSResolution
	TooManyRedirects
	ProxyError
	RateLimit

	// Validation
	InvalidTarget
	InvalidScheme

	// Scan
	BaselineFailed
	ScanInterrupted

	// Configuration
	InvalidThreadCount
	InvalidDelay
	InvalidTimeout
)

var kindNames = map[Kind]string{
	KindUnknown:        "unknown",
	TargetUnreachable:  "target_unreachable",
	Timeout:            "timeout",
	SSLError:           "ssl_error",
	DNSResolution:      "dns_resolution",
	TooManyRedirects:   "too_many_redirects",
	ProxyError:         "proxy_error",
	RateLimit:          "rate_limit",
	InvalidTarget:      "invalid_target",
	InvalidScheme:      "invalid_scheme",
	BaselineFailed:     "baseline_failed",
	ScanInterrupted:    "scan_interrupted",
	InvalidThreadCount: "invalid_thread_count",
	InvalidDelay:       "invalid_delay",
	InvalidTimeout:     "invalid_timeout",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Category returns the category the kind belongs to.
func (k Kind) Category() Category {
	switch k {
	case TargetUnreachable, Timeout, SSLError, DNSResolution, TooManyRedirects, ProxyError, RateLimit:
		return CategoryNetwork
	case InvalidTarget, InvalidScheme:
		return CategoryValidation
	case BaselineFailed, ScanInterrupted:
		return CategoryScan
	case InvalidThreadCount, InvalidDelay, InvalidTimeout:
		return CategoryConfiguration
	default:
		return CategoryUnknown
	}
}

// Error implements error for a bare kind, so a Kind can be used directly as
// an errors.Is target: errors.Is(err, scanerr.Timeout).
func (k Kind) Error() string { return k.String() }

// category sentinels for errors.Is.
type categorySentinel Category

func (c categorySentinel) Error() string { return Category(c).String() + " error" }

var (
	ErrNetwork       error = categorySentinel(CategoryNetwork)
	ErrValidation    error = categorySentinel(CategoryValidation)
	ErrScan          error = categorySentinel(CategoryScan)
	ErrConfiguration error = categorySentinel(CategoryConfiguration)
)

// Error is the concrete error carried through the scanner. Details holds
// free-form context (status codes, Retry-After values, original messages).
type Error struct {
	Kind    Kind
	Message string
	URL     string
	Details map[string]string
	Err     error
}

// New builds an Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind around cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// WithURL records the URL being requested and returns e.
func (e *Error) WithURL(u string) *Error {
	e.URL = u
	return e
}

// WithDetail adds one key/value of context and returns e.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%s", k, e.Details[k])
		}
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches a Kind or a category sentinel.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case Kind:
		return e.Kind == t
	case categorySentinel:
		return e.Kind.Category() == Category(t)
	}
	return false
}

// KindOf returns the kind of the outermost *Error in err's chain, or
// KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsNetwork reports whether err belongs to the network category.
func IsNetwork(err error) bool {
	return errors.Is(err, ErrNetwork)
}
