package storeapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dunglas/httpsfv"
)

// Rate-limited stores answer 429 with either a plain Retry-After header
// or the structured RateLimit header ("limit=25, remaining=0, reset=30",
// RFC 8941 dictionary syntax). RetryAfter extracts a wait hint from
// whichever is present so callers can surface it instead of a bare 429.

// RetryAfter returns the backoff hint from a 429 response's headers,
// or zero if the server gave none.
func RetryAfter(header http.Header) time.Duration {
	if d, ok := parseRateLimitReset(header.Get("RateLimit")); ok {
		return d
	}

	// Retry-After: delay-seconds form only; HTTP-date form is rare on
	// store rate limiters and not worth the parse.
	if v := header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}

	return 0
}

// parseRateLimitReset extracts the "reset" member from a structured
// RateLimit dictionary header.
func parseRateLimitReset(header string) (time.Duration, bool) {
	if header == "" {
		return 0, false
	}

	dict, err := httpsfv.UnmarshalDictionary([]string{header})
	if err != nil {
		return 0, false
	}

	member, ok := dict.Get("reset")
	if !ok {
		return 0, false
	}

	item, ok := member.(httpsfv.Item)
	if !ok {
		return 0, false
	}

	switch v := item.Value.(type) {
	case int64:
		if v > 0 {
			return time.Duration(v) * time.Second, true
		}
	case float64:
		if v > 0 {
			return time.Duration(v * float64(time.Second)), true
		}
	}
	return 0, false
}
