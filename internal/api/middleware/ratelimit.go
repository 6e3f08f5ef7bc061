// SPDX-License-Identifier: MIT

package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimit creates a per-IP rate limiting middleware using the httprate
// sliding window counter. The limit is expressed in requests per minute.
func RateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	window := time.Minute

	return httprate.Limit(
		requestsPerMinute,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)

			resp := `{"error":"rate_limit_exceeded","detail":"Too many requests. Please try again later."}`
			_, _ = w.Write([]byte(resp))
		}),
	)
}

// AuditRateLimit limits manual audit triggers, which are expensive, to a
// handful per minute per IP.
func AuditRateLimit() func(http.Handler) http.Handler {
	return RateLimit(10)
}
