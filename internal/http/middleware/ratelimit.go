package middleware

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/ticketpulse/ticketpulse/internal/domain"
	"github.com/ticketpulse/ticketpulse/pkg/analytics"
	"github.com/ticketpulse/ticketpulse/pkg/logger"
	"github.com/ticketpulse/ticketpulse/pkg/ratelimiter"
)

// CodeRateLimited is reported when a client exceeds its request budget
const CodeRateLimited = "rate_limited"

// RateLimitMiddleware rejects clients over their budget with 429
func RateLimitMiddleware(limiter *ratelimiter.RateLimiter, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			if limiter.Allow(ip) {
				next.ServeHTTP(w, r)
				return
			}

			retryAfter := limiter.RetryAfter(ip)
			log.WithField("client_ip", ip).
				WithField("retry_after", retryAfter.String()).
				Warn("Rate limit exceeded")

			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(domain.ErrorResponse{
				RequestID: RequestIDFromContext(r.Context()),
				Error: analytics.NewError(CodeRateLimited,
					"Too many requests",
					"Retry after "+strconv.Itoa(int(math.Ceil(retryAfter.Seconds())))+" seconds"),
			})
		})
	}
}

// ClientIP returns the first X-Forwarded-For address, or the remote address
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
