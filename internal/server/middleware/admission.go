package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/teamplatform/teamplatform/internal/metrics"
	"github.com/teamplatform/teamplatform/internal/model"
	"github.com/teamplatform/teamplatform/internal/ratelimit"
)

// Admission returns the pre-routing rate-limit gate. Static asset paths
// bypass it. Every other request is counted against its client IP and route
// class; admitted requests carry X-RateLimit-* headers and denied ones get a
// 429. Limiter faults let the request through.
func Admission(limiter *ratelimit.Limiter, classes ratelimit.Classes, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if ratelimit.IsStaticAsset(path) {
				metrics.AdmissionDecisions.WithLabelValues("static", metrics.DecisionBypass).Inc()
				next.ServeHTTP(w, r)
				return
			}

			class := ratelimit.Classify(path)
			cfg := classes.For(class)
			key := ratelimit.Key(ClientIP(r), class)

			res, err := limiter.Check(key, cfg)
			if err != nil {
				metrics.LimiterErrors.Inc()
				logger.Error("rate limiter fault, allowing request",
					"key", key,
					"error", err,
					"request_id", GetRequestID(r.Context()),
				)
				next.ServeHTTP(w, r)
				return
			}

			reset := strconv.FormatInt(res.ResetSeconds(), 10)
			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			h.Set("X-RateLimit-Reset", reset)

			if !res.Allowed {
				metrics.AdmissionDecisions.WithLabelValues(string(class), metrics.DecisionDenied).Inc()
				h.Set("Retry-After", reset)
				h.Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(model.RateLimitedResponse{
					Error:      "Too many requests",
					RetryAfter: res.ResetSeconds(),
				})
				return
			}

			metrics.AdmissionDecisions.WithLabelValues(string(class), metrics.DecisionAllowed).Inc()
			next.ServeHTTP(w, r)
		})
	}
}
