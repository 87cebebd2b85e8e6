package middleware

import (
	"net/http"

	"github.com/evyataryagoni/ipgeo/internal/clientip"
	"github.com/evyataryagoni/ipgeo/internal/limiter"
	"github.com/evyataryagoni/ipgeo/internal/metrics"
	"github.com/evyataryagoni/ipgeo/internal/models"
	"github.com/goccy/go-json"
)

// RateLimitExceededMessage is the error body of a 429 response.
const RateLimitExceededMessage = "Rate limit exceeded. Please try again later."

// RateLimitMiddleware enforces the limiter per client address and answers
// 429 when the budget is spent. Clients are keyed the same way /ip
// resolves them.
func RateLimitMiddleware(lim limiter.Limiter, m *metrics.Metrics) func(http.Handler) http.Handler {
	body, _ := json.Marshal(models.ErrorResponse{Error: RateLimitExceededMessage})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !lim.Allow(r.Context(), clientip.Resolve(r)) {
				if m != nil {
					m.RateLimitedRequests.Inc()
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write(body)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
