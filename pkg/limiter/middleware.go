package limiter

import (
	"encoding/json"
	"net/http"
	"strconv"

	"tagdown/pkg/logger"
)

// Middleware gates quota-bound routes. Allowed requests carry
// X-RateLimit-Limit and X-RateLimit-Remaining headers; denied requests
// get a 429 JSON body. A store failure denies with 500 (fail closed).
func Middleware(l *Limiter, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.GetLogger()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ResolveIdentity(r, trustProxy)

			decision, err := l.Allow(r.Context(), id)
			if err != nil {
				log.ErrorWithFields("quota check failed", map[string]interface{}{
					"identity": id.Key,
					"error":    err.Error(),
				})
				writeJSONError(w, http.StatusInternalServerError, "Internal Server Error")
				return
			}

			setRateLimitHeaders(w, decision)

			if !decision.Allowed {
				log.WarnWithFields("quota exceeded", map[string]interface{}{
					"identity": id.Key,
					"limit":    decision.Limit,
				})
				writeJSONError(w, http.StatusTooManyRequests, "Too Many Requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func setRateLimitHeaders(w http.ResponseWriter, decision Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(decision.Limit, 10))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
