package middleware

import (
	"fmt"
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// RateLimit returns middleware that allows rate requests per client IP,
// where rate uses the limiter's "<limit>-<period>" format, e.g. "10-M".
// An empty rate disables limiting. The client IP is the request's RemoteAddr;
// forwarding headers are only honoured through ClientIP.
func RateLimit(rate string) (func(http.Handler) http.Handler, error) {
	if rate == "" {
		return func(next http.Handler) http.Handler { return next }, nil
	}

	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("invalid rate %q: %w", rate, err)
	}

	instance := limiter.New(memory.NewStore(), parsed)
	mw := stdlib.NewMiddleware(instance,
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			slog.Warn("Rate limit reached", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
			http.Error(w, "too many uploads, please wait a moment", http.StatusTooManyRequests)
		}),
	)
	return mw.Handler, nil
}

// ClientIP rewrites RemoteAddr from X-Forwarded-For and X-Real-IP when the
// server runs behind a trusted reverse proxy. Otherwise those headers are
// client-controlled and RemoteAddr is left alone.
func ClientIP(trustProxy bool) func(http.Handler) http.Handler {
	if trustProxy {
		return chimw.RealIP
	}
	return func(next http.Handler) http.Handler { return next }
}
