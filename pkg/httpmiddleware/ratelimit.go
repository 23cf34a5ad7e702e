package httpmiddleware

import (
	"net/http"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"
)

// RateLimitConfig configures the per-client rate limiter.
type RateLimitConfig struct {
	// Max is the number of requests allowed per Window.
	Max    int
	Window time.Duration
	// Store holds the counters. Nil means an in-process memory store.
	Store limiter.Store
	// KeyFunc extracts the client key. Nil means the client IP, honouring
	// X-Forwarded-For and X-Real-IP.
	KeyFunc func(*http.Request) string
}

// RateLimit returns a middleware that rejects clients exceeding cfg.Max
// requests per cfg.Window with 429. X-RateLimit-Limit, X-RateLimit-Remaining
// and X-RateLimit-Reset headers are set on every response.
func RateLimit(cfg RateLimitConfig) Middleware {
	store := cfg.Store
	if store == nil {
		store = memory.NewStore()
	}
	lim := limiter.New(store, limiter.Rate{
		Period: cfg.Window,
		Limit:  int64(cfg.Max),
	}, limiter.WithTrustForwardHeader(true))

	opts := []stdlib.Option{
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, _ *http.Request) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		}),
		stdlib.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			zctx.From(r.Context()).Error("Rate limiter store failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
		}),
	}
	if cfg.KeyFunc != nil {
		opts = append(opts, stdlib.WithKeyGetter(cfg.KeyFunc))
	}
	return stdlib.NewMiddleware(lim, opts...).Handler
}
