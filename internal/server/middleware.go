package server

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type limiter struct {
	rl *rate.Limiter
}

func newLimiter(perSecond float64, burst int) *limiter {
	if burst < 1 {
		burst = 1
	}
	return &limiter{rl: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// middleware answers 429 once the token bucket is empty. Websocket
// upgrades count as one request for the life of the connection.
func (l *limiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.rl.Allow() {
			w.Header().Set("Retry-After", "1")
			RateLimited(w, "request rate exceeded", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recoverer turns a handler panic into a logged 500 problem.
func recoverer(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}
			logger.Error("handler panic",
				zap.String("path", r.URL.Path),
				zap.Any("panic", v),
				zap.ByteString("stack", debug.Stack()),
			)
			InternalError(w, "unexpected server error", r.URL.Path)
		}()
		next.ServeHTTP(w, r)
	})
}
