package middleware

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/scry-studio/internal/api/shared"
	"github.com/phrazzld/scry-studio/internal/platform/logger"
)

// RequestIDHeader carries the trace ID in requests and responses.
const RequestIDHeader = "X-Request-ID"

// NewTraceMiddleware returns middleware that adds a trace ID and a logger
// carrying it to the request context. A client supplied X-Request-ID is
// reused when it is not too long. It should run first in the chain.
func NewTraceMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if id := r.Header.Get(RequestIDHeader); id != "" && len(id) <= shared.MaxTraceIDLength {
				ctx = shared.WithTraceID(ctx, id)
			} else {
				ctx = shared.SetTraceID(ctx)
			}
			traceID := shared.GetTraceID(ctx)

			log := base.With(slog.String("trace_id", traceID))
			ctx = logger.WithLogger(logger.WithRequestID(ctx, traceID), log)

			log.Debug("request started",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr))

			w.Header().Set(RequestIDHeader, traceID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
