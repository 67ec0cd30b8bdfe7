package middleware

import (
	"log/slog"
	"net/http"
)

// NewRequestLogger logs every request hitting the chat endpoints before it
// reaches the limiter or the upgrade handler.
func NewRequestLogger(logger *slog.Logger) Middleware {
	logger = logger.With(slog.String("component", "http"))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attrs := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			}
			if reqMeta, ok := ReqMetadataFrom(r.Context()); ok {
				attrs = append(attrs, slog.String("ip", reqMeta.IP))
			}
			logger.Info("Incoming request", attrs...)
			next.ServeHTTP(w, r)
		})
	}
}
