package accesslog

import (
	"net/http"
	"time"

	"github.com/KretovDmitry/fraud-review-service/pkg/logger"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// Handler returns a middleware that logs every request with its
// duration, status and a correlation id.
func Handler(logger logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		f := func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			requestID := r.Header.Get("X-Request-Id")
			if requestID == "" {
				requestID = uuid.NewString()
			}

			next.ServeHTTP(ww, r)

			logger.With(r.Context(),
				"request_id", requestID,
				"duration", time.Since(start).String(),
				"status", ww.Status(),
			).Infof("%s %s %s %d %d", r.Method, r.URL.Path, r.Proto, ww.Status(), ww.BytesWritten())
		}
		return http.HandlerFunc(f)
	}
}
