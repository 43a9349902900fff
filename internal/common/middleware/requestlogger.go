// Package middleware provides HTTP middleware for request logging, timeouts and
// panic recovery. It integrates with zerolog and propagates request IDs.
package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tansive/adminconsole/internal/common/httpx"
	"github.com/tansive/adminconsole/internal/common/logtrace"
	"github.com/tansive/adminconsole/internal/common/uuid"
)

// RequestIDHeader is read from incoming requests and echoed on responses.
const RequestIDHeader = "X-Request-ID"

// RequestLogger attaches a request ID and a request scoped logger to the
// context, echoes the ID in the response and logs the request with its status
// and duration. The Authorization header is never logged.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewRequestID()
		}
		ctx = logtrace.WithRequestId(ctx, requestID)
		ctx = log.With().Str("request_id", requestID).Logger().WithContext(ctx)

		w.Header().Set(RequestIDHeader, requestID)
		rw := httpx.NewResponseWriter(w)

		log.Ctx(ctx).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_ip", r.RemoteAddr).
			Msg("incoming request")

		defer func() {
			log.Ctx(ctx).Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rw.Status()).
				Int("bytes", rw.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("request completed")
		}()

		next.ServeHTTP(rw, r.WithContext(ctx))
	})
}
