package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tansive/adminconsole/internal/common/httpx"
)

// SetTimeout bounds request handling with a context deadline. Handlers are
// expected to honor ctx; if the deadline passes before anything is written,
// a timeout error is returned.
func SetTimeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			rw := httpx.NewResponseWriter(w)
			next.ServeHTTP(rw, r.WithContext(ctx))

			if errors.Is(ctx.Err(), context.DeadlineExceeded) && !rw.Written() {
				log.Ctx(ctx).Error().Dur("timeout", timeout).Msg("request timed out")
				httpx.ErrRequestTimeout().Send(rw)
			}
		})
	}
}
