package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	dErrors "voxid/pkg/domain-errors"
	"voxid/pkg/platform/httputil"
	"voxid/pkg/requestcontext"
)

const (
	HeaderAdminToken = "X-Admin-Token"
	HeaderAdminActor = "X-Admin-Actor-ID"
)

// RequireAdminToken guards operator-only routes such as the record clear-all.
// An empty expected token disables the routes entirely.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := r.Header.Get(HeaderAdminToken)
			if expectedToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", requestcontext.RequestID(ctx),
					"path", r.URL.Path,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin token required"))
				return
			}

			if actor := r.Header.Get(HeaderAdminActor); actor != "" {
				ctx = requestcontext.WithAdminActor(ctx, actor)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
