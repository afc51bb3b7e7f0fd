package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/storefront-backoffice/api/responses"
	pkgAuth "github.com/angelmondragon/storefront-backoffice/pkg/auth"
	"github.com/angelmondragon/storefront-backoffice/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backoffice/pkg/errors"
	"github.com/angelmondragon/storefront-backoffice/pkg/logger"
)

// Auth requires "Authorization: Bearer <jwt>" and puts the caller's user id and role on
// the request context for RequireRole, the audit actor and the logs.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="storefront"`)
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing bearer token"))
				return
			}
			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="storefront", error="invalid_token"`)
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			userID := claims.UserID.String()
			ctx = WithRole(WithUserID(ctx, userID), claims.Role)
			if logg != nil {
				ctx = logg.WithActorRole(logg.WithUserID(ctx, userID), string(claims.Role))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
