package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"usersapi/pkg/requestcontext"
)

// JWTValidator verifies a bearer token and yields the identity-provider
// subject it was issued to. Everything downstream trusts that subject
// completely.
type JWTValidator interface {
	ValidateToken(tokenString string) (subject string, err error)
}

// RequireAuth rejects requests without a valid bearer token before any
// handler runs. Missing, malformed or expired tokens all produce the same
// 403 response so callers learn nothing about why verification failed.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "rejected request without bearer token",
					"path", r.URL.Path,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeForbidden(w)
				return
			}

			subject, err := validator.ValidateToken(token)
			if err != nil || subject == "" {
				logger.WarnContext(ctx, "rejected invalid bearer token",
					"path", r.URL.Path,
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeForbidden(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithSubject(ctx, subject)))
		})
	}
}

func writeForbidden(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	w.Write([]byte(`{"error":"Forbidden"}`))
}
