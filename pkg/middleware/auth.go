package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/satrioramadhan/scansek-api/pkg/httputil"
	"github.com/satrioramadhan/scansek-api/pkg/logger"
)

type contextKeyType string

const accountIDKey contextKeyType = "account_id"

// TokenValidator checks a bearer token and returns the account id it was
// issued for. Services inject their own validation so the same middleware can
// guard access-token and refresh-token routes.
type TokenValidator func(token string) (accountID string, err error)

// Auth rejects requests without a valid bearer token and stores the account
// id in the request context.
func Auth(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				writeAuthError(w, r, "missing or malformed authorization header")
				return
			}

			accountID, err := validate(token)
			if err != nil || accountID == "" {
				writeAuthError(w, r, "invalid or expired token")
				return
			}

			ctx := WithAccountID(r.Context(), accountID)
			ctx = logger.NewContext(ctx, logger.FromContext(ctx).With(slog.String("account_id", accountID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header.
func BearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// WithAccountID stores the authenticated account id in ctx.
func WithAccountID(ctx context.Context, id string) context.Context {
	ctx = context.WithValue(ctx, accountIDKey, id)
	return logger.WithAccountID(ctx, id)
}

// AccountIDFromContext returns the authenticated account id, or "".
func AccountIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(accountIDKey).(string); ok {
		return id
	}
	return ""
}

func writeAuthError(w http.ResponseWriter, r *http.Request, message string) {
	httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
		Message:   message,
		Code:      "UNAUTHORIZED",
		RequestID: logger.CorrelationIDFromContext(r.Context()),
	})
}
