package http

import (
	"log/slog"
	"mime"
	"net/http"

	"github.com/satrioramadhan/scansek-api/pkg/httputil"
	"github.com/satrioramadhan/scansek-api/pkg/middleware"
	"github.com/satrioramadhan/scansek-api/pkg/validator"
)

// ContentTypeJSON rejects request bodies declared as something other than
// JSON. A missing Content-Type is accepted; the mobile client omits it on
// some requests.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "" {
			mediaType, _, err := mime.ParseMediaType(ct)
			if err != nil || mediaType != "application/json" {
				httputil.WriteFailure(w, r, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE",
					"Content-Type must be application/json", nil)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// decode reads and validates the JSON body into dst. On failure it writes the
// error response and returns false.
func decode(w http.ResponseWriter, r *http.Request, dst any, l *slog.Logger) bool {
	if err := validator.DecodeAndValidate(w, r, dst); err != nil {
		httputil.WriteError(w, r, err, l)
		return false
	}
	return true
}

// requireAccount returns the authenticated account id or writes a 401.
func requireAccount(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := middleware.AccountIDFromContext(r.Context())
	if id == "" {
		httputil.WriteFailure(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "account not authenticated", nil)
		return "", false
	}
	return id, true
}
