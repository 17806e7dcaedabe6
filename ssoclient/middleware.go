package ssoclient

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-sso/ssoapi"
	"github.com/jrsteele09/go-sso/token"
)

type contextKey string

const userContextKey contextKey = "sso-user"

// BearerOptions configures RequireBearer
type BearerOptions struct {
	// Verifier checks signatures. Without one tokens are only decoded.
	Verifier Verifier

	// Audience, when set, must equal the aud claim.
	Audience string

	// Now defaults to time.Now
	Now func() time.Time
}

// RequireBearer rejects requests without a valid, unexpired bearer token and puts the
// token's user in the request context.
func RequireBearer(opts BearerOptions) func(http.Handler) http.Handler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				unauthorized(w, "missing bearer token")
				return
			}

			claims, err := token.Decode(raw)
			if err != nil {
				unauthorized(w, "malformed token")
				return
			}
			if opts.Verifier != nil {
				if err := opts.Verifier.Verify(r.Context(), raw); err != nil {
					log.Warn().Err(err).Msg("bearer token rejected")
					unauthorized(w, "invalid token signature")
					return
				}
			}
			if token.IsExpired(claims, opts.Now()) {
				unauthorized(w, "token expired")
				return
			}
			if opts.Audience != "" && claims.Audience != opts.Audience {
				unauthorized(w, "token audience mismatch")
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, userInfoFromClaims(claims))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext returns the user put in the context by RequireBearer
func UserFromContext(ctx context.Context) (*UserInfo, bool) {
	u, ok := ctx.Value(userContextKey).(*UserInfo)
	return u, ok
}

func unauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(ssoapi.ErrorResponse{Error: "invalid_token", ErrorDescription: description})
}
