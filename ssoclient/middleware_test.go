package ssoclient_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-sso/ssoapi"
	"github.com/jrsteele09/go-sso/ssoclient"
	"github.com/jrsteele09/go-sso/token"
)

func TestRequireBearer(t *testing.T) {
	now := time.Date(2025, 7, 29, 10, 0, 0, 0, time.UTC)
	signer := token.NewHMACSigner("shared-secret")
	codec := token.NewCodec("http://localhost:3001",
		token.WithSigner(signer),
		token.WithNowTime(func() time.Time { return now }),
	)
	valid, err := codec.Encode(token.Identity{ID: "user-1", Email: "jane@example.com"}, appOrigin)
	require.NoError(t, err)
	otherAudience, err := codec.Encode(token.Identity{ID: "user-1", Email: "jane@example.com"}, "http://localhost:3003")
	require.NoError(t, err)
	forged, err := token.NewCodec("http://localhost:3001", token.WithNowTime(func() time.Time { return now })).
		Encode(token.Identity{ID: "user-1", Email: "jane@example.com"}, appOrigin)
	require.NoError(t, err)

	protected := ssoclient.RequireBearer(ssoclient.BearerOptions{
		Verifier: ssoclient.SignerVerifier(signer),
		Audience: appOrigin,
		Now:      func() time.Time { return now },
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := ssoclient.UserFromContext(r.Context())
		require.True(t, ok)
		_ = json.NewEncoder(w).Encode(user)
	}))

	tests := []struct {
		name          string
		authorization string
		advance       time.Duration
		wantStatus    int
		wantError     string
	}{
		{name: "valid token", authorization: "Bearer " + valid, wantStatus: http.StatusOK},
		{name: "missing header", wantStatus: http.StatusUnauthorized, wantError: "missing bearer token"},
		{name: "wrong scheme", authorization: "Basic " + valid, wantStatus: http.StatusUnauthorized, wantError: "missing bearer token"},
		{name: "malformed", authorization: "Bearer abc", wantStatus: http.StatusUnauthorized, wantError: "malformed token"},
		{name: "bad signature", authorization: "Bearer " + forged, wantStatus: http.StatusUnauthorized, wantError: "invalid token signature"},
		{name: "other audience", authorization: "Bearer " + otherAudience, wantStatus: http.StatusUnauthorized, wantError: "token audience mismatch"},
		{name: "expired", authorization: "Bearer " + valid, advance: 61 * time.Minute, wantStatus: http.StatusUnauthorized, wantError: "token expired"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			saved := now
			now = now.Add(tt.advance)
			defer func() { now = saved }()

			req := httptest.NewRequest(http.MethodGet, "/api/notes", nil)
			if tt.authorization != "" {
				req.Header.Set("Authorization", tt.authorization)
			}
			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				var user ssoclient.UserInfo
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
				require.Equal(t, "user-1", user.ID)
				require.Equal(t, "jane", user.Name)
				return
			}
			require.Equal(t, `Bearer error="invalid_token"`, rec.Header().Get("WWW-Authenticate"))
			var body ssoapi.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Equal(t, ssoapi.ErrorResponse{Error: "invalid_token", ErrorDescription: tt.wantError}, body)
		})
	}
}
