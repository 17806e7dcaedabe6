package supabase_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-sso/backend"
	"github.com/jrsteele09/go-sso/backend/supabase"
	ierrors "github.com/jrsteele09/go-sso/internal/errors"
)

const anonKey = "anon-key"

type recorded struct {
	path   string
	query  string
	auth   string
	apikey string
	body   map[string]any
}

func newServer(t *testing.T, status int, response string) (*httptest.Server, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.path = r.URL.Path
		rec.query = r.URL.RawQuery
		rec.auth = r.Header.Get("Authorization")
		rec.apikey = r.Header.Get("apikey")
		_ = json.NewDecoder(r.Body).Decode(&rec.body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

const sessionJSON = `{
	"access_token": "at",
	"token_type": "bearer",
	"expires_in": 3600,
	"expires_at": 1753790000,
	"refresh_token": "rt",
	"user": {"id": "u1", "email": "jane@example.com", "role": "authenticated", "user_metadata": {"name": "Jane"}}
}`

func TestClient_SignInWithPassword(t *testing.T) {
	srv, rec := newServer(t, http.StatusOK, sessionJSON)
	client := supabase.New(srv.URL, anonKey)

	s, err := client.SignInWithPassword(context.Background(), "jane@example.com", "pw")
	require.NoError(t, err)
	require.Equal(t, "at", s.AccessToken)
	require.Equal(t, "rt", s.RefreshToken)
	require.Equal(t, int64(1753790000), s.ExpiresAt)
	require.Equal(t, "u1", s.User.ID)
	require.Equal(t, "Jane", s.User.Metadata["name"])

	require.Equal(t, "/auth/v1/token", rec.path)
	require.Equal(t, "grant_type=password", rec.query)
	require.Equal(t, anonKey, rec.apikey)
	require.Equal(t, "Bearer "+anonKey, rec.auth)
	require.Equal(t, "jane@example.com", rec.body["email"])
}

func TestClient_SignInError(t *testing.T) {
	srv, _ := newServer(t, http.StatusBadRequest, `{"code":400,"error_code":"invalid_credentials","msg":"Invalid login credentials"}`)
	client := supabase.New(srv.URL, anonKey)

	_, err := client.SignInWithPassword(context.Background(), "jane@example.com", "bad")
	var authErr *backend.AuthError
	require.True(t, errors.As(err, &authErr))
	require.Equal(t, http.StatusBadRequest, authErr.Status)
	require.Equal(t, "Invalid login credentials", authErr.Message)
	require.ErrorIs(t, err, ierrors.ErrInvalidCredentials)
}

func TestClient_LegacyErrorBody(t *testing.T) {
	srv, _ := newServer(t, http.StatusBadRequest, `{"error":"invalid_grant","error_description":"Invalid Refresh Token: Refresh Token Not Found"}`)
	client := supabase.New(srv.URL, anonKey)

	_, err := client.RefreshSession(context.Background(), "old")
	var authErr *backend.AuthError
	require.True(t, errors.As(err, &authErr))
	require.Equal(t, "Invalid Refresh Token: Refresh Token Not Found", authErr.Message)
}

func TestClient_SignUp(t *testing.T) {
	t.Run("confirmation required", func(t *testing.T) {
		srv, rec := newServer(t, http.StatusOK, `{"id":"u2","email":"new@example.com","role":"authenticated","user_metadata":{"name":"New"}}`)
		client := supabase.New(srv.URL, anonKey)

		res, err := client.SignUp(context.Background(), "new@example.com", "password1", map[string]any{"name": "New"})
		require.NoError(t, err)
		require.Nil(t, res.Session)
		require.Equal(t, "u2", res.User.ID)
		require.Equal(t, "/auth/v1/signup", rec.path)
		require.Equal(t, map[string]any{"name": "New"}, rec.body["data"])
	})

	t.Run("autoconfirm", func(t *testing.T) {
		srv, _ := newServer(t, http.StatusOK, sessionJSON)
		client := supabase.New(srv.URL, anonKey)

		res, err := client.SignUp(context.Background(), "jane@example.com", "password1", nil)
		require.NoError(t, err)
		require.NotNil(t, res.Session)
		require.Equal(t, "u1", res.User.ID)
	})

	t.Run("weak password", func(t *testing.T) {
		srv, _ := newServer(t, http.StatusUnprocessableEntity, `{"code":422,"error_code":"weak_password","msg":"Password should be at least 6 characters."}`)
		client := supabase.New(srv.URL, anonKey)

		_, err := client.SignUp(context.Background(), "jane@example.com", "x", nil)
		require.ErrorIs(t, err, ierrors.ErrWeakPassword)
	})
}

func TestClient_ResetPasswordForEmail(t *testing.T) {
	srv, rec := newServer(t, http.StatusOK, `{}`)
	client := supabase.New(srv.URL, anonKey)

	err := client.ResetPasswordForEmail(context.Background(), "jane@example.com", "http://localhost:3001/reset-password")
	require.NoError(t, err)
	require.Equal(t, "/auth/v1/recover", rec.path)
	require.Equal(t, "redirect_to=http%3A%2F%2Flocalhost%3A3001%2Freset-password", rec.query)
}

func TestClient_RefreshComputesExpiry(t *testing.T) {
	now := time.Date(2025, 7, 29, 10, 0, 0, 0, time.UTC)
	srv, rec := newServer(t, http.StatusOK, `{"access_token":"at2","expires_in":3600,"refresh_token":"rt2","user":{"id":"u1","email":"a@b.c"}}`)
	client := supabase.New(srv.URL, anonKey, supabase.WithNowTime(func() time.Time { return now }))

	s, err := client.RefreshSession(context.Background(), "rt")
	require.NoError(t, err)
	require.Equal(t, now.Unix()+3600, s.ExpiresAt)
	require.Equal(t, "grant_type=refresh_token", rec.query)
	require.Equal(t, "rt", rec.body["refresh_token"])
}

func TestClient_SignOutUsesUserToken(t *testing.T) {
	srv, rec := newServer(t, http.StatusNoContent, ``)
	client := supabase.New(srv.URL, anonKey)

	require.NoError(t, client.SignOut(context.Background(), "user-at"))
	require.Equal(t, "/auth/v1/logout", rec.path)
	require.Equal(t, "Bearer user-at", rec.auth)
}

func TestClient_NetworkError(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, sessionJSON)
	srv.Close()
	client := supabase.New(srv.URL, anonKey)

	_, err := client.SignInWithPassword(context.Background(), "a@b.c", "pw")
	var authErr *backend.AuthError
	require.True(t, errors.As(err, &authErr))
	require.Equal(t, "network_error", authErr.Code)
}

func TestClient_ErrorsKeepStatusForRefreshClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		rejected bool
	}{
		{name: "revoked token", status: http.StatusBadRequest, body: `{"code":400,"error_code":"refresh_token_not_found","msg":"Invalid Refresh Token: Refresh Token Not Found"}`, rejected: true},
		{name: "gateway outage", status: http.StatusBadGateway, body: `upstream connect error`, rejected: false},
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{"code":429,"error_code":"over_request_rate_limit","msg":"Request rate limit reached"}`, rejected: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newServer(t, tt.status, tt.body)
			client := supabase.New(srv.URL, anonKey)

			_, err := client.RefreshSession(context.Background(), "rt")
			var authErr *backend.AuthError
			require.True(t, errors.As(err, &authErr))
			require.Equal(t, tt.status, authErr.Status)
			require.Equal(t, tt.rejected, backend.IsRejection(err))
		})
	}
}

func TestClient_UndecodableAnswerIsNotARejection(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `<html>maintenance</html>`)
	client := supabase.New(srv.URL, anonKey)

	_, err := client.RefreshSession(context.Background(), "rt")
	require.Error(t, err)
	require.False(t, backend.IsRejection(err))
}

func TestClient_RequestFollowsCallerContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})
	client := supabase.New(srv.URL, anonKey)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.RefreshSession(ctx, "rt")

	var authErr *backend.AuthError
	require.True(t, errors.As(err, &authErr))
	require.Equal(t, "network_error", authErr.Code)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.False(t, backend.IsRejection(err))
}
