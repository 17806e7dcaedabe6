package backend_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-sso/backend"
	ierrors "github.com/jrsteele09/go-sso/internal/errors"
)

func TestIsRejection(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "invalid refresh token", err: &backend.AuthError{Status: 400, Code: "refresh_token_not_found", Err: ierrors.ErrInvalidRefreshToken}, want: true},
		{name: "unauthorized", err: &backend.AuthError{Status: 401, Code: "bad_jwt"}, want: true},
		{name: "bare sentinel", err: fmt.Errorf("rotate: %w", ierrors.ErrInvalidRefreshToken), want: true},
		{name: "network error", err: &backend.AuthError{Code: "network_error", Message: "dial tcp: connection refused", Err: errors.New("dial tcp: connection refused")}, want: false},
		{name: "undecodable answer", err: errors.New("decode /token response: unexpected EOF"), want: false},
		{name: "rate limited", err: &backend.AuthError{Status: 429, Code: "over_request_rate_limit", Err: ierrors.ErrRateLimited}, want: false},
		{name: "provider outage", err: &backend.AuthError{Status: 503, Code: "unavailable"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, backend.IsRejection(tt.err))
		})
	}
}
