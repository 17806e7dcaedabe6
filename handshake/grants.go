package handshake

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-sso/backend"
	ierrors "github.com/jrsteele09/go-sso/internal/errors"
	"github.com/jrsteele09/go-sso/storage"
	"github.com/jrsteele09/go-sso/token"
	"github.com/jrsteele09/go-sso/token/refresh"
)

// Grants issues the refresh tokens handed to client applications. Each client gets its own
// rotating token, so one application's refresh never spends another's. The backend session
// of the auth server is never given out.
type Grants struct {
	tokens     *refresh.Manager
	identities storage.KV
}

// Grant is a redeemed client refresh token.
type Grant struct {
	Identity     token.Identity
	ClientID     string
	RefreshToken string
}

// NewGrants keeps tokens and the identities they were issued for in kv
func NewGrants(kv storage.KV, opts ...refresh.ManagerOption) *Grants {
	return &Grants{
		tokens:     refresh.NewManager(refresh.NewKVRepo(kv), opts...),
		identities: kv,
	}
}

func identityKey(userID string) string { return "identity:" + userID }

// Issue mints a refresh token for id, bound to clientID
func (g *Grants) Issue(ctx context.Context, id token.Identity, clientID string) (string, error) {
	raw, err := json.Marshal(id)
	if err != nil {
		return "", errors.Wrap(err, "encode identity")
	}
	if err := g.identities.Set(ctx, identityKey(id.ID), string(raw)); err != nil {
		return "", errors.Wrap(err, "store identity")
	}
	return g.tokens.Create(ctx, id.ID, clientID)
}

// Redeem rotates refreshToken. A clientID other than the one the token was issued to is
// rejected; an empty clientID accepts the issued one.
func (g *Grants) Redeem(ctx context.Context, refreshToken, clientID string) (*Grant, error) {
	if refreshToken == "" {
		return nil, invalidGrant("Refresh token is required")
	}
	rt, err := g.tokens.Rotate(ctx, refreshToken)
	if ierrors.Is(err, ierrors.ErrInvalidRefreshToken) {
		return nil, invalidGrant("Invalid Refresh Token")
	}
	if err != nil {
		return nil, errors.Wrap(err, "rotate refresh token")
	}
	if clientID != "" && clientID != rt.ClientID {
		if err := g.tokens.Revoke(ctx, rt.Token); err != nil {
			return nil, errors.Wrap(err, "revoke refresh token")
		}
		return nil, invalidGrant("Refresh token was issued to another client")
	}

	raw, ok, err := g.identities.Get(ctx, identityKey(rt.UserID))
	if err != nil {
		return nil, errors.Wrap(err, "load identity")
	}
	if !ok {
		return nil, invalidGrant("User is no longer signed in")
	}
	var id token.Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		return nil, errors.Wrap(err, "decode identity")
	}
	return &Grant{Identity: id, ClientID: rt.ClientID, RefreshToken: rt.Token}, nil
}

// RevokeUser invalidates every client token of userID
func (g *Grants) RevokeUser(ctx context.Context, userID string) error {
	if err := g.tokens.RevokeUser(ctx, userID); err != nil {
		return err
	}
	return g.identities.Delete(ctx, identityKey(userID))
}

func invalidGrant(message string) error {
	return &backend.AuthError{
		Status:  http.StatusBadRequest,
		Code:    "refresh_token_not_found",
		Message: message,
		Err:     ierrors.ErrInvalidRefreshToken,
	}
}
