package refresh_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ierrors "github.com/jrsteele09/go-sso/internal/errors"
	"github.com/jrsteele09/go-sso/storage"
	"github.com/jrsteele09/go-sso/token/refresh"
)

func TestKVRepo(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	repo := refresh.NewKVRepo(kv)
	iat := time.Date(2025, 7, 29, 10, 0, 0, 0, time.UTC)

	_, err := repo.Get(ctx, "missing")
	require.ErrorIs(t, err, ierrors.ErrInvalidRefreshToken)
	require.ErrorIs(t, repo.Delete(ctx, "missing"), ierrors.ErrInvalidRefreshToken)

	for _, rt := range []*refresh.StoredRefreshToken{
		{Token: "a", UserID: "user-1", ClientID: "http://app-a", Iat: iat},
		{Token: "b", UserID: "user-1", ClientID: "http://app-b", Iat: iat},
		{Token: "c", UserID: "user-2", ClientID: "http://app-a", Iat: iat},
	} {
		require.NoError(t, repo.Upsert(ctx, rt))
	}

	got, err := repo.Get(ctx, "b")
	require.NoError(t, err)
	require.Equal(t, refresh.StoredRefreshToken{Token: "b", UserID: "user-1", ClientID: "http://app-b", Iat: iat}, *got)

	require.NoError(t, repo.Delete(ctx, "a"))
	_, err = repo.Get(ctx, "a")
	require.ErrorIs(t, err, ierrors.ErrInvalidRefreshToken)

	require.NoError(t, repo.DeleteByUserID(ctx, "user-1"))
	_, err = repo.Get(ctx, "b")
	require.ErrorIs(t, err, ierrors.ErrInvalidRefreshToken)
	_, err = repo.Get(ctx, "c")
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, "c"))
	require.Zero(t, kv.Len(), "index entries are removed with the last token")
}

func TestKVRepo_RotateThroughManager(t *testing.T) {
	ctx := context.Background()
	manager := refresh.NewManager(refresh.NewKVRepo(storage.NewMemory()))

	tok, err := manager.Create(ctx, "user-1", "http://app-a")
	require.NoError(t, err)

	next, err := manager.Rotate(ctx, tok)
	require.NoError(t, err)
	require.Equal(t, "http://app-a", next.ClientID)

	_, err = manager.Rotate(ctx, tok)
	require.ErrorIs(t, err, ierrors.ErrInvalidRefreshToken)

	require.NoError(t, manager.RevokeUser(ctx, "user-1"))
	_, err = manager.Rotate(ctx, next.Token)
	require.ErrorIs(t, err, ierrors.ErrInvalidRefreshToken)
}
