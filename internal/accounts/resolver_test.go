package accounts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transferd/transferd/pkg/types"
)

func TestResolveMatchesLongestLocalRoot(t *testing.T) {
	store := NewMemoryStore(
		types.Account{Kind: types.BackendLocal, Root: "/data"},
		types.Account{Kind: types.BackendLocal, Root: "/data/photos"},
	)
	r := New(store, NewMemoryVault(nil), nil)
	require.NoError(t, r.Refresh(context.Background()))

	a, ok := r.Resolve(types.BackendLocal, "/data/photos/2024/a.jpg")
	require.True(t, ok)
	assert.Equal(t, "/data/photos", a.Root())
}

func TestResolveReturnsFalseWhenNoAccountMatches(t *testing.T) {
	store := NewMemoryStore(types.Account{Kind: types.BackendLocal, Root: "/data"})
	r := New(store, NewMemoryVault(nil), nil)
	require.NoError(t, r.Refresh(context.Background()))

	_, ok := r.Resolve(types.BackendLocal, "other/path")
	assert.False(t, ok)
}

func TestResolveSkipsS3AccountMissingSecret(t *testing.T) {
	store := NewMemoryStore(
		types.Account{Kind: types.BackendS3, Root: "/bucket1", AccessKey: "AKID"},
	)
	r := New(store, NewMemoryVault(nil), nil)
	require.NoError(t, r.Refresh(context.Background()))

	_, ok := r.Resolve(types.BackendS3, "/bucket1/dir/file")
	assert.False(t, ok, "account without a vault secret must not be resolvable")
}

func TestResolveFindsS3AccountWithSecret(t *testing.T) {
	store := NewMemoryStore(
		types.Account{Kind: types.BackendS3, Root: "/bucket1", AccessKey: "AKID", Region: "us-east-1"},
	)
	vault := NewMemoryVault(map[string]string{"AKID": "secret"})
	r := New(store, vault, nil)
	require.NoError(t, r.Refresh(context.Background()))

	a, ok := r.Resolve(types.BackendS3, "/bucket1/dir/file")
	require.True(t, ok)
	assert.Equal(t, types.BackendS3, a.Kind())
}
