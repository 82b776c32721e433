package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/resourcehub/apiserver/internal/store"
	"github.com/resourcehub/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUserStore struct {
	users map[string]types.User
	err   error
}

func (s *stubUserStore) Get(ctx context.Context, id string) (types.User, error) {
	if s.err != nil {
		return types.User{}, s.err
	}
	user, ok := s.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func storedUser(t *testing.T, id, password string, scopes ...string) types.User {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	return types.User{
		ID:             id,
		Status:         types.UserStatusActive,
		Scopes:         scopes,
		HashedPassword: hash,
	}
}

func TestAuthenticateSuccess(t *testing.T) {
	users := &stubUserStore{users: map[string]types.User{
		"alice": storedUser(t, "alice", "correct horse", ScopeUserRead),
	}}
	authenticator := NewAuthenticator(users)

	user, err := authenticator.Authenticate(context.Background(), "alice", "correct horse")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "alice", user.ID)
}

func TestAuthenticateUnknownUser(t *testing.T) {
	authenticator := NewAuthenticator(&stubUserStore{users: map[string]types.User{}})

	user, err := authenticator.Authenticate(context.Background(), "nobody", "whatever")
	assert.NoError(t, err)
	assert.Nil(t, user)
}

func TestAuthenticateWrongPassword(t *testing.T) {
	users := &stubUserStore{users: map[string]types.User{
		"alice": storedUser(t, "alice", "correct horse"),
	}}
	authenticator := NewAuthenticator(users)

	user, err := authenticator.Authenticate(context.Background(), "alice", "wrong horse")
	assert.NoError(t, err)
	assert.Nil(t, user)
}

func TestAuthenticateNoStoredHash(t *testing.T) {
	users := &stubUserStore{users: map[string]types.User{
		"alice": {ID: "alice", Status: types.UserStatusActive},
	}}
	authenticator := NewAuthenticator(users)

	user, err := authenticator.Authenticate(context.Background(), "alice", "anything")
	assert.NoError(t, err)
	assert.Nil(t, user)
}

func TestAuthenticateStorageFailure(t *testing.T) {
	storeErr := errors.New("connection refused")
	authenticator := NewAuthenticator(&stubUserStore{err: storeErr})

	user, err := authenticator.Authenticate(context.Background(), "alice", "correct horse")
	assert.ErrorIs(t, err, storeErr)
	assert.Nil(t, user)
}

func TestGrantScopesIntersection(t *testing.T) {
	user := types.User{ID: "alice", Scopes: []string{ScopeUserRead, ScopeResourcesRead}}

	granted := GrantScopes(user, []string{ScopeUserRead, ScopeResourcesWrite, ScopeResourcesRead})
	assert.Equal(t, []string{ScopeUserRead, ScopeResourcesRead}, granted)
}

func TestGrantScopesSuperuser(t *testing.T) {
	user := types.User{ID: "root", Scopes: []string{ScopeSuperuser}}

	requested := []string{ScopeUserRead, ScopeUserWrite, ScopeResourcesAdmin}
	assert.Equal(t, requested, GrantScopes(user, requested))
}

func TestGrantScopesEmptyRequest(t *testing.T) {
	user := types.User{ID: "alice", Scopes: []string{ScopeUserRead}}
	assert.Empty(t, GrantScopes(user, nil))
}
