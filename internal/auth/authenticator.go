package auth

import (
	"context"
	"errors"

	"github.com/resourcehub/apiserver/internal/store"
	"github.com/resourcehub/apiserver/types"
)

// UserStore resolves principals by id. Get returns store.ErrNotFound
// when no such user exists and a different error on transport or
// connection problems, never conflating the two.
type UserStore interface {
	Get(ctx context.Context, id string) (types.User, error)
}

// Authenticator verifies user credentials against stored hashes.
type Authenticator struct {
	users UserStore
}

func NewAuthenticator(users UserStore) *Authenticator {
	return &Authenticator{users: users}
}

// Authenticate looks up the user and verifies the password. It returns
// (nil, nil) when the user does not exist or the password is wrong; the
// two cases are deliberately indistinguishable. A storage failure is
// returned as an error, distinct from authentication failure.
func (a *Authenticator) Authenticate(ctx context.Context, userID, password string) (*types.User, error) {
	user, err := a.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !VerifyPassword(password, user.HashedPassword) {
		return nil, nil
	}
	return &user, nil
}

// GrantScopes computes the scopes embedded in a token issued to the
// user: the requested scopes intersected with the user's stored scopes,
// or all requested scopes when the user holds the superuser tag.
func GrantScopes(user types.User, requested []string) []string {
	granted := make([]string, 0, len(requested))
	for _, scope := range requested {
		if user.HasScope(scope) || user.HasScope(ScopeSuperuser) {
			granted = append(granted, scope)
		}
	}
	return granted
}
