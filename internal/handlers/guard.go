package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/resourcehub/apiserver/internal/auth"
	"github.com/resourcehub/apiserver/internal/store"
	"github.com/resourcehub/apiserver/types"
	"go.uber.org/zap"
)

const msgCredentials = "unable to validate credentials"

// Guard resolves bearer tokens into authenticated principals and
// enforces per-endpoint scope requirements. It is stateless; a single
// Guard serves every route concurrently.
type Guard struct {
	codec  *auth.Codec
	users  auth.UserStore
	logger *zap.Logger
}

func NewGuard(codec *auth.Codec, users auth.UserStore, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{
		codec:  codec,
		users:  users,
		logger: logger,
	}
}

// Require builds middleware enforcing the given scopes. Per request it
// decodes the bearer token, resolves the principal, checks every
// required scope against the token's granted scopes, and checks that
// the principal is active, injecting the principal into the context on
// success.
//
// The superuser bypass is checked against the principal's live stored
// scopes, while ordinary scope checks run against the scopes embedded
// in the token at login time. A token's power is bounded by what was
// granted when it was issued; superuser elevation and revocation take
// effect on the next request.
func (g *Guard) Require(scopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeJSON(w, http.StatusUnauthorized, DetailResponse{Detail: "Not authenticated"})
				return
			}

			claims, err := g.codec.Decode(tokenString)
			if err != nil {
				g.denyCredentials(w, scopes)
				return
			}

			user, err := g.users.Get(r.Context(), claims.Subject)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					g.denyCredentials(w, scopes)
					return
				}
				g.logger.Error("principal lookup failed",
					zap.String("sub", claims.Subject),
					zap.Error(err))
				writeDetail(w, http.StatusInternalServerError,
					newDetail(ErrorTypeDatabase, msgCredentials))
				return
			}

			if !user.HasScope(auth.ScopeSuperuser) {
				for _, scope := range scopes {
					if !hasScope(claims.Scopes, scope) {
						g.denyScopes(w, scopes)
						return
					}
				}
			}

			if user.Status != types.UserStatusActive {
				g.denyInactive(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), user)))
		})
	}
}

func (g *Guard) denyCredentials(w http.ResponseWriter, scopes []string) {
	w.Header().Set("WWW-Authenticate", challenge(scopes))
	writeDetail(w, http.StatusUnauthorized,
		newDetail(ErrorTypeUnauthorized, msgCredentials))
}

// denyInactive carries the plain challenge: the credentials were valid
// and the scopes sufficient, the account is just not active.
func (g *Guard) denyInactive(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeDetail(w, http.StatusUnauthorized,
		newDetail(ErrorTypeUnauthorized, msgCredentials))
}

func (g *Guard) denyScopes(w http.ResponseWriter, scopes []string) {
	w.Header().Set("WWW-Authenticate", challenge(scopes))
	writeDetail(w, http.StatusUnauthorized,
		newDetail(ErrorTypeUnauthorized, "insufficient permissions"))
}

// challenge names the required scope set when one exists.
func challenge(scopes []string) string {
	if len(scopes) == 0 {
		return "Bearer"
	}
	return fmt.Sprintf("Bearer scope=%q", strings.Join(scopes, " "))
}

func hasScope(granted []string, scope string) bool {
	for _, s := range granted {
		if s == scope {
			return true
		}
	}
	return false
}
