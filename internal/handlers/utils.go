package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/resourcehub/apiserver/types"
)

type contextKey string

const contextPrincipalKey contextKey = "principal"

// PrincipalFromContext returns the authenticated user injected by the
// guard.
func PrincipalFromContext(ctx context.Context) (types.User, error) {
	user, ok := ctx.Value(contextPrincipalKey).(types.User)
	if !ok {
		return types.User{}, errors.New("missing principal")
	}
	return user, nil
}

func withPrincipal(ctx context.Context, user types.User) context.Context {
	return context.WithValue(ctx, contextPrincipalKey, user)
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// bearerToken extracts the token from an Authorization: Bearer header.
func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}

// parseListQuery reads the skip/size query parameters. skip must be
// non-negative (default 0); size must be in (0, 10000] (default 100).
func parseListQuery(r *http.Request) (skip, size int, err error) {
	size = 100

	if raw := strings.TrimSpace(r.URL.Query().Get("skip")); raw != "" {
		skip, err = strconv.Atoi(raw)
		if err != nil || skip < 0 {
			return 0, 0, errors.New("invalid skip")
		}
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("size")); raw != "" {
		size, err = strconv.Atoi(raw)
		if err != nil || size < 1 || size > 10000 {
			return 0, 0, errors.New("invalid size")
		}
	}

	return skip, size, nil
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
