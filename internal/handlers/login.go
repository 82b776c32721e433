package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/resourcehub/apiserver/internal/auth"
	"go.uber.org/zap"
)

// LoginHandler issues access tokens for verified credentials.
type LoginHandler struct {
	authenticator *auth.Authenticator
	codec         *auth.Codec
	logger        *zap.Logger
}

func NewLoginHandler(authenticator *auth.Authenticator, codec *auth.Codec, logger *zap.Logger) *LoginHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoginHandler{
		authenticator: authenticator,
		codec:         codec,
		logger:        logger,
	}
}

// LoginRouter registers login routes on the given router.
func LoginRouter(r chi.Router, authenticator *auth.Authenticator, codec *auth.Codec, logger *zap.Logger) {
	handler := NewLoginHandler(authenticator, codec, logger)

	r.Post("/token", handler.Token)
}

// TokenResponse is the payload returned on successful login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Token authenticates form credentials and returns a bearer token whose
// scopes are the requested scopes intersected with the user's stored
// scopes (all requested scopes for a superuser). Unknown user and wrong
// password produce the same denial.
func (h *LoginHandler) Token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusBadRequest,
			newDetail(ErrorTypeInvalidRequest, "invalid form body"))
		return
	}

	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	requested := strings.Fields(r.PostFormValue("scope"))

	user, err := h.authenticator.Authenticate(r.Context(), username, password)
	if err != nil {
		h.logger.Error("credential lookup failed", zap.Error(err))
		writeDetail(w, http.StatusInternalServerError,
			newDetail(ErrorTypeDatabase, msgCredentials))
		return
	}
	if user == nil {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeDetail(w, http.StatusUnauthorized,
			newDetail(ErrorTypeUnauthorized, msgCredentials))
		return
	}

	granted := auth.GrantScopes(*user, requested)
	token, err := h.codec.IssueDefault(user.ID, granted)
	if err != nil {
		h.logger.Error("token signing failed", zap.Error(err))
		writeDetail(w, http.StatusInternalServerError,
			newDetail(ErrorTypeDatabase, "unable to issue token"))
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
	})
}
