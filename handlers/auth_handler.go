package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Dosada05/tournament-ops/services"
)

type AuthHandler struct {
	authService services.AuthService
	errorResponder
}

func NewAuthHandler(authService services.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		errorResponder: newErrorResponder(logger),
	}
}

type tokenInput struct {
	Password string `json:"password"`
}

// TokenHandler handles POST /auth/token and issues an organizer token.
func (h *AuthHandler) TokenHandler(w http.ResponseWriter, r *http.Request) {
	var input tokenInput
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	if input.Password == "" {
		h.badRequestResponse(w, r, errors.New("password is required"))
		return
	}

	token, expiresAt, err := h.authService.IssueOrganizerToken(input.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			h.logger.Warn("organizer login failed", slog.String("remote_addr", r.RemoteAddr))
		}
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	h.respond(w, r, http.StatusOK, jsonResponse{
		"token":      token,
		"token_type": "Bearer",
		"expires_at": expiresAt,
	}, nil)
}
