package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Dosada05/tournament-ops/models"
	"github.com/Dosada05/tournament-ops/services"
)

type PlayerHandler struct {
	tournamentService *services.TournamentService
	errorResponder
}

func NewPlayerHandler(ts *services.TournamentService, logger *slog.Logger) *PlayerHandler {
	return &PlayerHandler{
		tournamentService: ts,
		errorResponder:    newErrorResponder(logger),
	}
}

type registerPlayerInput struct {
	Name             string `json:"name"`
	RegistrationType string `json:"registration_type"`
}

// ListHandler handles GET /players
func (h *PlayerHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK, jsonResponse{"players": h.tournamentService.Players()}, nil)
}

// GetHandler handles GET /players/{playerID}
func (h *PlayerHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "playerID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	player, err := h.tournamentService.Player(id)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, jsonResponse{"player": player}, nil)
}

// HistoryHandler handles GET /players/{playerID}/history
func (h *PlayerHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "playerID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	history, err := h.tournamentService.PlayerHistory(id)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	if history == nil {
		history = []models.MatchResult{}
	}
	h.respond(w, r, http.StatusOK, jsonResponse{"player_id": id, "history": history}, nil)
}

// RegisterHandler handles POST /players
func (h *PlayerHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var input registerPlayerInput
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	if strings.TrimSpace(input.Name) == "" {
		h.badRequestResponse(w, r, errors.New("name is required"))
		return
	}

	player, err := h.tournamentService.RegisterPlayer(r.Context(), input.Name, models.RegistrationType(input.RegistrationType))
	h.respond(w, r, http.StatusCreated, jsonResponse{"player": player}, err)
}

// CheckInHandler handles POST /players/{playerID}/check-in
func (h *PlayerHandler) CheckInHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "playerID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	player, err := h.tournamentService.CheckIn(r.Context(), id)
	h.respond(w, r, http.StatusOK, jsonResponse{"player": player}, err)
}

// WithdrawHandler handles POST /players/{playerID}/withdraw
func (h *PlayerHandler) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "playerID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	withdrawal, err := h.tournamentService.Withdraw(r.Context(), id)
	h.respond(w, r, http.StatusOK, jsonResponse{"withdrawal": withdrawal}, err)
}

// ReplaceHandler handles POST /players/{playerID}/replace
func (h *PlayerHandler) ReplaceHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "playerID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	var input registerPlayerInput
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	if strings.TrimSpace(input.Name) == "" {
		h.badRequestResponse(w, r, errors.New("name is required"))
		return
	}

	player, err := h.tournamentService.Replace(r.Context(), id, input.Name, models.RegistrationType(input.RegistrationType))
	h.respond(w, r, http.StatusCreated, jsonResponse{"player": player}, err)
}

// WithdrawnHandler handles GET /players/withdrawn
func (h *PlayerHandler) WithdrawnHandler(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK, jsonResponse{"withdrawn": h.tournamentService.Withdrawals()}, nil)
}
