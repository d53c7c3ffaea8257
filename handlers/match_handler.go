package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Dosada05/tournament-ops/models"
	"github.com/Dosada05/tournament-ops/services"
)

type MatchHandler struct {
	tournamentService *services.TournamentService
	errorResponder
}

func NewMatchHandler(ts *services.TournamentService, logger *slog.Logger) *MatchHandler {
	return &MatchHandler{
		tournamentService: ts,
		errorResponder:    newErrorResponder(logger),
	}
}

type reportResultInput struct {
	MatchID  int `json:"match_id"`
	WinnerID int `json:"winner_id"`
	LoserID  int `json:"loser_id"`
}

// GroupMatchesHandler handles GET /matches/group
func (h *MatchHandler) GroupMatchesHandler(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK, jsonResponse{"matches": h.tournamentService.GroupMatches()}, nil)
}

// ReportResultHandler handles POST /results
func (h *MatchHandler) ReportResultHandler(w http.ResponseWriter, r *http.Request) {
	var input reportResultInput
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	if input.MatchID <= 0 || input.WinnerID <= 0 || input.LoserID <= 0 {
		h.badRequestResponse(w, r, errors.New("match_id, winner_id and loser_id must be positive"))
		return
	}

	rec := models.ResultRecord{MatchID: input.MatchID, WinnerID: input.WinnerID, LoserID: input.LoserID}
	status, err := h.tournamentService.ReportResult(r.Context(), rec)
	code := http.StatusOK
	if status == services.IngestApplied {
		code = http.StatusCreated
	}
	h.respond(w, r, code, jsonResponse{"status": status, "result": rec}, err)
}
