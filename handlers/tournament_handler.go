package handlers

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Dosada05/tournament-ops/services"
	"github.com/Dosada05/tournament-ops/storage"
)

type TournamentHandler struct {
	tournamentService *services.TournamentService
	errorResponder
}

func NewTournamentHandler(ts *services.TournamentService, logger *slog.Logger) *TournamentHandler {
	return &TournamentHandler{
		tournamentService: ts,
		errorResponder:    newErrorResponder(logger),
	}
}

// respond writes data unless err is a real failure. An incomplete publication is only
// logged: the change itself was applied.
func (e errorResponder) respond(w http.ResponseWriter, r *http.Request, status int, data interface{}, err error) {
	if err != nil {
		if !errors.Is(err, services.ErrPublishIncomplete) {
			e.mapServiceErrorToHTTP(w, r, err)
			return
		}
		e.logger.Warn("change applied but not fully published", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	if err := writeJSON(w, status, data, nil); err != nil {
		e.serverErrorResponse(w, r, err)
	}
}

// StandingsHandler handles GET /standings
func (h *TournamentHandler) StandingsHandler(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK, jsonResponse{"standings": h.tournamentService.Standings()}, nil)
}

// ScheduleHandler handles GET /schedule
func (h *TournamentHandler) ScheduleHandler(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK, jsonResponse{"schedule": h.tournamentService.Schedule()}, nil)
}

// BracketHandler handles GET /bracket
func (h *TournamentHandler) BracketHandler(w http.ResponseWriter, r *http.Request) {
	overview := h.tournamentService.Overview()
	h.respond(w, r, http.StatusOK, jsonResponse{"bracket": overview.Bracket, "champion": overview.Champion}, nil)
}

// OverviewHandler handles GET /overview
func (h *TournamentHandler) OverviewHandler(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK, jsonResponse{"tournament": h.tournamentService.Overview()}, nil)
}

// ExportHandler handles GET /export.xlsx
func (h *TournamentHandler) ExportHandler(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.tournamentService.ExportXLSX(&buf); err != nil {
		h.serverErrorResponse(w, r, err)
		return
	}
	w.Header().Set("Content-Type", storage.ContentTypeXLSX)
	w.Header().Set("Content-Disposition", `attachment; filename="standings.xlsx"`)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("export download interrupted", slog.Any("error", err))
	}
}

// GenerateGroupsHandler handles POST /groups/generate
func (h *TournamentHandler) GenerateGroupsHandler(w http.ResponseWriter, r *http.Request) {
	n, err := h.tournamentService.GenerateGroups(r.Context())
	h.respond(w, r, http.StatusCreated, jsonResponse{
		"matches_generated": n,
		"matches":           h.tournamentService.GroupMatches(),
	}, err)
}

type strategyInput struct {
	Strategy string `json:"strategy"`
}

// SimulateGroupsHandler handles POST /groups/simulate
func (h *TournamentHandler) SimulateGroupsHandler(w http.ResponseWriter, r *http.Request) {
	var input strategyInput
	if err := readOptionalJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	if input.Strategy == "" {
		input.Strategy = "first"
	}
	report, err := h.tournamentService.SimulateGroupStage(r.Context(), input.Strategy)
	h.respond(w, r, http.StatusOK, jsonResponse{"report": report}, err)
}

type generateKnockoutInput struct {
	QualifierCount int `json:"qualifier_count"`
}

// GenerateKnockoutHandler handles POST /knockout/generate
func (h *TournamentHandler) GenerateKnockoutHandler(w http.ResponseWriter, r *http.Request) {
	var input generateKnockoutInput
	if err := readOptionalJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	if input.QualifierCount < 0 {
		h.badRequestResponse(w, r, errors.New("qualifier_count must not be negative"))
		return
	}
	qualifiers, err := h.tournamentService.GenerateKnockout(r.Context(), input.QualifierCount)
	h.respond(w, r, http.StatusCreated, jsonResponse{
		"qualifiers": qualifiers,
		"bracket":    h.tournamentService.Bracket(),
	}, err)
}

// ResolveKnockoutHandler handles POST /knockout/resolve
func (h *TournamentHandler) ResolveKnockoutHandler(w http.ResponseWriter, r *http.Request) {
	var input strategyInput
	if err := readOptionalJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	if input.Strategy == "" {
		input.Strategy = "await"
	}
	champion, err := h.tournamentService.ResolveKnockout(r.Context(), input.Strategy)
	var championID *int
	if champion > 0 {
		championID = &champion
	}
	h.respond(w, r, http.StatusOK, jsonResponse{
		"champion": championID,
		"bracket":  h.tournamentService.Bracket(),
	}, err)
}

// SyncResultsHandler handles POST /results/sync
func (h *TournamentHandler) SyncResultsHandler(w http.ResponseWriter, r *http.Request) {
	report, err := h.tournamentService.SyncResults(r.Context())
	h.respond(w, r, http.StatusOK, jsonResponse{"report": report}, err)
}
