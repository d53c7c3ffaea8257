package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Dosada05/tournament-ops/brackets"
	"github.com/Dosada05/tournament-ops/services"
)

type jsonResponse map[string]interface{}

func readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	maxBytes := 1_048_576
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("body contains badly-formed JSON")
		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return fmt.Errorf("body contains incorrect JSON type for field %q", unmarshalTypeError.Field)
			}
			return fmt.Errorf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)
		case errors.Is(err, io.EOF):
			return errors.New("body must not be empty")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			return fmt.Errorf("body contains unknown key %s", fieldName)
		case errors.As(err, &maxBytesError):
			return fmt.Errorf("body must not be larger than %d bytes", maxBytes)
		default:
			return err
		}
	}

	err = dec.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}

	return nil
}

// readOptionalJSON is readJSON for endpoints whose body may be omitted.
func readOptionalJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if r.ContentLength == 0 {
		return nil
	}
	return readJSON(w, r, dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}, headers http.Header) error {
	js, err := json.MarshalIndent(data, "", "\t")
	if err != nil {
		return err
	}
	js = append(js, '\n')

	for key, value := range headers {
		w.Header()[key] = value
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(js)
	return err
}

func getIDFromURL(r *http.Request, param string) (int, error) {
	raw := chi.URLParam(r, param)
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s parameter %q", param, raw)
	}
	return id, nil
}

// errorResponder writes error envelopes and logs server-side failures.
type errorResponder struct {
	logger *slog.Logger
}

func newErrorResponder(logger *slog.Logger) errorResponder {
	if logger == nil {
		logger = slog.Default()
	}
	return errorResponder{logger: logger}
}

func (e errorResponder) errorResponse(w http.ResponseWriter, r *http.Request, status int, message interface{}) {
	if err := writeJSON(w, status, jsonResponse{"error": message}, nil); err != nil {
		e.logger.Error("failed to write error response", slog.String("path", r.URL.Path), slog.Any("error", err))
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (e errorResponder) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	e.logger.Error("internal server error",
		slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.Any("error", err))
	message := "the server encountered a problem and could not process your request"
	e.errorResponse(w, r, http.StatusInternalServerError, message)
}

func (e errorResponder) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	e.errorResponse(w, r, http.StatusBadRequest, err.Error())
}

func (e errorResponder) notFoundResponse(w http.ResponseWriter, r *http.Request) {
	e.errorResponse(w, r, http.StatusNotFound, "the requested resource could not be found")
}

// mapServiceErrorToHTTP turns service and bracket sentinels into HTTP responses.
func (e errorResponder) mapServiceErrorToHTTP(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound),
		errors.Is(err, services.ErrPlayerNotFound),
		errors.Is(err, services.ErrWithdrawalNotFound),
		errors.Is(err, brackets.ErrBracketMatchNotFound):
		e.notFoundResponse(w, r)

	case errors.Is(err, services.ErrGroupStageStarted),
		errors.Is(err, services.ErrKnockoutStarted),
		errors.Is(err, services.ErrKnockoutNotGenerated),
		errors.Is(err, services.ErrCheckInClosed),
		errors.Is(err, services.ErrAlreadyCheckedIn),
		errors.Is(err, services.ErrCheckInNotAllowed),
		errors.Is(err, services.ErrPlayerHasResults),
		errors.Is(err, services.ErrPlayerIDTaken),
		errors.Is(err, brackets.ErrBracketAlreadyDecided),
		errors.Is(err, brackets.ErrBracketMatchNotReady):
		e.errorResponse(w, r, http.StatusConflict, err.Error())

	case errors.Is(err, services.ErrValidationFailed),
		errors.Is(err, services.ErrPlayerNameRequired),
		errors.Is(err, services.ErrPlayerNameInvalid),
		errors.Is(err, services.ErrInvalidGroupCount),
		errors.Is(err, services.ErrNotEnoughPlayers),
		errors.Is(err, brackets.ErrNotEnoughQualifiers),
		errors.Is(err, brackets.ErrBracketInvalidWinner):
		e.errorResponse(w, r, http.StatusUnprocessableEntity, err.Error())

	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrAuthenticationFailed):
		e.errorResponse(w, r, http.StatusUnauthorized, err.Error())

	case errors.Is(err, services.ErrOrganizerAuthMissing):
		e.errorResponse(w, r, http.StatusServiceUnavailable, err.Error())

	default:
		e.serverErrorResponse(w, r, err)
	}
}
