package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/ragdesk/internal/apperr"
)

const (
	CodeDatasetInvalid = "DATASET_INVALID"
	CodeNotFound       = "NOT_FOUND"
	CodePrecondition   = "PRECONDITION_FAILED"
	CodeBadRequest     = "BAD_REQUEST"
	CodeUnrecoverable  = "UPSTREAM_UNRECOVERABLE"
	CodeInternal       = "INTERNAL"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Issues  any    `json:"issues,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError maps service errors onto status codes and error codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *apperr.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{Code: CodeDatasetInvalid, Message: verr.Message, Issues: verr.Rules})
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Code: CodeNotFound, Message: err.Error()})
	case errors.Is(err, apperr.ErrPrecondition):
		writeJSON(w, http.StatusPreconditionFailed, errorBody{Code: CodePrecondition, Message: err.Error()})
	case errors.Is(err, apperr.ErrBadRequest):
		writeJSON(w, http.StatusBadRequest, errorBody{Code: CodeBadRequest, Message: err.Error()})
	case errors.Is(err, apperr.ErrUnrecoverable):
		slog.Error("unrecoverable backend failure", "path", r.URL.Path, "request_id", chimiddleware.GetReqID(r.Context()), "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Code: CodeUnrecoverable, Message: err.Error()})
	default:
		slog.Error("request failed", "path", r.URL.Path, "request_id", chimiddleware.GetReqID(r.Context()), "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Code: CodeInternal, Message: "internal server error"})
	}
}

func decodeJSON(r *http.Request, dest any) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return fmt.Errorf("invalid request body: %v: %w", err, apperr.ErrBadRequest)
	}
	return nil
}
