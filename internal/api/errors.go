package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/courtneys-list/vendors/internal/reconcile"
	"github.com/courtneys-list/vendors/internal/store"
	"github.com/courtneys-list/vendors/internal/survey"
)

var (
	errBadRequest     = errors.New("api: bad request")
	errPlacesDisabled = errors.New("api: places lookup is not configured")
)

type errorBody struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

// statusFor maps an error to its HTTP status and retryability.
func statusFor(err error) (int, bool) {
	switch {
	case reconcile.IsValidation(err), errors.Is(err, survey.ErrInvalid), errors.Is(err, errBadRequest):
		return http.StatusBadRequest, false
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, false
	case errors.Is(err, reconcile.ErrCrossCommunity), errors.Is(err, store.ErrNothingToLink):
		return http.StatusConflict, false
	case errors.Is(err, errPlacesDisabled):
		return http.StatusNotImplemented, false
	case errors.Is(err, context.Canceled):
		return 499, true
	default:
		return http.StatusServiceUnavailable, true
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, retryable := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Retryable: retryable})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return eris.Wrapf(errBadRequest, "api: invalid request body: %v", err)
	}
	return nil
}
