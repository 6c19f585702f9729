package handlers

import (
	"context"
	"driver-schedule-service/internal/api/dto"
	"driver-schedule-service/internal/domain"
	"driver-schedule-service/internal/platform/obs"
	"driver-schedule-service/internal/ports"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// Error kinds reported for failures outside the planner's own kinds.
const (
	kindNotFound   = "not_found"
	kindUpstream   = "upstream"
	kindTimeout    = "timeout"
	kindBadRequest = "bad_request"
)

type responder struct {
	logger *zap.Logger
}

func (h responder) log() *zap.Logger {
	if h.logger == nil {
		return zap.NewNop()
	}
	return h.logger
}

func (h responder) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log().Warn("encode failed",
			zap.String("req_id", obs.RequestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
}

func (h responder) writeError(w http.ResponseWriter, r *http.Request, status int, kind, msg string) {
	h.writeJSON(w, r, status, dto.ErrorResponse{Error: msg, Kind: kind})
}

// writeServiceError maps an error from the service layer to a status code.
// Caller mistakes carry their message; internal failures do not.
func (h responder) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case domain.IsCallerError(err):
		h.writeError(w, r, http.StatusBadRequest, domain.ErrorKind(err), err.Error())
	case errors.Is(err, ports.ErrNotFound):
		h.writeError(w, r, http.StatusNotFound, kindNotFound, "schedule not found")
	case errors.Is(err, ports.ErrUpstream):
		h.log().Warn("routing provider failed", zap.String("req_id", obs.RequestID(r.Context())), zap.Error(err))
		h.writeError(w, r, http.StatusBadGateway, kindUpstream, "routing provider unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		h.writeError(w, r, http.StatusGatewayTimeout, kindTimeout, "request timed out")
	default:
		h.log().Error("request failed", zap.String("req_id", obs.RequestID(r.Context())), zap.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, domain.KindInternal, "internal server error")
	}
}

// decodeJSON reads exactly one JSON object with no unknown fields. It writes
// the 400 itself and reports false when the body is unusable.
func (h responder) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		h.writeError(w, r, http.StatusBadRequest, kindBadRequest, "invalid json body")
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		h.writeError(w, r, http.StatusBadRequest, kindBadRequest, "body must contain only one JSON object")
		return false
	}
	return true
}
