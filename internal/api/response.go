package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"hotelbooking/internal/domain"
)

const (
	codeNotFound         = "not_found"
	codeInvalidState     = "invalid_state"
	codeValidation       = "validation_error"
	codeBadRequest       = "bad_request"
	codeInternal         = "internal_error"
	codeRateLimited      = "rate_limited"
	codeMethodNotAllowed = "method_not_allowed"
	codeUnavailable      = "unavailable"
)

const (
	msgRoomNotFound     = "Room not found"
	msgRoomNotAvailable = "Room is not available"
	msgInternal         = "internal error"
)

type errorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, errorResponse{Message: message, Code: code})
}

// writeDomainError maps the error taxonomy onto status codes. Store failures
// never leak their detail to the client.
func writeDomainError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, msgRoomNotFound)
	case errors.Is(err, domain.ErrInvalidState):
		writeError(w, http.StatusBadRequest, codeInvalidState, msgRoomNotAvailable)
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, codeValidation, verr.Error())
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternal, msgInternal)
	}
}
