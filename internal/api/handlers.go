package api

import (
	"bytes"
	"encoding/json"
	"net/http"

	"hotelbooking/internal/domain"
	"hotelbooking/internal/export"
	"hotelbooking/internal/models"

	"github.com/julienschmidt/httprouter"
)

const maxBodyBytes = 1 << 20

type roomResponse struct {
	Message string       `json:"message"`
	Room    *models.Room `json:"room"`
}

type paymentResponse struct {
	Message string          `json:"message"`
	Payment *models.Payment `json:"payment"`
}

type payRequest struct {
	Amount *float64 `json:"amount"`
}

func (s *HTTPServer) handleListRooms(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	rooms, err := s.service.GetRooms(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if rooms == nil {
		rooms = []models.Room{}
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (s *HTTPServer) handleGetRoom(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	room, err := s.service.GetRoom(r.Context(), ps.ByName("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (s *HTTPServer) handleCreateRoom(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var input domain.RoomInput
	if !decodeBody(w, r, &input) {
		return
	}

	room, err := s.service.CreateRoom(r.Context(), input)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, roomResponse{Message: "Room created successfully", Room: room})
}

func (s *HTTPServer) handleUpdateRoom(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var input domain.RoomInput
	if !decodeBody(w, r, &input) {
		return
	}

	room, err := s.service.UpdateRoom(r.Context(), ps.ByName("id"), input)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roomResponse{Message: "Room updated successfully", Room: room})
}

func (s *HTTPServer) handleReserveRoom(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	room, err := s.service.ReserveRoom(r.Context(), ps.ByName("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roomResponse{Message: "Room reserved successfully", Room: room})
}

func (s *HTTPServer) handlePayForRoom(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var body payRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Amount == nil {
		writeDomainError(w, &domain.ValidationError{Field: "amount", Reason: "is required"})
		return
	}

	payment, err := s.service.PayForRoom(r.Context(), ps.ByName("id"), *body.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentResponse{Message: "Payment successful", Payment: payment})
}

func (s *HTTPServer) handleListPayments(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	payments, err := s.service.ListPayments(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if payments == nil {
		payments = []models.Payment{}
	}
	writeJSON(w, http.StatusOK, payments)
}

func (s *HTTPServer) handleExportPayments(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	payments, err := s.service.ListPayments(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	rooms, err := s.service.GetRooms(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteLedger(&buf, payments, rooms); err != nil {
		s.logger.Error().Err(err).Msg("failed to render payments workbook")
		writeError(w, http.StatusInternalServerError, codeInternal, msgInternal)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="payments.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := s.service.Ready(r.Context()); err != nil {
		s.logger.Warn().Err(err).Msg("readiness check failed")
		writeError(w, http.StatusServiceUnavailable, codeUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// decodeBody reads a JSON body and reports malformed input itself.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid JSON body")
		return false
	}
	return true
}
