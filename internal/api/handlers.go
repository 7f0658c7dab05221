package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"coophours/internal/domain"
	"coophours/internal/export"
	"coophours/internal/metrics"
	"coophours/internal/schedule"
	"coophours/internal/service"
)

type registerRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := s.users.Register(r.Context(), req.Username, req.Password, req.FirstName, req.LastName, req.Email)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sess, err := s.sessions.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":    sess.Token,
		"username": sess.Username,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(SessionTokenHeader)
	if err := s.sessions.Logout(r.Context(), token); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListEquipment(w http.ResponseWriter, r *http.Request) {
	if _, err := s.authorize(r); err != nil {
		s.writeDomainError(w, err)
		return
	}

	equipment, err := s.reservations.ListEquipment(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"equipment": equipment})
}

// handleListReservations is the manager view: the full ledger with member
// names plus per-member totals. Members who are not the equipment's manager
// get 403.
func (s *Server) handleListReservations(w http.ResponseWriter, r *http.Request) {
	sess, err := s.authorize(r)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	equipmentID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid equipment id")
		return
	}

	equipment, err := s.reservations.GetEquipment(r.Context(), equipmentID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if !s.sessions.IsEquipmentManager(sess, equipment) {
		s.writeDomainError(w, domain.ErrForbidden)
		return
	}

	list, err := s.reservations.ListReservationsWithOwners(r.Context(), equipmentID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"reservations": list,
		"totals":       service.AggregateHoursByOwner(list),
	})
}

type createReservationRequest struct {
	StartHour float64 `json:"start_hour"`
	EndHour   float64 `json:"end_hour"`
	Comment   string  `json:"comment"`
}

func (s *Server) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	sess, err := s.authorize(r)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	equipmentID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid equipment id")
		return
	}

	var req createReservationRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	interval := schedule.Interval{Start: req.StartHour, End: req.EndHour}
	reservation, err := s.reservations.CreateReservation(r.Context(), equipmentID, interval, sess.Username, req.Comment)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	metrics.IncReservationCreated()
	writeJSON(w, http.StatusCreated, reservation)
}

func (s *Server) handleSuggestedStart(w http.ResponseWriter, r *http.Request) {
	if _, err := s.authorize(r); err != nil {
		s.writeDomainError(w, err)
		return
	}

	equipmentID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid equipment id")
		return
	}

	start, err := s.reservations.SuggestDefaultStart(r.Context(), equipmentID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"suggested_start": start})
}

// handleExport streams the equipment ledger as an xlsx attachment. The
// workbook is always built from a fresh server-side fetch.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, err := s.authorize(r)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	equipmentID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid equipment id")
		return
	}

	equipment, err := s.reservations.GetEquipment(r.Context(), equipmentID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if !s.sessions.IsEquipmentManager(sess, equipment) {
		s.writeDomainError(w, domain.ErrForbidden)
		return
	}

	fileName := export.FileName(equipment, time.Now())
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))

	if err := s.exporter.Write(r.Context(), equipmentID, w); err != nil {
		s.logger.Error().Err(err).Int64("equipment_id", equipmentID).Msg("failed to stream export")
		return
	}
	metrics.IncExportGenerated()

	// Queue an archival snapshot alongside the download.
	if s.snapshots != nil {
		if _, err := s.snapshots.Enqueue(r.Context(), equipmentID, sess.Username); err != nil {
			s.logger.Warn().Err(err).Int64("equipment_id", equipmentID).Msg("failed to queue export snapshot")
		}
	}
}

func decodeBody(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id")
	}
	return id, nil
}
