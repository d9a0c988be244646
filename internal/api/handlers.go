package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicdesk/appointment-queue/internal/queue"
)

func bookAppointmentHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, role, ok := Identity(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing_identity", "no authenticated user")
			return
		}
		if role != "patient" {
			writeError(w, http.StatusForbidden, "patients_only", "only patients can book appointments")
			return
		}

		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		if req.DoctorID == "" {
			writeError(w, http.StatusBadRequest, "missing_doctor_id", "doctor_id is required")
			return
		}
		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		detail, stats, err := svc.BookAppointment(r.Context(), doctorID, userID, req.ScheduledAt)
		if err != nil {
			handleBookError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, BookAppointmentResponse{
			Appointment: toAppointmentResponse(detail),
			Stats:       toStatsResponse(stats),
		})
	}
}

func completeAppointmentHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _, ok := Identity(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing_identity", "no authenticated user")
			return
		}

		idStr := chi.URLParam(r, "id")
		id, err := uuid.Parse(idStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		renumbered, stats, err := svc.CompleteAppointment(r.Context(), id, userID)
		if err != nil {
			handleCompleteError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, CompleteAppointmentResponse{
			Renumbered: renumberedStrings(renumbered),
			Stats:      toStatsResponse(stats),
		})
	}
}

func listAppointmentsHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, role, ok := Identity(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing_identity", "no authenticated user")
			return
		}

		details, err := svc.ListForUser(r.Context(), userID, role)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]AppointmentResponse, 0, len(details))
		for i := range details {
			resp = append(resp, toAppointmentResponse(&details[i]))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func doctorStatsHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, role, ok := Identity(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing_identity", "no authenticated user")
			return
		}
		if role != "doctor" {
			writeError(w, http.StatusForbidden, "doctors_only", "stats are only available to doctors")
			return
		}

		stats, err := svc.Stats(r.Context(), userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, toStatsResponse(stats))
	}
}

func handleBookError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, queue.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, queue.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, queue.ErrInvalidSchedule):
		writeError(w, http.StatusBadRequest, "invalid_scheduled_at", err.Error())
	case errors.Is(err, queue.ErrQueueBusy):
		writeError(w, http.StatusConflict, "queue_busy", "the doctor's queue is being updated, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleCompleteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, queue.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, queue.ErrNotQueueOwner):
		writeError(w, http.StatusForbidden, "not_authorized", err.Error())
	case errors.Is(err, queue.ErrAlreadyCompleted):
		writeError(w, http.StatusConflict, "already_completed", err.Error())
	case errors.Is(err, queue.ErrQueueBusy):
		writeError(w, http.StatusConflict, "queue_busy", "the doctor's queue is being updated, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
