package attendance_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"ms-gymclass/internal/attendance"
	"ms-gymclass/internal/auth"
	"ms-gymclass/internal/logger"
	"ms-gymclass/internal/models"
	"ms-gymclass/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service *attendance.AttendanceService
	Logger  *logger.Logger
}

func NewHandler(service *attendance.AttendanceService, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

// RegisterRoutes registers the attendance routes on a chi router. Both
// endpoints are for staff; ownership of the class is checked in the
// service.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/attendance", func(r chi.Router) {
		r.Use(auth.RequireRoles(models.RoleCoach, models.RoleAdmin))
		r.Post("/checkin", h.Checkin)
		r.Post("/{bookingId}", h.MarkAttendance)
	})
}

func (h *Handler) MarkAttendance(w http.ResponseWriter, r *http.Request) {
	actorID := auth.MemberID(r.Context())
	actorRole := auth.Role(r.Context())
	bookingID := chi.URLParam(r, "bookingId")

	var req models.AttendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("MarkAttendance: failed to decode request body: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", "invalid_request"))
		return
	}
	h.Logger.Info("API", fmt.Sprintf("MarkAttendance: booking=%s status=%s by %s", bookingID, req.Status, actorID))

	booking, err := h.Service.MarkAttendance(actorID, actorRole, bookingID, req.Status)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("MarkAttendance: %v", err))
		utils.WriteDomainError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("attendance marked", booking))
}

func (h *Handler) Checkin(w http.ResponseWriter, r *http.Request) {
	actorID := auth.MemberID(r.Context())
	actorRole := auth.Role(r.Context())

	var req models.CheckinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Checkin: failed to decode request body: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", "invalid_request"))
		return
	}
	if req.EncryptedQR == "" {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("encrypted_qr is required", "invalid_request"))
		return
	}

	booking, err := h.Service.CheckinByPass(actorID, actorRole, req.EncryptedQR)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Checkin: %v", err))
		utils.WriteDomainError(w, err)
		return
	}

	h.Logger.Info("API", fmt.Sprintf("Checkin: booking %s marked attended", booking.ID))
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("checked in", booking))
}
