package booking_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"ms-gymclass/internal/auth"
	"ms-gymclass/internal/booking"
	"ms-gymclass/internal/logger"
	"ms-gymclass/internal/models"
	"ms-gymclass/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service *booking.BookingService
	Logger  *logger.Logger
}

func NewHandler(service *booking.BookingService, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

// RegisterRoutes registers the booking routes on a chi router. All of them
// act on behalf of the authenticated member.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/bookings", func(r chi.Router) {
		r.Post("/", h.CreateBooking)
		r.Get("/", h.ListBookings)
		r.Get("/{bookingId}", h.GetBooking)
		r.Delete("/{bookingId}", h.CancelBooking)
	})
}

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	memberID := auth.MemberID(r.Context())

	var req models.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateBooking: failed to decode request body: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", "invalid_request"))
		return
	}
	h.Logger.Info("API", fmt.Sprintf("CreateBooking: member=%s class=%s", memberID, req.ClassInstanceID))

	booked, err := h.Service.CreateBooking(r.Context(), memberID, req)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateBooking: %v", err))
		utils.WriteDomainError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("booking confirmed", booked))
}

func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	memberID := auth.MemberID(r.Context())

	bookings, err := h.Service.ListMemberBookings(memberID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListBookings: %v", err))
		utils.WriteDomainError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("bookings retrieved", bookings))
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	memberID := auth.MemberID(r.Context())
	bookingID := chi.URLParam(r, "bookingId")

	booked, err := h.Service.GetBooking(bookingID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetBooking: %v", err))
		utils.WriteDomainError(w, err)
		return
	}
	// A member only sees their own bookings.
	if booked.MemberID != memberID && auth.Role(r.Context()) != models.RoleAdmin {
		utils.WriteDomainError(w, models.ErrBookingNotFound)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("booking retrieved", booked))
}

func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	memberID := auth.MemberID(r.Context())
	bookingID := chi.URLParam(r, "bookingId")
	h.Logger.Info("API", fmt.Sprintf("CancelBooking: member=%s booking=%s", memberID, bookingID))

	cancelled, err := h.Service.CancelBooking(r.Context(), memberID, bookingID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CancelBooking: %v", err))
		utils.WriteDomainError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("booking cancelled", cancelled))
}
