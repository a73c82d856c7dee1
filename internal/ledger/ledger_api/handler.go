package ledger_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"ms-gymclass/internal/auth"
	"ms-gymclass/internal/ledger"
	"ms-gymclass/internal/logger"
	"ms-gymclass/internal/models"
	"ms-gymclass/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service *ledger.LedgerService
	Logger  *logger.Logger
}

func NewHandler(service *ledger.LedgerService, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

// RegisterRoutes registers the credit and catalog routes on a chi router.
// Granting is the manual payment-approval path and stays admin-only; the
// approved-payments Kafka consumer feeds the same service call.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/packages", h.ListPackages)
	r.With(auth.RequireRoles(models.RoleAdmin)).
		Post("/packages/{packageId}/grant", h.GrantPackage)
	r.Get("/credits", h.GetCredits)
}

func (h *Handler) ListPackages(w http.ResponseWriter, r *http.Request) {
	pkgs, err := h.Service.ListPackages()
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListPackages: %v", err))
		utils.WriteDomainError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("packages retrieved", pkgs))
}

func (h *Handler) GrantPackage(w http.ResponseWriter, r *http.Request) {
	packageID := chi.URLParam(r, "packageId")

	var req models.GrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("GrantPackage: failed to decode request body: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", "invalid_request"))
		return
	}
	if req.MemberID == "" {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("member_id is required", "invalid_request"))
		return
	}
	h.Logger.Info("API", fmt.Sprintf("GrantPackage: package=%s member=%s", packageID, req.MemberID))

	mp, err := h.Service.GrantPackage(r.Context(), req.MemberID, packageID, req.PaymentRef)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GrantPackage: %v", err))
		utils.WriteDomainError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("package granted", mp))
}

func (h *Handler) GetCredits(w http.ResponseWriter, r *http.Request) {
	memberID := auth.MemberID(r.Context())

	balance, err := h.Service.Balance(memberID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetCredits: %v", err))
		utils.WriteDomainError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("credits retrieved", balance))
}
