package schedule_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"ms-gymclass/internal/auth"
	"ms-gymclass/internal/logger"
	"ms-gymclass/internal/models"
	"ms-gymclass/internal/schedule"
	"ms-gymclass/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service *schedule.ScheduleService
	Logger  *logger.Logger
}

func NewHandler(service *schedule.ScheduleService, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

// RegisterRoutes registers the schedule routes on a chi router. Template
// and generator management is admin-only; the class calendar is open to any
// authenticated member.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/schedule", func(r chi.Router) {
		r.Use(auth.RequireRoles(models.RoleAdmin))
		r.Post("/templates", h.CreateTemplate)
		r.Get("/templates", h.ListTemplates)
		r.Patch("/templates/{templateId}/deactivate", h.DeactivateTemplate)
		r.Post("/generate", h.Generate)
		r.Post("/classes/{classId}/cancel", h.CancelClass)
	})
	r.Get("/classes", h.ListClasses)
}

func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req models.TemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateTemplate: failed to decode request body: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", "invalid_request"))
		return
	}

	tpl, err := h.Service.CreateTemplate(req)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateTemplate: %v", err))
		utils.WriteDomainError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("template created", tpl))
}

func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	tpls, err := h.Service.ListTemplates(activeOnly)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListTemplates: %v", err))
		utils.WriteDomainError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("templates retrieved", tpls))
}

func (h *Handler) DeactivateTemplate(w http.ResponseWriter, r *http.Request) {
	templateID := chi.URLParam(r, "templateId")
	h.Logger.Info("API", fmt.Sprintf("DeactivateTemplate: templateId=%s", templateID))

	if err := h.Service.DeactivateTemplate(templateID); err != nil {
		h.Logger.Error("API", fmt.Sprintf("DeactivateTemplate: %v", err))
		utils.WriteDomainError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("template deactivated", nil))
}

func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerationRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.Logger.Error("API", fmt.Sprintf("Generate: failed to decode request body: %v", err))
			utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", "invalid_request"))
			return
		}
	}

	report, err := h.Service.GenerateInstances(req.MonthsAhead)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Generate: %v", err))
		utils.WriteDomainError(w, err)
		return
	}

	h.Logger.Info("API", fmt.Sprintf("Generate: run %s created=%d skipped=%d errors=%d",
		report.RunID, report.Created, report.Skipped, len(report.Errors)))
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("generation complete", report))
}

func (h *Handler) CancelClass(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "classId")
	h.Logger.Info("API", fmt.Sprintf("CancelClass: classId=%s", classID))

	inst, err := h.Service.CancelClass(classID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CancelClass: %v", err))
		utils.WriteDomainError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("class cancelled", inst))
}

func (h *Handler) ListClasses(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")

	classes, err := h.Service.ListClasses(from, to)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListClasses: %v", err))
		utils.WriteDomainError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("classes retrieved", classes))
}
