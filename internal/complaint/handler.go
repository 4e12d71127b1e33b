package complaint

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"complaint-service/internal/account"
	"complaint-service/internal/auth"
	"complaint-service/internal/httputil"
	"complaint-service/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type Handler struct {
	service     *Service
	accounts    *account.Repository
	attachments *AttachmentStore
	maxUpload   int64
	validate    *validator.Validate
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

func NewHandler(
	service *Service,
	accounts *account.Repository,
	attachments *AttachmentStore,
	maxUpload int64,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Handler {
	return &Handler{
		service:     service,
		accounts:    accounts,
		attachments: attachments,
		maxUpload:   maxUpload,
		validate:    validator.New(),
		logger:      logger,
		metrics:     m,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/dashboard", h.Dashboard)
	router.Get("/complaints", h.MyComplaints)
	router.Post("/complaints", h.SubmitNonAnonymous)
	router.Post("/complaints/anonymous", h.SubmitAnonymous)
	router.Get("/complaints/{id}", h.Detail)
	router.Put("/complaints/{id}/status", h.UpdateStatus)
	router.Get("/admin/complaints", h.AdminList)
}

// identity re-derives the caller's account and profile on every request;
// role never comes from the session token.
func (h *Handler) identity(w http.ResponseWriter, r *http.Request) (account.Identity, bool) {
	accountID, ok := auth.GetAccountID(r.Context())
	if !ok {
		httputil.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return account.Identity{}, false
	}
	caller, err := h.accounts.GetIdentity(r.Context(), accountID)
	if err != nil {
		h.logger.Error("failed to load caller identity", "error", err)
		httputil.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return account.Identity{}, false
	}
	return caller, true
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.identity(w, r)
	if !ok {
		return
	}
	if caller.IsAdmin() {
		// Admins land on the triage dashboard instead.
		http.Redirect(w, r, "/api/admin/complaints", http.StatusSeeOther)
		return
	}

	data, err := h.service.Dashboard(r.Context(), caller)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, data)
}

func (h *Handler) MyComplaints(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.identity(w, r)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	result, err := h.service.MyComplaints(r.Context(), caller, page)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.metrics.RecordComplaintsListViewed(r.Context())
	httputil.RespondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) SubmitNonAnonymous(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.identity(w, r)
	if !ok {
		return
	}

	req, attachment, ok := h.parseSubmission(w, r)
	if !ok {
		return
	}
	if req.Category == "" {
		httputil.RespondWithError(w, http.StatusBadRequest, "category is required")
		return
	}

	c, err := h.service.SubmitNonAnonymous(r.Context(), caller, req, attachment)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.metrics.RecordComplaintSubmitted(r.Context())
	httputil.RespondWithJSON(w, http.StatusCreated, c)
}

func (h *Handler) SubmitAnonymous(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.identity(w, r)
	if !ok {
		return
	}

	req, attachment, ok := h.parseSubmission(w, r)
	if !ok {
		return
	}

	c, err := h.service.SubmitAnonymous(r.Context(), caller, req, attachment)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.metrics.RecordComplaintSubmitted(r.Context())
	httputil.RespondWithJSON(w, http.StatusCreated, c)
}

func (h *Handler) Detail(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.identity(w, r)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid complaint ID")
		return
	}

	c, err := h.service.Detail(r.Context(), caller, id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, c)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.identity(w, r)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid complaint ID")
		return
	}

	var req StatusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := h.service.UpdateStatus(r.Context(), caller, id, req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, c)
}

func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.identity(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	f := Filter{
		Type:       query.Get("type"),
		Category:   query.Get("category"),
		Status:     query.Get("status"),
		AssignedTo: query.Get("assigned_to"),
		Search:     query.Get("search"),
		Page:       page,
	}

	data, err := h.service.AdminList(r.Context(), caller, f)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.metrics.RecordComplaintsListViewed(r.Context())
	httputil.RespondWithJSON(w, http.StatusOK, data)
}

// parseSubmission accepts either a JSON body or a multipart form with an
// optional attachment. On failure it has already written the response.
func (h *Handler) parseSubmission(w http.ResponseWriter, r *http.Request) (SubmitRequest, string, bool) {
	var req SubmitRequest
	var attachment string

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(h.maxUpload); err != nil {
			httputil.RespondWithError(w, http.StatusBadRequest, "invalid multipart form")
			return req, "", false
		}
		req.Title = r.FormValue("title")
		req.Description = r.FormValue("description")
		req.Category = r.FormValue("category")

		file, header, err := r.FormFile("attachment")
		if err == nil {
			defer file.Close()
			ref, err := h.attachments.Save(header.Filename, file)
			if err != nil {
				if errors.Is(err, ErrAttachmentType) {
					httputil.RespondWithError(w, http.StatusBadRequest, "attachment type not allowed (pdf, doc, docx, jpg, jpeg, png)")
					return req, "", false
				}
				h.logger.Error("failed to store attachment", "error", err)
				httputil.RespondWithError(w, http.StatusInternalServerError, "failed to store attachment")
				return req, "", false
			}
			attachment = ref
		}
	} else {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.RespondWithError(w, http.StatusBadRequest, "invalid request body")
			return req, "", false
		}
	}

	if err := h.validate.Struct(req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, err.Error())
		return req, "", false
	}
	return req, attachment, true
}

func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrComplaintNotFound):
		httputil.RespondWithError(w, http.StatusNotFound, "Complaint not found")
	case errors.Is(err, ErrNotPermitted):
		httputil.RespondWithError(w, http.StatusForbidden, "You do not have permission to view this complaint.")
	case errors.Is(err, ErrAdminOnly):
		httputil.RespondWithError(w, http.StatusForbidden, "Administrator access required.")
	case errors.Is(err, ErrStudentOnly):
		httputil.RespondWithError(w, http.StatusForbidden, "Complaints are submitted by students.")
	default:
		h.logger.Error("internal error", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}
