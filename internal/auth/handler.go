package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"complaint-service/internal/account"
	"complaint-service/internal/httputil"
	"complaint-service/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// User-facing messages, matched to the web app's wording.
const (
	msgMissingIdentifier = "Please enter your email address or username."
	msgMissingCredential = "Please enter your password."
	msgNoSuchAccount     = "No account found with this email address or username. Please check your credentials or create a new account."
	msgInvalidCredential = "Invalid password. Please check your password and try again."
	msgUnverified        = "Please verify your email address before logging in. Check your email for the verification link."
	msgUsernameTaken     = "A user with this username already exists. Please choose a different one."
	msgEmailTaken        = "A user with this email address already exists. Please use a different email or try logging in."
	msgStudentIDTaken    = "A user with this student ID already exists. Please use a different student ID or leave it blank."
	msgCreateFailed      = "An error occurred while creating your account. Please check your information and try again."
	msgInvalidLink       = "Invalid or expired link."
	msgResetEmailMissing = "No account found with this email address."
	msgResetAmbiguous    = "Multiple accounts are associated with this email. Please use your username to reset your password."
)

type Handler struct {
	service  *Service
	validate *validator.Validate
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewHandler(service *Service, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
		metrics:  m,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Post("/auth/register", h.Register)
	router.Post("/auth/login", h.Login)
	router.Post("/auth/logout", h.Logout)
	router.Get("/auth/verify-email/{uid}/{token}", h.VerifyEmail)
	router.Post("/auth/password-reset", h.RequestPasswordReset)
	router.Post("/auth/password-reset/{uid}/{token}", h.ConfirmPasswordReset)
}

// Register creates a new account with a student profile and sends the
// verification mail. It never logs the user in.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode request", "error", err)
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		h.logger.Warn("validation failed", "error", err)
		httputil.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	acct, err := h.service.Register(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrUsernameExists):
			httputil.RespondWithError(w, http.StatusConflict, msgUsernameTaken)
		case errors.Is(err, ErrEmailExists):
			httputil.RespondWithError(w, http.StatusConflict, msgEmailTaken)
		case errors.Is(err, ErrStudentIDExists):
			httputil.RespondWithError(w, http.StatusConflict, msgStudentIDTaken)
		default:
			h.logger.Error("registration failed", "error", err)
			httputil.RespondWithError(w, http.StatusInternalServerError, msgCreateFailed)
		}
		return
	}

	h.metrics.RecordRegistration(r.Context())

	httputil.RespondWithJSON(w, http.StatusCreated, RegisterResponse{
		Username: acct.Username,
		Message:  "Account created! Please check your email to verify your account before logging in.",
	})
}

// Login authenticates by username or email and sets the session cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode request", "error", err)
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	identity, err := h.service.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingIdentifier):
			httputil.RespondWithError(w, http.StatusBadRequest, msgMissingIdentifier)
		case errors.Is(err, ErrMissingCredential):
			httputil.RespondWithError(w, http.StatusBadRequest, msgMissingCredential)
		case errors.Is(err, ErrNoSuchAccount):
			httputil.RespondWithError(w, http.StatusUnauthorized, msgNoSuchAccount)
		case errors.Is(err, ErrInvalidCredential):
			httputil.RespondWithError(w, http.StatusUnauthorized, msgInvalidCredential)
		case errors.Is(err, ErrEmailUnverified):
			httputil.RespondWithError(w, http.StatusForbidden, msgUnverified)
		default:
			h.logger.Error("login failed", "error", err)
			httputil.RespondWithError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	accessToken, err := GenerateAccessToken(identity.Account.ID, identity.Account.Username)
	if err != nil {
		h.logger.Error("failed to generate access token", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	SetAuthCookie(w, accessToken)
	h.metrics.RecordLogin(r.Context())
	h.logger.Info("account logged in", "username", identity.Account.Username, "role", identity.Role())

	httputil.RespondWithJSON(w, http.StatusOK, LoginResponse{
		Role:    identity.Role(),
		Account: identity.Account,
	})
}

// Logout clears the session cookie
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ClearAuthCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// VerifyEmail consumes a verification link
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	tok := chi.URLParam(r, "token")

	if err := h.service.VerifyEmail(r.Context(), uid, tok); err != nil {
		switch {
		case errors.Is(err, ErrInvalidLink):
			httputil.RespondWithError(w, http.StatusBadRequest, msgInvalidLink)
		case errors.Is(err, account.ErrProfileNotFound):
			httputil.RespondWithError(w, http.StatusBadRequest, "Profile not found.")
		default:
			h.logger.Error("email verification failed", "error", err)
			httputil.RespondWithError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, StatusResponse{
		Status: "Your email has been verified successfully! You can now log in.",
	})
}

// RequestPasswordReset sends a reset link to the given email
func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.RequestPasswordReset(r.Context(), req.Email); err != nil {
		switch {
		case errors.Is(err, ErrEmailNotFound):
			httputil.RespondWithError(w, http.StatusNotFound, msgResetEmailMissing)
		case errors.Is(err, ErrEmailAmbiguous):
			httputil.RespondWithError(w, http.StatusConflict, msgResetAmbiguous)
		default:
			h.logger.Error("password reset request failed", "error", err)
			httputil.RespondWithError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, StatusResponse{
		Status: "Password reset link has been sent to your email.",
	})
}

// ConfirmPasswordReset validates a reset link and sets the new password
func (h *Handler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	tok := chi.URLParam(r, "token")

	var req SetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.ConfirmPasswordReset(r.Context(), uid, tok, req.Password); err != nil {
		if errors.Is(err, ErrInvalidLink) {
			httputil.RespondWithError(w, http.StatusBadRequest, msgInvalidLink)
			return
		}
		h.logger.Error("password reset failed", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, StatusResponse{
		Status: "Your password has been reset successfully! You can now log in.",
	})
}
