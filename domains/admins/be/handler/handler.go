package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/steelworks-digital/vms-server/domains/admins/be/service"
	platformlogging "github.com/steelworks-digital/vms-server/platform/go/logging"
	"github.com/steelworks-digital/vms-server/platform/go/problem"
)

// Handler wires the admins service to the HTTP surface.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("admins service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string  `json:"token"`
	ExpiresAt string  `json:"expiresAt"`
	Username  string  `json:"username"`
	Plant     *string `json:"plant,omitempty"`
}

// Login exchanges admin credentials for a signed token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		problem.Write(w, problem.New(problem.TypeValidation, "Invalid request body", http.StatusBadRequest, "malformed JSON payload"))
		return
	}

	result, err := h.svc.Login(r.Context(), service.LoginInput{Username: req.Username, Password: req.Password})
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			h.loggerFrom(r).Warn("login rejected", zap.String("username", req.Username))
			problem.Write(w, problem.New(problem.TypeUnauthorized, "Unauthorized", http.StatusUnauthorized, "invalid credentials"))
			return
		}
		h.loggerFrom(r).Error("login failed", zap.Error(err))
		problem.Write(w, problem.New(problem.TypeInternal, "Internal server error", http.StatusInternalServerError, "an unexpected error occurred"))
		return
	}

	h.writeJSON(w, http.StatusOK, loginResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt.Format(time.RFC3339),
		Username:  result.Admin.Username,
		Plant:     result.Admin.Plant,
	})
}

type createRequest struct {
	Username string  `json:"username"`
	Password string  `json:"password"`
	Plant    *string `json:"plant"`
}

type adminResponse struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	Plant    *string `json:"plant,omitempty"`
}

// Create provisions a new admin account. Super admin only; route-guarded.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		problem.Write(w, problem.New(problem.TypeValidation, "Invalid request body", http.StatusBadRequest, "malformed JSON payload"))
		return
	}

	admin, err := h.svc.Create(r.Context(), service.CreateInput{
		Username: req.Username,
		Password: req.Password,
		Plant:    req.Plant,
	})
	if err != nil {
		var validationErr *service.ValidationError
		switch {
		case errors.As(err, &validationErr):
			problem.Write(w, problem.New(problem.TypeValidation, "Validation failed", http.StatusBadRequest, "one or more fields are invalid").
				WithFields(validationErr.Fields))
		case errors.Is(err, service.ErrConflict):
			problem.Write(w, problem.New(problem.TypeConflict, "Conflict", http.StatusConflict, "username already exists"))
		default:
			h.loggerFrom(r).Error("admin creation failed", zap.Error(err))
			problem.Write(w, problem.New(problem.TypeInternal, "Internal server error", http.StatusInternalServerError, "an unexpected error occurred"))
		}
		return
	}

	h.loggerFrom(r).Info("admin account created", zap.String("username", admin.Username))
	h.writeJSON(w, http.StatusCreated, adminResponse{
		ID:       admin.ID.String(),
		Username: admin.Username,
		Plant:    admin.Plant,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *Handler) loggerFrom(r *http.Request) *zap.Logger {
	return platformlogging.FromRequest(r, h.logger)
}
