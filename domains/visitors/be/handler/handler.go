package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/steelworks-digital/vms-server/domains/visitors/be/service"
	platformauth "github.com/steelworks-digital/vms-server/platform/go/auth"
	platformlogging "github.com/steelworks-digital/vms-server/platform/go/logging"
	"github.com/steelworks-digital/vms-server/platform/go/problem"
	"github.com/steelworks-digital/vms-server/platform/go/requesttrace"
	"github.com/steelworks-digital/vms-server/platform/go/storage"
)

type operation string

const (
	registerOperation      operation = "visitorsRegister"
	searchOperation        operation = "visitorsSearch"
	listOperation          operation = "visitorsList"
	getOperation           operation = "visitorsGet"
	statusOperation        operation = "visitorsStatus"
	updateOperation        operation = "visitorsUpdate"
	blacklistOperation     operation = "visitorsBlacklist"
	deleteOperation        operation = "visitorsDelete"
	maxPhotoUploadBytes              = 10 << 20
	visitDateLayout                  = "2006-01-02"
)

// Handler wires the visitors service to the HTTP surface.
type Handler struct {
	svc    service.Service
	photos storage.BlobStore
	logger *zap.Logger
}

// New constructs a Handler instance. The blob store may be nil when photo
// uploads are disabled.
func New(svc service.Service, photos storage.BlobStore, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("visitors service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, photos: photos, logger: logger}
}

type visitorResponse struct {
	ID              uuid.UUID `json:"id"`
	BatchNo         string    `json:"batchNo"`
	Name            string    `json:"name"`
	Gender          string    `json:"gender"`
	Mobile          string    `json:"mobile"`
	Email           string    `json:"email,omitempty"`
	Address         string    `json:"address"`
	VisitDate       *string   `json:"visitDate,omitempty"`
	VisitTime       string    `json:"visitTime,omitempty"`
	Duration        string    `json:"duration,omitempty"`
	Company         string    `json:"company"`
	Host            string    `json:"host"`
	Purpose         string    `json:"purpose,omitempty"`
	Plant           string    `json:"plant"`
	Assets          string    `json:"assets,omitempty"`
	SafetyEquipment string    `json:"safetyEquipment,omitempty"`
	VisitorCardNo   string    `json:"visitorCardNo,omitempty"`
	NationalID      string    `json:"nationalId"`
	PhotoPath       string    `json:"photoPath,omitempty"`
	Status          string    `json:"status"`
	IsBlacklisted   bool      `json:"isBlacklisted"`
	EntryTime       *string   `json:"entryTime,omitempty"`
	ExitTime        *string   `json:"exitTime,omitempty"`
	CreatedAt       string    `json:"createdAt"`
}

type registerRequest struct {
	Name            string `json:"name"`
	Gender          string `json:"gender"`
	Mobile          string `json:"mobile"`
	Email           string `json:"email"`
	Address         string `json:"address"`
	VisitDate       string `json:"visitDate"`
	VisitTime       string `json:"visitTime"`
	Duration        string `json:"duration"`
	Company         string `json:"company"`
	Host            string `json:"host"`
	Purpose         string `json:"purpose"`
	Plant           string `json:"plant"`
	Assets          string `json:"assets"`
	SafetyEquipment string `json:"safetyEquipment"`
	VisitorCardNo   string `json:"visitorCardNo"`
	NationalID      string `json:"nationalId"`
}

// Register handles the public registration form, accepting JSON bodies and
// multipart forms carrying an optional photo file.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	var photo multipart.File
	var photoHeader *multipart.FileHeader

	contentType := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "multipart/form-data"):
		if err := r.ParseMultipartForm(maxPhotoUploadBytes); err != nil {
			h.writeProblem(w, problem.New(problem.TypeValidation, "Invalid request body", http.StatusBadRequest, "malformed multipart form"))
			return
		}
		req = registerRequestFromForm(r)
		file, header, err := r.FormFile("photo")
		if err == nil {
			defer file.Close()
			photo = file
			photoHeader = header
		}
	default:
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeProblem(w, problem.New(problem.TypeValidation, "Invalid request body", http.StatusBadRequest, "malformed JSON payload"))
			return
		}
	}

	input, err := toRegisterInput(req)
	if err != nil {
		h.problemForError(w, r, err, registerOperation)
		return
	}

	if photo != nil && h.photos != nil {
		key := photoKey(photoHeader)
		path, saveErr := h.photos.Save(r.Context(), key, photoHeader.Header.Get("Content-Type"), photo)
		if saveErr != nil {
			h.loggerFrom(r).Error("photo upload failed", zap.Error(saveErr))
			h.writeProblem(w, problem.New(problem.TypeInternal, "Internal server error", http.StatusInternalServerError, "could not store photo"))
			return
		}
		input.PhotoPath = path
	}

	created, err := h.svc.Register(r.Context(), input)
	if err != nil {
		h.problemForError(w, r, err, registerOperation)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/admin/visitors/%s", created.ID))
	h.writeJSON(w, http.StatusCreated, toAPIVisitor(created))
}

// Search is the public returning-visitor lookup by mobile or national ID.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	mobile := r.URL.Query().Get("mobile")
	nationalID := r.URL.Query().Get("nationalId")

	visitor, err := h.svc.SearchByIdentity(r.Context(), mobile, nationalID)
	if err != nil {
		h.problemForError(w, r, err, searchOperation)
		return
	}

	h.writeJSON(w, http.StatusOK, toAPIVisitor(visitor))
}

// List returns visitors visible to the acting admin.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	opts, err := buildListOptions(r)
	if err != nil {
		h.problemForError(w, r, err, listOperation)
		return
	}

	visitors, svcErr := h.svc.List(r.Context(), actor, opts)
	if svcErr != nil {
		h.problemForError(w, r, svcErr, listOperation)
		return
	}

	items := make([]visitorResponse, 0, len(visitors))
	for _, visitor := range visitors {
		items = append(items, toAPIVisitor(visitor))
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"items": items, "totalItems": len(items)})
}

// Get returns a single visitor within the acting admin's scope.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.visitorID(w, r)
	if !ok {
		return
	}

	visitor, err := h.svc.Get(r.Context(), actor, id)
	if err != nil {
		h.problemForError(w, r, err, getOperation)
		return
	}

	h.writeJSON(w, http.StatusOK, toAPIVisitor(visitor))
}

type statusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus applies a lifecycle transition.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.visitorID(w, r)
	if !ok {
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeProblem(w, problem.New(problem.TypeValidation, "Invalid request body", http.StatusBadRequest, "malformed JSON payload"))
		return
	}

	target, err := service.ParseStatus(req.Status)
	if err != nil {
		h.writeProblem(w, problem.New(problem.TypeValidation, "Validation failed", http.StatusBadRequest, err.Error()).
			WithFields(map[string][]string{"status": {err.Error()}}))
		return
	}

	visitor, svcErr := h.svc.TransitionStatus(r.Context(), actor, id, target)
	if svcErr != nil {
		h.problemForError(w, r, svcErr, statusOperation)
		return
	}

	h.auditLog(r, statusOperation, zap.String("visitorId", id.String()), zap.String("status", string(target)))
	h.writeJSON(w, http.StatusOK, toAPIVisitor(visitor))
}

type updateRequest struct {
	Name            *string `json:"name"`
	Gender          *string `json:"gender"`
	Mobile          *string `json:"mobile"`
	Email           *string `json:"email"`
	Address         *string `json:"address"`
	Company         *string `json:"company"`
	Host            *string `json:"host"`
	Purpose         *string `json:"purpose"`
	Plant           *string `json:"plant"`
	Assets          *string `json:"assets"`
	SafetyEquipment *string `json:"safetyEquipment"`
	VisitorCardNo   *string `json:"visitorCardNo"`
	NationalID      *string `json:"nationalId"`
}

// UpdateDetails lets an admin correct descriptive fields.
func (h *Handler) UpdateDetails(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.visitorID(w, r)
	if !ok {
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeProblem(w, problem.New(problem.TypeValidation, "Invalid request body", http.StatusBadRequest, "malformed JSON payload"))
		return
	}

	visitor, err := h.svc.UpdateDetails(r.Context(), actor, id, service.UpdateInput{
		Name:            req.Name,
		Gender:          req.Gender,
		Mobile:          req.Mobile,
		Email:           req.Email,
		Address:         req.Address,
		Company:         req.Company,
		Host:            req.Host,
		Purpose:         req.Purpose,
		Plant:           req.Plant,
		Assets:          req.Assets,
		SafetyEquipment: req.SafetyEquipment,
		VisitorCardNo:   req.VisitorCardNo,
		NationalID:      req.NationalID,
	})
	if err != nil {
		h.problemForError(w, r, err, updateOperation)
		return
	}

	h.auditLog(r, updateOperation, zap.String("visitorId", id.String()))
	h.writeJSON(w, http.StatusOK, toAPIVisitor(visitor))
}

type blacklistRequest struct {
	Blacklisted bool `json:"blacklisted"`
}

// Blacklist toggles the blacklist flag. Super admin only.
func (h *Handler) Blacklist(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.visitorID(w, r)
	if !ok {
		return
	}

	var req blacklistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeProblem(w, problem.New(problem.TypeValidation, "Invalid request body", http.StatusBadRequest, "malformed JSON payload"))
		return
	}

	if err := h.svc.SetBlacklisted(r.Context(), actor, id, req.Blacklisted); err != nil {
		h.problemForError(w, r, err, blacklistOperation)
		return
	}

	h.auditLog(r, blacklistOperation, zap.String("visitorId", id.String()), zap.Bool("blacklisted", req.Blacklisted))
	w.WriteHeader(http.StatusNoContent)
}

// Delete soft-deletes a visitor record. Super admin only.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.visitorID(w, r)
	if !ok {
		return
	}

	if err := h.svc.SoftDelete(r.Context(), actor, id); err != nil {
		h.problemForError(w, r, err, deleteOperation)
		return
	}

	h.auditLog(r, deleteOperation, zap.String("visitorId", id.String()))
	w.WriteHeader(http.StatusNoContent)
}

func registerRequestFromForm(r *http.Request) registerRequest {
	return registerRequest{
		Name:            r.FormValue("name"),
		Gender:          r.FormValue("gender"),
		Mobile:          r.FormValue("mobile"),
		Email:           r.FormValue("email"),
		Address:         r.FormValue("address"),
		VisitDate:       r.FormValue("visitDate"),
		VisitTime:       r.FormValue("visitTime"),
		Duration:        r.FormValue("duration"),
		Company:         r.FormValue("company"),
		Host:            r.FormValue("host"),
		Purpose:         r.FormValue("purpose"),
		Plant:           r.FormValue("plant"),
		Assets:          r.FormValue("assets"),
		SafetyEquipment: r.FormValue("safetyEquipment"),
		VisitorCardNo:   r.FormValue("visitorCardNo"),
		NationalID:      r.FormValue("nationalId"),
	}
}

func toRegisterInput(req registerRequest) (service.RegisterInput, error) {
	input := service.RegisterInput{
		Name:            req.Name,
		Gender:          req.Gender,
		Mobile:          req.Mobile,
		Email:           req.Email,
		Address:         req.Address,
		VisitTime:       req.VisitTime,
		Duration:        req.Duration,
		Company:         req.Company,
		Host:            req.Host,
		Purpose:         req.Purpose,
		Plant:           req.Plant,
		Assets:          req.Assets,
		SafetyEquipment: req.SafetyEquipment,
		VisitorCardNo:   req.VisitorCardNo,
		NationalID:      req.NationalID,
	}

	if strings.TrimSpace(req.VisitDate) != "" {
		visitDate, err := time.Parse(visitDateLayout, strings.TrimSpace(req.VisitDate))
		if err != nil {
			return service.RegisterInput{}, &service.ValidationError{
				Fields: service.FieldErrors{"visitDate": {"visitDate must be formatted as YYYY-MM-DD"}},
			}
		}
		input.VisitDate = &visitDate
	}

	return input, nil
}

func buildListOptions(r *http.Request) (service.ListOptions, error) {
	opts := service.ListOptions{}
	query := r.URL.Query()

	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status, err := service.ParseStatus(raw)
		if err != nil {
			return service.ListOptions{}, &service.ValidationError{Fields: service.FieldErrors{"status": {err.Error()}}}
		}
		opts.Status = &status
	}
	if raw := strings.TrimSpace(query.Get("search")); raw != "" {
		opts.Search = &raw
	}

	parseDate := func(field string) (*time.Time, error) {
		raw := strings.TrimSpace(query.Get(field))
		if raw == "" {
			return nil, nil
		}
		parsed, err := time.Parse(visitDateLayout, raw)
		if err != nil {
			return nil, &service.ValidationError{Fields: service.FieldErrors{field: {field + " must be formatted as YYYY-MM-DD"}}}
		}
		return &parsed, nil
	}

	var err error
	if opts.VisitDate, err = parseDate("date"); err != nil {
		return service.ListOptions{}, err
	}
	if opts.FromDate, err = parseDate("from"); err != nil {
		return service.ListOptions{}, err
	}
	if opts.ToDate, err = parseDate("to"); err != nil {
		return service.ListOptions{}, err
	}

	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, parseErr := strconv.Atoi(raw)
		if parseErr != nil || limit < 0 {
			return service.ListOptions{}, &service.ValidationError{Fields: service.FieldErrors{"limit": {"limit must be a non-negative integer"}}}
		}
		opts.Limit = limit
	}

	return opts, nil
}

func toAPIVisitor(visitor service.Visitor) visitorResponse {
	resp := visitorResponse{
		ID:              visitor.ID,
		BatchNo:         visitor.BatchNo,
		Name:            visitor.Name,
		Gender:          visitor.Gender,
		Mobile:          visitor.Mobile,
		Email:           visitor.Email,
		Address:         visitor.Address,
		VisitTime:       visitor.VisitTime,
		Duration:        visitor.Duration,
		Company:         visitor.Company,
		Host:            visitor.Host,
		Purpose:         visitor.Purpose,
		Plant:           visitor.Plant,
		Assets:          visitor.Assets,
		SafetyEquipment: visitor.SafetyEquipment,
		VisitorCardNo:   visitor.VisitorCardNo,
		NationalID:      visitor.NationalID,
		PhotoPath:       visitor.PhotoPath,
		Status:          string(visitor.Status),
		IsBlacklisted:   visitor.IsBlacklisted,
		CreatedAt:       visitor.CreatedAt.Format(time.RFC3339),
	}
	if visitor.VisitDate != nil {
		d := visitor.VisitDate.Format(visitDateLayout)
		resp.VisitDate = &d
	}
	if visitor.EntryTime != nil {
		ts := visitor.EntryTime.Format(time.RFC3339)
		resp.EntryTime = &ts
	}
	if visitor.ExitTime != nil {
		ts := visitor.ExitTime.Format(time.RFC3339)
		resp.ExitTime = &ts
	}
	return resp
}

func photoKey(header *multipart.FileHeader) string {
	ext := ""
	if header != nil {
		ext = strings.ToLower(filepath.Ext(header.Filename))
	}
	return uuid.NewString() + ext
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (platformauth.AdminCredentials, bool) {
	credentials, ok := platformauth.AdminFromContext(r.Context())
	if !ok || credentials == nil {
		h.writeProblem(w, problem.New(problem.TypeUnauthorized, "Unauthorized", http.StatusUnauthorized, "missing credentials"))
		return platformauth.AdminCredentials{}, false
	}
	return *credentials, true
}

func (h *Handler) visitorID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "visitorID")
	id, err := uuid.Parse(raw)
	if err != nil {
		h.writeProblem(w, problem.New(problem.TypeValidation, "Validation failed", http.StatusBadRequest, "visitor id must be a UUID").
			WithFields(map[string][]string{"visitorID": {"must be a UUID"}}))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *Handler) writeProblem(w http.ResponseWriter, details problem.Details) {
	problem.Write(w, details)
}

func (h *Handler) problemForError(w http.ResponseWriter, r *http.Request, err error, op operation) {
	details := classifyError(err)

	logger := h.loggerFrom(r)
	fields := []zap.Field{
		zap.String("operation", string(op)),
		zap.Int("status", details.Status),
	}
	switch {
	case details.Status >= http.StatusInternalServerError:
		logger.Error("visitors operation failed", append(fields, zap.Error(err))...)
	case details.Status == http.StatusNotFound:
		logger.Info("visitors resource not found", append(fields, zap.Error(err))...)
	default:
		logger.Warn("visitors request rejected", append(fields, zap.Error(err))...)
	}

	h.writeProblem(w, details)
}

func classifyError(err error) problem.Details {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return problem.New(problem.TypeValidation, "Validation failed", http.StatusBadRequest, "one or more fields are invalid").
			WithFields(validationErr.Fields)
	case errors.Is(err, service.ErrNotFound):
		return problem.New(problem.TypeNotFound, "Resource not found", http.StatusNotFound, "visitor not found")
	case errors.Is(err, service.ErrBlacklisted):
		return problem.New(problem.TypePermissionDenied, "Registration blocked", http.StatusForbidden, "identity is blacklisted")
	case errors.Is(err, service.ErrPermissionDenied):
		return problem.New(problem.TypePermissionDenied, "Permission denied", http.StatusForbidden, "record is outside the admin's plant scope")
	case errors.Is(err, service.ErrInvalidTransition):
		return problem.New(problem.TypeInvalidState, "Invalid status transition", http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrConflict):
		return problem.New(problem.TypeConflict, "Conflict", http.StatusConflict, "visitor conflict")
	case errors.Is(err, service.ErrBatchExhausted):
		return problem.New(problem.TypeInternal, "Registration busy", http.StatusServiceUnavailable, "could not allocate a batch number, retry shortly")
	default:
		return problem.New(problem.TypeInternal, "Internal server error", http.StatusInternalServerError, "an unexpected error occurred")
	}
}

func (h *Handler) auditLog(r *http.Request, op operation, fields ...zap.Field) {
	audit := requesttrace.FromContextOrAnonymous(r.Context())
	logFields := append([]zap.Field{
		zap.String("operation", string(op)),
		zap.String("actorKind", string(audit.ActorKind)),
	}, fields...)
	if audit.AdminID != nil {
		logFields = append(logFields, zap.String("adminId", *audit.AdminID))
	}
	if audit.RequestID != "" {
		logFields = append(logFields, zap.String("requestId", audit.RequestID))
	}
	h.loggerFrom(r).Info("visitor record changed", logFields...)
}

func (h *Handler) loggerFrom(r *http.Request) *zap.Logger {
	return platformlogging.FromRequest(r, h.logger)
}
