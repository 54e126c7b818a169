package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/steelworks-digital/vms-server/domains/reports/be/service"
	visitorsvc "github.com/steelworks-digital/vms-server/domains/visitors/be/service"
	platformauth "github.com/steelworks-digital/vms-server/platform/go/auth"
	platformlogging "github.com/steelworks-digital/vms-server/platform/go/logging"
	"github.com/steelworks-digital/vms-server/platform/go/problem"
)

const dateLayout = "2006-01-02"

// Handler wires the reports service to the HTTP surface.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
	now    func() time.Time
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("reports service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger, now: time.Now}
}

// Export streams the visitor report in the requested format. CSV is the
// default; xlsx is selected with ?format=xlsx.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	credentials, ok := platformauth.AdminFromContext(r.Context())
	if !ok || credentials == nil {
		problem.Write(w, problem.New(problem.TypeUnauthorized, "Unauthorized", http.StatusUnauthorized, "missing credentials"))
		return
	}
	actor := *credentials

	opts, err := buildOptions(r)
	if err != nil {
		problem.Write(w, problem.New(problem.TypeValidation, "Validation failed", http.StatusBadRequest, err.Error()))
		return
	}

	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = "csv"
	}

	stamp := h.now().Format("20060102")
	switch format {
	case "csv":
		var buf bytes.Buffer
		if exportErr := h.svc.ExportCSV(r.Context(), actor, opts, &buf); exportErr != nil {
			h.exportFailed(w, r, exportErr)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="visitors-report-%s.csv"`, stamp))
		_, _ = w.Write(buf.Bytes())
	case "xlsx":
		data, exportErr := h.svc.ExportXLSX(r.Context(), actor, opts)
		if exportErr != nil {
			h.exportFailed(w, r, exportErr)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="visitors-report-%s.xlsx"`, stamp))
		_, _ = w.Write(data)
	default:
		problem.Write(w, problem.New(problem.TypeValidation, "Validation failed", http.StatusBadRequest, fmt.Sprintf("unsupported format %q", format)))
	}
}

func buildOptions(r *http.Request) (service.Options, error) {
	opts := service.Options{}
	query := r.URL.Query()

	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status, err := visitorsvc.ParseStatus(raw)
		if err != nil {
			return service.Options{}, err
		}
		s := string(status)
		opts.Status = &s
	}

	parseDate := func(field string) (*time.Time, error) {
		raw := strings.TrimSpace(query.Get(field))
		if raw == "" {
			return nil, nil
		}
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			return nil, fmt.Errorf("%s must be formatted as YYYY-MM-DD", field)
		}
		return &parsed, nil
	}

	var err error
	if opts.FromDate, err = parseDate("from"); err != nil {
		return service.Options{}, err
	}
	if opts.ToDate, err = parseDate("to"); err != nil {
		return service.Options{}, err
	}

	return opts, nil
}

func (h *Handler) exportFailed(w http.ResponseWriter, r *http.Request, err error) {
	platformlogging.FromRequest(r, h.logger).Error("report export failed", zap.Error(err))
	problem.Write(w, problem.New(problem.TypeInternal, "Internal server error", http.StatusInternalServerError, "could not render report"))
}
