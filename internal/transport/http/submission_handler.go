package http

import (
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"regliq/internal/config"
	"regliq/internal/dataprocessing"
	apierrors "regliq/internal/errors"
	"regliq/internal/exporter"
	"regliq/internal/middleware"
	"regliq/internal/services"
	api "regliq/pkg/contracts/api/v1"
)

// maxMultipartMemory is the part of an upload kept in memory before spilling to disk
const maxMultipartMemory = 8 << 20

// ExportResponse lists the files written by an export
type ExportResponse struct {
	SubmissionID string   `json:"submission_id"`
	Format       string   `json:"format"`
	Directory    string   `json:"directory"`
	Files        []string `json:"files"`
}

// SubmissionHandler serves the submission lifecycle endpoints
type SubmissionHandler struct {
	service      *services.LiquidityService
	exporter     *exporter.ReportExporter
	paths        *config.Paths
	validator    *middleware.RequestValidator
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
}

// NewSubmissionHandler creates a new submission handler
func NewSubmissionHandler(
	service *services.LiquidityService,
	reportExporter *exporter.ReportExporter,
	paths *config.Paths,
	validator *middleware.RequestValidator,
	errorHandler *apierrors.ErrorHandler,
	logger *slog.Logger,
) *SubmissionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubmissionHandler{
		service:      service,
		exporter:     reportExporter,
		paths:        paths,
		validator:    validator,
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("handler", "submission")),
	}
}

// Routes returns the submission routes, mounted at /submissions
func (h *SubmissionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/export", h.Export)

	return r
}

// Create handles POST /submissions. The body is either a JSON
// SubmissionRequest, a CSV position file or a multipart form whose "file"
// field holds a CSV or XLSX file. File uploads take the submission
// metadata from the query string.
func (h *SubmissionHandler) Create(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var (
		req services.SubmissionRequest
		err error
	)
	switch mediaType {
	case "text/csv":
		req, err = h.decodeCSV(r)
	case "multipart/form-data":
		req, err = h.decodeMultipart(r)
	default:
		req, err = h.decodeJSON(r)
	}
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	report, err := h.service.ProcessSubmission(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "submission processed",
		slog.String("submission_id", report.Submission.ID),
		slog.String("status", string(report.Submission.Status)))

	w.Header().Set("Location", strings.TrimSuffix(r.URL.Path, "/")+"/"+report.Submission.ID)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, report)
}

func (h *SubmissionHandler) decodeJSON(r *http.Request) (services.SubmissionRequest, error) {
	var body api.SubmissionRequest
	if err := h.validator.DecodeJSON(r, &body); err != nil {
		return services.SubmissionRequest{}, err
	}

	date, err := parseReportDate("report_date", body.ReportDate)
	if err != nil {
		return services.SubmissionRequest{}, err
	}

	rows := toRows(body.Rows)
	if len(rows) == 0 {
		rows = dataprocessing.RowsFromItems(body.Items)
	}

	return services.SubmissionRequest{
		SubmissionID:  body.SubmissionID,
		LegalEntityID: body.LegalEntityID,
		ReportDate:    date,
		Items:         body.Items,
		Rows:          rows,
	}, nil
}

// uploadRequest validates the query parameters and creates a loader for the upload
func (h *SubmissionHandler) uploadRequest(r *http.Request) (services.SubmissionRequest, *dataprocessing.Loader, error) {
	params := uploadParams(r)
	if err := h.validator.Struct(params); err != nil {
		return services.SubmissionRequest{}, nil, err
	}

	date, err := parseReportDate("report_date", params.ReportDate)
	if err != nil {
		return services.SubmissionRequest{}, nil, err
	}

	req := services.SubmissionRequest{
		SubmissionID:  params.SubmissionID,
		LegalEntityID: params.LegalEntityID,
		ReportDate:    date,
	}
	return req, dataprocessing.NewLoader(date, h.logger), nil
}

func (h *SubmissionHandler) decodeCSV(r *http.Request) (services.SubmissionRequest, error) {
	req, loader, err := h.uploadRequest(r)
	if err != nil {
		return req, err
	}

	ds, err := loader.LoadCSV(r.Context(), r.Body)
	if err != nil {
		return req, apierrors.InvalidPositions(err)
	}

	req.Items = ds.Items
	req.Rows = ds.Rows
	return req, nil
}

func (h *SubmissionHandler) decodeMultipart(r *http.Request) (services.SubmissionRequest, error) {
	req, loader, err := h.uploadRequest(r)
	if err != nil {
		return req, err
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return req, err
		}
		return req, apierrors.InvalidRequestWithError(err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return req, apierrors.ErrValidation("file", "a position file is required in the file field")
	}
	defer file.Close()

	var ds *dataprocessing.Dataset
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".csv":
		ds, err = loader.LoadCSV(r.Context(), file)
	case ".xlsx":
		ds, err = loader.LoadXLSXReader(r.Context(), file)
	default:
		return req, apierrors.ErrValidation("file", fmt.Sprintf("%s is not a CSV or XLSX file", header.Filename))
	}
	if err != nil {
		return req, apierrors.InvalidPositions(err)
	}

	h.logger.DebugContext(r.Context(), "position file uploaded",
		slog.String("filename", header.Filename),
		slog.Int64("size", header.Size),
		slog.Int("rows", len(ds.Rows)))

	req.Items = ds.Items
	req.Rows = ds.Rows
	return req, nil
}

// List handles GET /submissions?legal_entity_id=
func (h *SubmissionHandler) List(w http.ResponseWriter, r *http.Request) {
	params := api.ListSubmissionsParams{LegalEntityID: r.URL.Query().Get("legal_entity_id")}
	if err := h.validator.Struct(params); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	subs, err := h.service.ListSubmissions(r.Context(), params.LegalEntityID)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	list := api.SubmissionList{
		LegalEntityID: params.LegalEntityID,
		Count:         len(subs),
		Submissions:   make([]api.SubmissionSummary, 0, len(subs)),
	}
	for _, sub := range subs {
		list.Submissions = append(list.Submissions, api.NewSubmissionSummary(*sub))
	}

	render.JSON(w, r, list)
}

// Get handles GET /submissions/{id}
func (h *SubmissionHandler) Get(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.GetSubmission(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, report)
}

// Export handles POST /submissions/{id}/export?format=csv|xlsx|json|all
func (h *SubmissionHandler) Export(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = exporter.FormatAll
	}
	if !exporter.ValidFormat(format) {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("format", "format must be one of csv, xlsx, json or all"))
		return
	}

	report, err := h.service.GetSubmission(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	sub := report.Submission
	dir, err := h.paths.GetSubmissionReportDir(sub.LegalEntityID, sub.ReportDate)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("legal_entity_id", err.Error()))
		return
	}

	files, err := h.exporter.Export(r.Context(), dir, format, report.ExportReport())
	if err != nil {
		h.errorHandler.HandleError(w, r, fmt.Errorf("export submission %s: %w", sub.ID, err))
		return
	}

	h.logger.InfoContext(r.Context(), "submission exported",
		slog.String("submission_id", sub.ID),
		slog.String("format", format),
		slog.Int("files", len(files)))

	render.JSON(w, r, ExportResponse{
		SubmissionID: sub.ID,
		Format:       format,
		Directory:    dir,
		Files:        files,
	})
}
