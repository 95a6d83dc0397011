package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"regliq/internal/breakdown"
	apierrors "regliq/internal/errors"
	"regliq/internal/middleware"
	"regliq/internal/services"
	api "regliq/pkg/contracts/api/v1"
)

// BreakdownResponse is the itemized LCR with its reconciliation report
type BreakdownResponse struct {
	Breakdown      breakdown.Result `json:"breakdown"`
	Reconciliation breakdown.Report `json:"reconciliation"`
}

// LiquidityHandler serves the stateless calculation and validation endpoints
type LiquidityHandler struct {
	service      *services.LiquidityService
	validator    *middleware.RequestValidator
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
}

// NewLiquidityHandler creates a new liquidity handler
func NewLiquidityHandler(service *services.LiquidityService, validator *middleware.RequestValidator, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *LiquidityHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LiquidityHandler{
		service:      service,
		validator:    validator,
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("handler", "liquidity")),
	}
}

// RegisterRoutes registers the calculation routes
func (h *LiquidityHandler) RegisterRoutes(r chi.Router) {
	r.Post("/lcr", h.CalculateLCR)
	r.Post("/nsfr", h.CalculateNSFR)
	r.Post("/breakdown", h.CalculateBreakdown)
	r.Post("/calculate", h.Calculate)
	r.Post("/validate", h.Validate)
}

func (h *LiquidityHandler) decodeCalculation(w http.ResponseWriter, r *http.Request) (*api.CalculationRequest, bool) {
	var req api.CalculationRequest
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return nil, false
	}
	return &req, true
}

// CalculateLCR handles POST /lcr
func (h *LiquidityHandler) CalculateLCR(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCalculation(w, r)
	if !ok {
		return
	}
	render.JSON(w, r, h.service.CalculateLCR(r.Context(), req.Items))
}

// CalculateNSFR handles POST /nsfr
func (h *LiquidityHandler) CalculateNSFR(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCalculation(w, r)
	if !ok {
		return
	}
	render.JSON(w, r, h.service.CalculateNSFR(r.Context(), req.Items))
}

// CalculateBreakdown handles POST /breakdown
func (h *LiquidityHandler) CalculateBreakdown(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCalculation(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	lcr := h.service.CalculateLCR(ctx, req.Items)
	result, report := h.service.CalculateBreakdown(ctx, req.Items, lcr)

	render.JSON(w, r, BreakdownResponse{Breakdown: result, Reconciliation: report})
}

// Calculate handles POST /calculate
func (h *LiquidityHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCalculation(w, r)
	if !ok {
		return
	}
	render.JSON(w, r, h.service.Calculate(r.Context(), req.Items))
}

// Validate handles POST /validate
func (h *LiquidityHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req api.ValidationRequest
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	rows := toRows(req.Rows)
	if req.LegalEntityID != "" {
		for i := range rows {
			if rows[i].LegalEntityID == "" {
				rows[i].LegalEntityID = req.LegalEntityID
			}
		}
	}

	run, err := h.service.Validate(r.Context(), req.SubmissionID, rows)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "ad hoc validation completed",
		slog.Int("rows", run.TotalRows),
		slog.Int("findings", len(run.Errors)),
		slog.Bool("passed", run.Passed))

	render.JSON(w, r, run)
}
