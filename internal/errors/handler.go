package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"regliq/internal/infrastructure"
	"regliq/internal/liquidity"
	"regliq/internal/services"
	"regliq/internal/storage"
)

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError converts any error to RFC 7807 format and responds
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	problem := h.ErrorToProblem(err, r)

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
		infrastructure.RecordError(r.Context(), err)
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	h.decorate(problem, r)
	if h.includeStack && problem.Status >= http.StatusInternalServerError {
		problem.WithExtension("stack", getStackTrace())
	}

	render.Render(w, r, problem)
}

// ErrorToProblem converts an error to RFC 7807 Problem Details
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(
			http.StatusGatewayTimeout,
			TypeTimeout,
			"Request Timeout",
			"The request took too long to process and was cancelled",
			r.URL.Path,
		)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return h.apiErrorToProblem(apiErr, r)
	}

	var paramErr *liquidity.ValidationError
	if errors.As(err, &paramErr) {
		return NewProblemDetails(
			http.StatusBadRequest,
			TypeInvalidParameters,
			"Invalid Regulatory Parameters",
			paramErr.Error(),
			r.URL.Path,
		).WithExtension("field", paramErr.Field)
	}

	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return NewProblemDetails(
			http.StatusRequestEntityTooLarge,
			TypePayloadTooLarge,
			"Payload Too Large",
			fmt.Sprintf("The request body exceeds the maximum allowed size of %d bytes", maxBytes.Limit),
			r.URL.Path,
		)
	}

	switch {
	case errors.Is(err, services.ErrSubmissionNotFound):
		return NewProblemDetails(http.StatusNotFound, TypeSubmissionNotFound,
			"Submission Not Found", err.Error(), r.URL.Path)

	case errors.Is(err, storage.ErrNotFound):
		return NewProblemDetails(http.StatusNotFound, TypeNotFound,
			"Resource Not Found", err.Error(), r.URL.Path)

	case errors.Is(err, storage.ErrDuplicateKey):
		return NewProblemDetails(http.StatusConflict, TypeSubmissionExists,
			"Submission Already Exists", err.Error(), r.URL.Path)

	case errors.Is(err, services.ErrInvalidSubmission), errors.Is(err, storage.ErrInvalidInput):
		return NewProblemDetails(http.StatusBadRequest, TypeValidation,
			"Invalid Submission", err.Error(), r.URL.Path)

	default:
		return NewProblemDetails(
			http.StatusInternalServerError,
			TypeInternal,
			"Internal Server Error",
			"An unexpected error occurred while processing your request",
			r.URL.Path,
		)
	}
}

// apiErrorToProblem converts APIError to ProblemDetails
func (h *ErrorHandler) apiErrorToProblem(apiErr *APIError, r *http.Request) *ProblemDetails {
	problemType := TypeInternal
	switch apiErr.ErrorCode {
	case CodeInvalidRequest, CodeValidationFailed:
		problemType = TypeValidation
	case CodeInvalidPositions:
		problemType = TypeInvalidPositions
	case CodeNotFound:
		problemType = TypeNotFound
	case CodeConflict:
		problemType = TypeConflict
	case CodeRateLimitExceeded:
		problemType = TypeRateLimit
	case CodePayloadTooLarge:
		problemType = TypePayloadTooLarge
	case CodeUnsupportedMedia:
		problemType = TypeUnsupportedType
	case CodeServiceUnavailable:
		problemType = TypeServiceDown
	}

	problem := NewProblemDetails(
		apiErr.StatusCode,
		problemType,
		http.StatusText(apiErr.StatusCode),
		apiErr.Message,
		r.URL.Path,
	).WithExtension("error_code", apiErr.ErrorCode)

	if apiErr.Details != nil {
		if errs, ok := apiErr.Details.([]ValidationError); ok {
			problem.WithExtension("errors", errs)
		} else {
			problem.WithExtension("details", apiErr.Details)
		}
	}

	return problem
}

// HandlePanic recovers from panics and returns RFC 7807 error
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered any) {
	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	problem := NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred",
		r.URL.Path,
	)
	h.decorate(problem, r)

	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprintf("%v", recovered))
		problem.WithExtension("stack", getStackTrace())
	}

	render.Render(w, r, problem)
}

// NotFound returns a standard 404 error
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusNotFound,
		TypeNotFound,
		"Not Found",
		"The requested resource was not found",
		r.URL.Path,
	)
	h.decorate(problem, r)
	render.Render(w, r, problem)
}

// MethodNotAllowed returns a standard 405 error
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusMethodNotAllowed,
		TypeMethodNotAllowed,
		"Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method),
		r.URL.Path,
	)
	h.decorate(problem, r)
	render.Render(w, r, problem)
}

// Recoverer turns panics in next into problem responses
func (h *ErrorHandler) Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				h.HandlePanic(w, r, rec)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// decorate adds request correlation fields
func (h *ErrorHandler) decorate(problem *ProblemDetails, r *http.Request) {
	if reqID := middleware.GetReqID(r.Context()); reqID != "" {
		problem.WithExtension("request_id", reqID)
	}
	traceID := infrastructure.GetTraceID(r.Context())
	if traceID == "" {
		traceID = infrastructure.TraceIDFromContext(r.Context())
	}
	if traceID != "" {
		problem.WithExtension("trace_id", traceID)
	}
}

// getStackTrace returns the current stack trace
func getStackTrace() string {
	buf := make([]byte, 1024*8)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
