package middleware

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "regliq/internal/errors"
	"regliq/pkg/contracts/domain"
)

// RequestValidator decodes request bodies and validates them using struct tags
type RequestValidator struct {
	validate *validator.Validate
}

// NewRequestValidator creates a validator reporting fields by their JSON names
func NewRequestValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("category", isCategory)
	_ = v.RegisterValidation("maturity_bucket", isMaturityBucket)

	return &RequestValidator{validate: v}
}

// Struct validates v and returns an APIError listing every rejected field
func (rv *RequestValidator) Struct(v any) error {
	err := rv.validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apierrors.InvalidRequestWithError(err)
	}

	out := make([]apierrors.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, apierrors.ValidationError{
			Field:   fieldPath(fe),
			Message: formatFieldError(fe),
		})
	}
	return apierrors.NewValidationErrors(out)
}

// DecodeJSON decodes the request body into v and validates it
func (rv *RequestValidator) DecodeJSON(r *http.Request, v any) error {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		return apierrors.InvalidRequestWithError(err)
	}
	return rv.Struct(v)
}

// ContentTypeValidator rejects request bodies whose media type is not listed.
// Bodiless POSTs, such as export triggers, pass through.
func ContentTypeValidator(errorHandler *apierrors.ErrorHandler, contentTypes ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch {
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength == 0 && r.Header.Get("Content-Type") == "" {
				next.ServeHTTP(w, r)
				return
			}

			mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err != nil {
				errorHandler.HandleError(w, r, apierrors.UnsupportedMediaType(r.Header.Get("Content-Type")))
				return
			}
			for _, allowed := range contentTypes {
				if strings.EqualFold(mediaType, allowed) {
					next.ServeHTTP(w, r)
					return
				}
			}
			errorHandler.HandleError(w, r, apierrors.UnsupportedMediaType(mediaType))
		})
	}
}

// fieldPath drops the top-level struct name from the namespace
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func formatFieldError(fe validator.FieldError) string {
	field := fe.Field()
	param := fe.Param()

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "datetime":
		return fmt.Sprintf("%s must be a date in the format %s", field, param)
	case "excludesall":
		return fmt.Sprintf("%s must not contain any of %q", field, param)
	case "iso4217":
		return fmt.Sprintf("%s must be an ISO 4217 currency code", field)
	case "category":
		return fmt.Sprintf("%s is not a known product category", field)
	case "maturity_bucket":
		return fmt.Sprintf("%s is not a known maturity bucket", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

func isCategory(fl validator.FieldLevel) bool {
	return domain.Category(fl.Field().String()).IsValid()
}

func isMaturityBucket(fl validator.FieldLevel) bool {
	return domain.MaturityBucket(fl.Field().String()).IsValid()
}
