package core

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"posturewatch/internal/types"
)

// Validator wraps go-playground/validator and turns field failures into a
// single AppError with per-field details.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// ValidationError describes one failed field.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewValidator builds a Validator that reports JSON field names.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)
	return &Validator{validate: v, logger: logger}
}

// ValidateStruct validates s. Field failures become a 400 AppError listing
// every failed field; validation_invalid_image wins when the image is among
// them.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		if v.logger != nil {
			v.logger.Error("struct validation failed", "error", err)
		}
		return types.NewAppError(types.ErrCodeInternalUnexpected, "validation could not run", err)
	}

	code := types.ErrCodeValidationMissingField
	details := make([]ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Field() == "image" {
			code = types.ErrCodeValidationInvalidImage
		}
		details = append(details, ValidationError{
			Field:   fe.Field(),
			Code:    fe.Tag(),
			Message: messageFor(fe),
		})
	}

	return types.NewAppErrorWithDetails(code, details[0].Message, err, map[string]any{"fields": details})
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	case "startswith":
		return fe.Field() + " must be a data URL"
	default:
		return fe.Field() + " is invalid"
	}
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}
