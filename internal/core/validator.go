package core

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"bloomwatch/internal/types"
)

// errCodeValidationFailed covers request payloads that decode cleanly but
// violate their validate tags. The validation_ prefix maps it to HTTP 400.
const errCodeValidationFailed types.ErrorCode = "validation_failed"

// Validator wraps go-playground/validator with the house conventions:
// violations are reported under json field names and translated into
// *types.AppError with a per-field details map.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator builds a Validator that reports violations using json tag
// names rather than Go field names, so error details line up with what the
// client actually sent.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{
		validate: v,
		logger:   logger,
	}
}

// ValidateStruct checks s against its validate tags. On violation it
// returns a *types.AppError whose details map each offending field to a
// human-readable reason; on success it returns nil.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	// A non-struct target is a programming error, not client input.
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		v.logger.Error("validation target is not a struct", "type", fmt.Sprintf("%T", s))
		return types.NewAppError(types.ErrCodeInternalUnexpected, "an unexpected error occurred", err)
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "request validation failed", err)
	}

	details := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = violationMessage(fe)
	}

	return types.NewAppErrorWithDetails(
		errCodeValidationFailed,
		"request validation failed",
		err,
		details,
	)
}

// violationMessage renders a single field violation without leaking Go type
// internals into the API response.
func violationMessage(fe validator.FieldError) string {
	if fe.Param() != "" {
		return fmt.Sprintf("failed on the %q rule (%s)", fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("failed on the %q rule", fe.Tag())
}
