package core

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"inboxinspire/internal/scheduler"
	"inboxinspire/internal/types"
)

// ValidationError describes one failed field.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult separates blocking errors from advisory warnings.
type ValidationResult struct {
	Errors   []ValidationError `json:"errors,omitempty"`
	Warnings []string          `json:"warnings,omitempty"`
}

// IsValid reports whether the result has no errors. Warnings do not count.
func (r ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// Validator wraps go-playground/validator with the domain tags used by
// request DTOs:
//
//	is_timezone  IANA zone name loadable by time.LoadLocation
//	hh_mm        24-hour "HH:MM" time of day
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator and registers the custom tags.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report json names rather than Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	_ = v.RegisterValidation("is_timezone", validateTimezone)
	_ = v.RegisterValidation("hh_mm", validateTimeOfDay)

	return &Validator{validate: v, logger: logger}
}

// ValidateStruct validates s and returns a *types.AppError whose code is that
// of the first failure. All failures are listed under
// Details["validation_errors"].
func (v *Validator) ValidateStruct(s any) error {
	result := v.ValidateStructWithWarnings(s)
	if result.IsValid() {
		return nil
	}
	first := result.Errors[0]
	return types.NewAppError(types.ErrorCode(first.Code), first.Message, nil).
		WithDetails(map[string]any{"validation_errors": result.Errors})
}

// ValidateStructWithWarnings validates s and returns every failure.
func (v *Validator) ValidateStructWithWarnings(s any) ValidationResult {
	err := v.validate.Struct(s)
	if err == nil {
		return ValidationResult{}
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		v.logger.Error("unexpected validator failure", "error", err)
		return ValidationResult{Errors: []ValidationError{{
			Code:    string(types.ErrCodeValidationInvalidBody),
			Message: "request could not be validated",
		}}}
	}

	out := ValidationResult{Errors: make([]ValidationError, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		field := fieldPath(fe)
		out.Errors = append(out.Errors, ValidationError{
			Field:   field,
			Code:    tagToErrorCode(fe.Tag()),
			Message: fieldMessage(field, fe),
		})
	}
	return out
}

// fieldPath drops the top-level struct name from the namespace
// ("scheduleRequest.times[0]" becomes "times[0]").
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func tagToErrorCode(tag string) string {
	switch tag {
	case "required", "required_if", "required_with", "required_without":
		return string(types.ErrCodeValidationMissingField)
	case "is_timezone", "timezone":
		return string(types.ErrCodeValidationInvalidTimezone)
	case "hh_mm":
		return string(types.ErrCodeValidationInvalidTime)
	case "email":
		return string(types.ErrCodeValidationInvalidEmail)
	case "oneof":
		return string(types.ErrCodeValidationInvalidFrequency)
	default:
		return string(types.ErrCodeValidationInvalidSchedule)
	}
}

func fieldMessage(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "is_timezone":
		return fmt.Sprintf("%s must be an IANA timezone name", field)
	case "hh_mm":
		return fmt.Sprintf("%s must be a time of day in HH:MM format", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "min", "max":
		return fmt.Sprintf("%s fails %s=%s", field, fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
	}
}

func validateTimezone(fl validator.FieldLevel) bool {
	tz := fl.Field().String()
	if tz == "" {
		return true
	}
	// time.LoadLocation accepts "Local", which means nothing to a client.
	if tz == "Local" {
		return false
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

func validateTimeOfDay(fl validator.FieldLevel) bool {
	_, _, err := scheduler.ParseTimeOfDay(fl.Field().String())
	return err == nil
}
