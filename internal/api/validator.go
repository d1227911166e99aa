package api

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"fairweather/internal/types"
)

// newValidator constructs the request validator. Struct tags carry the
// rules; JSON field names are reported back to clients via the json tag.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	return v
}

// mapValidationError converts validator failures into a structured 400
// response listing the offending fields.
func mapValidationError(err error) *types.AppError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return types.NewAppError(types.ErrCodeValidationMissingField, "invalid request", err)
	}

	fields := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return types.NewAppError(
		types.ErrCodeValidationMissingField,
		"request validation failed",
		err,
	).WithDetails(map[string]any{"fields": fields})
}
