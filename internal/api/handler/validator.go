package handler

import (
	"github.com/go-playground/validator/v10"

	"github.com/bugtracker/bugtracker/internal/pkg/validation"
)

// echoValidator wraps go-playground/validator so Echo can call c.Validate(req).
type echoValidator struct {
	v *validator.Validate
}

// NewValidator returns an echoValidator ready to be assigned to echo.Echo.Validator.
// It shares the validator instance and custom tags used by the services.
func NewValidator() *echoValidator {
	return &echoValidator{v: validation.Get()}
}

// Validate satisfies the echo.Validator interface. Failures are returned as
// *domain.ValidationError so the error handler renders them as 422.
func (ev *echoValidator) Validate(i any) error {
	return validation.Translate(ev.v.Struct(i))
}
