package handler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// echoValidator adapts go-playground/validator to echo's Validator interface
// so handlers can call c.Validate on bound request structs.
type echoValidator struct {
	v *validator.Validate
}

func NewValidator() *echoValidator {
	return &echoValidator{v: validator.New()}
}

func (ev *echoValidator) Validate(i any) error {
	err := ev.v.Struct(i)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}

	parts := make([]string, len(ve))
	for i, fe := range ve {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			parts[i] = field + " is required"
		case "min":
			parts[i] = fmt.Sprintf("%s must be at least %s", field, fe.Param())
		case "max":
			parts[i] = fmt.Sprintf("%s must be at most %s", field, fe.Param())
		default:
			parts[i] = fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
		}
	}
	return errors.New(strings.Join(parts, ", "))
}
