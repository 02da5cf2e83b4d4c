package util

import (
	"github.com/go-playground/validator"
)

// Validator adapts go-playground/validator to echo.Validator.
type Validator struct {
	validator *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{validator: validator.New()}
}

func (v *Validator) Validate(i any) error {
	return v.validator.Struct(i)
}
