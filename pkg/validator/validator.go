package validator

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var (
	v *validator.Validate
)

func init() {
	v = validator.New()
}

func Validate(i interface{}) error {
	if i == nil {
		return fmt.Errorf("data to validate is nil")
	}

	return v.Struct(i)
}

// Var validates a single value against tag, e.g. Var(port, "min=1,max=65535").
func Var(field interface{}, tag string) error {
	return v.Var(field, tag)
}
