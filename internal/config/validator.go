package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ValidateConfig performs validation on the GlobalConfig structure.
func ValidateConfig(cfg *GlobalConfig) error {
	validate := validator.New()

	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var invalidValidationError *validator.InvalidValidationError
	if errors.As(err, &invalidValidationError) {
		return fmt.Errorf("invalid validation setup: %w", err)
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, fieldError := range validationErrors {
			messages = append(messages, fmt.Sprintf(
				"field '%s' failed on the '%s' rule (value: '%v')",
				fieldError.Namespace(), fieldError.Tag(), fieldError.Value(),
			))
		}
		return fmt.Errorf("config validation errors: %v", messages)
	}

	return err
}
