package services

import (
	"github.com/go-playground/validator/v10"

	"github.com/taskmaster/tracker/internal/domain/entities"
)

var validate = validator.New()

// validateRequest checks struct tags and reports failures as validation errors.
func validateRequest(req interface{}) error {
	if err := validate.Struct(req); err != nil {
		return entities.ErrInvalidInput.Wrap(err)
	}
	return nil
}
