package booking

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Domenick1991/appointments/internal/apperr"
	"github.com/Domenick1991/appointments/internal/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type CreateInput struct {
	ServiceID int64               `json:"service_id" validate:"required,gt=0"`
	StartTime time.Time           `json:"start_time"`
	StaffID   *int64              `json:"staff_id,omitempty" validate:"omitempty,gt=0"`
	Contact   domain.ContactInput `json:"contact"`
}

func (in CreateInput) validate() error {
	if err := validateStruct(in); err != nil {
		return err
	}
	if in.StartTime.IsZero() {
		return apperr.New(apperr.CodeValidation, "start_time is required").
			WithDetails(map[string]string{"start_time": "required"})
	}
	return nil
}

// validateStruct maps validator failures to a VALIDATION_ERROR listing field -> rule.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperr.Wrap(apperr.CodeValidation, err, "invalid input")
	}
	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Namespace()] = fe.Tag()
	}
	return apperr.New(apperr.CodeValidation, "invalid input").WithDetails(details)
}
