package utils

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/classward/attempt-engine/internal/errors"
	"github.com/classward/attempt-engine/internal/models"
)

// Validator wraps go-playground struct validation with the custom rules
// used by the attempt engine's request types.
type Validator struct {
	structValidator *validator.Validate
}

// NewValidator creates a validator with all custom rules registered.
func NewValidator() *Validator {
	structValidator := validator.New()
	registerCustomValidators(structValidator)

	return &Validator{
		structValidator: structValidator,
	}
}

// Validate validates struct tags and converts failures into the shared
// ValidationErrors type.
func (v *Validator) Validate(s interface{}) error {
	if err := v.structValidator.Struct(s); err != nil {
		if ve := apperrors.ToValidationErrors(err); len(ve) > 0 {
			return ve
		}
		return err
	}
	return nil
}

func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("question_type", validateQuestionType)
	validate.RegisterValidation("nav_direction", validateNavDirection)
	validate.RegisterValidation("proctor_event", validateProctorEvent)

	// Custom tag name function for better error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func validateQuestionType(fl validator.FieldLevel) bool {
	validTypes := []models.QuestionType{
		models.MultipleChoice,
		models.FreeText,
		models.AudioPrompt,
		models.SpeechResponse,
	}

	value := fl.Field().String()
	for _, validType := range validTypes {
		if string(validType) == value {
			return true
		}
	}
	return false
}

func validateNavDirection(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return value == "next" || value == "previous"
}

func validateProctorEvent(fl validator.FieldLevel) bool {
	return models.ValidProctorEventType(models.ProctorEventType(fl.Field().String()))
}
