package handlers

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/SoccerCoachBack/internal/apperr"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(field.Tag.Get("form"), ",", 2)[0]
		}
		return name
	})
	return v
}

// bindJSON parses the request body into dst and runs its validate tags.
func bindJSON(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return apperr.Validation("Invalid request body", nil)
	}
	return validateStruct(dst)
}

func validateStruct(dst any) error {
	err := validate.Struct(dst)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}
	fields := make(map[string][]string, len(validationErrs))
	for _, fieldErr := range validationErrs {
		fields[fieldErr.Field()] = append(fields[fieldErr.Field()], validationMessage(fieldErr))
	}
	return apperr.Validation("Validation failed", fields)
}

func validationMessage(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return "Field is required"
	case "email":
		return "Must be a valid email"
	case "min":
		return "Must be at least " + fieldErr.Param()
	case "max":
		return "Must be at most " + fieldErr.Param()
	case "gte":
		return "Must be greater than or equal to " + fieldErr.Param()
	case "lte":
		return "Must be less than or equal to " + fieldErr.Param()
	case "oneof":
		return "Must be one of: " + fieldErr.Param()
	case "datetime":
		return "Must match format " + fieldErr.Param()
	default:
		return "Invalid value"
	}
}
