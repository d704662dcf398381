// internal/utils/validator.go
package utils

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

var currencyPattern = regexp.MustCompile("^[A-Z]{3}$")

func init() {
	validate = validator.New()
	validate.RegisterValidation("currency", validateCurrency)
	validate.RegisterValidation("license_type_code", validateLicenseTypeCode)
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

func validateCurrency(fl validator.FieldLevel) bool {
	return currencyPattern.MatchString(fl.Field().String())
}

// License-type codes are short lowercase slugs ("sync", "master", ...); the
// configured set is enforced against the database during fan-out, this only
// rejects junk at the edge.
func validateLicenseTypeCode(fl validator.FieldLevel) bool {
	code := fl.Field().String()
	if len(code) < 2 || len(code) > 30 {
		return false
	}
	matched, _ := regexp.MatchString("^[a-z][a-z0-9_-]+$", code)
	return matched
}

type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func GetValidationErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   strings.ToLower(e.Field()),
				Tag:     e.Tag(),
				Message: getValidationMessage(e),
			})
		}
	}

	return validationErrors
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		return e.Field() + " must be at least " + e.Param()
	case "max":
		return e.Field() + " must be at most " + e.Param()
	case "currency":
		return "Currency must be a 3-letter ISO code"
	case "license_type_code":
		return "License type codes must be short lowercase slugs"
	default:
		return e.Field() + " is invalid"
	}
}
