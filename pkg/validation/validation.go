package validation

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var v *validator.Validate

// Validator returns a singleton validator with custom rules registered.
func Validator() *validator.Validate {
	if v == nil {
		v = validator.New()
		// Custom: task selector must be one of the engine's known tasks
		_ = v.RegisterValidation("querytask", func(fl validator.FieldLevel) bool {
			switch strings.TrimSpace(fl.Field().String()) {
			case "", "filter", "breakdown", "get_distribution_analysis", "get_top_values", "get_top_per_group":
				return true
			}
			return false
		})
		// Custom: date arguments arrive as YYYY-MM-DD
		_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
			s := strings.TrimSpace(fl.Field().String())
			if s == "" {
				return true // empty is allowed; use omitempty with this tag
			}
			_, err := time.Parse("2006-01-02", s)
			return err == nil
		})
	}
	return v
}

// ValidateStruct validates a struct and returns a user-friendly error
// string safe to surface in an invalid-params response. Returns empty
// string when valid.
func ValidateStruct(s any) string {
	if err := Validator().Struct(s); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
			fe := ve[0]
			field := strings.ToLower(fe.Field())
			switch fe.Tag() {
			case "required":
				return fmt.Sprintf("VALIDATION: %s is required", field)
			case "querytask":
				return "VALIDATION: task must be one of filter, breakdown, get_distribution_analysis, get_top_values, get_top_per_group"
			case "isodate":
				return fmt.Sprintf("VALIDATION: %s must use the YYYY-MM-DD format", field)
			case "oneof":
				return fmt.Sprintf("VALIDATION: %s must be one of %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
			case "email":
				return fmt.Sprintf("VALIDATION: %s must be a valid email address", field)
			case "min", "max", "gte", "lte":
				return fmt.Sprintf("VALIDATION: %s must satisfy %s=%s", field, fe.Tag(), fe.Param())
			}
			return fmt.Sprintf("VALIDATION: invalid %s", field)
		}
		return "VALIDATION: invalid inputs"
	}
	return ""
}
