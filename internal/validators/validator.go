// Package validators registers the request body rules of the HTTP API on gin's
// validator engine and turns validation failures into readable messages.
package validators

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"carhire/internal/models"
)

var (
	phoneRegex   = regexp.MustCompile(`^\+?[0-9\s().\-]{3,24}$`)
	numericRegex = regexp.MustCompile(`^[0-9]+$`)
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		Register(v)
	}
}

// Register adds the custom tags to v.
func Register(v *validator.Validate) {
	_ = v.RegisterValidation("phone_number", validatePhoneNumber)
	_ = v.RegisterValidation("numeric_code", validateNumericCode)
	_ = v.RegisterValidation("rating_value", validateRatingValue)
	_ = v.RegisterValidation("vip_level", validateVIPLevel)
	_ = v.RegisterValidation("push_platform", validatePushPlatform)
}

// ValidationError represents a field validation error
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	messages := make([]string, 0, len(v))
	for _, err := range v {
		messages = append(messages, err.Message)
	}
	return strings.Join(messages, "; ")
}

// Describe converts a binding error into ValidationErrors. Errors that are not
// field validation failures, such as malformed JSON, are returned unchanged.
func Describe(err error) error {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err
	}
	out := make(ValidationErrors, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Message: message(fe),
		})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "phone_number":
		return "Invalid phone number format"
	case "numeric_code":
		return "Code must contain digits only"
	case "rating_value":
		return "Rating must be between 1 and 5"
	case "vip_level":
		return fmt.Sprintf("Level must be between 1 and %d", models.MaxVIPLevel)
	case "push_platform":
		return "Platform must be android or ios"
	default:
		return fmt.Sprintf("Validation failed for %s", fe.Field())
	}
}

// Empty values pass; the required tag handles them.
func validatePhoneNumber(fl validator.FieldLevel) bool {
	phone := fl.Field().String()
	return phone == "" || phoneRegex.MatchString(phone)
}

func validateNumericCode(fl validator.FieldLevel) bool {
	code := fl.Field().String()
	return code == "" || numericRegex.MatchString(code)
}

func validateRatingValue(fl validator.FieldLevel) bool {
	rating := fl.Field().Int()
	return rating >= 1 && rating <= 5
}

func validateVIPLevel(fl validator.FieldLevel) bool {
	level := fl.Field().Int()
	return level >= 1 && level <= models.MaxVIPLevel
}

func validatePushPlatform(fl validator.FieldLevel) bool {
	switch models.PushPlatform(fl.Field().String()) {
	case models.PlatformAndroid, models.PlatformIOS:
		return true
	}
	return false
}
