package validators

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate
	once     sync.Once
)

func GetValidator() *validator.Validate {
	once.Do(initValidator)
	return validate
}

func initValidator() {
	validate = validator.New()
	// report fields by their json/query name
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "query"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
}

// Errors flattens validation errors into the field -> message map the API
// returns with 422.
func Errors(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return map[string]string{"body": "Invalid request!"}
	}

	out := make(map[string]string, len(validationErrors))
	for _, e := range validationErrors {
		out[e.Field()] = prettyError(e)
	}
	return out
}

func prettyError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required!", e.Field())
	case "oneof":
		return fmt.Sprintf("Invalid %s! Allowed: %s", e.Field(), strings.ReplaceAll(e.Param(), " ", ", "))
	case "email":
		return "Invalid email address!"
	case "min":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters long!", e.Field(), e.Param())
		}
		return fmt.Sprintf("%s must be at least %s!", e.Field(), e.Param())
	case "max":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("%s must not exceed %s characters!", e.Field(), e.Param())
		}
		return fmt.Sprintf("%s must not exceed %s!", e.Field(), e.Param())
	case "excludesall":
		return fmt.Sprintf("%s contains invalid characters!", e.Field())
	default:
		return e.Error()
	}
}
