package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@(gmail\.com|hotmail\.com)$`)

	passwordClasses = []*regexp.Regexp{
		regexp.MustCompile(`[A-Z]`),
		regexp.MustCompile(`[a-z]`),
		regexp.MustCompile(`[0-9]`),
		regexp.MustCompile(`[!@#$%^&*()_+]`),
	}

	validate = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("email_domain", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("password_policy", func(fl validator.FieldLevel) bool {
		password := fl.Field().String()
		for _, class := range passwordClasses {
			if !class.MatchString(password) {
				return false
			}
		}
		return true
	})
	return v
}

// validateStruct returns the first failing field as a readable error.
func validateStruct(value any) error {
	err := validate.Struct(value)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	return errors.New(describe(verrs[0]))
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s: field required", field)
	case "min":
		return fmt.Sprintf("%s: must be at least %s%s", field, fe.Param(), unit(fe))
	case "max":
		return fmt.Sprintf("%s: must be at most %s%s", field, fe.Param(), unit(fe))
	case "email_domain":
		return fmt.Sprintf("%s: must be a gmail.com or hotmail.com address", field)
	case "password_policy":
		return fmt.Sprintf("%s: must contain an uppercase letter, a lowercase letter, a digit and one of !@#$%%^&*()_+", field)
	default:
		return fmt.Sprintf("%s: failed %s validation", field, fe.Tag())
	}
}

func unit(fe validator.FieldError) string {
	if fe.Kind() == reflect.String {
		return " characters"
	}
	return ""
}
