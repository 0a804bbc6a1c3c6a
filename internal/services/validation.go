package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "realestate/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their JSON names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// validateStruct runs struct tag validation and converts the first failure
// into a VALIDATION_ERROR with a readable message.
func validateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperrors.Validation(err.Error())
	}

	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return apperrors.Validation(fmt.Sprintf("%s is required", field))
	case "oneof":
		return apperrors.Validation(fmt.Sprintf("%s must be one of: %s", field, fe.Param()))
	case "url", "http_url":
		return apperrors.Validation(fmt.Sprintf("%s must be a valid URL", field))
	case "gt", "gte", "lt", "lte", "min", "max":
		return apperrors.Validation(fmt.Sprintf("%s must be %s %s", field, fe.Tag(), fe.Param()))
	default:
		return apperrors.Validation(fmt.Sprintf("%s is invalid", field))
	}
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func stringPtr(s string) *string {
	return &s
}
