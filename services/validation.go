package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"xhunt-server/models"
	"xhunt-server/types"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields under their wire names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("notblank", validators.NotBlank)
	_ = v.RegisterValidation("notification_type", func(fl validator.FieldLevel) bool {
		return models.NotificationType(fl.Field().String()).IsValid()
	})
	return v
}

// validateStruct runs the struct rules and converts every failure into one
// itemized ValidationError.
func validateStruct(input interface{}) error {
	return toValidationError(validate.Struct(input))
}

func toValidationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &types.ValidationError{}
	for _, fe := range verrs {
		out.Add(fieldPath(fe), fieldMessage(fe))
	}
	return out
}

// fieldPath strips the struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "notblank":
		return "must not be empty"
	case "notification_type":
		return typeMessage()
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	default:
		return "is invalid"
	}
}

func typeMessage() string {
	names := make([]string, len(models.NotificationTypes))
	for i, t := range models.NotificationTypes {
		names[i] = string(t)
	}
	return "must be one of " + strings.Join(names, ", ")
}

// CheckInput runs the struct rules on input and folds in violations already
// found while decoding it. A field reported in prior is not reported twice.
func CheckInput(input interface{}, prior *types.ValidationError) error {
	out := &types.ValidationError{}
	seen := make(map[string]bool)
	if prior != nil {
		for _, f := range prior.Fields {
			out.Add(f.Field, f.Message)
			seen[strings.ToLower(f.Field)] = true
		}
	}

	err := validateStruct(input)
	var verr *types.ValidationError
	switch {
	case errors.As(err, &verr):
		for _, f := range verr.Fields {
			if !seen[strings.ToLower(f.Field)] {
				out.Add(f.Field, f.Message)
			}
		}
	case err != nil:
		return err
	}
	return out.OrNil()
}
