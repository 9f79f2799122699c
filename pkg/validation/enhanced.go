package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate is the shared validator instance with the custom tags below.
var Validate *validator.Validate

var (
	aliasPattern    = regexp.MustCompile(`^[^\s]+(?: [^\s]+)*$`)
	nodeTypePattern = regexp.MustCompile(`^\S+$`)
)

func init() {
	Validate = validator.New(validator.WithRequiredStructEnabled())

	Validate.RegisterValidation("alias", validateAlias)
	Validate.RegisterValidation("node_type", validateNodeType)

	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
}

// Struct validates s and converts failures to ValidationErrors.
func Struct(s any) error {
	if err := Validate.Struct(s); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

// Var validates a single value against tag.
func Var(field string, v any, tag string) error {
	if err := Validate.Var(v, tag); err != nil {
		var errs ValidationErrors
		if !errors.As(formatValidationErrors(err), &errs) {
			return err
		}
		for i := range errs {
			errs[i].Field = field
		}
		return errs
	}
	return nil
}

func formatValidationErrors(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make(ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, ValidationError{
			Field:   namespace(fe),
			Value:   fe.Value(),
			Message: getErrorMessage(fe),
		})
	}
	return out
}

// namespace drops the root struct name: "Definition.nodes[0].alias"
// becomes "nodes[0].alias".
func namespace(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func getErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field is required"
	case "min":
		return fmt.Sprintf("minimum value/length is %s", fe.Param())
	case "max":
		return fmt.Sprintf("maximum value/length is %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "alias":
		return "must be a non-blank alias without leading, trailing or repeated spaces"
	case "node_type":
		return "must be a non-blank node type without spaces"
	default:
		return fmt.Sprintf("validation failed: %s", fe.Tag())
	}
}

func validateAlias(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return len(s) <= 128 && aliasPattern.MatchString(s)
}

func validateNodeType(fl validator.FieldLevel) bool {
	return nodeTypePattern.MatchString(fl.Field().String())
}
