package middleware

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/erp/warehouse/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var setupOnce sync.Once

// SetupValidator registers the decimal comparison tags on gin's validator
// and reports fields by their JSON names
func SetupValidator() {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
			}
			return name
		})
		_ = v.RegisterValidation("decimal_gt", decimalRule(func(cmp int) bool { return cmp > 0 }))
		_ = v.RegisterValidation("decimal_gte", decimalRule(func(cmp int) bool { return cmp >= 0 }))
	})
}

// decimalRule compares a decimal field against the tag parameter
func decimalRule(accept func(cmp int) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		var value decimal.Decimal
		switch v := fl.Field().Interface().(type) {
		case decimal.Decimal:
			value = v
		case *decimal.Decimal:
			if v == nil {
				return false
			}
			value = *v
		default:
			return false
		}
		bound, err := decimal.NewFromString(fl.Param())
		if err != nil {
			return false
		}
		return accept(value.Cmp(bound))
	}
}

// ValidationDetails turns validator errors into per-field details.
// It returns false when err did not come from the validator.
func ValidationDetails(err error) ([]dto.ValidationDetail, bool) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, false
	}
	details := make([]dto.ValidationDetail, 0, len(verrs))
	for _, e := range verrs {
		details = append(details, dto.ValidationDetail{
			Field:   fieldPath(e),
			Message: validationMessage(e),
		})
	}
	return details, true
}

// fieldPath drops the request struct name: "CreateReceivingRequest.lines[0].product_id" -> "lines[0].product_id"
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return e.Field()
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "min":
		if e.Kind() == reflect.String {
			return "Must be at least " + e.Param() + " characters"
		}
		if e.Kind() == reflect.Slice {
			return "Must contain at least " + e.Param() + " items"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "oneof":
		return "Must be one of: " + e.Param()
	case "gt", "decimal_gt":
		return "Must be greater than " + e.Param()
	case "gte", "decimal_gte":
		return "Must be greater than or equal to " + e.Param()
	default:
		return "Invalid value"
	}
}
