package validation

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"coachhub/internal/models"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	_ = v.RegisterValidation("skillfield", func(fl validator.FieldLevel) bool {
		return models.SkillField(fl.Field().String()).IsKnown()
	})
	_ = v.RegisterValidation("ruleoperator", func(fl validator.FieldLevel) bool {
		return models.Operator(fl.Field().String()).IsValid()
	})
	v.RegisterStructValidation(validateRuleValue, models.BadgeRule{})

	return v
}

// validateRuleValue checks that the comparison value parses for the
// rule's operator: a number, or "min,max" with min <= max for BETWEEN.
func validateRuleValue(sl validator.StructLevel) {
	rule := sl.Current().Interface().(models.BadgeRule)
	if rule.Value == "" {
		return
	}

	if rule.Operator == models.OperatorBetween {
		if strings.Count(rule.Value, ",") != 1 {
			sl.ReportError(rule.Value, "Value", "value", "betweenformat", "")
			return
		}
		lo, hi := rule.Bounds()
		if math.IsNaN(lo) || math.IsNaN(hi) || lo > hi {
			sl.ReportError(rule.Value, "Value", "value", "betweenrange", "")
		}
		return
	}

	if math.IsNaN(rule.Threshold()) {
		sl.ReportError(rule.Value, "Value", "value", "numeric", "")
	}
}

// ValidateStruct validates a struct using go-playground/validator
func ValidateStruct(s interface{}) error {
	if s == nil {
		return nil
	}

	// Check if it's a pointer to a struct
	val := reflect.ValueOf(s)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return fmt.Errorf("validator: expected a struct, got %T", s)
	}

	err := validate.Struct(s)
	if err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			errMsgs := make([]string, 0, len(ve))
			for _, e := range ve {
				errMsgs = append(errMsgs, fmt.Sprintf("field '%s' failed validation: %s", e.Namespace(), e.Tag()))
			}
			return errors.New(strings.Join(errMsgs, "; "))
		}
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}

// ValidateBadge checks a badge definition and every rule it owns.
func ValidateBadge(b *models.Badge) error {
	if b == nil {
		return errors.New("badge is nil")
	}
	if err := ValidateStruct(b); err != nil {
		return fmt.Errorf("badge %q: %w", b.Name, err)
	}
	return nil
}

// ValidateCatalog validates a list of badges and reports every invalid one.
func ValidateCatalog(badges []*models.Badge) error {
	var problems []string
	for _, b := range badges {
		if err := ValidateBadge(b); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid badge catalog: %s", strings.Join(problems, "; "))
	}
	return nil
}
