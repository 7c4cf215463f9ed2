// Package badges implements the rule-based badge evaluation engine: it scores
// an athlete's skill snapshot against weighted threshold rules, decides which
// badges are earned, and reports partial progress for the rest.
package badges

import (
	"errors"
	"fmt"
	"math"

	"coachhub/internal/models"
)

// ErrUnknownOperator is returned by EvaluateRule for operators outside the
// supported set. The rule is treated as failed.
var ErrUnknownOperator = errors.New("unknown rule operator")

// EvaluateRule compares a measured skill value against a rule. Comparisons
// involving NaN (an unparseable rule value) are always false.
func EvaluateRule(rule *models.BadgeRule, value float64) (bool, error) {
	switch rule.Operator {
	case models.OperatorGT:
		return value > rule.Threshold(), nil
	case models.OperatorGTE:
		return value >= rule.Threshold(), nil
	case models.OperatorLT:
		return value < rule.Threshold(), nil
	case models.OperatorLTE:
		return value <= rule.Threshold(), nil
	case models.OperatorEQ:
		return value == rule.Threshold(), nil
	case models.OperatorNEQ:
		// NaN != x is true in Go; a malformed threshold must still fail.
		t := rule.Threshold()
		return !math.IsNaN(t) && value != t, nil
	case models.OperatorBetween:
		lo, hi := rule.Bounds()
		return lo <= value && value <= hi, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownOperator, rule.Operator)
	}
}
