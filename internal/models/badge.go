package models

import (
	"strconv"
	"strings"
	"time"
)

// SportAll marks a badge that applies to athletes of every sport.
const SportAll = "ALL"

// Operator is the comparison a badge rule applies to a skill value.
type Operator string

const (
	OperatorGT      Operator = "GT"
	OperatorGTE     Operator = "GTE"
	OperatorLT      Operator = "LT"
	OperatorLTE     Operator = "LTE"
	OperatorEQ      Operator = "EQ"
	OperatorNEQ     Operator = "NEQ"
	OperatorBetween Operator = "BETWEEN"
)

// Operators lists every operator a rule may use.
var Operators = []Operator{
	OperatorGT, OperatorGTE, OperatorLT, OperatorLTE,
	OperatorEQ, OperatorNEQ, OperatorBetween,
}

// IsValid reports whether the operator is one of the known comparisons.
func (o Operator) IsValid() bool {
	for _, op := range Operators {
		if o == op {
			return true
		}
	}
	return false
}

// Badge represents an achievement badge that athletes earn by meeting
// the thresholds of its rules.
type Badge struct {
	ID          int64       `json:"id" db:"id" yaml:"id"`
	Name        string      `json:"name" db:"name" yaml:"name" validate:"required,max=120"`
	Description string      `json:"description" db:"description" yaml:"description"`
	Icon        string      `json:"icon" db:"icon" yaml:"icon"`
	Sport       string      `json:"sport" db:"sport" yaml:"sport" validate:"required,max=50"`
	IsActive    bool        `json:"is_active" db:"is_active" yaml:"is_active"`
	Rules       []BadgeRule `json:"rules" yaml:"rules" validate:"dive"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at" yaml:"-"`
	UpdatedAt   *time.Time  `json:"updated_at,omitempty" db:"updated_at" yaml:"-"`
}

// AppliesTo reports whether the badge is active and open to the given sport.
func (b *Badge) AppliesTo(sport string) bool {
	if !b.IsActive {
		return false
	}
	return b.Sport == SportAll || strings.EqualFold(b.Sport, sport)
}

// RequiredRuleCount returns how many rules of the badge are marked required.
func (b *Badge) RequiredRuleCount() int {
	n := 0
	for i := range b.Rules {
		if b.Rules[i].Required {
			n++
		}
	}
	return n
}

// BadgeRule is a single weighted threshold condition against one skill field.
type BadgeRule struct {
	ID        int64      `json:"id" db:"id" yaml:"id"`
	BadgeID   int64      `json:"badge_id" db:"badge_id" yaml:"-"`
	FieldName SkillField `json:"field_name" db:"field_name" yaml:"field" validate:"required,skillfield"`
	Operator  Operator   `json:"operator" db:"operator" yaml:"operator" validate:"required,ruleoperator"`
	Value     string     `json:"value" db:"value" yaml:"value" validate:"required"`
	Weight    float64    `json:"weight" db:"weight" yaml:"weight" validate:"gt=0"`
	Required  bool       `json:"required" db:"is_required" yaml:"required"`
	Position  int        `json:"position" db:"position" yaml:"-"`
}

// Bounds splits a BETWEEN value of the form "min,max". Parts that do not
// parse come back as NaN so that any comparison against them fails.
func (r *BadgeRule) Bounds() (float64, float64) {
	parts := strings.SplitN(r.Value, ",", 2)
	if len(parts) != 2 {
		return ParseNumber(r.Value), nanValue()
	}
	return ParseNumber(parts[0]), ParseNumber(parts[1])
}

// Threshold returns the rule value coerced to a number, or NaN.
func (r *BadgeRule) Threshold() float64 {
	return ParseNumber(r.Value)
}

// ParseNumber coerces a textual rule value to float64. Unparseable input
// yields NaN instead of an error.
func ParseNumber(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nanValue()
	}
	return f
}
