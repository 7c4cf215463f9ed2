package models

import (
	"math"
	"sort"
	"time"
)

// SkillField names one measurable attribute of an athlete. The set is
// closed: snapshots and rules may only refer to the fields listed here.
type SkillField string

const (
	// Strength and conditioning
	SkillPushupScore    SkillField = "pushupScore"
	SkillSitupScore     SkillField = "situpScore"
	SkillPlankSeconds   SkillField = "plankSeconds"
	SkillBeepTestLevel  SkillField = "beepTestLevel"
	SkillVerticalJump   SkillField = "verticalJump"
	SkillBroadJump      SkillField = "broadJump"
	SkillFlexibility    SkillField = "flexibilityScore"
	SkillAgility        SkillField = "agilityScore"
	SkillSprint100mTime SkillField = "sprint100mTime"
	SkillRun5kTime      SkillField = "run5kTime"
	SkillEnduranceScore SkillField = "enduranceScore"

	// Technique (coach-rated, 1-10)
	SkillBattingGrip      SkillField = "battingGrip"
	SkillBattingStance    SkillField = "battingStance"
	SkillShotSelection    SkillField = "shotSelection"
	SkillFootwork         SkillField = "footwork"
	SkillBowlingAccuracy  SkillField = "bowlingAccuracy"
	SkillBowlingSpeed     SkillField = "bowlingSpeed"
	SkillCatching         SkillField = "catchingScore"
	SkillThrowingAccuracy SkillField = "throwingAccuracy"
	SkillFielding         SkillField = "fieldingScore"
)

// skillColumns maps every known field to its column in student_skills.
var skillColumns = map[SkillField]string{
	SkillPushupScore:      "pushup_score",
	SkillSitupScore:       "situp_score",
	SkillPlankSeconds:     "plank_seconds",
	SkillBeepTestLevel:    "beep_test_level",
	SkillVerticalJump:     "vertical_jump",
	SkillBroadJump:        "broad_jump",
	SkillFlexibility:      "flexibility_score",
	SkillAgility:          "agility_score",
	SkillSprint100mTime:   "sprint_100m_time",
	SkillRun5kTime:        "run_5k_time",
	SkillEnduranceScore:   "endurance_score",
	SkillBattingGrip:      "batting_grip",
	SkillBattingStance:    "batting_stance",
	SkillShotSelection:    "shot_selection",
	SkillFootwork:         "footwork",
	SkillBowlingAccuracy:  "bowling_accuracy",
	SkillBowlingSpeed:     "bowling_speed",
	SkillCatching:         "catching_score",
	SkillThrowingAccuracy: "throwing_accuracy",
	SkillFielding:         "fielding_score",
}

// IsKnown reports whether the field belongs to the closed skill set.
func (f SkillField) IsKnown() bool {
	_, ok := skillColumns[f]
	return ok
}

// Column returns the student_skills column backing the field.
func (f SkillField) Column() (string, bool) {
	col, ok := skillColumns[f]
	return col, ok
}

// SkillFields returns all known fields in a stable order.
func SkillFields() []SkillField {
	fields := make([]SkillField, 0, len(skillColumns))
	for f := range skillColumns {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
	return fields
}

// Student is the slice of an athlete profile the badge engine needs.
type Student struct {
	ID    int64  `json:"id" db:"id"`
	Name  string `json:"name" db:"name"`
	Sport string `json:"sport" db:"sport"`
}

// SkillSnapshot is the current measured profile of one athlete.
type SkillSnapshot struct {
	StudentID int64                  `json:"student_id"`
	Sport     string                 `json:"sport"`
	Values    map[SkillField]float64 `json:"values"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// NewSkillSnapshot builds a snapshot, silently dropping unknown fields.
func NewSkillSnapshot(studentID int64, sport string, values map[SkillField]float64) *SkillSnapshot {
	s := &SkillSnapshot{
		StudentID: studentID,
		Sport:     sport,
		Values:    make(map[SkillField]float64, len(values)),
	}
	for f, v := range values {
		s.Set(f, v)
	}
	return s
}

// Set records a measured value. Unknown fields are ignored.
func (s *SkillSnapshot) Set(field SkillField, value float64) {
	if !field.IsKnown() {
		return
	}
	if s.Values == nil {
		s.Values = make(map[SkillField]float64)
	}
	s.Values[field] = value
}

// Measured returns the value of a field when it has actually been measured.
// Missing, zero and NaN values all count as "not yet measured".
func (s *SkillSnapshot) Measured(field SkillField) (float64, bool) {
	if s == nil || !field.IsKnown() {
		return 0, false
	}
	v, ok := s.Values[field]
	if !ok || v == 0 || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

func nanValue() float64 {
	return math.NaN()
}
