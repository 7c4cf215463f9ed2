package badges

import (
	"math"

	"coachhub/internal/models"

	"go.uber.org/zap"
)

// Score is the outcome of scoring one badge against one snapshot.
type Score struct {
	TotalScore        float64 `json:"total_score"`
	MaxScore          float64 `json:"max_score"`
	Progress          int     `json:"progress"`
	Earned            bool    `json:"earned"`
	RulesEvaluated    int     `json:"rules_evaluated"`
	RequiredTotal     int     `json:"required_total"`
	RequiredEvaluated int     `json:"required_evaluated"`
	RequiredPassed    int     `json:"required_passed"`
}

// ScoreBadge runs every rule of the badge against the snapshot.
//
// Rules whose field has not been measured are skipped entirely and add to
// neither score. When the badge has required rules it is earned only if all
// of them could be evaluated and all of them passed; a required rule with a
// missing field therefore blocks the badge. Badges without required rules are
// earned at 100% progress.
func ScoreBadge(badge *models.Badge, snapshot *models.SkillSnapshot, logger *zap.Logger) Score {
	if logger == nil {
		logger = zap.NewNop()
	}

	var s Score
	for i := range badge.Rules {
		rule := &badge.Rules[i]
		if rule.Required {
			s.RequiredTotal++
		}

		value, ok := snapshot.Measured(rule.FieldName)
		if !ok {
			continue
		}

		s.RulesEvaluated++
		s.MaxScore += rule.Weight
		if rule.Required {
			s.RequiredEvaluated++
		}

		passed, err := EvaluateRule(rule, value)
		if err != nil {
			logger.Warn("Badge rule skipped",
				zap.Int64("badge_id", badge.ID),
				zap.Int64("rule_id", rule.ID),
				zap.String("operator", string(rule.Operator)),
				zap.Error(err),
			)
		}
		if !passed {
			continue
		}

		s.TotalScore += rule.Weight
		if rule.Required {
			s.RequiredPassed++
		}
	}

	if s.MaxScore > 0 {
		s.Progress = int(math.Round(s.TotalScore / s.MaxScore * 100))
	}

	switch {
	case s.RulesEvaluated == 0:
		s.Earned = false
	case s.RequiredTotal > 0:
		s.Earned = s.RequiredEvaluated == s.RequiredTotal && s.RequiredPassed == s.RequiredTotal
	default:
		s.Earned = s.Progress >= 100
	}

	return s
}
