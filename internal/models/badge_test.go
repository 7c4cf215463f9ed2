package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBadgeAppliesTo(t *testing.T) {
	tests := []struct {
		name   string
		badge  Badge
		sport  string
		expect bool
	}{
		{"same sport", Badge{Sport: "Cricket", IsActive: true}, "Cricket", true},
		{"sport differs in case", Badge{Sport: "Cricket", IsActive: true}, "cricket", true},
		{"other sport", Badge{Sport: "Cricket", IsActive: true}, "Football", false},
		{"all sports", Badge{Sport: SportAll, IsActive: true}, "Football", true},
		{"lowercase all is a sport name", Badge{Sport: "all", IsActive: true}, "Football", false},
		{"inactive", Badge{Sport: SportAll}, "Cricket", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, tt.badge.AppliesTo(tt.sport))
		})
	}
}

func TestBadgeRequiredRuleCount(t *testing.T) {
	b := Badge{Rules: []BadgeRule{{Required: true}, {}, {Required: true}}}
	assert.Equal(t, 2, b.RequiredRuleCount())
}
