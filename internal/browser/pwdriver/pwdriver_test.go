package pwdriver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTextPatternIsCaseSensitiveSubstring(t *testing.T) {
	tests := []struct {
		query string
		text  string
		want  bool
	}{
		{"Mercury", "Weight on Mercury", true},
		{"mercury", "Weight on Mercury", false},
		{"Weight on", "Weight  on\n Mercury", true},
		{"  Weight on  ", "Weight on Mercury", true},
		{"1.5 (kg)", "mass 1.5 (kg)", true},
		{"1.5 (kg)", "mass 105 kg", false},
		{"a+b", "aab", false},
	}
	for _, tc := range tests {
		t.Run(tc.query+"/"+tc.text, func(t *testing.T) {
			assert.Equal(t, tc.want, textPattern(tc.query).MatchString(tc.text))
		})
	}
}
