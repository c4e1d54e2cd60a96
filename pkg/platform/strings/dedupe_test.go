package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "nil slice",
			input:    nil,
			expected: nil,
		},
		{
			name:     "empty slice",
			input:    []string{},
			expected: []string{},
		},
		{
			name:     "single role",
			input:    []string{"member"},
			expected: []string{"member"},
		},
		{
			name:     "comma-split config value with stray spaces",
			input:    []string{" member", "editor ", "  verified"},
			expected: []string{"member", "editor", "verified"},
		},
		{
			name:     "repeated slugs keep first position",
			input:    []string{"member", "editor", "member", "verified", "editor"},
			expected: []string{"member", "editor", "verified"},
		},
		{
			name:     "blank entries dropped",
			input:    []string{"member", "", "  ", "editor"},
			expected: []string{"member", "editor"},
		},
		{
			name:     "trailing comma artifact",
			input:    []string{"member", " member ", "", " "},
			expected: []string{"member"},
		},
		{
			name:     "case differences are distinct slugs",
			input:    []string{"Member", "member", "MEMBER"},
			expected: []string{"Member", "member", "MEMBER"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DedupeAndTrim(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestDedupeAndTrimLower(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "nil slice",
			input:    nil,
			expected: nil,
		},
		{
			name:     "same admin listed in mixed case",
			input:    []string{"Admin@example.com", "admin@example.com", "ADMIN@example.com"},
			expected: []string{"admin@example.com"},
		},
		{
			name:     "recipient list with spacing and casing noise",
			input:    []string{"  Ops@example.com ", "lead@example.com", "ops@example.com", "LEAD@example.com"},
			expected: []string{"ops@example.com", "lead@example.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DedupeAndTrimLower(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}
