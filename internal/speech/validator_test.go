package speech

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidator_Compare(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name        string
		expected    string
		actual      string
		wantScore   float64
		wantMissing []string
		wantExtra   []string
	}{
		{
			name:        "partial transcript",
			expected:    "the quick fox",
			actual:      "the quick",
			wantScore:   2.0 / 3.0,
			wantMissing: []string{"fox"},
			wantExtra:   []string{},
		},
		{
			name:        "exact match",
			expected:    "the quick fox",
			actual:      "the quick fox",
			wantScore:   1.0,
			wantMissing: []string{},
			wantExtra:   []string{},
		},
		{
			name:        "case and punctuation tolerant",
			expected:    "The quick fox.",
			actual:      "the Quick fox",
			wantScore:   1.0,
			wantMissing: []string{},
			wantExtra:   []string{},
		},
		{
			name:        "misaligned words do not count",
			expected:    "the quick fox",
			actual:      "quick the fox",
			wantScore:   1.0 / 3.0,
			wantMissing: []string{},
			wantExtra:   []string{},
		},
		{
			name:        "extra words reported",
			expected:    "hello world",
			actual:      "hello big wide world",
			wantScore:   0.5,
			wantMissing: []string{},
			wantExtra:   []string{"big", "wide"},
		},
		{
			name:        "empty transcript",
			expected:    "hello world",
			actual:      "",
			wantScore:   0,
			wantMissing: []string{"hello", "world"},
			wantExtra:   []string{},
		},
		{
			name:        "empty expected sentence",
			expected:    "",
			actual:      "anything",
			wantScore:   1.0,
			wantMissing: []string{},
			wantExtra:   []string{"anything"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.Compare(tt.expected, tt.actual)

			assert.InDelta(t, tt.wantScore, got.SimilarityScore, 1e-9)
			assert.ElementsMatch(t, tt.wantMissing, got.MissingWords)
			assert.ElementsMatch(t, tt.wantExtra, got.ExtraWords)
		})
	}
}

func TestValidator_CompareScoreBounds(t *testing.T) {
	v := NewValidator()

	got := v.Compare("one two three four", "one junk three")
	assert.GreaterOrEqual(t, got.SimilarityScore, 0.0)
	assert.LessOrEqual(t, got.SimilarityScore, 1.0)
	assert.InDelta(t, 0.5, got.SimilarityScore, 1e-9)
}
