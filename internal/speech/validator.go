package speech

import (
	"strings"

	"github.com/classward/attempt-engine/internal/models"
)

// Validator compares an expected sentence against a transcribed response
// token-by-token. The comparison is position-aligned: an expected token
// counts as matched only when the token at the same index in the
// transcript equals it (case-insensitive, punctuation stripped).
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// Compare produces a similarity score in [0,1] plus the sets of expected
// words missing from the transcript and transcript words not expected.
// An empty expected sentence scores 1.0 by convention.
func (v *Validator) Compare(expected, actual string) models.SpeechValidation {
	expectedTokens := tokenize(expected)
	actualTokens := tokenize(actual)

	if len(expectedTokens) == 0 {
		return models.SpeechValidation{
			SimilarityScore: 1.0,
			MissingWords:    []string{},
			ExtraWords:      dedupe(actualTokens),
		}
	}

	matched := 0
	for i, want := range expectedTokens {
		if i < len(actualTokens) && actualTokens[i] == want {
			matched++
		}
	}

	return models.SpeechValidation{
		SimilarityScore: float64(matched) / float64(len(expectedTokens)),
		MissingWords:    difference(expectedTokens, actualTokens),
		ExtraWords:      difference(actualTokens, expectedTokens),
	}
}

func tokenize(sentence string) []string {
	fields := strings.Fields(strings.ToLower(sentence))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'")
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// difference returns the distinct tokens of a that do not occur anywhere in b.
func difference(a, b []string) []string {
	present := make(map[string]struct{}, len(b))
	for _, t := range b {
		present[t] = struct{}{}
	}

	seen := make(map[string]struct{}, len(a))
	out := []string{}
	for _, t := range a {
		if _, ok := present[t]; ok {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func dedupe(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := []string{}
	for _, t := range tokens {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
