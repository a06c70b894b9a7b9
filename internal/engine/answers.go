package engine

import (
	"github.com/classward/attempt-engine/internal/models"
)

// AnswerStore holds the captured answers of one section, keyed by question
// id. Writes are last-write-wins. Once the section is submitted the store
// is frozen and rejects further writes.
type AnswerStore struct {
	answers map[string]models.Answer
	frozen  bool
}

func NewAnswerStore() *AnswerStore {
	return &AnswerStore{
		answers: make(map[string]models.Answer),
	}
}

// Set upserts an answer. Overwrites are idempotent: only the latest value
// is kept.
func (s *AnswerStore) Set(answer models.Answer) error {
	if s.frozen {
		return ErrSectionFrozen
	}
	s.answers[answer.QuestionID] = answer
	return nil
}

func (s *AnswerStore) Get(questionID string) (models.Answer, bool) {
	answer, ok := s.answers[questionID]
	return answer, ok
}

// IsComplete reports whether every question in the list has a non-empty
// answer. A section with zero questions is complete by definition.
func (s *AnswerStore) IsComplete(questions []models.Question) bool {
	for _, q := range questions {
		answer, ok := s.answers[q.ID]
		if !ok || answer.IsEmpty() {
			return false
		}
	}
	return true
}

// FillEmpty records an explicit empty answer for every unanswered
// question. Used at early submission so the grader sees the full roster.
func (s *AnswerStore) FillEmpty(questions []models.Question) error {
	if s.frozen {
		return ErrSectionFrozen
	}
	for _, q := range questions {
		if _, ok := s.answers[q.ID]; !ok {
			s.answers[q.ID] = models.EmptyAnswer(q)
		}
	}
	return nil
}

// Freeze makes the store read-only. There is no thaw.
func (s *AnswerStore) Freeze() {
	s.frozen = true
}

func (s *AnswerStore) Frozen() bool {
	return s.frozen
}

func (s *AnswerStore) Len() int {
	return len(s.answers)
}

// Snapshot returns a copy of the stored answers.
func (s *AnswerStore) Snapshot() map[string]models.Answer {
	out := make(map[string]models.Answer, len(s.answers))
	for k, v := range s.answers {
		out[k] = v
	}
	return out
}

// Ordered returns the stored answers in the order of the question list,
// skipping questions that were never answered.
func (s *AnswerStore) Ordered(questions []models.Question) []models.Answer {
	out := make([]models.Answer, 0, len(questions))
	for _, q := range questions {
		if answer, ok := s.answers[q.ID]; ok {
			out = append(out, answer)
		}
	}
	return out
}
