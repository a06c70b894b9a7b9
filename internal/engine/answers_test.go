package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classward/attempt-engine/internal/models"
)

func twoQuestions() []models.Question {
	return []models.Question{
		{ID: "q-1", Type: models.MultipleChoice, Options: map[string]string{"A": "x", "B": "y"}},
		{ID: "q-2", Type: models.FreeText},
	}
}

func TestAnswerStore_LastWriteWins(t *testing.T) {
	store := NewAnswerStore()

	require.NoError(t, store.Set(models.ChoiceAnswer("q-1", "A")))
	require.NoError(t, store.Set(models.ChoiceAnswer("q-1", "B")))

	answer, ok := store.Get("q-1")
	require.True(t, ok)
	assert.Equal(t, "B", answer.Selected)
	assert.Equal(t, 1, store.Len())
}

func TestAnswerStore_RoundTrip(t *testing.T) {
	store := NewAnswerStore()

	want := models.TextAnswer("q-2", models.FreeText, "some considered reply")
	require.NoError(t, store.Set(want))

	got, ok := store.Get("q-2")
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestAnswerStore_IsComplete(t *testing.T) {
	questions := twoQuestions()
	store := NewAnswerStore()

	assert.False(t, store.IsComplete(questions))

	require.NoError(t, store.Set(models.ChoiceAnswer("q-1", "A")))
	assert.False(t, store.IsComplete(questions))

	// An empty free-text value does not count as answered.
	require.NoError(t, store.Set(models.TextAnswer("q-2", models.FreeText, "")))
	assert.False(t, store.IsComplete(questions))

	require.NoError(t, store.Set(models.TextAnswer("q-2", models.FreeText, "done")))
	assert.True(t, store.IsComplete(questions))
}

func TestAnswerStore_ZeroQuestionsComplete(t *testing.T) {
	store := NewAnswerStore()
	assert.True(t, store.IsComplete(nil))
	assert.True(t, store.IsComplete([]models.Question{}))
}

func TestAnswerStore_FreezeRejectsWrites(t *testing.T) {
	store := NewAnswerStore()
	require.NoError(t, store.Set(models.ChoiceAnswer("q-1", "A")))

	store.Freeze()
	assert.True(t, store.Frozen())

	err := store.Set(models.ChoiceAnswer("q-1", "B"))
	assert.ErrorIs(t, err, ErrSectionFrozen)

	// The frozen value is untouched.
	answer, _ := store.Get("q-1")
	assert.Equal(t, "A", answer.Selected)
}

func TestAnswerStore_FillEmpty(t *testing.T) {
	questions := twoQuestions()
	store := NewAnswerStore()
	require.NoError(t, store.Set(models.ChoiceAnswer("q-1", "A")))

	require.NoError(t, store.FillEmpty(questions))

	answer, ok := store.Get("q-2")
	require.True(t, ok)
	assert.True(t, answer.IsEmpty())

	// Captured answers are not overwritten by placeholders.
	answer, _ = store.Get("q-1")
	assert.Equal(t, "A", answer.Selected)
	assert.True(t, store.IsComplete(questions) == false || answer.IsEmpty() == false)
}

func TestAnswerStore_Ordered(t *testing.T) {
	questions := twoQuestions()
	store := NewAnswerStore()
	require.NoError(t, store.Set(models.TextAnswer("q-2", models.FreeText, "second")))
	require.NoError(t, store.Set(models.ChoiceAnswer("q-1", "B")))

	ordered := store.Ordered(questions)
	require.Len(t, ordered, 2)
	assert.Equal(t, "q-1", ordered[0].QuestionID)
	assert.Equal(t, "q-2", ordered[1].QuestionID)
}
