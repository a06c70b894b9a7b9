package models

import "time"

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	FreeText       QuestionType = "free_text"
	AudioPrompt    QuestionType = "audio_prompt"
	SpeechResponse QuestionType = "speech_response"
)

// Question is a tagged variant: the populated fields depend on Type.
type Question struct {
	ID     string       `json:"question_id" validate:"required"`
	Type   QuestionType `json:"type" validate:"required,question_type"`
	Prompt string       `json:"prompt"`

	// MultipleChoice: option label -> display text
	Options map[string]string `json:"options,omitempty"`

	// AudioPrompt
	AudioURL           string `json:"audio_url,omitempty"`
	ExpectedTranscript string `json:"expected_transcript,omitempty"`

	// SpeechResponse
	MaxRecordSeconds int `json:"max_record_seconds,omitempty"`
}

// Section is a time-boxed, ordered subset of a test's questions.
type Section struct {
	ID               string     `json:"id" validate:"required"`
	Name             string     `json:"name"`
	TimeLimitSeconds int        `json:"time_limit_seconds" validate:"min=0"`
	Questions        []Question `json:"questions"`
}

// TestDefinition is immutable once fetched from the collaborator.
type TestDefinition struct {
	ID       string    `json:"test_id" validate:"required"`
	Title    string    `json:"title"`
	OpensAt  time.Time `json:"opens_at"`
	ClosesAt time.Time `json:"closes_at"`
	Sections []Section `json:"sections"`
}

// QuestionByID looks a question up within a single section.
func (s *Section) QuestionByID(id string) (*Question, bool) {
	for i := range s.Questions {
		if s.Questions[i].ID == id {
			return &s.Questions[i], true
		}
	}
	return nil, false
}
