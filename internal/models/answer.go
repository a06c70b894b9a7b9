package models

// SpeechValidation is the result of comparing an expected sentence to a
// transcribed response. It is attached to the answer and surfaced to the
// grader; it never gates section completion.
type SpeechValidation struct {
	SimilarityScore float64  `json:"similarity_score"`
	MissingWords    []string `json:"missing_words"`
	ExtraWords      []string `json:"extra_words"`
}

// Answer is a tagged variant matching its question's type. Exactly the
// fields for that type are populated; Empty marks a placeholder recorded
// for an unanswered question at final submission.
type Answer struct {
	QuestionID string       `json:"question_id"`
	Type       QuestionType `json:"type"`
	Empty      bool         `json:"empty,omitempty"`

	// MultipleChoice: the selected option label
	Selected string `json:"selected,omitempty"`

	// FreeText / AudioPrompt
	Text string `json:"text,omitempty"`

	// SpeechResponse
	Transcript   string            `json:"transcript,omitempty"`
	AudioBlobRef string            `json:"audio_blob_ref,omitempty"`
	Validation   *SpeechValidation `json:"validation,omitempty"`
}

// IsEmpty reports whether the answer carries no captured value.
func (a Answer) IsEmpty() bool {
	if a.Empty {
		return true
	}
	switch a.Type {
	case MultipleChoice:
		return a.Selected == ""
	case FreeText, AudioPrompt:
		return a.Text == ""
	case SpeechResponse:
		// Answering a speech question means having recorded audio.
		return a.AudioBlobRef == ""
	}
	return true
}

// Value returns the wire value posted to the grading collaborator.
func (a Answer) Value() string {
	switch a.Type {
	case MultipleChoice:
		return a.Selected
	case FreeText, AudioPrompt:
		return a.Text
	case SpeechResponse:
		return a.Transcript
	}
	return ""
}

func ChoiceAnswer(questionID, label string) Answer {
	return Answer{QuestionID: questionID, Type: MultipleChoice, Selected: label}
}

func TextAnswer(questionID string, qt QuestionType, text string) Answer {
	return Answer{QuestionID: questionID, Type: qt, Text: text}
}

func SpeechAnswer(questionID, transcript, blobRef string, validation *SpeechValidation) Answer {
	return Answer{
		QuestionID:   questionID,
		Type:         SpeechResponse,
		Transcript:   transcript,
		AudioBlobRef: blobRef,
		Validation:   validation,
	}
}

// EmptyAnswer is the placeholder recorded for an unanswered question when
// the test is submitted early or on timeout.
func EmptyAnswer(q Question) Answer {
	return Answer{QuestionID: q.ID, Type: q.Type, Empty: true}
}
