package models

import "time"

type ProctorEventType string

const (
	EventTabSwitch      ProctorEventType = "tab_switch"
	EventWindowBlur     ProctorEventType = "window_blur"
	EventFullscreenExit ProctorEventType = "fullscreen_exit"
	EventCopyPaste      ProctorEventType = "copy_paste"
	EventRightClick     ProctorEventType = "right_click"
)

// ProctorEvent is an anti-cheat warning signal. Signals are reported and
// counted; they never mutate attempt state.
type ProctorEvent struct {
	ID         string           `json:"id"`
	AttemptID  string           `json:"attempt_id"`
	StudentID  string           `json:"student_id"`
	Type       ProctorEventType `json:"type"`
	QuestionID string           `json:"question_id,omitempty"`
	TimeOffset int              `json:"time_offset"` // seconds from attempt start
	OccurredAt time.Time        `json:"occurred_at"`
}

// ValidProctorEventType reports whether t is one of the known signal types.
func ValidProctorEventType(t ProctorEventType) bool {
	switch t {
	case EventTabSwitch, EventWindowBlur, EventFullscreenExit, EventCopyPaste, EventRightClick:
		return true
	}
	return false
}
