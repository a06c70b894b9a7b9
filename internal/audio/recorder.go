package audio

import (
	"bytes"
	"errors"
	"sync"
	"time"

	"github.com/classward/attempt-engine/internal/utils"
)

var (
	// ErrRecorderBusy is returned when a capture session is already open.
	// The device is exclusive; the first session must stop before another
	// question can record.
	ErrRecorderBusy = errors.New("recorder busy: another recording is in progress")

	// ErrNoActiveRecording is returned by Append and Stop when nothing is
	// recording.
	ErrNoActiveRecording = errors.New("no recording in progress")

	// ErrRecordingMismatch is returned when chunks or a stop arrive for a
	// question other than the one recording.
	ErrRecordingMismatch = errors.New("recording belongs to a different question")

	// ErrClipTooLong is returned when a clip exceeds its question's limit.
	// The session is aborted and the device released.
	ErrClipTooLong = errors.New("recording exceeded the allowed duration")
)

// DefaultMaxClipBytes bounds a single clip. Chunks past the bound abort
// the session instead of growing it.
const DefaultMaxClipBytes = 10 << 20

// Clip is one finished recording.
type Clip struct {
	QuestionID string
	Data       []byte
	Duration   time.Duration
}

// Recorder owns the capture device for one attempt. Exactly one session
// may be open at a time; any failure releases the device so the next
// question can still record.
type Recorder struct {
	maxBytes int
	logger   utils.Logger
	now      func() time.Time

	mu      sync.Mutex
	session *captureSession
}

type captureSession struct {
	questionID string
	maxSeconds int
	startedAt  time.Time
	buf        bytes.Buffer
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithMaxClipBytes overrides the clip size bound.
func WithMaxClipBytes(n int) RecorderOption {
	return func(r *Recorder) { r.maxBytes = n }
}

func withClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

func NewRecorder(logger utils.Logger, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		maxBytes: DefaultMaxClipBytes,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = utils.NewDefaultLogger()
	}
	return r
}

// Start opens a capture session for a question. maxSeconds of zero means
// no wall-clock limit beyond the byte bound.
func (r *Recorder) Start(questionID string, maxSeconds int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session != nil {
		return ErrRecorderBusy
	}

	r.session = &captureSession{
		questionID: questionID,
		maxSeconds: maxSeconds,
		startedAt:  r.now(),
	}
	r.logger.Debug("Recording started", "question_id", questionID, "max_seconds", maxSeconds)
	return nil
}

// Append adds captured bytes to the open session. An oversized or
// overlong clip aborts the session; the caller gets the error and the
// device is free again.
func (r *Recorder) Append(questionID string, chunk []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, err := r.sessionFor(questionID)
	if err != nil {
		return err
	}

	if err := r.checkBounds(session, len(chunk)); err != nil {
		r.abort(err)
		return err
	}

	session.buf.Write(chunk)
	return nil
}

// Stop closes the session and returns the clip. The device is released
// whether or not the clip is within bounds.
func (r *Recorder) Stop(questionID string) (Clip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, err := r.sessionFor(questionID)
	if err != nil {
		return Clip{}, err
	}

	defer func() { r.session = nil }()

	if err := r.checkBounds(session, 0); err != nil {
		r.logger.Warn("Recording discarded", "question_id", questionID, "error", err)
		return Clip{}, err
	}

	clip := Clip{
		QuestionID: questionID,
		Data:       session.buf.Bytes(),
		Duration:   r.now().Sub(session.startedAt),
	}
	r.logger.Debug("Recording stopped",
		"question_id", questionID,
		"bytes", len(clip.Data),
		"duration", clip.Duration)
	return clip, nil
}

// Abort discards any open session. Used when the section ends mid-recording.
func (r *Recorder) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session != nil {
		r.abort(errors.New("session aborted"))
	}
}

// Recording reports whether a session is open.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session != nil
}

func (r *Recorder) sessionFor(questionID string) (*captureSession, error) {
	if r.session == nil {
		return nil, ErrNoActiveRecording
	}
	if r.session.questionID != questionID {
		return nil, ErrRecordingMismatch
	}
	return r.session, nil
}

func (r *Recorder) checkBounds(session *captureSession, incoming int) error {
	if session.buf.Len()+incoming > r.maxBytes {
		return ErrClipTooLong
	}
	if session.maxSeconds > 0 && r.now().Sub(session.startedAt) > time.Duration(session.maxSeconds)*time.Second {
		return ErrClipTooLong
	}
	return nil
}

func (r *Recorder) abort(reason error) {
	questionID := r.session.questionID
	r.session = nil
	r.logger.Warn("Recording aborted", "question_id", questionID, "reason", reason)
}
