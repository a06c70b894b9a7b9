package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classward/attempt-engine/internal/utils"
)

func newTestRecorder(opts ...RecorderOption) *Recorder {
	return NewRecorder(utils.NewDevelopmentLogger(), opts...)
}

func TestRecorder_RoundTrip(t *testing.T) {
	recorder := newTestRecorder()

	require.NoError(t, recorder.Start("q-1", 30))
	require.True(t, recorder.Recording())

	require.NoError(t, recorder.Append("q-1", []byte("chunk-one ")))
	require.NoError(t, recorder.Append("q-1", []byte("chunk-two")))

	clip, err := recorder.Stop("q-1")
	require.NoError(t, err)
	assert.Equal(t, "q-1", clip.QuestionID)
	assert.Equal(t, []byte("chunk-one chunk-two"), clip.Data)
	assert.False(t, recorder.Recording())
}

func TestRecorder_ExclusiveSession(t *testing.T) {
	recorder := newTestRecorder()

	require.NoError(t, recorder.Start("q-1", 0))
	assert.ErrorIs(t, recorder.Start("q-2", 0), ErrRecorderBusy)

	// The original session is untouched by the rejected start.
	require.NoError(t, recorder.Append("q-1", []byte("still mine")))
	_, err := recorder.Stop("q-1")
	require.NoError(t, err)

	// Released after stop.
	require.NoError(t, recorder.Start("q-2", 0))
}

func TestRecorder_QuestionMismatch(t *testing.T) {
	recorder := newTestRecorder()
	require.NoError(t, recorder.Start("q-1", 0))

	assert.ErrorIs(t, recorder.Append("q-2", []byte("x")), ErrRecordingMismatch)
	_, err := recorder.Stop("q-2")
	assert.ErrorIs(t, err, ErrRecordingMismatch)

	// Mismatches do not release the session.
	assert.True(t, recorder.Recording())
}

func TestRecorder_NoActiveSession(t *testing.T) {
	recorder := newTestRecorder()

	assert.ErrorIs(t, recorder.Append("q-1", []byte("x")), ErrNoActiveRecording)
	_, err := recorder.Stop("q-1")
	assert.ErrorIs(t, err, ErrNoActiveRecording)
}

func TestRecorder_OversizedClipAbortsAndReleases(t *testing.T) {
	recorder := newTestRecorder(WithMaxClipBytes(8))

	require.NoError(t, recorder.Start("q-1", 0))
	require.NoError(t, recorder.Append("q-1", []byte("12345678")))

	err := recorder.Append("q-1", []byte("9"))
	assert.ErrorIs(t, err, ErrClipTooLong)

	// The device is free for the next question.
	assert.False(t, recorder.Recording())
	require.NoError(t, recorder.Start("q-2", 0))
}

func TestRecorder_OverlongClipRejectedAtStop(t *testing.T) {
	now := time.Now()
	recorder := newTestRecorder(withClock(func() time.Time { return now }))

	require.NoError(t, recorder.Start("q-1", 5))
	require.NoError(t, recorder.Append("q-1", []byte("audio")))

	now = now.Add(6 * time.Second)
	_, err := recorder.Stop("q-1")
	assert.ErrorIs(t, err, ErrClipTooLong)
	assert.False(t, recorder.Recording())
}

func TestRecorder_AbortReleases(t *testing.T) {
	recorder := newTestRecorder()

	recorder.Abort() // no-op without a session

	require.NoError(t, recorder.Start("q-1", 0))
	recorder.Abort()
	assert.False(t, recorder.Recording())
	require.NoError(t, recorder.Start("q-1", 0))
}
