package audio

import (
	"bytes"
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/classward/attempt-engine/internal/utils"
)

// Transcriber converts a recorded clip into text. The grading
// collaborator's /transcribe endpoint satisfies this, as does Whisper.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, clip []byte) (string, error)
}

// WhisperTranscriber transcribes clips through an OpenAI-compatible
// audio API.
type WhisperTranscriber struct {
	api    *openai.Client
	model  string
	logger utils.Logger
}

// NewWhisperTranscriber wraps an OpenAI-compatible endpoint. An empty
// baseURL targets the public API; an empty model falls back to whisper-1.
func NewWhisperTranscriber(baseURL, apiKey, model string, logger utils.Logger) *WhisperTranscriber {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if model == "" {
		model = openai.Whisper1
	}
	if logger == nil {
		logger = utils.NewDefaultLogger()
	}
	return &WhisperTranscriber{
		api:    openai.NewClientWithConfig(config),
		model:  model,
		logger: logger,
	}
}

func (w *WhisperTranscriber) Transcribe(ctx context.Context, filename string, clip []byte) (string, error) {
	resp, err := w.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: filename,
		Reader:   bytes.NewReader(clip),
	})
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}

	w.logger.Debug("Clip transcribed", "filename", filename, "chars", len(resp.Text))
	return resp.Text, nil
}
