package ai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"voicecapture/internal/config"
	"voicecapture/internal/models"
)

// Transcriber turns audio into text. Failures are reported inside the Transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, audio models.AudioPayload) models.Transcript
}

// WhisperTranscriber calls the OpenAI audio transcription endpoint.
type WhisperTranscriber struct {
	client *goopenai.Client
	model  string
	log    *zap.Logger
}

// NewWhisperTranscriber builds a transcriber from config.
func NewWhisperTranscriber(cfg config.TranscriptionConfig, log *zap.Logger) (*WhisperTranscriber, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, config.ErrMissingAPIKey
	}
	if log == nil {
		log = zap.NewNop()
	}
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = goopenai.Whisper1
	}
	return &WhisperTranscriber{
		client: goopenai.NewClientWithConfig(clientCfg),
		model:  modelName,
		log:    log,
	}, nil
}

// Transcribe sends audio to Whisper.
func (w *WhisperTranscriber) Transcribe(ctx context.Context, audio models.AudioPayload) models.Transcript {
	if w == nil || w.client == nil {
		return models.Transcript{Err: errors.New("transcriber not configured")}
	}
	if audio.Empty() {
		return models.Transcript{Err: errors.New("empty audio")}
	}
	name := audio.Name
	if name == "" {
		name = "audio.wav"
	}
	resp, err := w.client.CreateTranscription(ctx, goopenai.AudioRequest{
		Model:    w.model,
		FilePath: name,
		Reader:   bytes.NewReader(audio.Data),
	})
	if err != nil {
		w.log.Warn("transcription failed", zap.String("file", name), zap.Error(err))
		return models.Transcript{Err: fmt.Errorf("transcribe %s: %w", name, err)}
	}
	return models.Transcript{Text: strings.TrimSpace(resp.Text)}
}
