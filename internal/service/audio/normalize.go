package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"voicecapture/internal/config"
	"voicecapture/internal/models"
)

// ConvertedName is the file name given to normalized audio.
const ConvertedName = "converted_audio.wav"

const (
	defaultSampleRate = 16000
	defaultChannels   = 1
	defaultTimeout    = 2 * time.Minute
)

// Normalizer re-encodes uploads to mono PCM WAV with ffmpeg.
type Normalizer struct {
	ffmpeg     string
	sampleRate int
	channels   int
	timeout    time.Duration
	log        *zap.Logger
}

// NewNormalizer builds a Normalizer from the audio config.
func NewNormalizer(cfg config.AudioConfig, log *zap.Logger) *Normalizer {
	if log == nil {
		log = zap.NewNop()
	}
	n := &Normalizer{
		ffmpeg:     cfg.FFmpegPath,
		sampleRate: cfg.SampleRate,
		channels:   cfg.Channels,
		timeout:    cfg.ConvertTimeout,
		log:        log,
	}
	if n.ffmpeg == "" {
		n.ffmpeg = "ffmpeg"
	}
	if n.sampleRate <= 0 {
		n.sampleRate = defaultSampleRate
	}
	if n.channels <= 0 {
		n.channels = defaultChannels
	}
	if n.timeout <= 0 {
		n.timeout = defaultTimeout
	}
	return n
}

// Available reports whether the ffmpeg binary can be found.
func (n *Normalizer) Available() bool {
	_, err := exec.LookPath(n.ffmpeg)
	return err == nil
}

// Normalize returns in re-encoded as WAV. Any conversion failure returns in unchanged.
func (n *Normalizer) Normalize(ctx context.Context, in models.AudioPayload) models.AudioPayload {
	if in.Empty() {
		return in
	}
	data, err := n.convert(ctx, in)
	if err != nil {
		n.log.Warn("audio conversion failed, using original upload",
			zap.String("file", in.Name),
			zap.Error(err))
		return in
	}
	return models.AudioPayload{
		Name:        ConvertedName,
		ContentType: "audio/wav",
		Data:        data,
	}
}

func (n *Normalizer) convert(ctx context.Context, in models.AudioPayload) ([]byte, error) {
	dir, err := os.MkdirTemp("", "voicecapture-audio-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	ext := strings.ToLower(filepath.Ext(in.Name))
	if ext == "" {
		ext = ".bin"
	}
	source := filepath.Join(dir, "input"+ext)
	dest := filepath.Join(dir, ConvertedName)
	if err := os.WriteFile(source, in.Data, 0o600); err != nil {
		return nil, fmt.Errorf("write temp input: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-vn",
		"-ac", strconv.Itoa(n.channels),
		"-ar", strconv.Itoa(n.sampleRate),
		"-c:a", "pcm_s16le",
		dest,
	}
	cmd := exec.CommandContext(ctx, n.ffmpeg, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("ffmpeg convert: %w: %s", err, strings.TrimSpace(string(output)))
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		return nil, fmt.Errorf("read converted audio: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("ffmpeg produced empty output")
	}
	return data, nil
}
