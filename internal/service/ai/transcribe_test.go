package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"voicecapture/internal/config"
	"voicecapture/internal/models"
)

func configWithProvider(provider, key string) config.ProviderConfig {
	return config.ProviderConfig{Provider: provider, Model: "test-model", APIKey: key}
}

func TestWhisperTranscriberSuccess(t *testing.T) {
	var gotModel, gotFile string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio/transcriptions") {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotModel = r.FormValue("model")
		if _, hdr, err := r.FormFile("file"); err == nil {
			gotFile = hdr.Filename
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": " customer liked the bangle "})
	}))
	defer srv.Close()

	tr, err := NewWhisperTranscriber(config.TranscriptionConfig{APIKey: "k", BaseURL: srv.URL + "/v1"}, nil)
	if err != nil {
		t.Fatalf("new transcriber: %v", err)
	}
	got := tr.Transcribe(context.Background(), models.AudioPayload{Name: "converted_audio.wav", Data: []byte("RIFF")})
	if got.Failed() {
		t.Fatalf("unexpected failure: %v", got.Err)
	}
	if got.Text != "customer liked the bangle" {
		t.Fatalf("unexpected text %q", got.Text)
	}
	if gotModel != "whisper-1" || gotFile != "converted_audio.wav" {
		t.Fatalf("unexpected request model=%q file=%q", gotModel, gotFile)
	}
}

func TestWhisperTranscriberFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr, err := NewWhisperTranscriber(config.TranscriptionConfig{APIKey: "k", BaseURL: srv.URL + "/v1"}, nil)
	if err != nil {
		t.Fatalf("new transcriber: %v", err)
	}
	got := tr.Transcribe(context.Background(), models.AudioPayload{Name: "a.wav", Data: []byte("RIFF")})
	if !got.Failed() {
		t.Fatalf("expected failure")
	}
	if !strings.HasPrefix(got.ExtractionInput(), "Error transcribing audio: ") {
		t.Fatalf("unexpected extraction input %q", got.ExtractionInput())
	}
	if empty := tr.Transcribe(context.Background(), models.AudioPayload{}); !empty.Failed() {
		t.Fatalf("empty audio should fail")
	}
}

func TestNewWhisperTranscriberRequiresKey(t *testing.T) {
	if _, err := NewWhisperTranscriber(config.TranscriptionConfig{}, nil); !errors.Is(err, config.ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}
