package models

import (
	"fmt"
	"path/filepath"
	"strings"
)

// AudioPayload is an uploaded recording held in memory.
type AudioPayload struct {
	Name        string
	ContentType string
	Data        []byte
}

// Empty reports whether the payload carries no audio bytes.
func (a AudioPayload) Empty() bool {
	return len(a.Data) == 0
}

// AudioExtensions lists the file extensions accepted as audio uploads.
var AudioExtensions = []string{".wav", ".mp3", ".m4a", ".webm", ".ogg", ".flac", ".aac"}

// LooksLikeAudio accepts an upload when its content type is audio/*, its
// extension is a known audio extension or its name mentions audio.
func LooksLikeAudio(filename, contentType string) bool {
	if strings.HasPrefix(strings.ToLower(contentType), "audio/") {
		return true
	}
	ext := strings.ToLower(filepath.Ext(filename))
	for _, known := range AudioExtensions {
		if ext == known {
			return true
		}
	}
	return strings.Contains(strings.ToLower(filename), "audio")
}

// ImageAttachment describes the optional photo sent with a recording.
type ImageAttachment struct {
	OriginalName string `json:"original_filename"`
	UniqueName   string `json:"unique_filename"`
	Path         string `json:"path"`
	ContentType  string `json:"content_type"`
	Size         int64  `json:"size"`
	URL          string `json:"image_url"`
	Saved        bool   `json:"saved"`
}

// URLRef returns the image url for record fields, nil without an attachment.
func (img *ImageAttachment) URLRef() *string {
	if img == nil || img.URL == "" {
		return nil
	}
	url := img.URL
	return &url
}

// ImageOnlyPrefix marks extraction input that has no transcript.
const ImageOnlyPrefix = "Image-only upload:"

// ImageOnlyInput builds the sentinel extraction input for an image without audio.
func ImageOnlyInput(img *ImageAttachment) string {
	name := ""
	if img != nil {
		name = img.OriginalName
	}
	return fmt.Sprintf("%s %s", ImageOnlyPrefix, name)
}

// IsImageOnlyInput reports whether input is the image-only sentinel.
func IsImageOnlyInput(input string) bool {
	return strings.HasPrefix(input, ImageOnlyPrefix)
}

// Transcript is the tagged result of speech-to-text.
type Transcript struct {
	Text string
	Err  error
}

// Failed reports a transcription error.
func (t Transcript) Failed() bool {
	return t.Err != nil
}

// ExtractionInput is the text handed to extraction. A failed transcript still
// continues through the pipeline as a descriptive error string.
func (t Transcript) ExtractionInput() string {
	if t.Err != nil {
		return "Error transcribing audio: " + t.Err.Error()
	}
	return t.Text
}
