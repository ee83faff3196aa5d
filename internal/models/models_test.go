package models

import (
	"errors"
	"testing"
)

func TestNullRecordShape(t *testing.T) {
	rec := NullRecord("nothing said", nil)
	if len(rec) != len(SchemaFields)+2 {
		t.Fatalf("expected %d keys, got %d", len(SchemaFields)+2, len(rec))
	}
	for _, key := range SchemaKeys() {
		if _, ok := rec[key]; !ok {
			t.Fatalf("missing key %s", key)
		}
	}
	if rec[OriginalTextKey] != "nothing said" {
		t.Fatalf("unexpected original_text %v", rec[OriginalTextKey])
	}
	if v, ok := rec[ImageURLKey]; !ok || v != nil {
		t.Fatalf("image_url should be an explicit null, got %v", v)
	}

	url := "/images/x.jpg"
	rec = NullRecord("", &url)
	if rec[ImageURLKey] != url {
		t.Fatalf("image_url not set: %v", rec[ImageURLKey])
	}
}

func TestSchemaHasThirtyFields(t *testing.T) {
	if len(SchemaFields) != 30 {
		t.Fatalf("expected 30 extraction fields, got %d", len(SchemaFields))
	}
	seen := map[string]bool{}
	for _, f := range SchemaFields {
		if seen[f.Name] {
			t.Fatalf("duplicate field %s", f.Name)
		}
		seen[f.Name] = true
		if (f.Kind == KindEnum || f.Kind == KindYesNo) && len(f.Values) == 0 {
			t.Fatalf("field %s has no values", f.Name)
		}
	}
	if !IsSchemaKey(OriginalTextKey) || IsSchemaKey(ImageURLKey) {
		t.Fatalf("unexpected schema membership")
	}
}

func TestLooksLikeAudio(t *testing.T) {
	cases := []struct {
		name, contentType string
		want              bool
	}{
		{"memo.M4A", "application/octet-stream", true},
		{"clip.bin", "audio/mpeg", true},
		{"my_audio_note", "", true},
		{"photo.jpg", "image/jpeg", false},
		{"notes.txt", "text/plain", false},
	}
	for _, tc := range cases {
		if got := LooksLikeAudio(tc.name, tc.contentType); got != tc.want {
			t.Fatalf("LooksLikeAudio(%q, %q) = %v", tc.name, tc.contentType, got)
		}
	}
}

func TestTranscriptExtractionInput(t *testing.T) {
	ok := Transcript{Text: "customer bought a ring"}
	if ok.Failed() || ok.ExtractionInput() != "customer bought a ring" {
		t.Fatalf("unexpected transcript input %q", ok.ExtractionInput())
	}
	bad := Transcript{Err: errors.New("timeout")}
	if !bad.Failed() || bad.ExtractionInput() != "Error transcribing audio: timeout" {
		t.Fatalf("unexpected failed input %q", bad.ExtractionInput())
	}
}

func TestImageOnlyInput(t *testing.T) {
	in := ImageOnlyInput(&ImageAttachment{OriginalName: "ring.png"})
	if !IsImageOnlyInput(in) || in != "Image-only upload: ring.png" {
		t.Fatalf("unexpected sentinel %q", in)
	}
	var img *ImageAttachment
	if img.URLRef() != nil {
		t.Fatalf("nil attachment should have no url")
	}
}

func TestParseListFilter(t *testing.T) {
	q := map[string]string{
		"feedbackId":  " 65ab ",
		"salesperson": "Ravi",
		"itemType":    "All",
		"metalType":   "",
		"priceIssue":  "Empty",
		"unknown":     "x",
	}
	f := ParseListFilter(func(k string) string { return q[k] })
	if f.FeedbackID != "65ab" {
		t.Fatalf("unexpected id filter %q", f.FeedbackID)
	}
	if len(f.Fields) != 2 || f.Fields["salesperson_name"] != "Ravi" || f.Fields["reason_price"] != FilterEmpty {
		t.Fatalf("unexpected fields %+v", f.Fields)
	}
	empty := ParseListFilter(func(string) string { return "" })
	if !empty.IsZero() {
		t.Fatalf("expected zero filter")
	}
}
