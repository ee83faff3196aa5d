package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"voicecapture/internal/models"
)

type fakeChatModel struct {
	reply       string
	err         error
	prompts     []string
	temperature *float32
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	for _, msg := range input {
		f.prompts = append(f.prompts, msg.Content)
	}
	f.temperature = model.GetCommonOptions(nil, opts...).Temperature
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func assertSchemaShape(t *testing.T, rec models.Record) {
	t.Helper()
	for _, key := range models.SchemaKeys() {
		if _, ok := rec[key]; !ok {
			t.Fatalf("record missing key %s", key)
		}
	}
	if len(rec) != len(models.SchemaFields)+2 {
		t.Fatalf("expected %d keys, got %d: %v", len(models.SchemaFields)+2, len(rec), rec)
	}
}

func TestExtractParsesFencedReply(t *testing.T) {
	fake := &fakeChatModel{reply: "```json\n{\"purchased\": \"No\", \"reason_price\": \"Yes\", \"asked_price\": 45000, \"mystery\": 1}\n```"}
	ex := NewExtractor(fake, nil)

	rec := ex.Extract(context.Background(), "customer found the price too high", nil)
	assertSchemaShape(t, rec)
	if rec["purchased"] != "No" || rec["reason_price"] != "Yes" || rec["asked_price"] != float64(45000) {
		t.Fatalf("unexpected values %v", rec)
	}
	if rec[models.OriginalTextKey] != "customer found the price too high" {
		t.Fatalf("original_text should default to the input, got %v", rec[models.OriginalTextKey])
	}
	if rec[models.ImageURLKey] != nil {
		t.Fatalf("image_url should be null without an image, got %v", rec[models.ImageURLKey])
	}
	if _, ok := rec["mystery"]; ok {
		t.Fatalf("unknown field kept")
	}
	if fake.temperature == nil || *fake.temperature != 0 {
		t.Fatalf("expected temperature 0, got %v", fake.temperature)
	}
	if !strings.Contains(fake.prompts[0], "customer found the price too high") {
		t.Fatalf("prompt does not contain transcript")
	}
}

func TestExtractForcesImageURL(t *testing.T) {
	fake := &fakeChatModel{reply: `{"item_type": "Ring", "image_url": "https://model.example/guess.png"}`}
	ex := NewExtractor(fake, nil)
	img := &models.ImageAttachment{OriginalName: "ring.jpg", UniqueName: "20240101_101010_ring.jpg", URL: "/images/x.jpg"}

	rec := ex.Extract(context.Background(), "a ring", img)
	assertSchemaShape(t, rec)
	if rec[models.ImageURLKey] != "/images/x.jpg" {
		t.Fatalf("image_url not forced: %v", rec[models.ImageURLKey])
	}
	if !strings.Contains(fake.prompts[0], "An image file 'ring.jpg' is also provided") {
		t.Fatalf("prompt missing image context: %s", fake.prompts[0])
	}
}

func TestExtractTransportFailure(t *testing.T) {
	ex := NewExtractor(&fakeChatModel{err: errors.New("connection refused")}, nil)
	img := &models.ImageAttachment{URL: "/images/x.jpg"}

	rec := ex.Extract(context.Background(), "hello", img)
	assertSchemaShape(t, rec)
	text, _ := rec[models.OriginalTextKey].(string)
	if !strings.HasPrefix(text, "Error extracting feedback: ") || !strings.Contains(text, "connection refused") {
		t.Fatalf("unexpected original_text %q", text)
	}
	if rec[models.ImageURLKey] != "/images/x.jpg" {
		t.Fatalf("image_url not kept on failure: %v", rec[models.ImageURLKey])
	}
	for _, f := range models.SchemaFields {
		if rec[f.Name] != nil {
			t.Fatalf("field %s should be null", f.Name)
		}
	}
}

func TestExtractUnparseableReply(t *testing.T) {
	ex := NewExtractor(&fakeChatModel{reply: "Sorry, I cannot help with that."}, nil)
	rec := ex.Extract(context.Background(), "transcript text", nil)
	assertSchemaShape(t, rec)
	if rec[models.OriginalTextKey] != "transcript text" {
		t.Fatalf("unexpected original_text %v", rec[models.OriginalTextKey])
	}

	ex = NewExtractor(&fakeChatModel{reply: "   "}, nil)
	rec = ex.Extract(context.Background(), "transcript text", nil)
	if !strings.Contains(rec.String(models.OriginalTextKey), ErrEmptyReply.Error()) {
		t.Fatalf("expected empty reply error, got %v", rec[models.OriginalTextKey])
	}
}

func TestExtractPythonLiteralReply(t *testing.T) {
	ex := NewExtractor(&fakeChatModel{reply: "{'design_type': \"Men's Jewellery\", 'purchased': None}"}, nil)
	rec := ex.Extract(context.Background(), "men's chain", nil)
	if rec["design_type"] != "Men's Jewellery" || rec["purchased"] != nil {
		t.Fatalf("unexpected literal parse %v", rec)
	}
}

func TestExtractImageOnlyPrompt(t *testing.T) {
	fake := &fakeChatModel{reply: `{}`}
	ex := NewExtractor(fake, nil)
	img := &models.ImageAttachment{OriginalName: "display.png", URL: "/images/20240101_000000_display.png"}
	input := models.ImageOnlyInput(img)

	rec := ex.Extract(context.Background(), input, img)
	assertSchemaShape(t, rec)
	if rec[models.OriginalTextKey] != input {
		t.Fatalf("unexpected original_text %v", rec[models.OriginalTextKey])
	}
	prompt := fake.prompts[0]
	if !strings.Contains(prompt, "extracts structured feedback data from jewellery store customer images") {
		t.Fatalf("image-only template not used: %s", prompt)
	}
	if !strings.Contains(prompt, `"Bangle" | "Chain"`) {
		t.Fatalf("schema enumeration missing from prompt")
	}
}

func TestStripCodeFence(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n{\"a\":1}```":       `{"a":1}`,
		"  {\"a\":1}  ":           `{"a":1}`,
	}
	for in, want := range cases {
		if got := StripCodeFence(in); got != want {
			t.Fatalf("StripCodeFence(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewChatModelRequiresKey(t *testing.T) {
	if _, err := NewChatModel(context.Background(), configWithProvider("openai", "")); err == nil {
		t.Fatalf("expected missing key error")
	}
	if _, err := NewChatModel(context.Background(), configWithProvider("llama", "k")); err == nil {
		t.Fatalf("expected invalid provider error")
	}
}
