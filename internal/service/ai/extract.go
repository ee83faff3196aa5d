package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"voicecapture/internal/coerce"
	"voicecapture/internal/models"
)

// ErrEmptyReply is returned when the model answers with no content.
var ErrEmptyReply = errors.New("model returned an empty reply")

// Extractor turns transcripts into feedback records with a chat model.
type Extractor struct {
	model model.BaseChatModel
	log   *zap.Logger
}

// NewExtractor wraps a chat model.
func NewExtractor(chatModel model.BaseChatModel, log *zap.Logger) *Extractor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{model: chatModel, log: log}
}

// Extract returns a record holding every schema key. Failures produce a
// null-filled record instead of an error. image_url always comes from image,
// never from the model reply.
func (e *Extractor) Extract(ctx context.Context, input string, image *models.ImageAttachment) models.Record {
	imageURL := image.URLRef()

	reply, err := e.complete(ctx, buildPrompt(input, image))
	if err != nil {
		e.log.Warn("feedback extraction failed", zap.Error(err))
		return models.NullRecord("Error extracting feedback: "+err.Error(), imageURL)
	}

	parsed := coerce.FromText(StripCodeFence(reply))
	if coerce.IsWrapped(parsed) {
		e.log.Warn("model reply is not a JSON object",
			zap.String("reply", snippet(reply)))
		return models.NullRecord(input, imageURL)
	}

	rec := project(parsed, input, e.log)
	rec.SetImageURL(imageURL)
	return rec
}

func (e *Extractor) complete(ctx context.Context, prompt string) (string, error) {
	if e == nil || e.model == nil {
		return "", errors.New("chat model not configured")
	}
	msg, err := e.model.Generate(ctx, []*schema.Message{
		schema.UserMessage(prompt),
	}, model.WithTemperature(0))
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", ErrEmptyReply
	}
	return msg.Content, nil
}

// project keeps the schema keys of parsed, nulls the missing ones and
// defaults original_text to the extraction input.
func project(parsed map[string]any, input string, log *zap.Logger) models.Record {
	rec := models.NullRecord(input, nil)
	var dropped []string
	for k, v := range parsed {
		if k == models.ImageURLKey {
			continue
		}
		if !models.IsSchemaKey(k) {
			dropped = append(dropped, k)
			continue
		}
		rec[k] = v
	}
	if s, ok := rec[models.OriginalTextKey].(string); !ok || strings.TrimSpace(s) == "" {
		rec[models.OriginalTextKey] = input
	}
	if len(dropped) > 0 {
		log.Debug("dropped unknown fields from model reply", zap.Strings("fields", dropped))
	}
	return rec
}

// StripCodeFence removes a surrounding ```json ... ``` block.
func StripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := trimmed[3:]
	body = strings.TrimLeft(body, " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = body[4:]
		body = strings.TrimLeft(body, " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func snippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
