package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/compose"
	"go.uber.org/zap"

	"voicecapture/internal/models"
	"voicecapture/internal/service/ai"
)

// ErrNoInput is returned for a request with neither audio nor image.
var ErrNoInput = errors.New("no audio or image provided")

// Normalizer re-encodes uploaded audio.
type Normalizer interface {
	Normalize(ctx context.Context, in models.AudioPayload) models.AudioPayload
}

// Extractor builds a feedback record from a transcript.
type Extractor interface {
	Extract(ctx context.Context, input string, image *models.ImageAttachment) models.Record
}

// Saver persists a record.
type Saver interface {
	Save(ctx context.Context, data any) (models.SaveResult, error)
}

// Request is everything one upload carries through the stages.
type Request struct {
	ID    string
	Audio models.AudioPayload
	Image *models.ImageAttachment
}

// Result is the outcome of a completed run.
type Result struct {
	RequestID        string            `json:"request_id"`
	Transcript       string            `json:"transcript"`
	TranscriptFailed bool              `json:"transcript_failed"`
	Record           models.Record     `json:"record"`
	Save             models.SaveResult `json:"save"`
}

// job is the value passed between chain stages. One job per request.
type job struct {
	req        Request
	audio      models.AudioPayload
	transcript models.Transcript
	input      string
	record     models.Record
	save       models.SaveResult
}

func (j *job) imageOnly() bool {
	return j.req.Audio.Empty() && j.req.Image != nil
}

// Pipeline runs normalize, transcribe, extract and persist in that order.
type Pipeline struct {
	normalizer  Normalizer
	transcriber ai.Transcriber
	extractor   Extractor
	saver       Saver
	log         *zap.Logger
	runnable    compose.Runnable[*job, *job]
}

// New compiles the stage chain.
func New(ctx context.Context, normalizer Normalizer, transcriber ai.Transcriber, extractor Extractor, saver Saver, log *zap.Logger) (*Pipeline, error) {
	if normalizer == nil || transcriber == nil || extractor == nil || saver == nil {
		return nil, errors.New("pipeline stages must not be nil")
	}
	if log == nil {
		log = zap.NewNop()
	}
	p := &Pipeline{
		normalizer:  normalizer,
		transcriber: transcriber,
		extractor:   extractor,
		saver:       saver,
		log:         log,
	}

	chain := compose.NewChain[*job, *job]()
	chain.
		AppendLambda(p.stage("normalize", p.normalize)).
		AppendLambda(p.stage("transcribe", p.transcribe)).
		AppendLambda(p.stage("extract", p.extract)).
		AppendLambda(p.stage("persist", p.persist))
	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile pipeline: %w", err)
	}
	p.runnable = runnable
	return p, nil
}

// Run processes one request. Stage failures that can degrade do so inside
// the stage; anything else aborts the run with an error.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Audio.Empty() && req.Image == nil {
		return nil, ErrNoInput
	}
	start := time.Now()
	out, err := p.runnable.Invoke(ctx, &job{req: req})
	if err != nil {
		p.log.Error("pipeline failed",
			zap.String("request_id", req.ID),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, err
	}
	p.log.Info("pipeline finished",
		zap.String("request_id", req.ID),
		zap.String("save_status", out.save.Status),
		zap.Duration("elapsed", time.Since(start)))
	return &Result{
		RequestID:        req.ID,
		Transcript:       out.input,
		TranscriptFailed: out.transcript.Failed(),
		Record:           out.record,
		Save:             out.save,
	}, nil
}

type stageFunc func(ctx context.Context, j *job) error

// stage wraps fn as a chain lambda that logs and turns panics into errors.
func (p *Pipeline) stage(name string, fn stageFunc) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, j *job) (out *job, err error) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%s stage panic: %v", name, r)
			}
			fields := []zap.Field{
				zap.String("request_id", j.req.ID),
				zap.String("stage", name),
				zap.Duration("elapsed", time.Since(start)),
			}
			if err != nil {
				p.log.Warn("stage failed", append(fields, zap.Error(err))...)
				return
			}
			p.log.Debug("stage done", fields...)
		}()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := fn(ctx, j); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return j, nil
	})
}

func (p *Pipeline) normalize(ctx context.Context, j *job) error {
	if j.imageOnly() {
		return nil
	}
	j.audio = p.normalizer.Normalize(ctx, j.req.Audio)
	return nil
}

func (p *Pipeline) transcribe(ctx context.Context, j *job) error {
	if j.imageOnly() {
		j.input = models.ImageOnlyInput(j.req.Image)
		return nil
	}
	j.transcript = p.transcriber.Transcribe(ctx, j.audio)
	j.input = j.transcript.ExtractionInput()
	return nil
}

func (p *Pipeline) extract(ctx context.Context, j *job) error {
	j.record = p.extractor.Extract(ctx, j.input, j.req.Image)
	if j.record == nil {
		return errors.New("extractor returned no record")
	}
	return nil
}

func (p *Pipeline) persist(ctx context.Context, j *job) error {
	res, err := p.saver.Save(ctx, j.record)
	if err != nil {
		return err
	}
	j.save = res
	return nil
}

// FallbackRecord is the null-filled record saved when a run aborts.
func FallbackRecord(err error, image *models.ImageAttachment) models.Record {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return models.NullRecord("Audio processing failed: "+msg, image.URLRef())
}
