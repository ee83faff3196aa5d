package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"voicecapture/internal/models"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(name string) {
	r.mu.Lock()
	r.calls = append(r.calls, name)
	r.mu.Unlock()
}

type fakeNormalizer struct{ rec *recorder }

func (f fakeNormalizer) Normalize(ctx context.Context, in models.AudioPayload) models.AudioPayload {
	f.rec.add("normalize")
	return models.AudioPayload{Name: "converted_audio.wav", Data: append([]byte("wav:"), in.Data...)}
}

type fakeTranscriber struct {
	rec *recorder
	err error
}

func (f fakeTranscriber) Transcribe(ctx context.Context, audio models.AudioPayload) models.Transcript {
	f.rec.add("transcribe")
	if f.err != nil {
		return models.Transcript{Err: f.err}
	}
	return models.Transcript{Text: "said " + string(audio.Data)}
}

type fakeExtractor struct {
	rec   *recorder
	panic bool
}

func (f fakeExtractor) Extract(ctx context.Context, input string, image *models.ImageAttachment) models.Record {
	f.rec.add("extract")
	if f.panic {
		panic("model exploded")
	}
	rec := models.NullRecord(input, image.URLRef())
	rec["purchased"] = "Yes"
	return rec
}

type fakeSaver struct {
	rec   *recorder
	err   error
	saved []models.Record
	mu    sync.Mutex
}

func (f *fakeSaver) Save(ctx context.Context, data any) (models.SaveResult, error) {
	f.rec.add("persist")
	if f.err != nil {
		return models.SaveResult{}, f.err
	}
	f.mu.Lock()
	f.saved = append(f.saved, data.(models.Record))
	f.mu.Unlock()
	return models.SaveResult{Status: models.SaveStatusStored, ID: "1"}, nil
}

func newTestPipeline(t *testing.T, tr fakeTranscriber, ex fakeExtractor, saver *fakeSaver) *Pipeline {
	t.Helper()
	p, err := New(context.Background(), fakeNormalizer{rec: tr.rec}, tr, ex, saver, zap.NewNop())
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return p
}

func TestRunStagesInOrder(t *testing.T) {
	rec := &recorder{}
	saver := &fakeSaver{rec: rec}
	p := newTestPipeline(t, fakeTranscriber{rec: rec}, fakeExtractor{rec: rec}, saver)

	res, err := p.Run(context.Background(), Request{ID: "r1", Audio: models.AudioPayload{Name: "a.mp3", Data: []byte("abc")}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []string{"normalize", "transcribe", "extract", "persist"}
	if strings.Join(rec.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected stage order %v", rec.calls)
	}
	if res.Transcript != "said wav:abc" || res.TranscriptFailed {
		t.Fatalf("unexpected transcript %+v", res)
	}
	if res.Record["purchased"] != "Yes" || res.Save.Status != models.SaveStatusStored {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(saver.saved) != 1 || saver.saved[0][models.OriginalTextKey] != "said wav:abc" {
		t.Fatalf("unexpected saved records %v", saver.saved)
	}
}

func TestRunContinuesAfterTranscriptionFailure(t *testing.T) {
	rec := &recorder{}
	p := newTestPipeline(t, fakeTranscriber{rec: rec, err: errors.New("quota")}, fakeExtractor{rec: rec}, &fakeSaver{rec: rec})

	res, err := p.Run(context.Background(), Request{ID: "r2", Audio: models.AudioPayload{Data: []byte("x")}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.TranscriptFailed || res.Record[models.OriginalTextKey] != "Error transcribing audio: quota" {
		t.Fatalf("expected degraded continuation, got %+v", res)
	}
	if len(rec.calls) != 4 {
		t.Fatalf("all stages should run, got %v", rec.calls)
	}
}

func TestRunImageOnly(t *testing.T) {
	rec := &recorder{}
	p := newTestPipeline(t, fakeTranscriber{rec: rec}, fakeExtractor{rec: rec}, &fakeSaver{rec: rec})
	img := &models.ImageAttachment{OriginalName: "tray.jpg", URL: "/images/20240101_000000_tray.jpg"}

	res, err := p.Run(context.Background(), Request{ID: "r3", Image: img})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.Join(rec.calls, ",") != "extract,persist" {
		t.Fatalf("audio stages should be skipped, got %v", rec.calls)
	}
	if res.Record[models.OriginalTextKey] != "Image-only upload: tray.jpg" {
		t.Fatalf("unexpected original_text %v", res.Record[models.OriginalTextKey])
	}
	if res.Record[models.ImageURLKey] != img.URL {
		t.Fatalf("unexpected image_url %v", res.Record[models.ImageURLKey])
	}
}

func TestRunAbortsOnPanicAndSaveError(t *testing.T) {
	rec := &recorder{}
	p := newTestPipeline(t, fakeTranscriber{rec: rec}, fakeExtractor{rec: rec, panic: true}, &fakeSaver{rec: rec})
	_, err := p.Run(context.Background(), Request{ID: "r4", Audio: models.AudioPayload{Data: []byte("x")}})
	if err == nil || !strings.Contains(err.Error(), "model exploded") {
		t.Fatalf("expected panic error, got %v", err)
	}
	for _, c := range rec.calls {
		if c == "persist" {
			t.Fatalf("persist must not run after an aborted stage")
		}
	}

	rec = &recorder{}
	p = newTestPipeline(t, fakeTranscriber{rec: rec}, fakeExtractor{rec: rec}, &fakeSaver{rec: rec, err: errors.New("disk full")})
	if _, err := p.Run(context.Background(), Request{Audio: models.AudioPayload{Data: []byte("x")}}); err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected save error, got %v", err)
	}
}

func TestRunRejectsEmptyRequest(t *testing.T) {
	rec := &recorder{}
	p := newTestPipeline(t, fakeTranscriber{rec: rec}, fakeExtractor{rec: rec}, &fakeSaver{rec: rec})
	if _, err := p.Run(context.Background(), Request{}); !errors.Is(err, ErrNoInput) {
		t.Fatalf("expected ErrNoInput, got %v", err)
	}
	if len(rec.calls) != 0 {
		t.Fatalf("no stage should run, got %v", rec.calls)
	}
}

func TestConcurrentRunsKeepRequestData(t *testing.T) {
	rec := &recorder{}
	saver := &fakeSaver{rec: rec}
	p := newTestPipeline(t, fakeTranscriber{rec: rec}, fakeExtractor{rec: rec}, saver)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := []byte{byte('a' + i)}
			img := &models.ImageAttachment{URL: "/images/" + string(payload) + ".jpg"}
			res, err := p.Run(context.Background(), Request{Audio: models.AudioPayload{Data: payload}, Image: img})
			if err != nil {
				t.Errorf("run %d: %v", i, err)
				return
			}
			if res.Record[models.OriginalTextKey] != "said wav:"+string(payload) || res.Record[models.ImageURLKey] != img.URL {
				t.Errorf("run %d got another request's data: %v", i, res.Record)
			}
		}(i)
	}
	wg.Wait()
}

func TestFallbackRecord(t *testing.T) {
	img := &models.ImageAttachment{URL: "/images/x.jpg"}
	rec := FallbackRecord(errors.New("boom"), img)
	if rec[models.OriginalTextKey] != "Audio processing failed: boom" || rec[models.ImageURLKey] != "/images/x.jpg" {
		t.Fatalf("unexpected fallback record %v", rec)
	}
	if rec["purchased"] != nil {
		t.Fatalf("fallback fields should be null")
	}
}
