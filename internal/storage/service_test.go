package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"voicecapture/internal/models"
)

type failingStore struct{ err error }

func (f failingStore) Insert(context.Context, models.Record) (string, error) { return "", f.err }
func (f failingStore) List(context.Context, models.ListFilter) ([]models.Record, error) {
	return nil, f.err
}
func (f failingStore) Get(context.Context, string) (models.Record, error) { return nil, f.err }
func (f failingStore) Delete(context.Context, string) (bool, error)       { return false, f.err }
func (f failingStore) Ping(context.Context) error                         { return f.err }
func (f failingStore) Collection() string                                 { return "returned_cust" }
func (f failingStore) Close(context.Context) error                        { return nil }

type fakeEvents struct {
	mu    sync.Mutex
	kinds []string
}

func (f *fakeEvents) Publish(ctx context.Context, kind string, payload any) error {
	f.mu.Lock()
	f.kinds = append(f.kinds, kind)
	f.mu.Unlock()
	return nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestSaveFallsBackToFile(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)
	svc := NewService(failingStore{err: errors.New("connection refused")}, NewFallbackDir(dir), zap.NewNop(), WithClock(fixedClock(now)))

	in := models.Record{"purchased": "No", "design_type": "Men's Jewellery", "original_text": "வணக்கம்"}
	res, err := svc.Save(context.Background(), in)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !res.Fallback() || filepath.Base(res.Filename) != "feedback_20240309_140506.json" {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, err := os.Stat(res.Filename); err != nil {
		t.Fatalf("fallback file missing: %v", err)
	}

	got, err := svc.fallback.Read(res.Filename)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	for k, v := range in {
		if got[k] != v {
			t.Fatalf("field %s: want %v got %v", k, v, got[k])
		}
	}
	if ts, ok := got[models.CreatedAtKey].(time.Time); !ok || !ts.Equal(now) {
		t.Fatalf("created_at not round-tripped: %v", got[models.CreatedAtKey])
	}
	if _, ok := in[models.CreatedAtKey]; ok {
		t.Fatalf("caller record should not be mutated")
	}

	raw, err := os.ReadFile(res.Filename)
	if err != nil {
		t.Fatalf("read raw: %v", err)
	}
	if !strings.Contains(string(raw), "வணக்கம்") || !strings.Contains(string(raw), "\n  \"") {
		t.Fatalf("expected pretty non-escaped json, got %s", raw)
	}
}

func TestSaveWithoutStoreAvoidsOverwrite(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)
	svc := NewService(nil, NewFallbackDir(dir), nil, WithClock(fixedClock(now)))

	first, err := svc.Save(context.Background(), "{'purchased': 'Yes'}")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	second, err := svc.Save(context.Background(), 42)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if first.Filename == second.Filename {
		t.Fatalf("same-second saves overwrote each other")
	}
	if filepath.Base(second.Filename) != "feedback_20240309_140506_1.json" {
		t.Fatalf("unexpected suffix name %s", second.Filename)
	}
	rec, err := svc.fallback.Read(second.Filename)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if rec["raw_data"] != "42" {
		t.Fatalf("non-map input should be wrapped, got %v", rec)
	}
	if got := svc.List(context.Background(), models.ListFilter{}); got == nil || len(got) != 0 {
		t.Fatalf("list without store should be empty, got %v", got)
	}
	if _, err := svc.Delete(context.Background(), "1"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestSaveFailsWhenFallbackUnwritable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	svc := NewService(nil, NewFallbackDir(filepath.Join(blocker, "sub")), nil)
	if _, err := svc.Save(context.Background(), models.Record{}); err == nil {
		t.Fatalf("expected error when fallback dir cannot be created")
	}
}

func TestServiceSaveListDelete(t *testing.T) {
	store := newSQLiteStore(t)
	events := &fakeEvents{}
	svc := NewService(store, NewFallbackDir(t.TempDir()), nil, WithEvents(events))
	ctx := context.Background()

	res, err := svc.Save(ctx, models.Record{"salesperson_name": "Ravi", "image_url": "/images/p.jpg"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if res.Status != models.SaveStatusStored || res.ID == "" || res.Collection != "returned_cust" {
		t.Fatalf("unexpected save result %+v", res)
	}
	noImage, err := svc.Save(ctx, models.Record{"salesperson_name": "Anu"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	list := svc.List(ctx, models.ListFilter{Fields: map[string]string{"salesperson_name": "Ravi"}})
	if len(list) != 1 || list[0][models.IDKey] != res.ID {
		t.Fatalf("unexpected list %v", list)
	}

	del, err := svc.Delete(ctx, res.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !del.Deleted || del.ImageURL == nil || *del.ImageURL != "/images/p.jpg" {
		t.Fatalf("unexpected delete result %+v", del)
	}
	if _, err := store.Get(ctx, res.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("record still retrievable: %v", err)
	}
	if _, err := svc.Delete(ctx, res.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for deleted id, got %v", err)
	}
	if _, err := svc.Delete(ctx, "not-an-id"); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}

	del, err = svc.Delete(ctx, noImage.ID)
	if err != nil || !del.Deleted || del.ImageURL != nil {
		t.Fatalf("expected deletion without image, got %+v %v", del, err)
	}
	if strings.Join(events.kinds, ",") != "saved,saved,deleted,deleted" {
		t.Fatalf("unexpected events %v", events.kinds)
	}
}

func TestServiceListSwallowsStoreErrors(t *testing.T) {
	svc := NewService(failingStore{err: errors.New("down")}, NewFallbackDir(t.TempDir()), nil)
	got := svc.List(context.Background(), models.ListFilter{})
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty list, got %v", got)
	}
}

func TestReplayFallback(t *testing.T) {
	dir := t.TempDir()
	offline := NewService(nil, NewFallbackDir(dir), nil)
	for _, name := range []string{"Ravi", "Anu"} {
		if _, err := offline.Save(context.Background(), models.Record{"salesperson_name": name}); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "feedback_00000000_000000.json"), []byte("not json"), 0o644); err != nil {
		t.Fatalf("write junk: %v", err)
	}

	store := newSQLiteStore(t)
	online := NewService(store, NewFallbackDir(dir), nil)
	n, err := online.ReplayFallback(context.Background())
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 replayed, got %d", n)
	}
	if got := online.List(context.Background(), models.ListFilter{}); len(got) != 2 {
		t.Fatalf("expected 2 stored records, got %d", len(got))
	}
	pending, err := online.fallback.Pending()
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("only the unreadable file should remain, got %v", pending)
	}

	if _, err := NewService(failingStore{err: errors.New("down")}, NewFallbackDir(dir), nil).ReplayFallback(context.Background()); err == nil {
		t.Fatalf("expected replay to fail when store is down")
	}
}
