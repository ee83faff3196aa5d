package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"voicecapture/internal/models"
)

const fallbackPattern = "feedback_*.json"

// FallbackDir stores records as pretty-printed JSON files when the document
// store cannot take them.
type FallbackDir struct {
	dir string
}

// NewFallbackDir returns a writer rooted at dir.
func NewFallbackDir(dir string) *FallbackDir {
	if dir == "" {
		dir = "./feedback_data"
	}
	return &FallbackDir{dir: dir}
}

// Dir returns the directory files are written to.
func (f *FallbackDir) Dir() string { return f.dir }

// Write stores rec as feedback_<YYYYMMDD_HHMMSS>.json. A file written in the
// same second gets a numeric suffix instead of being overwritten.
func (f *FallbackDir) Write(rec models.Record, now time.Time) (string, error) {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return "", fmt.Errorf("create fallback dir: %w", err)
	}
	body, err := encodeIndented(rec)
	if err != nil {
		return "", err
	}
	stamp := now.Format("20060102_150405")
	for i := 0; i < 1000; i++ {
		name := fmt.Sprintf("feedback_%s.json", stamp)
		if i > 0 {
			name = fmt.Sprintf("feedback_%s_%d.json", stamp, i)
		}
		path := filepath.Join(f.dir, name)
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create fallback file: %w", err)
		}
		if _, err := file.Write(body); err != nil {
			file.Close()
			os.Remove(path)
			return "", fmt.Errorf("write fallback file: %w", err)
		}
		if err := file.Close(); err != nil {
			return "", fmt.Errorf("close fallback file: %w", err)
		}
		return path, nil
	}
	return "", fmt.Errorf("no free fallback file name for %s", stamp)
}

// Pending returns fallback files oldest first.
func (f *FallbackDir) Pending() ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(f.dir, fallbackPattern))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// Read loads a fallback file, restoring created_at as a time.
func (f *FallbackDir) Read(path string) (models.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fallback file: %w", err)
	}
	var rec models.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode fallback file %s: %w", filepath.Base(path), err)
	}
	if rec == nil {
		return nil, fmt.Errorf("fallback file %s is not an object", filepath.Base(path))
	}
	if s, ok := rec[models.CreatedAtKey].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s)); err == nil {
			rec[models.CreatedAtKey] = t.UTC()
		}
	}
	return rec, nil
}

func encodeIndented(rec models.Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return nil, fmt.Errorf("encode fallback record: %w", err)
	}
	return buf.Bytes(), nil
}
