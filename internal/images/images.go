package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"voicecapture/internal/config"
	"voicecapture/internal/models"
)

// URLPrefix is the route images are served under.
const URLPrefix = "/images/"

var (
	// ErrInvalidName is returned for names that are not a plain base name.
	ErrInvalidName = errors.New("images: invalid file name")
	// ErrNotFound is returned when no stored image has the name.
	ErrNotFound = errors.New("images: not found")
)

// Object is an opened image.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// Store persists image bytes by unique name.
type Store interface {
	Save(ctx context.Context, name, contentType string, data []byte) error
	Open(ctx context.Context, name string) (*Object, error)
	// Delete reports whether a file was removed.
	Delete(ctx context.Context, name string) (bool, error)
	// Location is the backend path of name, for logs and debug output.
	Location(name string) string
}

// NewStore builds the configured backend.
func NewStore(ctx context.Context, cfg config.ImagesConfig, log *zap.Logger) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "local":
		return NewLocalStore(cfg.Dir)
	case "s3":
		return NewS3Store(ctx, cfg.S3, log)
	default:
		return nil, fmt.Errorf("unsupported image backend %q", cfg.Backend)
	}
}

// UniqueName prefixes the base name of original with a second-resolution
// timestamp.
func UniqueName(original string, now time.Time) string {
	base := baseName(original)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return fmt.Sprintf("%s_%s%s", now.Format("20060102_150405"), stem, ext)
}

func baseName(name string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	if base == "." || base == ".." || base == "/" {
		return "image"
	}
	return base
}

// ValidateName rejects anything other than a plain file name.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return ErrInvalidName
	}
	return nil
}

// NameFromURL strips the /images/ or images/ prefix from an image url.
func NameFromURL(url string) string {
	name := strings.TrimSpace(url)
	if name == "" || name == "null" {
		return ""
	}
	if strings.HasPrefix(name, URLPrefix) {
		return strings.TrimPrefix(name, URLPrefix)
	}
	return strings.TrimPrefix(name, strings.TrimPrefix(URLPrefix, "/"))
}

// Service names, stores and removes image attachments.
type Service struct {
	store Store
	log   *zap.Logger
	now   func() time.Time
}

func NewService(store Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, log: log, now: time.Now}
}

// Attach stores an uploaded image. The returned attachment always carries
// the url it would be served under; Saved reports whether the write worked.
// Empty uploads yield nil.
func (s *Service) Attach(ctx context.Context, filename, contentType string, data []byte) *models.ImageAttachment {
	if len(data) == 0 || strings.TrimSpace(filename) == "" {
		return nil
	}
	unique := UniqueName(filename, s.now())
	img := &models.ImageAttachment{
		OriginalName: filename,
		UniqueName:   unique,
		Path:         s.store.Location(unique),
		ContentType:  contentType,
		Size:         int64(len(data)),
		URL:          URLPrefix + unique,
	}
	if err := s.store.Save(ctx, unique, contentType, data); err != nil {
		s.log.Warn("save image failed", zap.String("name", unique), zap.Error(err))
		return img
	}
	img.Saved = true
	s.log.Info("image saved", zap.String("name", unique), zap.Int64("size", img.Size))
	return img
}

// Open returns the stored image called name.
func (s *Service) Open(ctx context.Context, name string) (*Object, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	return s.store.Open(ctx, name)
}

// RemoveByURL deletes the image an image_url points at. Missing files are
// not an error.
func (s *Service) RemoveByURL(ctx context.Context, url string) (bool, error) {
	name := NameFromURL(url)
	if name == "" {
		return false, nil
	}
	if err := ValidateName(name); err != nil {
		return false, err
	}
	removed, err := s.store.Delete(ctx, name)
	if err != nil {
		return false, err
	}
	if removed {
		s.log.Info("image deleted", zap.String("name", name))
	} else {
		s.log.Debug("image already absent", zap.String("name", name))
	}
	return removed, nil
}
