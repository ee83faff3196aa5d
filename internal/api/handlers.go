package api

import (
	"context"
	_ "embed"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"voicecapture/internal/auth"
	"voicecapture/internal/config"
	"voicecapture/internal/images"
	"voicecapture/internal/models"
	"voicecapture/internal/service/pipeline"
	"voicecapture/internal/storage"
	"voicecapture/internal/worker"
)

const serviceName = "Voice Capture Feedback API"

// statusClientClosed is the nginx convention for a request the client abandoned.
const statusClientClosed = 499

//go:embed dashboard.html
var dashboardHTML []byte

// Processor runs one upload through the pipeline.
type Processor interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// FeedbackStore is the persistence service.
type FeedbackStore interface {
	Save(ctx context.Context, data any) (models.SaveResult, error)
	List(ctx context.Context, filter models.ListFilter) []models.Record
	Delete(ctx context.Context, id string) (models.DeleteResult, error)
	HasStore() bool
}

// ImageStore names, serves and removes image attachments.
type ImageStore interface {
	Attach(ctx context.Context, filename, contentType string, data []byte) *models.ImageAttachment
	Open(ctx context.Context, name string) (*images.Object, error)
	RemoveByURL(ctx context.Context, url string) (bool, error)
}

// Runner executes pipeline runs with bounded concurrency.
type Runner interface {
	Do(ctx context.Context, fn func(context.Context) error) error
}

// Deps are the collaborators a Handler needs. Runner and Guard are optional.
type Deps struct {
	Processor Processor
	Feedback  FeedbackStore
	Images    ImageStore
	Runner    Runner
	Guard     *auth.Guard
	Log       *zap.Logger
}

// Handler wires HTTP routes to the pipeline and the feedback store.
type Handler struct {
	processor Processor
	feedback  FeedbackStore
	images    ImageStore
	runner    Runner
	guard     *auth.Guard
	log       *zap.Logger
	cfg       config.ServerConfig
}

// NewHandler constructs a Handler instance.
func NewHandler(deps Deps, cfg config.ServerConfig) *Handler {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 25 << 20
	}
	return &Handler{
		processor: deps.Processor,
		feedback:  deps.Feedback,
		images:    deps.Images,
		runner:    deps.Runner,
		guard:     deps.Guard,
		log:       log,
		cfg:       cfg,
	}
}

// NewRouter builds a gin engine with middleware and all routes.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), AccessLog(h.log), Recovery(h.log), CORS(h.cfg.AllowedOrigins))
	h.RegisterRoutes(router)
	return router
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/", h.dashboard)
	router.GET("/dashboard", h.dashboard)
	router.GET("/health", h.health)
	router.POST("/process_audio", h.processAudio)
	router.GET("/images/:filename", h.serveImage)

	api := router.Group("/api")
	api.GET("", h.apiInfo)
	api.GET("/feedback", h.listFeedback)
	api.DELETE("/feedback/:id", h.guard.Middleware(), h.deleteFeedback)
}

func (h *Handler) dashboard(c *gin.Context) {
	if path := h.cfg.DashboardPath; path != "" {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			c.File(path)
			return
		}
		h.log.Warn("dashboard file not found, serving built-in page", zap.String("path", path))
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", dashboardHTML)
}

func (h *Handler) apiInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":     serviceName + " is running",
		"description": "Extracts structured reasons from salesperson voice notes about customers who did not buy",
		"endpoints": gin.H{
			"upload_audio":    "/process_audio",
			"list_feedback":   "/api/feedback",
			"delete_feedback": "/api/feedback/{id}",
			"images":          "/images/{filename}",
			"dashboard":       "/dashboard",
			"health":          "/health",
		},
		"purpose": "Capture salesperson audio about non-buying customers and extract reasons",
	})
}

func (h *Handler) health(c *gin.Context) {
	store := "fallback_files"
	if h.feedback != nil && h.feedback.HasStore() {
		store = "connected"
	}
	body := gin.H{
		"status":  "healthy",
		"service": serviceName,
		"store":   store,
	}
	if s, ok := h.runner.(interface{ Stats() worker.Stats }); ok {
		body["workers"] = s.Stats()
	}
	c.JSON(http.StatusOK, body)
}

type upload struct {
	name        string
	contentType string
	data        []byte
}

func readUpload(fh *multipart.FileHeader) (*upload, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return &upload{
		name:        fh.Filename,
		contentType: fh.Header.Get("Content-Type"),
		data:        data,
	}, nil
}

func (h *Handler) processAudio(c *gin.Context) {
	reqID := requestID(c)
	if c.Request.ContentLength > h.cfg.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload too large"})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxUploadBytes)
	if err := c.Request.ParseMultipartForm(h.cfg.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}
	// An image may arrive without a voice note; audio is validated only when present.
	var audio upload
	fh, err := c.FormFile("file")
	if err == nil {
		if !models.LooksLikeAudio(fh.Filename, fh.Header.Get("Content-Type")) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "File must be an audio file"})
			return
		}
		note, err := readUpload(fh)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "read audio failed"})
			return
		}
		if len(note.data) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Empty audio file"})
			return
		}
		audio = *note
	}

	ctx := c.Request.Context()
	var img *models.ImageAttachment
	if imgHeader, err := c.FormFile("image"); err == nil && imgHeader.Filename != "" {
		if picture, err := readUpload(imgHeader); err != nil {
			h.log.Warn("read image failed", zap.String("request_id", reqID), zap.Error(err))
		} else {
			img = h.images.Attach(ctx, picture.name, picture.contentType, picture.data)
		}
	}
	if len(audio.data) == 0 && img == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	req := pipeline.Request{
		ID: reqID,
		Audio: models.AudioPayload{
			Name:        audio.name,
			ContentType: audio.contentType,
			Data:        audio.data,
		},
		Image: img,
	}
	var result *pipeline.Result
	run := func(ctx context.Context) error {
		var err error
		result, err = h.processor.Run(ctx, req)
		return err
	}
	if h.runner != nil {
		err = h.runner.Do(ctx, run)
	} else {
		err = run(ctx)
	}
	if errors.Is(err, worker.ErrBusy) || errors.Is(err, worker.ErrClosed) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server is busy, please retry", "request_id": reqID})
		return
	}
	if errors.Is(err, context.Canceled) {
		// client disconnected; a queued run was withdrawn and a started run was awaited
		h.log.Info("process audio abandoned", zap.String("request_id", reqID), zap.Error(err))
		c.Status(statusClientClosed)
		return
	}
	if err != nil {
		h.fallbackSave(c, reqID, err, img)
		return
	}

	body := gin.H{
		"message":    "Salesperson audio processed successfully",
		"status":     "success",
		"request_id": reqID,
		"purpose":    "Captured reasons why customer did not purchase",
		"result": gin.H{
			"transcript_failed": result.TranscriptFailed,
			"save":              result.Save,
			"record":            result.Record,
		},
		"image_included": img != nil,
	}
	if img != nil {
		body["image_debug"] = gin.H{
			"image_url":       img.URL,
			"unique_filename": img.UniqueName,
			"filename":        img.OriginalName,
			"image_saved":     img.Saved,
		}
	}
	c.JSON(http.StatusOK, body)
}

// fallbackSave stores a null record for a run that aborted.
func (h *Handler) fallbackSave(c *gin.Context, reqID string, runErr error, img *models.ImageAttachment) {
	ctx := context.WithoutCancel(c.Request.Context())
	save, err := h.feedback.Save(ctx, pipeline.FallbackRecord(runErr, img))
	if err != nil {
		h.log.Error("fallback save failed",
			zap.String("request_id", reqID),
			zap.NamedError("cause", runErr),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "Processing failed: " + runErr.Error(),
			"request_id": reqID,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":        "Audio processing failed, but basic data saved",
		"error":          runErr.Error(),
		"status":         "partial_success",
		"fallback_saved": true,
		"request_id":     reqID,
		"save":           save,
	})
}

func (h *Handler) listFeedback(c *gin.Context) {
	filter := models.ParseListFilter(c.Query)
	c.JSON(http.StatusOK, h.feedback.List(c.Request.Context(), filter))
}

func (h *Handler) deleteFeedback(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	res, err := h.feedback.Delete(c.Request.Context(), id)
	switch {
	case errors.Is(err, storage.ErrInvalidID):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid feedback id"})
		return
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Feedback not found"})
		return
	case errors.Is(err, storage.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "feedback store unavailable"})
		return
	case err != nil:
		h.log.Error("delete feedback failed", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error deleting feedback: " + err.Error()})
		return
	}

	imageDeleted := false
	if res.ImageURL != nil {
		removed, err := h.images.RemoveByURL(c.Request.Context(), *res.ImageURL)
		if err != nil {
			h.log.Warn("delete image failed", zap.String("id", id), zap.String("image_url", *res.ImageURL), zap.Error(err))
		}
		imageDeleted = removed
	}
	c.JSON(http.StatusOK, gin.H{
		"message":       "Feedback deleted successfully",
		"image_deleted": imageDeleted,
	})
}

func (h *Handler) serveImage(c *gin.Context) {
	obj, err := h.images.Open(c.Request.Context(), c.Param("filename"))
	if errors.Is(err, images.ErrNotFound) || errors.Is(err, images.ErrInvalidName) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
		return
	}
	if err != nil {
		h.log.Error("open image failed", zap.String("filename", c.Param("filename")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error serving image"})
		return
	}
	defer obj.Body.Close()
	c.DataFromReader(http.StatusOK, obj.Size, obj.ContentType, obj.Body, nil)
}
