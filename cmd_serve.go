package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"voicecapture/internal/api"
	"voicecapture/internal/auth"
	"voicecapture/internal/images"
	"voicecapture/internal/service/ai"
	"voicecapture/internal/service/audio"
	"voicecapture/internal/service/pipeline"
	"voicecapture/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Address = addr
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			log, err := ctx.logger()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			feedback := openFeedback(runCtx, cfg, log)
			defer feedback.Close()
			feedback.service.StartReplayLoop(runCtx, cfg.Store.ReplayInterval)

			imageStore, err := images.NewStore(runCtx, cfg.Images, log.Named("images"))
			if err != nil {
				return fmt.Errorf("init image store: %w", err)
			}

			normalizer := audio.NewNormalizer(cfg.Audio, log.Named("audio"))
			if !normalizer.Available() {
				log.Warn("ffmpeg not found, audio is sent unconverted", zap.String("ffmpeg", cfg.Audio.FFmpegPath))
			}
			transcriber, err := ai.NewWhisperTranscriber(cfg.Transcription, log.Named("transcribe"))
			if err != nil {
				return fmt.Errorf("init transcriber: %w", err)
			}
			chatModel, err := ai.NewChatModel(runCtx, cfg.LLM)
			if err != nil {
				return err
			}
			extractor := ai.NewExtractor(chatModel, log.Named("extract"))
			pipe, err := pipeline.New(runCtx, normalizer, transcriber, extractor, feedback.service, log.Named("pipeline"))
			if err != nil {
				return err
			}

			dispatcher := worker.NewDispatcher(worker.DispatcherConfig{
				MinWorkers:        cfg.Workers.MinWorkers,
				MaxWorkers:        cfg.Workers.MaxWorkers,
				QueueSize:         cfg.Workers.QueueSize,
				WorkerIdleTimeout: cfg.Workers.IdleTimeout,
			}, log)

			gin.SetMode(gin.ReleaseMode)
			handler := api.NewHandler(api.Deps{
				Processor: pipe,
				Feedback:  feedback.service,
				Images:    images.NewService(imageStore, log.Named("images")),
				Runner:    dispatcher,
				Guard:     auth.NewGuard(cfg.Admin),
				Log:       log.Named("http"),
			}, cfg.Server)

			srv := &http.Server{
				Addr:              cfg.Server.Address,
				Handler:           api.NewRouter(handler),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				log.Info("server listening",
					zap.String("addr", cfg.Server.Address),
					zap.String("llm_provider", cfg.LLM.Provider),
					zap.Bool("store", feedback.service.HasStore()),
					zap.String("images", cfg.Images.Backend))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					_ = dispatcher.Stop(context.Background())
					return fmt.Errorf("server stopped: %w", err)
				}
			case <-runCtx.Done():
			}

			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn("http shutdown", zap.Error(err))
			}
			if err := dispatcher.Stop(shutdownCtx); err != nil {
				log.Warn("worker shutdown", zap.Error(err))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address, overrides server.address")
	return cmd
}
