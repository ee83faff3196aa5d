package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"voicecapture/internal/config"
	"voicecapture/internal/events"
	"voicecapture/internal/images"
	"voicecapture/internal/redis"
	"voicecapture/internal/service/audio"
	"voicecapture/internal/storage"
)

const checkTimeout = 5 * time.Second

type checkResult struct {
	name   string
	ok     bool
	detail string
}

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report which external dependencies are configured and reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := runChecks(cmd.Context(), cfg, zap.NewNop())

			rows := make([][]string, 0, len(results))
			for _, r := range results {
				status := "ok"
				if !r.ok {
					status = "missing"
				}
				rows = append(rows, []string{r.name, status, r.detail})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"Component", "Status", "Detail"}, rows, 60, shouldColorize(out)))

			if strings.TrimSpace(cfg.LLM.APIKey) == "" {
				return fmt.Errorf("%w: set llm.api_key or OPENAI_API_KEY", config.ErrMissingAPIKey)
			}
			return nil
		},
	}
}

// runChecks probes every collaborator. Only the LLM key is mandatory; the
// rest report how the server will degrade.
func runChecks(ctx context.Context, cfg *config.Config, log *zap.Logger) []checkResult {
	var results []checkResult

	if strings.TrimSpace(cfg.LLM.APIKey) == "" {
		results = append(results, checkResult{"llm", false, "api key not set"})
	} else {
		results = append(results, checkResult{"llm", true, cfg.LLM.Provider + " / " + cfg.LLM.Model})
	}
	if strings.TrimSpace(cfg.Transcription.APIKey) == "" {
		results = append(results, checkResult{"transcription", false, "api key not set, every voice note will fail to transcribe"})
	} else {
		results = append(results, checkResult{"transcription", true, cfg.Transcription.Model})
	}

	normalizer := audio.NewNormalizer(cfg.Audio, log)
	if normalizer.Available() {
		results = append(results, checkResult{"ffmpeg", true, cfg.Audio.FFmpegPath})
	} else {
		results = append(results, checkResult{"ffmpeg", false, "not found, audio is sent unconverted"})
	}

	results = append(results, checkStore(ctx, cfg, log))

	if cfg.Redis.Addr == "" {
		results = append(results, checkResult{"redis", false, "not configured, list cache disabled"})
	} else if rdb, err := redis.NewRedisClient(cfg.Redis); err != nil {
		results = append(results, checkResult{"redis", false, err.Error()})
	} else {
		_ = rdb.Close()
		results = append(results, checkResult{"redis", true, cfg.Redis.Addr})
	}

	if cfg.NATS.URL == "" {
		results = append(results, checkResult{"nats", false, "not configured, record events disabled"})
	} else if pub, err := events.Connect(cfg.NATS, log); err != nil {
		results = append(results, checkResult{"nats", false, err.Error()})
	} else {
		_ = pub.Close()
		results = append(results, checkResult{"nats", true, cfg.NATS.URL})
	}

	imgCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	if _, err := images.NewStore(imgCtx, cfg.Images, log); err != nil {
		results = append(results, checkResult{"images", false, err.Error()})
	} else {
		detail := cfg.Images.Dir
		if strings.EqualFold(cfg.Images.Backend, "s3") {
			detail = "s3://" + cfg.Images.S3.Bucket + "/" + cfg.Images.S3.Prefix
		}
		results = append(results, checkResult{"images", true, detail})
	}
	return results
}

func checkStore(ctx context.Context, cfg *config.Config, log *zap.Logger) checkResult {
	if strings.TrimSpace(cfg.Store.URI) == "" {
		return checkResult{"store", false, "not configured, records go to " + cfg.Store.FallbackDir}
	}
	storeCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	store, err := storage.Open(storeCtx, cfg.Store, log)
	if err != nil {
		return checkResult{"store", false, err.Error()}
	}
	defer store.Close(context.Background())
	if err := store.Ping(storeCtx); err != nil {
		return checkResult{"store", false, err.Error()}
	}
	return checkResult{"store", true, cfg.Store.Driver + " / " + store.Collection()}
}
