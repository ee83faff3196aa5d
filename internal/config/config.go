package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment override, e.g. VOICECAPTURE_SERVER_ADDRESS.
const EnvPrefix = "VOICECAPTURE"

// ErrMissingAPIKey is returned by Validate when no LLM credential is configured.
var ErrMissingAPIKey = errors.New("llm api key is not configured")

//go:embed sample.yaml
var sampleConfig []byte

// Config represents runtime configuration for the service.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Log           LogConfig           `mapstructure:"log"`
	LLM           ProviderConfig      `mapstructure:"llm"`
	Transcription TranscriptionConfig `mapstructure:"transcription"`
	Audio         AudioConfig         `mapstructure:"audio"`
	Store         StoreConfig         `mapstructure:"store"`
	Images        ImagesConfig        `mapstructure:"images"`
	Redis         RedisConfig         `mapstructure:"redis"`
	NATS          NATSConfig          `mapstructure:"nats"`
	Workers       WorkerConfig        `mapstructure:"workers"`
	Admin         AdminConfig         `mapstructure:"admin"`
}

type ServerConfig struct {
	Address        string   `mapstructure:"address"`
	MaxUploadBytes int64    `mapstructure:"max_upload_bytes"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	DashboardPath  string   `mapstructure:"dashboard_path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	// Output is stdout, stderr or a file path.
	Output string `mapstructure:"output"`
}

// ProviderConfig selects the chat model used for field extraction.
type ProviderConfig struct {
	Provider  string `mapstructure:"provider"`
	BaseURL   string `mapstructure:"base_url"`
	Model     string `mapstructure:"model"`
	APIKey    string `mapstructure:"api_key"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

type TranscriptionConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
	APIKey  string `mapstructure:"api_key"`
}

type AudioConfig struct {
	FFmpegPath     string        `mapstructure:"ffmpeg_path"`
	SampleRate     int           `mapstructure:"sample_rate"`
	Channels       int           `mapstructure:"channels"`
	ConvertTimeout time.Duration `mapstructure:"convert_timeout"`
}

// StoreConfig describes the document store. An empty URI disables it and every
// save lands in FallbackDir.
type StoreConfig struct {
	Driver         string        `mapstructure:"driver"`
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	Collection     string        `mapstructure:"collection"`
	FallbackDir    string        `mapstructure:"fallback_dir"`
	ReplayInterval time.Duration `mapstructure:"replay_interval"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type ImagesConfig struct {
	Backend string   `mapstructure:"backend"`
	Dir     string   `mapstructure:"dir"`
	S3      S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type NATSConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type WorkerConfig struct {
	MinWorkers  int           `mapstructure:"min_workers"`
	MaxWorkers  int           `mapstructure:"max_workers"`
	QueueSize   int           `mapstructure:"queue_size"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

type AdminConfig struct {
	Token string `mapstructure:"token"`
}

// Load reads configuration from the provided path and the environment.
// An empty path means environment and defaults only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// names used by older deployments
	_ = v.BindEnv("llm.api_key", EnvPrefix+"_LLM_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("transcription.api_key", EnvPrefix+"_TRANSCRIPTION_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("store.uri", EnvPrefix+"_STORE_URI", "MONGO_URI")

	if path != "" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve config path: %w", err)
		}
		v.SetConfigFile(absPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", absPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Transcription.APIKey == "" && strings.EqualFold(cfg.LLM.Provider, "openai") {
		cfg.Transcription.APIKey = cfg.LLM.APIKey
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.max_upload_bytes", 25<<20)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.dashboard_path", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "auto")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.max_tokens", 2000)

	v.SetDefault("transcription.base_url", "")
	v.SetDefault("transcription.model", "whisper-1")
	v.SetDefault("transcription.api_key", "")

	v.SetDefault("audio.ffmpeg_path", "ffmpeg")
	v.SetDefault("audio.sample_rate", 16000)
	v.SetDefault("audio.channels", 1)
	v.SetDefault("audio.convert_timeout", 2*time.Minute)

	v.SetDefault("store.driver", "mongo")
	v.SetDefault("store.uri", "")
	v.SetDefault("store.database", "crm")
	v.SetDefault("store.collection", "returned_cust")
	v.SetDefault("store.fallback_dir", "./feedback_data")
	v.SetDefault("store.replay_interval", time.Duration(0))
	v.SetDefault("store.connect_timeout", 5*time.Second)

	v.SetDefault("images.backend", "local")
	v.SetDefault("images.dir", "./data/images")
	v.SetDefault("images.s3.endpoint", "")
	v.SetDefault("images.s3.region", "us-east-1")
	v.SetDefault("images.s3.bucket", "")
	v.SetDefault("images.s3.prefix", "images/")
	v.SetDefault("images.s3.access_key_id", "")
	v.SetDefault("images.s3.secret_access_key", "")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.username", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cache_ttl", 30*time.Second)

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject_prefix", "feedback")

	v.SetDefault("workers.min_workers", 1)
	v.SetDefault("workers.max_workers", 4)
	v.SetDefault("workers.queue_size", 16)
	v.SetDefault("workers.idle_timeout", 30*time.Second)

	v.SetDefault("admin.token", "")
}

// Validate reports configuration that makes the server unusable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config required")
	}
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		return ErrMissingAPIKey
	}
	switch strings.ToLower(c.LLM.Provider) {
	case "openai", "claude", "gemini":
	default:
		return fmt.Errorf("unsupported llm provider: %s", c.LLM.Provider)
	}
	switch strings.ToLower(c.Images.Backend) {
	case "local", "":
	case "s3":
		if c.Images.S3.Bucket == "" {
			return errors.New("images.s3.bucket must be configured for the s3 backend")
		}
	default:
		return fmt.Errorf("unsupported image backend: %s", c.Images.Backend)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return errors.New("server.max_upload_bytes must be positive")
	}
	return nil
}

// SampleConfig returns the annotated sample configuration file.
func SampleConfig() []byte {
	out := make([]byte, len(sampleConfig))
	copy(out, sampleConfig)
	return out
}

// WriteSample writes the sample configuration to path without overwriting.
func WriteSample(path string) error {
	if path == "" {
		path = "config.yaml"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("config %s already exists", path)
		}
		return fmt.Errorf("create config: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(sampleConfig); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
