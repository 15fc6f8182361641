// Package config resolves runtime settings. Environment variables win over
// the YAML file, which wins over built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"voxscribe/encoder"
	"voxscribe/session"
	"voxscribe/transcriber"
)

const (
	StorageFile   = session.BackendFile
	StorageSQLite = session.BackendSQLite
)

type Config struct {
	Transcription TranscriptionConfig `yaml:"transcription"`
	Recording     RecordingConfig     `yaml:"recording"`
	Storage       StorageConfig       `yaml:"storage"`
	Logging       LoggingConfig       `yaml:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics"`
}

type TranscriptionConfig struct {
	Provider  string        `yaml:"provider"`
	Endpoint  string        `yaml:"endpoint"`
	Model     string        `yaml:"model"`
	APIKey    string        `yaml:"api_key"`
	Language  string        `yaml:"language"`
	Timeout   time.Duration `yaml:"timeout"`
	DemoDelay time.Duration `yaml:"demo_delay"`
}

type RecordingConfig struct {
	Device          string `yaml:"device"`
	Format          string `yaml:"format"`
	SampleRate      uint32 `yaml:"sample_rate"`
	ChunkIntervalMs int    `yaml:"chunk_interval_ms"`
	LevelWindowSize int    `yaml:"level_window_size"`
	FrameRate       int    `yaml:"frame_rate"`
	Cues            bool   `yaml:"cues"`
}

type StorageConfig struct {
	Backend   string `yaml:"backend"`
	Dir       string `yaml:"dir"`
	Namespace string `yaml:"namespace"`
}

type LoggingConfig struct {
	Dir        string `yaml:"dir"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the endpoint
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Transcription: TranscriptionConfig{
			Provider: transcriber.ProviderGroq,
			Timeout:  30 * time.Second,
		},
		Recording: RecordingConfig{
			Format:          encoder.FormatFLAC,
			SampleRate:      encoder.SampleRate,
			ChunkIntervalMs: 250,
			LevelWindowSize: 256,
			FrameRate:       60,
			Cues:            true,
		},
		Storage: StorageConfig{
			Backend:   StorageFile,
			Namespace: session.DefaultNamespace,
		},
		Logging: LoggingConfig{
			MaxSizeMB:  5,
			MaxBackups: 3,
		},
	}
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "voxscribe", "config.yaml")
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path falls back to DefaultPath, which may
// be absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		case explicit || !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if cfg.Storage.Dir == "" {
		dir, err := defaultDataDir()
		if err != nil {
			return nil, err
		}
		cfg.Storage.Dir = dir
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func defaultDataDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not determine config directory: %w", err)
	}
	return filepath.Join(dir, "voxscribe"), nil
}

func (c *Config) applyEnv() error {
	t := &c.Transcription
	t.Provider = envOrDefault("VOXSCRIBE_PROVIDER", t.Provider)
	t.Endpoint = envOrDefault("VOXSCRIBE_ENDPOINT", t.Endpoint)
	t.Model = envOrDefault("VOXSCRIBE_MODEL", t.Model)
	t.Language = envOrDefault("VOXSCRIBE_LANGUAGE", t.Language)

	providerKey := "GROQ_API_KEY"
	if t.Provider == transcriber.ProviderOpenAI {
		providerKey = "OPENAI_API_KEY"
	}
	t.APIKey = firstNonEmpty(os.Getenv("VOXSCRIBE_API_KEY"), t.APIKey, os.Getenv(providerKey))

	r := &c.Recording
	r.Device = envOrDefault("VOXSCRIBE_DEVICE", r.Device)
	r.Format = envOrDefault("VOXSCRIBE_FORMAT", r.Format)
	var err error
	if r.ChunkIntervalMs, err = envOrDefaultInt("VOXSCRIBE_CHUNK_INTERVAL_MS", r.ChunkIntervalMs); err != nil {
		return err
	}
	if r.LevelWindowSize, err = envOrDefaultInt("VOXSCRIBE_LEVEL_WINDOW", r.LevelWindowSize); err != nil {
		return err
	}

	c.Storage.Backend = envOrDefault("VOXSCRIBE_STORAGE", c.Storage.Backend)
	c.Storage.Dir = envOrDefault("VOXSCRIBE_DATA_DIR", c.Storage.Dir)
	c.Metrics.Addr = envOrDefault("VOXSCRIBE_METRICS_ADDR", c.Metrics.Addr)
	return nil
}

func (c *Config) Validate() error {
	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}
	if err := c.Recording.Validate(); err != nil {
		return fmt.Errorf("recording config: %w", err)
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage config: %w", err)
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 {
		return errors.New("logging config: rotation limits cannot be negative")
	}
	return nil
}

func (t *TranscriptionConfig) Validate() error {
	known := false
	for _, p := range transcriber.Providers() {
		if t.Provider == p {
			known = true
		}
	}
	if !known {
		return fmt.Errorf("unknown provider %q", t.Provider)
	}
	if t.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", t.Timeout)
	}
	return nil
}

func (r *RecordingConfig) Validate() error {
	if r.Format != encoder.FormatFLAC && r.Format != encoder.FormatWAV {
		return fmt.Errorf("format must be %s or %s, got %q", encoder.FormatFLAC, encoder.FormatWAV, r.Format)
	}
	if r.SampleRate < 8000 {
		return fmt.Errorf("sample_rate must be at least 8000, got %d", r.SampleRate)
	}
	if r.ChunkIntervalMs <= 0 {
		return fmt.Errorf("chunk_interval_ms must be positive, got %d", r.ChunkIntervalMs)
	}
	if n := r.LevelWindowSize; n < 32 || n&(n-1) != 0 {
		return fmt.Errorf("level_window_size must be a power of two >= 32, got %d", n)
	}
	if r.FrameRate <= 0 {
		return fmt.Errorf("frame_rate must be positive, got %d", r.FrameRate)
	}
	return nil
}

func (s *StorageConfig) Validate() error {
	if s.Backend != StorageFile && s.Backend != StorageSQLite {
		return fmt.Errorf("backend must be %s or %s, got %q", StorageFile, StorageSQLite, s.Backend)
	}
	if strings.TrimSpace(s.Namespace) == "" {
		return errors.New("namespace cannot be empty")
	}
	return nil
}

// ChunkInterval is the recorder slice as a duration.
func (r RecordingConfig) ChunkInterval() time.Duration {
	return time.Duration(r.ChunkIntervalMs) * time.Millisecond
}

// TranscriberConfig maps the transcription section onto the adapter's config.
func (c *Config) TranscriberConfig() transcriber.Config {
	t := c.Transcription
	return transcriber.Config{
		Provider:  t.Provider,
		Endpoint:  t.Endpoint,
		Model:     t.Model,
		APIKey:    t.APIKey,
		Language:  t.Language,
		Timeout:   t.Timeout,
		DemoDelay: t.DemoDelay,
	}
}

// DemoMode reports whether no credential is configured.
func (c *Config) DemoMode() bool {
	return strings.TrimSpace(c.Transcription.APIKey) == ""
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
