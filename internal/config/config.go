package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all quip configuration.
type Config struct {
	Artifacts ArtifactConfig `yaml:"artifacts"`
	Server    ServerConfig   `yaml:"server"`
	Log       LogConfig      `yaml:"log"`
	Store     StoreConfig    `yaml:"store"`
	Output    OutputConfig   `yaml:"output"`
}

// ArtifactConfig locates the fitted vectorizer and classifier.
type ArtifactConfig struct {
	VectorizerPath string `yaml:"vectorizer_path"`
	ClassifierPath string `yaml:"classifier_path"`
	ONNXLibrary    string `yaml:"onnx_library"`
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	MetricsAddr    string        `yaml:"metrics_addr"` // empty serves /metrics on Addr
	MaxBatchRows   int           `yaml:"max_batch_rows"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	CORSOrigins    []string      `yaml:"cors_origins"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "console"
}

// StoreConfig selects where annotated CSV downloads are kept.
type StoreConfig struct {
	Backend   string        `yaml:"backend"` // "memory" or "redis"
	RedisAddr string        `yaml:"redis_addr"`
	RedisDB   int           `yaml:"redis_db"`
	TTL       time.Duration `yaml:"ttl"`
}

// OutputConfig holds CLI output settings.
type OutputConfig struct {
	Pretty bool `yaml:"pretty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Artifacts: ArtifactConfig{
			VectorizerPath: "models/vectorizer.json",
			ClassifierPath: "models/classifier.json",
		},
		Server: ServerConfig{
			Addr:           ":8080",
			MetricsAddr:    ":9090",
			MaxBatchRows:   10000,
			MaxUploadBytes: 32 << 20,
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   60 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Store: StoreConfig{
			Backend:   "memory",
			RedisAddr: "localhost:6379",
			TTL:       time.Hour,
		},
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// QUIP_CONFIG (if set), then QUIP_* environment variables.
func Load() (Config, error) {
	cfg := Default()
	if path := os.Getenv("QUIP_CONFIG"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse yaml: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Artifacts.VectorizerPath = getenv("QUIP_VECTORIZER_PATH", cfg.Artifacts.VectorizerPath)
	cfg.Artifacts.ClassifierPath = getenv("QUIP_CLASSIFIER_PATH", cfg.Artifacts.ClassifierPath)
	cfg.Artifacts.ONNXLibrary = getenv("QUIP_ONNX_LIBRARY", cfg.Artifacts.ONNXLibrary)

	cfg.Server.Addr = getenv("QUIP_ADDR", cfg.Server.Addr)
	if v, ok := os.LookupEnv("QUIP_METRICS_ADDR"); ok {
		cfg.Server.MetricsAddr = v
	}
	cfg.Server.MaxBatchRows = getenvInt("QUIP_MAX_BATCH_ROWS", cfg.Server.MaxBatchRows)
	cfg.Server.MaxUploadBytes = int64(getenvInt("QUIP_MAX_UPLOAD_BYTES", int(cfg.Server.MaxUploadBytes)))
	cfg.Server.ReadTimeout = getenvDuration("QUIP_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getenvDuration("QUIP_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.CORSOrigins = getenvList("QUIP_CORS_ORIGINS", cfg.Server.CORSOrigins)

	cfg.Log.Level = getenv("QUIP_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getenv("QUIP_LOG_FORMAT", cfg.Log.Format)

	cfg.Store.Backend = getenv("QUIP_STORE", cfg.Store.Backend)
	cfg.Store.RedisAddr = getenv("QUIP_REDIS_ADDR", cfg.Store.RedisAddr)
	cfg.Store.RedisDB = getenvInt("QUIP_REDIS_DB", cfg.Store.RedisDB)
	cfg.Store.TTL = getenvDuration("QUIP_STORE_TTL", cfg.Store.TTL)

	cfg.Output.Pretty = getenvBool("QUIP_OUTPUT_PRETTY", cfg.Output.Pretty)
}

// Validate checks the configuration for values that cannot work.
func (c Config) Validate() error {
	var errs []error
	if c.Artifacts.VectorizerPath == "" {
		errs = append(errs, errors.New("vectorizer path is required"))
	}
	if c.Artifacts.ClassifierPath == "" {
		errs = append(errs, errors.New("classifier path is required"))
	}
	if c.Server.MaxBatchRows <= 0 {
		errs = append(errs, fmt.Errorf("max batch rows must be positive, got %d", c.Server.MaxBatchRows))
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("max upload bytes must be positive, got %d", c.Server.MaxUploadBytes))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	switch c.Store.Backend {
	case "memory":
	case "redis":
		if c.Store.RedisAddr == "" {
			errs = append(errs, errors.New("redis store requires an address"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}
	if c.Store.TTL <= 0 {
		errs = append(errs, fmt.Errorf("store ttl must be positive, got %s", c.Store.TTL))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getenvList splits a comma-separated value, dropping empty entries.
func getenvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
