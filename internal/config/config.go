package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// PathEnv names the variable holding the optional YAML file path.
const PathEnv = "SCHOOL_IMPORT_CONFIG"

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Uploads  UploadConfig   `yaml:"uploads"`
	Import   ImportConfig   `yaml:"import"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Postal   PostalConfig   `yaml:"postal"`
	Worker   WorkerConfig   `yaml:"worker"`
	Log      LogConfig      `yaml:"log"`
}

type HTTPConfig struct {
	Port      string `yaml:"port" env:"PORT"`
	BodyLimit string `yaml:"bodyLimit" env:"HTTP_BODY_LIMIT"`
}

type DatabaseConfig struct {
	URL string `yaml:"url" env:"DATABASE_URL"`
}

type UploadConfig struct {
	Dir string `yaml:"dir" env:"UPLOAD_DIR"`
}

// ImportConfig sizes the batch pipeline.
type ImportConfig struct {
	BatchSize         int           `yaml:"batchSize" env:"IMPORT_BATCH_SIZE"`
	EnrichChunkSize   int           `yaml:"enrichChunkSize" env:"IMPORT_ENRICH_CHUNK_SIZE"`
	EnrichConcurrency int           `yaml:"enrichConcurrency" env:"IMPORT_ENRICH_CONCURRENCY"`
	CommitChunkSize   int           `yaml:"commitChunkSize" env:"IMPORT_COMMIT_CHUNK_SIZE"`
	LeaseDuration     time.Duration `yaml:"leaseDuration" env:"IMPORT_LEASE_DURATION"`
}

// OpenAIConfig enables text normalization when APIKey is set.
type OpenAIConfig struct {
	APIKey  string        `yaml:"apiKey" env:"OPENAI_API_KEY"`
	BaseURL string        `yaml:"baseUrl" env:"OPENAI_BASE_URL"`
	Model   string        `yaml:"model" env:"OPENAI_MODEL"`
	Timeout time.Duration `yaml:"timeout" env:"OPENAI_TIMEOUT"`
}

type PostalConfig struct {
	Enabled bool          `yaml:"enabled" env:"POSTAL_ENABLED"`
	BaseURL string        `yaml:"baseUrl" env:"POSTAL_API_URL"`
	Timeout time.Duration `yaml:"timeout" env:"POSTAL_TIMEOUT"`
}

// WorkerConfig drives queued jobs in the background on a cron schedule.
type WorkerConfig struct {
	Enabled  bool   `yaml:"enabled" env:"WORKER_ENABLED"`
	Schedule string `yaml:"schedule" env:"WORKER_SCHEDULE"`
	Workers  int    `yaml:"workers" env:"WORKER_COUNT"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

func Default() Config {
	return Config{
		HTTP:    HTTPConfig{Port: "8080", BodyLimit: "50M"},
		Uploads: UploadConfig{Dir: "./data/uploads"},
		Import: ImportConfig{
			BatchSize:         1500,
			EnrichChunkSize:   50,
			EnrichConcurrency: 5,
			CommitChunkSize:   100,
			LeaseDuration:     5 * time.Minute,
		},
		OpenAI: OpenAIConfig{Model: "gpt-4o-mini", Timeout: 30 * time.Second},
		Postal: PostalConfig{Enabled: true, BaseURL: "https://viacep.com.br", Timeout: 5 * time.Second},
		Worker: WorkerConfig{Enabled: true, Schedule: "@every 15s", Workers: 2},
		Log:    LogConfig{Level: "info", Format: "json"},
	}
}

// Load applies, in order: defaults, the YAML file named by SCHOOL_IMPORT_CONFIG,
// .env files and the process environment.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv(PathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := loadDotEnv(".env", ".env.local"); err != nil {
		return Config{}, err
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.HTTP.Port == "" {
		errs = append(errs, errors.New("http port is required"))
	}
	if c.Import.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("import batch size must be positive, got %d", c.Import.BatchSize))
	}
	if c.Import.EnrichChunkSize <= 0 || c.Import.CommitChunkSize <= 0 {
		errs = append(errs, errors.New("import chunk sizes must be positive"))
	}
	if c.Import.EnrichConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("enrich concurrency must be positive, got %d", c.Import.EnrichConcurrency))
	}
	if c.Import.LeaseDuration <= 0 {
		errs = append(errs, errors.New("import lease duration must be positive"))
	}
	if c.Worker.Enabled && c.Worker.Workers <= 0 {
		errs = append(errs, fmt.Errorf("worker count must be positive, got %d", c.Worker.Workers))
	}
	return errors.Join(errs...)
}

// loadDotEnv loads the files that exist without overriding variables that are
// already set.
func loadDotEnv(files ...string) error {
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}
