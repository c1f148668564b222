// Package config loads service configuration from the environment, with an
// optional YAML file supplying defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        int              `yaml:"port"`
	HTTPTimeout time.Duration    `yaml:"http_timeout"`
	DatabaseURL string           `yaml:"database_url"`
	Transcript  TranscriptConfig `yaml:"transcript"`
	LLM         LLMConfig        `yaml:"llm"`
	AssemblyAI  AssemblyAIConfig `yaml:"assemblyai"`
	Queue       QueueConfig      `yaml:"queue"`
	Refinement  RefinementConfig `yaml:"refinement"`
	Poll        PollConfig       `yaml:"poll"`
	Sweep       SweepConfig      `yaml:"sweep"`
	// CORSOrigins lists browser origins allowed to call the API; empty allows all.
	CORSOrigins []string `yaml:"cors_origins"`
}

// TranscriptConfig points at the transcript / audio download service.
type TranscriptConfig struct {
	BaseURL string `yaml:"base_url"`
}

type LLMConfig struct {
	GatewayURL  string  `yaml:"gateway_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

type AssemblyAIConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// QueueConfig selects the task queue backend and its worker settings.
type QueueConfig struct {
	Backend     string `yaml:"backend"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisKey    string `yaml:"redis_key"`
	Concurrency int    `yaml:"concurrency"`
	MaxAttempts int    `yaml:"max_attempts"`
}

// RefinementConfig bounds the generate/review/regenerate loop and the
// duration-based chapter ceiling.
type RefinementConfig struct {
	MaxAttempts      int `yaml:"max_attempts"`
	ChaptersPer30Min int `yaml:"chapters_per_30_min"`
	MinChapters      int `yaml:"min_chapters"`
}

type PollConfig struct {
	Interval    time.Duration `yaml:"interval"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// SweepConfig drives the periodic failing of jobs that stopped making
// progress. Schedule "off" disables the sweeper.
type SweepConfig struct {
	Schedule   string        `yaml:"schedule"`
	StaleAfter time.Duration `yaml:"stale_after"`
}

// PollWindow is the longest a chapter generation stage may run without
// writing its status: the full poll schedule plus one HTTP timeout each for
// the upload, the job start and the last poll.
func (c *Config) PollWindow() time.Duration {
	return c.Poll.Interval*time.Duration(c.Poll.MaxAttempts) + 3*c.HTTPTimeout
}

// Load reads .env (if present), the optional YAML file named by CONFIG_FILE,
// then overlays the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var data []byte
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		data = b
	}
	return Parse(data, os.LookupEnv)
}

// Parse builds a validated Config from YAML bytes (may be empty) and an
// environment lookup function.
func Parse(data []byte, lookup func(string) (string, bool)) (*Config, error) {
	var cfg Config
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse: %w", err)
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []string
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = d
		}
	}

	num("PORT", &c.Port)
	dur("HTTP_TIMEOUT", &c.HTTPTimeout)
	str("DATABASE_URL", &c.DatabaseURL)
	str("TRANSCRIPT_SERVICE_URL", &c.Transcript.BaseURL)
	str("LLM_GATEWAY_URL", &c.LLM.GatewayURL)
	str("LLM_API_KEY", &c.LLM.APIKey)
	str("LLM_MODEL", &c.LLM.Model)
	if v, ok := lookup("LLM_TEMPERATURE"); ok && strings.TrimSpace(v) != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("LLM_TEMPERATURE: %v", err))
		} else {
			c.LLM.Temperature = f
		}
	}
	str("ASSEMBLYAI_BASE_URL", &c.AssemblyAI.BaseURL)
	str("ASSEMBLYAI_API_KEY", &c.AssemblyAI.APIKey)
	str("QUEUE_BACKEND", &c.Queue.Backend)
	str("REDIS_ADDR", &c.Queue.RedisAddr)
	str("REDIS_QUEUE_KEY", &c.Queue.RedisKey)
	num("WORKER_CONCURRENCY", &c.Queue.Concurrency)
	num("TASK_MAX_ATTEMPTS", &c.Queue.MaxAttempts)
	num("REVIEW_MAX_ATTEMPTS", &c.Refinement.MaxAttempts)
	num("CHAPTERS_PER_30_MIN", &c.Refinement.ChaptersPer30Min)
	num("MIN_CHAPTERS", &c.Refinement.MinChapters)
	dur("POLL_INTERVAL", &c.Poll.Interval)
	num("POLL_MAX_ATTEMPTS", &c.Poll.MaxAttempts)
	str("STALE_SWEEP_SCHEDULE", &c.Sweep.Schedule)
	dur("STALE_JOB_AFTER", &c.Sweep.StaleAfter)
	if v, ok := lookup("CORS_ALLOWED_ORIGINS"); ok && strings.TrimSpace(v) != "" {
		c.CORSOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				c.CORSOrigins = append(c.CORSOrigins, origin)
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: invalid environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

// applyDefaults fills in default values for anything left unset.
func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = 300 * time.Second
	}
	if c.DatabaseURL == "" {
		c.DatabaseURL = "sqlite://chapters.db"
	}
	if c.Transcript.BaseURL == "" {
		c.Transcript.BaseURL = "http://localhost:8000"
	}
	if c.LLM.GatewayURL == "" {
		c.LLM.GatewayURL = "https://api.openai.com/v1/chat/completions"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.7
	}
	if c.AssemblyAI.BaseURL == "" {
		c.AssemblyAI.BaseURL = "https://api.assemblyai.com"
	}
	if c.Queue.Backend == "" {
		c.Queue.Backend = "memory"
	}
	if c.Queue.RedisKey == "" {
		c.Queue.RedisKey = "chapters:tasks"
	}
	if c.Queue.Concurrency == 0 {
		c.Queue.Concurrency = 4
	}
	if c.Queue.MaxAttempts == 0 {
		c.Queue.MaxAttempts = 3
	}
	if c.Refinement.MaxAttempts == 0 {
		c.Refinement.MaxAttempts = 1
	}
	if c.Refinement.ChaptersPer30Min == 0 {
		c.Refinement.ChaptersPer30Min = 3
	}
	if c.Refinement.MinChapters == 0 {
		c.Refinement.MinChapters = 3
	}
	if c.Poll.Interval == 0 {
		c.Poll.Interval = 3 * time.Second
	}
	if c.Poll.MaxAttempts == 0 {
		c.Poll.MaxAttempts = 60
	}
	if c.Sweep.Schedule == "" {
		c.Sweep.Schedule = "@every 5m"
	}
	if c.Sweep.StaleAfter == 0 {
		c.Sweep.StaleAfter = 30 * time.Minute
	}
}

// validate checks that all values are in range and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, "port must be between 1 and 65535")
	}
	switch c.Queue.Backend {
	case "memory":
	case "redis":
		if c.Queue.RedisAddr == "" {
			errs = append(errs, "queue.redis_addr is required for the redis backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("queue.backend %q is not one of memory, redis", c.Queue.Backend))
	}
	if c.Queue.Concurrency < 1 {
		errs = append(errs, "queue.concurrency must be >= 1")
	}
	if c.Queue.MaxAttempts < 1 {
		errs = append(errs, "queue.max_attempts must be >= 1")
	}
	if c.Refinement.MaxAttempts < 1 || c.Refinement.MaxAttempts > 10 {
		errs = append(errs, "refinement.max_attempts must be between 1 and 10")
	}
	if c.Refinement.ChaptersPer30Min < 1 {
		errs = append(errs, "refinement.chapters_per_30_min must be >= 1")
	}
	if c.Refinement.MinChapters < 1 {
		errs = append(errs, "refinement.min_chapters must be >= 1")
	}
	if c.Poll.Interval < 0 {
		errs = append(errs, "poll.interval must not be negative")
	}
	if c.Poll.MaxAttempts < 1 {
		errs = append(errs, "poll.max_attempts must be >= 1")
	}
	if c.Sweep.Schedule != "off" {
		if _, err := cron.ParseStandard(c.Sweep.Schedule); err != nil {
			errs = append(errs, fmt.Sprintf("sweep.schedule %q: %v", c.Sweep.Schedule, err))
		}
	}
	if c.Sweep.StaleAfter < time.Minute {
		errs = append(errs, "sweep.stale_after must be at least 1m")
	} else if c.Sweep.Schedule != "off" && c.Sweep.StaleAfter <= c.PollWindow() {
		errs = append(errs, fmt.Sprintf("sweep.stale_after %s must exceed the chapter generation window %s", c.Sweep.StaleAfter, c.PollWindow()))
	}
	for _, origin := range c.CORSOrigins {
		if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			errs = append(errs, fmt.Sprintf("cors origin %q must start with http:// or https://", origin))
		}
	}
	if !strings.HasPrefix(c.DatabaseURL, "sqlite://") && !strings.HasPrefix(c.DatabaseURL, "postgres://") && !strings.HasPrefix(c.DatabaseURL, "postgresql://") {
		errs = append(errs, "database_url must start with sqlite:// or postgres://")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
