package config

import (
	"strings"
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(nil, envMap(nil))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Refinement.MaxAttempts != 1 {
		t.Errorf("Refinement.MaxAttempts = %d, want 1", cfg.Refinement.MaxAttempts)
	}
	if cfg.Poll.Interval != 3*time.Second {
		t.Errorf("Poll.Interval = %v, want 3s", cfg.Poll.Interval)
	}
	if cfg.Poll.MaxAttempts != 60 {
		t.Errorf("Poll.MaxAttempts = %d, want 60", cfg.Poll.MaxAttempts)
	}
	if cfg.Queue.Backend != "memory" {
		t.Errorf("Queue.Backend = %q, want memory", cfg.Queue.Backend)
	}
	if cfg.Transcript.BaseURL != "http://localhost:8000" {
		t.Errorf("Transcript.BaseURL = %q", cfg.Transcript.BaseURL)
	}
	if cfg.Sweep.Schedule != "@every 5m" || cfg.Sweep.StaleAfter != 30*time.Minute {
		t.Errorf("Sweep = %+v", cfg.Sweep)
	}
	if cfg.DatabaseURL != "sqlite://chapters.db" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
}

func TestParse_YAMLThenEnvOverride(t *testing.T) {
	yml := []byte(`
port: 9000
refinement:
  max_attempts: 2
poll:
  interval: 5s
  max_attempts: 10
llm:
  model: from-yaml
`)
	cfg, err := Parse(yml, envMap(map[string]string{
		"REVIEW_MAX_ATTEMPTS": "3",
		"LLM_MODEL":           "from-env",
	}))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Port)
	}
	if cfg.Refinement.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want env override 3", cfg.Refinement.MaxAttempts)
	}
	if cfg.Poll.Interval != 5*time.Second {
		t.Errorf("Poll.Interval = %v, want 5s", cfg.Poll.Interval)
	}
	if cfg.LLM.Model != "from-env" {
		t.Errorf("LLM.Model = %q, want from-env", cfg.LLM.Model)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"redis without addr", map[string]string{"QUEUE_BACKEND": "redis"}, "redis_addr is required"},
		{"unknown backend", map[string]string{"QUEUE_BACKEND": "kafka"}, "not one of memory, redis"},
		{"attempts out of range", map[string]string{"REVIEW_MAX_ATTEMPTS": "11"}, "refinement.max_attempts"},
		{"bad number", map[string]string{"PORT": "eighty"}, "PORT"},
		{"bad duration", map[string]string{"POLL_INTERVAL": "soon"}, "POLL_INTERVAL"},
		{"bad database url", map[string]string{"DATABASE_URL": "mysql://x"}, "database_url"},
		{"bad sweep schedule", map[string]string{"STALE_SWEEP_SCHEDULE": "every now and then"}, "sweep.schedule"},
		{"stale window too short", map[string]string{"STALE_JOB_AFTER": "10s"}, "sweep.stale_after"},
		{"stale window inside poll window", map[string]string{"STALE_JOB_AFTER": "1m"}, "chapter generation window"},
		{"stale window equals poll window", map[string]string{"STALE_JOB_AFTER": "10m", "HTTP_TIMEOUT": "3m", "POLL_INTERVAL": "1s"}, "chapter generation window"},
		{"bad cors origin", map[string]string{"CORS_ALLOWED_ORIGINS": "example.com"}, "cors origin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(nil, envMap(tt.env))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestParse_CORSOrigins(t *testing.T) {
	cfg, err := Parse(nil, envMap(map[string]string{
		"CORS_ALLOWED_ORIGINS": " http://localhost:3000, ,https://app.example.com ",
	}))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []string{"http://localhost:3000", "https://app.example.com"}
	if len(cfg.CORSOrigins) != len(want) {
		t.Fatalf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	for i := range want {
		if cfg.CORSOrigins[i] != want[i] {
			t.Errorf("CORSOrigins[%d] = %q, want %q", i, cfg.CORSOrigins[i], want[i])
		}
	}
}

func TestParse_SweepOff(t *testing.T) {
	cfg, err := Parse(nil, envMap(map[string]string{"STALE_SWEEP_SCHEDULE": "off"}))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Sweep.Schedule != "off" {
		t.Errorf("Schedule = %q", cfg.Sweep.Schedule)
	}
}

func TestParse_StaleWindowBeyondPollWindow(t *testing.T) {
	cfg, err := Parse(nil, envMap(map[string]string{
		"STALE_JOB_AFTER":   "2m",
		"HTTP_TIMEOUT":      "10s",
		"POLL_INTERVAL":     "1s",
		"POLL_MAX_ATTEMPTS": "60",
	}))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := cfg.PollWindow(); got != 90*time.Second {
		t.Errorf("PollWindow = %v, want 1m30s", got)
	}

	// With the sweeper off only the 1m floor applies.
	if _, err := Parse(nil, envMap(map[string]string{"STALE_JOB_AFTER": "1m", "STALE_SWEEP_SCHEDULE": "off"})); err != nil {
		t.Errorf("Parse with sweeper off: %v", err)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("port: [1"), envMap(nil)); err == nil {
		t.Fatal("expected parse error")
	}
}
