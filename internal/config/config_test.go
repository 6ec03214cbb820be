package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"COPILOT_BACKEND_URL", "COPILOT_ANSWERER", "COPILOT_DISPATCH_TIMEOUT", "BUS_URL"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.BackendURL != "http://localhost:8000" {
		t.Errorf("BackendURL = %s", cfg.BackendURL)
	}
	if cfg.Answerer != AnswererHTTP {
		t.Errorf("Answerer = %s", cfg.Answerer)
	}
	if cfg.DispatchTimeout != 30*time.Second {
		t.Errorf("DispatchTimeout = %v", cfg.DispatchTimeout)
	}
	if cfg.BusURL != "" {
		t.Errorf("BusURL = %q, want disabled", cfg.BusURL)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("COPILOT_BACKEND_URL", "http://backend:9000")
	t.Setenv("COPILOT_DISPATCH_TIMEOUT", "5s")
	t.Setenv("COPILOT_DUCK", "off")
	t.Setenv("COPILOT_DUCK_FACTOR", "0.5")
	t.Setenv("COPILOT_SPEECH_QUEUE", "not-a-number")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.BackendURL != "http://backend:9000" {
		t.Errorf("BackendURL = %s", cfg.BackendURL)
	}
	if cfg.DispatchTimeout != 5*time.Second {
		t.Errorf("DispatchTimeout = %v", cfg.DispatchTimeout)
	}
	if cfg.Duck {
		t.Error("Duck = true, want false")
	}
	if cfg.DuckFactor != 0.5 {
		t.Errorf("DuckFactor = %v", cfg.DuckFactor)
	}
	if cfg.SpeechQueue != 8 {
		t.Errorf("SpeechQueue = %d, want fallback 8", cfg.SpeechQueue)
	}
}

func TestLoad_EnvFile(t *testing.T) {
	os.Unsetenv("COPILOT_VOICE")
	t.Cleanup(func() { os.Unsetenv("COPILOT_VOICE") })

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("COPILOT_VOICE=en-in\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Voice != "en-in" {
		t.Errorf("Voice = %s", cfg.Voice)
	}
}

func TestLoad_MissingEnvFileIgnored(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Errorf("Load with missing env file failed: %v", err)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			BackendURL:      "http://localhost:8000",
			Answerer:        AnswererHTTP,
			DispatchTimeout: time.Second,
			DuckFactor:      0.3,
			SpeechQueue:     1,
			SocketPath:      "/tmp/x.sock",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"unknown answerer", func(c *Config) { c.Answerer = "magic" }, "COPILOT_ANSWERER"},
		{"openai without key", func(c *Config) { c.Answerer = AnswererOpenAI }, "OPENAI_API_KEY"},
		{"openai with key", func(c *Config) { c.Answerer = AnswererOpenAI; c.OpenAIKey = "k" }, ""},
		{"empty backend", func(c *Config) { c.BackendURL = "" }, "COPILOT_BACKEND_URL"},
		{"zero timeout", func(c *Config) { c.DispatchTimeout = 0 }, "COPILOT_DISPATCH_TIMEOUT"},
		{"duck factor", func(c *Config) { c.DuckFactor = 2 }, "COPILOT_DUCK_FACTOR"},
		{"queue", func(c *Config) { c.SpeechQueue = 0 }, "COPILOT_SPEECH_QUEUE"},
		{"socket", func(c *Config) { c.SocketPath = "" }, "COPILOT_SOCKET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}
