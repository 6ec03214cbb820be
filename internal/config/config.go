// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	AnswererHTTP   = "http"
	AnswererOpenAI = "openai"
)

type Config struct {
	BackendURL      string
	Answerer        string
	OpenAIKey       string
	OpenAIModel     string
	Proxy           string
	DispatchTimeout time.Duration

	WhisperModel    string
	WhisperLanguage string
	Voice           string
	BeepPath        string
	Duck            bool
	DuckFactor      float64
	SpeechQueue     int

	SocketPath string
	BusURL     string
}

// Load reads envFile (if it exists) into the environment and builds the
// configuration from it.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		BackendURL:      getEnv("COPILOT_BACKEND_URL", "http://localhost:8000"),
		Answerer:        strings.ToLower(getEnv("COPILOT_ANSWERER", AnswererHTTP)),
		OpenAIKey:       getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-5-nano"),
		Proxy:           getEnv("COPILOT_PROXY", ""),
		DispatchTimeout: getEnvDuration("COPILOT_DISPATCH_TIMEOUT", 30*time.Second),

		WhisperModel:    getEnv("WHISPER_MODEL", "third_party/whisper.cpp/models/ggml-base.en.bin"),
		WhisperLanguage: getEnv("WHISPER_LANGUAGE", "en"),
		Voice:           getEnv("COPILOT_VOICE", "en"),
		BeepPath:        getEnv("COPILOT_BEEP", "beep.mp3"),
		Duck:            getEnvBool("COPILOT_DUCK", true),
		DuckFactor:      getEnvFloat("COPILOT_DUCK_FACTOR", 0.3),
		SpeechQueue:     getEnvInt("COPILOT_SPEECH_QUEUE", 8),

		SocketPath: getEnv("COPILOT_SOCKET", "/tmp/copilot.sock"),
		BusURL:     getEnv("BUS_URL", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.BackendURL == "" && c.Answerer == AnswererHTTP {
		return fmt.Errorf("COPILOT_BACKEND_URL cannot be empty")
	}
	switch c.Answerer {
	case AnswererHTTP:
	case AnswererOpenAI:
		if c.OpenAIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai answerer")
		}
	default:
		return fmt.Errorf("COPILOT_ANSWERER must be %q or %q, got %q", AnswererHTTP, AnswererOpenAI, c.Answerer)
	}
	if c.DispatchTimeout <= 0 {
		return fmt.Errorf("COPILOT_DISPATCH_TIMEOUT must be > 0")
	}
	if c.DuckFactor < 0 || c.DuckFactor > 1 {
		return fmt.Errorf("COPILOT_DUCK_FACTOR must be within [0, 1]")
	}
	if c.SpeechQueue <= 0 {
		return fmt.Errorf("COPILOT_SPEECH_QUEUE must be > 0")
	}
	if c.SocketPath == "" {
		return fmt.Errorf("COPILOT_SOCKET cannot be empty")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
