// Package app assembles the assistant core from configuration. The daemon
// and the chat front end share it.
package app

import (
	"fmt"
	log "log/slog"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"copilot/internal/audio"
	"copilot/internal/backend"
	"copilot/internal/capture"
	"copilot/internal/config"
	"copilot/internal/notify"
	"copilot/internal/playback"
	"copilot/internal/proxy"
	"copilot/internal/timeline"
	"copilot/internal/tts"
	"copilot/internal/turn"
	"copilot/pkg/audioconv"
	"copilot/pkg/stt"
)

const selfStream = "espeak"

type Options struct {
	// Voice enables speech capture. Capture failures leave the session
	// unavailable rather than failing Build.
	Voice bool
	// AudioFile replaces the microphone with a decoded audio file.
	AudioFile string
	// Greeting is seeded as the first bot message when non-empty.
	Greeting string

	OnUpdate       func(timeline.Message)
	OnCaptureState func(capturing bool)
	OnCaptureError func(error)
}

type App struct {
	Config     *config.Config
	Backend    *backend.Client
	Controller *turn.Controller
	Capture    *capture.Session
	Player     *playback.Player

	closers []func()
}

func Build(cfg *config.Config, opt Options) (*App, error) {
	httpClient, err := proxy.NewClient(cfg.Proxy, cfg.DispatchTimeout)
	if err != nil {
		return nil, fmt.Errorf("proxy: %w", err)
	}

	a := &App{
		Config:  cfg,
		Backend: backend.NewClient(cfg.BackendURL, httpClient),
	}

	var answerer backend.Answerer = a.Backend
	if cfg.Answerer == config.AnswererOpenAI {
		client := openai.NewClient(
			option.WithAPIKey(cfg.OpenAIKey),
			option.WithHTTPClient(httpClient),
		)
		answerer = backend.NewLLM(client, cfg.OpenAIModel)
		log.Debug("Using openai answerer", "model", cfg.OpenAIModel)
	}

	var playOpts []playback.Option
	playOpts = append(playOpts, playback.WithQueueSize(cfg.SpeechQueue))
	if cfg.Duck {
		ducker := playback.NewDucker(playback.Pactl{}, []string{selfStream}, cfg.DuckFactor, 250*time.Millisecond)
		playOpts = append(playOpts, playback.WithDucker(ducker))
	}
	a.Player = playback.NewPlayer(tts.NewEspeak(cfg.Voice), playOpts...)
	a.closers = append(a.closers, a.Player.Close)

	src, tr := a.speechInput(cfg, opt)
	a.Capture = capture.New(src, tr, capture.WithStateHook(a.stateHook(cfg, opt)))

	a.Controller = turn.New(turn.Config{
		Answerer:       answerer,
		Speaker:        a.Player,
		Timeout:        cfg.DispatchTimeout,
		OnUpdate:       opt.OnUpdate,
		OnCaptureError: opt.OnCaptureError,
		Greeting:       opt.Greeting,
	})

	return a, nil
}

// speechInput returns nil values when capture is disabled or cannot start.
func (a *App) speechInput(cfg *config.Config, opt Options) (capture.Source, capture.Transcriber) {
	if !opt.Voice && opt.AudioFile == "" {
		return nil, nil
	}

	tr, err := stt.NewTranscriber(cfg.WhisperModel, stt.Options{
		Language:      cfg.WhisperLanguage,
		InitialPrompt: "Drivers, deliveries, inventory, safety score, weather.",
	})
	if err != nil {
		log.Warn("Speech capture unavailable", "reason", "whisper", "err", err)
		return nil, nil
	}
	a.closers = append(a.closers, func() { tr.Close() })

	if opt.AudioFile != "" {
		log.Info("Capturing from file", "path", opt.AudioFile)
		return audioconv.File{Path: opt.AudioFile}, tr
	}

	rec := audio.NewRecorder()
	if err := rec.Init(); err != nil {
		log.Warn("Speech capture unavailable", "reason", "portaudio", "err", err)
		return nil, nil
	}
	a.closers = append(a.closers, rec.Close)
	return rec, tr
}

func (a *App) stateHook(cfg *config.Config, opt Options) func(bool) {
	cue := notify.Cue(cfg.BeepPath, func(err error) {
		log.Debug("Listening cue failed", "err", err)
	})
	return func(capturing bool) {
		cue(capturing)
		if opt.OnCaptureState != nil {
			opt.OnCaptureState(capturing)
		}
	}
}

// Close releases audio devices and models in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
