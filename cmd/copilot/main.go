package main

import (
	"context"
	"fmt"
	"io"
	log "log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lmittmann/tint"
	cli "github.com/spf13/pflag"
	"golang.org/x/term"

	"copilot/internal/app"
	"copilot/internal/config"
	"copilot/internal/tui"
	"copilot/internal/turn"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	logFile := cli.String("log-file", "", "Write logs to this file (default: discard)")
	voice := cli.Bool("voice", true, "Enable speech capture")
	audioFile := cli.StringP("audio-file", "f", "", "Transcribe this file instead of the microphone")
	cli.Parse()

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "copilot needs a terminal; use copilot-ctl for scripting")
		os.Exit(2)
	}

	var logOut io.Writer = io.Discard
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open log file:", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	log.SetDefault(log.New(tint.NewHandler(logOut, &tint.Options{
		Level:   logLevelMap[*logLevel],
		NoColor: true,
	})))

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	bridge := &tui.Bridge{}
	a, err := app.Build(cfg, app.Options{
		Voice:          *voice,
		AudioFile:      *audioFile,
		Greeting:       turn.GreetingText,
		OnUpdate:       bridge.OnUpdate,
		OnCaptureState: bridge.OnCapture,
		OnCaptureError: bridge.OnCaptureError,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Controller.Listen(ctx, a.Capture.Events())

	p := tea.NewProgram(tui.NewModel(a.Controller, a.Capture), tea.WithAltScreen())
	bridge.Attach(p)

	if _, err := p.Run(); err != nil {
		log.Error("TUI failed", "err", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
