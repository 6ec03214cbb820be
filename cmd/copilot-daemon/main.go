package main

import (
	"context"
	"fmt"
	log "log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/lmittmann/tint"
	cli "github.com/spf13/pflag"

	"copilot/internal/app"
	"copilot/internal/bus"
	"copilot/internal/config"
	"copilot/internal/ipc"
	"copilot/internal/timeline"
	"copilot/internal/turn"
)

const (
	modeChat  = "chat"
	modeVoice = "voice"
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
	mode := cli.StringP("mode", "m", modeChat, "chat (timeline + intents) or voice (voice command relay)")
	audioFile := cli.StringP("audio-file", "f", "", "Transcribe this file instead of the microphone")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	log.Info("Booting up", "mode", *mode)

	if *mode != modeChat && *mode != modeVoice {
		log.Error("Unknown mode", "mode", *mode)
		os.Exit(2)
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Error("Failed to load config", "err", err)
		os.Exit(1)
	}

	onUpdate := func(m timeline.Message) {
		log.Debug("Timeline", "id", m.ID, "role", m.Role, "pending", m.Pending, "content", m.Content)
	}
	if cfg.BusURL != "" {
		pub := bus.NewPublisher(cfg.BusURL, "copilot")
		defer pub.Close()
		onUpdate = func(m timeline.Message) {
			log.Debug("Timeline", "id", m.ID, "role", m.Role, "pending", m.Pending, "content", m.Content)
			pub.Publish(m)
		}
		log.Debug("Publishing timeline", "url", cfg.BusURL)
	}

	a, err := app.Build(cfg, app.Options{
		Voice:     true,
		AudioFile: *audioFile,
		OnUpdate:  onUpdate,
	})
	if err != nil {
		log.Error("Failed to build assistant", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	if !a.Capture.Available() {
		log.Warn("Speech capture unavailable; only ask and history will work")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case modeChat:
		go a.Controller.Listen(ctx, a.Capture.Events())
	case modeVoice:
		go turn.RelayVoice(ctx, a.Capture.Events(), a.Backend, a.Player, cfg.DispatchTimeout)
	}

	d := &daemon{app: a, mode: *mode}
	srv, err := ipc.Listen(ctx, cfg.SocketPath, d.handle)
	if err != nil {
		log.Error("Failed ipc server", "err", err)
		os.Exit(1)
	}
	defer srv.Close()

	log.Info("Boot up - successful", "socket", cfg.SocketPath)
	<-ctx.Done()
	log.Info("Shutting down")
}

type daemon struct {
	app  *app.App
	mode string
}

func (d *daemon) handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Cmd {
	case ipc.CmdListen:
		if err := d.app.Capture.Start(ctx); err != nil {
			return ipc.Fail(err)
		}
		log.Info("Listening")
		return ipc.Response{OK: true}

	case ipc.CmdStop:
		d.app.Capture.Stop()
		return ipc.Response{OK: true}

	case ipc.CmdCancel:
		d.app.Capture.Cancel()
		return ipc.Response{OK: true}

	case ipc.CmdAsk:
		return d.ask(ctx, req.Text)

	case ipc.CmdHistory:
		return ipc.Response{OK: true, Messages: d.app.Controller.Messages()}

	default:
		log.Warn("Unknown command", "cmd", req.Cmd)
		return ipc.Fail(fmt.Errorf("unknown command %q", req.Cmd))
	}
}

func (d *daemon) ask(ctx context.Context, text string) ipc.Response {
	if d.mode == modeVoice {
		ctx, cancel := context.WithTimeout(ctx, d.app.Config.DispatchTimeout)
		defer cancel()
		query := strings.ToLower(strings.TrimSpace(text))
		if query == "" {
			return ipc.Fail(turn.ErrEmptyInput)
		}
		reply, err := d.app.Backend.VoiceCommand(ctx, query)
		if err != nil {
			return ipc.Fail(err)
		}
		d.app.Player.Speak(reply)
		return ipc.Response{OK: true, Reply: reply}
	}

	final, err := d.app.Controller.Submit(ctx, text)
	if err != nil {
		return ipc.Fail(err)
	}
	return ipc.Response{OK: true, Reply: final.Content}
}
