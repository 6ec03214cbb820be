package turn

import (
	"context"
	log "log/slog"
	"strings"
	"time"

	"copilot/internal/capture"
)

type Commander interface {
	VoiceCommand(ctx context.Context, query string) (string, error)
}

// RelayVoice is the standalone voice-command mode: every transcript goes
// straight to the command endpoint and the reply is spoken on receipt. No
// timeline is kept and failures are only logged.
func RelayVoice(ctx context.Context, events <-chan capture.Event, cmd Commander, speaker Speaker, timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Err != nil {
				log.Warn("Capture produced no transcript", "err", ev.Err)
				continue
			}

			query := strings.ToLower(strings.TrimSpace(ev.Transcript))
			if query == "" {
				continue
			}

			rctx, cancel := context.WithTimeout(ctx, timeout)
			reply, err := cmd.VoiceCommand(rctx, query)
			cancel()
			if err != nil {
				log.Error("Voice command failed", "query", query, "err", err)
				continue
			}

			log.Info("Voice command reply", "query", query, "reply", reply)
			speaker.Speak(reply)
		}
	}
}
