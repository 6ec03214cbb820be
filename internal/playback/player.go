// Package playback speaks bot replies without blocking the caller.
package playback

import (
	"context"
	log "log/slog"
	"sync"
	"time"
)

// Engine turns text into audible speech, returning once it has been played.
type Engine interface {
	Say(text string) error
}

// Fader lowers other audio for the length of an utterance.
type Fader interface {
	Duck(ctx context.Context) error
	Restore(ctx context.Context) error
}

type Option func(*Player)

func WithDucker(d Fader) Option {
	return func(p *Player) { p.ducker = d }
}

func WithQueueSize(n int) Option {
	return func(p *Player) {
		if n > 0 {
			p.queue = make(chan string, n)
		}
	}
}

// Player plays utterances one at a time in the order Speak was called.
type Player struct {
	engine Engine
	ducker Fader
	queue  chan string

	closeOnce sync.Once
	done      chan struct{}
}

func NewPlayer(engine Engine, opts ...Option) *Player {
	p := &Player{
		engine: engine,
		queue:  make(chan string, 8),
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		o(p)
	}

	go p.loop()
	return p
}

// Speak queues text and returns immediately. When the queue is full the
// utterance is dropped.
func (p *Player) Speak(text string) {
	if text == "" {
		return
	}

	select {
	case <-p.done:
		return
	default:
	}

	select {
	case p.queue <- text:
	default:
		log.Warn("Speech queue full, dropping utterance", "chars", len(text))
	}
}

// Close stops the worker after the utterance in progress. Queued utterances
// are discarded.
func (p *Player) Close() {
	p.closeOnce.Do(func() { close(p.done) })
}

func (p *Player) loop() {
	for {
		select {
		case <-p.done:
			return
		case text := <-p.queue:
			p.play(text)
		}
	}
}

func (p *Player) play(text string) {
	text = Speakable(text)
	if text == "" {
		return
	}

	if p.ducker != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := p.ducker.Duck(ctx); err != nil {
			log.Warn("Failed to duck other audio", "err", err)
		}
		cancel()

		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := p.ducker.Restore(ctx); err != nil {
				log.Warn("Failed to restore other audio", "err", err)
			}
		}()
	}

	if err := p.engine.Say(text); err != nil {
		log.Error("Failed to voice out", "err", err)
	}
}
