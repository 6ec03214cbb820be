// Package capture owns the microphone: one speech capture at a time, ending
// in a transcript delivered on a channel.
package capture

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"sync"
)

var (
	ErrCaptureUnavailable = errors.New("speech capture unavailable")
	ErrSessionActive      = errors.New("speech capture already active")
)

// Source records mono 16 kHz PCM until speech ends, stop is closed, or ctx
// is done.
type Source interface {
	Record(ctx context.Context, stop <-chan struct{}) ([]float32, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, pcm []float32) (string, error)
}

// Event is the outcome of one completed capture.
type Event struct {
	Transcript string
	Err        error
}

type Option func(*Session)

// WithStateHook is called with true when a capture starts and false when it
// ends, whatever the outcome.
func WithStateHook(f func(capturing bool)) Option {
	return func(s *Session) { s.onState = f }
}

type Session struct {
	src Source
	tr  Transcriber

	mu     sync.Mutex
	active bool
	stop   chan struct{}
	cancel context.CancelFunc

	events  chan Event
	onState func(bool)

	gen       uint64 // bumped by every Start, guarded by mu
	stateMu   sync.Mutex
	delivered uint64 // newest generation whose state reached onState
}

// New returns a session. A nil src or tr yields a session whose Start
// always fails with ErrCaptureUnavailable.
func New(src Source, tr Transcriber, opts ...Option) *Session {
	s := &Session{
		src:    src,
		tr:     tr,
		events: make(chan Event, 1),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Session) Available() bool {
	return s.src != nil && s.tr != nil
}

// Events is the single-consumer completion stream.
func (s *Session) Events() <-chan Event {
	return s.events
}

func (s *Session) Capturing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Start begins a capture. Any transcript left unconsumed by a previous
// capture is discarded.
func (s *Session) Start(ctx context.Context) error {
	if !s.Available() {
		return ErrCaptureUnavailable
	}

	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return ErrSessionActive
	}

	select {
	case old := <-s.events:
		log.Debug("Discarding unconsumed capture", "transcript", old.Transcript)
	default:
	}

	ctx, cancel := context.WithCancel(ctx)
	stop := make(chan struct{})
	s.active = true
	s.stop = stop
	s.cancel = cancel
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	s.setState(gen, true)
	go s.run(ctx, gen, stop)
	return nil
}

// Stop signals end of speech; the recorded audio is still transcribed.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active && s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
}

// Cancel abandons the active capture without producing an event.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active && s.cancel != nil {
		s.cancel()
	}
}

func (s *Session) run(ctx context.Context, gen uint64, stop <-chan struct{}) {
	defer s.finish(gen)

	text, err := s.capture(ctx, stop)
	if ctx.Err() != nil {
		log.Info("Capture cancelled")
		return
	}

	switch {
	case err != nil:
		log.Error("Capture failed", "err", err)
		s.emit(Event{Err: err})
	case text == "":
		log.Info("Empty transcript, nothing to submit")
	default:
		log.Info("Transcribed", "text", text)
		s.emit(Event{Transcript: text})
	}
}

func (s *Session) capture(ctx context.Context, stop <-chan struct{}) (string, error) {
	pcm, err := s.src.Record(ctx, stop)
	if err != nil {
		return "", fmt.Errorf("record: %w", err)
	}
	if len(pcm) == 0 {
		return "", nil
	}

	log.Debug("Recorded", "samples", len(pcm))

	text, err := s.tr.Transcribe(ctx, pcm)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		log.Warn("Capture event dropped, consumer not reading")
	}
}

func (s *Session) finish(gen uint64) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.active = false
	s.stop = nil
	s.cancel = nil
	s.mu.Unlock()

	s.setState(gen, false)
}

// setState forwards a state change unless a newer capture has already
// reported, so a late "stopped" never follows the next "started".
func (s *Session) setState(gen uint64, capturing bool) {
	if s.onState == nil {
		return
	}

	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if gen < s.delivered {
		return
	}
	s.delivered = gen
	s.onState(capturing)
}
