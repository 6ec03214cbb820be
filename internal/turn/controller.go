// Package turn runs conversational turns: one utterance in, one bot reply
// out, with at most one turn in flight.
package turn

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"sync/atomic"
	"time"

	"copilot/internal/backend"
	"copilot/internal/capture"
	"copilot/internal/nlu"
	"copilot/internal/timeline"
)

const (
	FailureText  = "❌ Failed to connect to the assistant."
	NoAnswerText = "Sorry, no response from the assistant."
	GreetingText = "👋 Hello! I'm your SmartStore AI assistant. I can help you with inventory " +
		"management, driver safety, sentiment analysis, and operational insights. " +
		"What would you like to know?"

	DefaultTimeout = 30 * time.Second
)

var (
	ErrEmptyInput     = errors.New("empty input")
	ErrTurnInProgress = errors.New("turn in progress")
)

type Resolver func(utterance string) (nlu.Answer, bool)

type Speaker interface {
	Speak(text string)
}

type Config struct {
	Answerer backend.Answerer
	Speaker  Speaker
	// Resolver defaults to nlu.Resolve.
	Resolver Resolver
	// Timeout bounds the remote answer; a timeout counts as a network failure.
	Timeout time.Duration
	// OnUpdate sees every timeline mutation, in order.
	OnUpdate func(timeline.Message)
	// OnCaptureError sees captures that ended without a transcript.
	OnCaptureError func(error)
	Greeting       string
}

type Controller struct {
	tl       *timeline.Timeline
	resolve  Resolver
	answerer backend.Answerer
	speaker  Speaker
	timeout  time.Duration
	onUpdate func(timeline.Message)
	onErr    func(error)

	busy atomic.Bool
}

func New(cfg Config) *Controller {
	c := &Controller{
		tl:       timeline.New(),
		resolve:  cfg.Resolver,
		answerer: cfg.Answerer,
		speaker:  cfg.Speaker,
		timeout:  cfg.Timeout,
		onUpdate: cfg.OnUpdate,
		onErr:    cfg.OnCaptureError,
	}
	if c.resolve == nil {
		c.resolve = nlu.Resolve
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}

	if cfg.Greeting != "" {
		c.notify(c.tl.Append(timeline.RoleBot, cfg.Greeting))
	}
	return c
}

// Timeline is read-only for callers; only the controller mutates it.
func (c *Controller) Messages() []timeline.Message {
	return c.tl.Snapshot()
}

// Busy reports whether a turn is awaiting its answer.
func (c *Controller) Busy() bool {
	return c.busy.Load()
}

// Submit runs one turn to completion and returns the final bot message.
func (c *Controller) Submit(ctx context.Context, utterance string) (timeline.Message, error) {
	text, err := c.begin(utterance)
	if err != nil {
		return timeline.Message{}, err
	}
	return c.run(ctx, text), nil
}

// Listen turns completed captures into turns until ctx is done or events is
// closed. A capture that completes while a turn is in flight is dropped.
func (c *Controller) Listen(ctx context.Context, events <-chan capture.Event) {
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
				if c.onErr != nil {
					c.onErr(ev.Err)
				}
				continue
			}

			text, err := c.begin(ev.Transcript)
			if err != nil {
				log.Info("Ignoring capture", "reason", err, "transcript", ev.Transcript)
				continue
			}
			go c.run(ctx, text)
		}
	}
}

func (c *Controller) begin(utterance string) (string, error) {
	text := strings.TrimSpace(utterance)
	if text == "" {
		return "", ErrEmptyInput
	}
	if !c.busy.CompareAndSwap(false, true) {
		return "", ErrTurnInProgress
	}
	return text, nil
}

func (c *Controller) run(ctx context.Context, text string) timeline.Message {
	defer c.busy.Store(false)

	c.notify(c.tl.Append(timeline.RoleUser, text))

	placeholder, err := c.tl.AppendPending()
	if err != nil {
		// Unreachable while busy guards the timeline.
		panic(fmt.Sprintf("turn: %v", err))
	}
	c.notify(placeholder)

	reply, speak := c.answer(ctx, text)

	final, err := c.tl.ResolvePending(reply)
	if err != nil {
		panic(fmt.Sprintf("turn: %v", err))
	}
	c.notify(final)

	if speak && c.speaker != nil {
		c.speaker.Speak(final.Content)
	}
	return final
}

// answer returns the reply text and whether it should be spoken.
func (c *Controller) answer(ctx context.Context, text string) (string, bool) {
	if ans, ok := c.resolve(text); ok {
		log.Info("Answered locally", "intent", ans.Intent)
		return ans.Text, true
	}

	if c.answerer == nil {
		return FailureText, false
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	reply, err := c.answerer.Answer(ctx, text)
	if err != nil {
		log.Error("Remote answer failed", "err", err, "took", time.Since(start))
		if errors.Is(err, backend.ErrMalformedReply) {
			return NoAnswerText, false
		}
		return FailureText, false
	}

	log.Info("Answered remotely", "took", time.Since(start))
	return reply, true
}

func (c *Controller) notify(m timeline.Message) {
	if c.onUpdate != nil {
		c.onUpdate(m)
	}
}
