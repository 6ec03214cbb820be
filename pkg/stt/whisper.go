package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

var ErrNoAudio = errors.New("no audio samples provided")

type Options struct {
	Language      string // e.g. "auto", "en"
	Threads       int    // <=0 => NumCPU()
	InitialPrompt string // biases decoding toward domain words
	BeamSize      int    // 0 = greedy
}

// Transcriber turns 16 kHz mono PCM into text with a whisper.cpp model.
type Transcriber struct {
	model whisper.Model
	opt   Options
}

func NewTranscriber(modelPath string, opt Options) (*Transcriber, error) {
	if modelPath == "" {
		return nil, errors.New("empty model path")
	}
	m, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	return &Transcriber{model: m, opt: opt}, nil
}

func (t *Transcriber) Close() error {
	if t.model == nil {
		return nil
	}
	return t.model.Close()
}

// Transcribe expects mono @ 16 kHz, float32 in [-1, 1]. Segments are joined
// with a single space.
func (t *Transcriber) Transcribe(ctx context.Context, pcm16k []float32) (string, error) {
	if t.model == nil {
		return "", errors.New("nil model")
	}
	if len(pcm16k) == 0 {
		return "", ErrNoAudio
	}

	wctx, err := t.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("new context: %w", err)
	}

	lang := t.opt.Language
	if lang == "" {
		lang = "auto"
	}
	if err := wctx.SetLanguage(lang); err != nil {
		return "", fmt.Errorf("set language: %w", err)
	}

	threads := t.opt.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	wctx.SetThreads(uint(threads))

	if t.opt.BeamSize > 0 {
		wctx.SetBeamSize(t.opt.BeamSize)
	}
	if t.opt.InitialPrompt != "" {
		wctx.SetInitialPrompt(t.opt.InitialPrompt)
	}

	if err := wctx.Process(pcm16k, nil, nil, nil); err != nil {
		return "", fmt.Errorf("process: %w", err)
	}

	var parts []string
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		s, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("next segment: %w", err)
		}
		if text := strings.TrimSpace(s.Text); text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " "), nil
}
