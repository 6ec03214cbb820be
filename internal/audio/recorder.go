package audio

import (
	"context"
	"math"
	"time"

	"github.com/gordonklaus/portaudio"
)

const (
	SampleRate = 16000
	frameSize  = 320 // 20ms
)

// Recorder captures from the default input device. It ends a recording on
// trailing silence after speech, on stop, on ctx, or at MaxLength.
type Recorder struct {
	SilenceRMS float64
	Silence    time.Duration
	MaxLength  time.Duration
}

func NewRecorder() *Recorder {
	return &Recorder{
		SilenceRMS: 0.015,
		Silence:    600 * time.Millisecond,
		MaxLength:  10 * time.Second,
	}
}

func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

func (r *Recorder) Record(ctx context.Context, stop <-chan struct{}) ([]float32, error) {
	buf := make([]float32, frameSize)
	out := make([]float32, 0, SampleRate*3)

	stream, err := portaudio.OpenDefaultStream(1, 0, SampleRate, len(buf), buf)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, err
	}
	defer stream.Stop()

	var (
		speaking  bool
		silentFor time.Duration
	)

	frameDur := time.Duration(frameSize) * time.Second / SampleRate
	maxFrames := int(r.MaxLength / frameDur)

	for i := 0; i < maxFrames; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-stop:
			return out, nil
		default:
		}

		if err := stream.Read(); err != nil {
			return nil, err
		}

		if frameRMS(buf) > r.SilenceRMS {
			speaking = true
			silentFor = 0
			out = append(out, buf...)
			continue
		}

		if speaking {
			silentFor += frameDur
			if silentFor >= r.Silence {
				break
			}
			out = append(out, buf...)
		}
	}

	return out, nil
}

func frameRMS(f []float32) float64 {
	if len(f) == 0 {
		return 0
	}
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}
