package playback

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

var percentRe = regexp.MustCompile(`(\d+)\s*%`)

// Stream is one playback stream on the sound server.
type Stream struct {
	ID      int
	Volume  int
	AppName string
}

type fadeTarget struct {
	id   int
	from int
	to   int
}

// Mixer is the sound server surface the ducker needs.
type Mixer interface {
	Streams(ctx context.Context) ([]Stream, error)
	SetVolume(ctx context.Context, id, percent int) error
}

var _ Fader = (*Ducker)(nil)

// Ducker fades every stream except our own down while the assistant speaks
// and back up afterwards.
type Ducker struct {
	mixer     Mixer
	selfNames []string
	factor    float64
	minVolume int
	fade      time.Duration

	mu       sync.Mutex
	active   bool
	original map[int]int // stream id -> volume % before duck
}

func NewDucker(mixer Mixer, selfNames []string, factor float64, fade time.Duration) *Ducker {
	if mixer == nil {
		mixer = Pactl{}
	}
	return &Ducker{
		mixer:     mixer,
		selfNames: append([]string(nil), selfNames...),
		factor:    clampFloat(factor, 0, 1),
		minVolume: 5,
		fade:      fade,
		original:  make(map[int]int),
	}
}

func (d *Ducker) Duck(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active {
		return nil
	}

	streams, err := d.mixer.Streams(ctx)
	if err != nil {
		return fmt.Errorf("list streams: %w", err)
	}

	d.original = make(map[int]int)
	var targets []fadeTarget

	for _, s := range streams {
		if d.isSelf(s) {
			continue
		}

		to := int(math.Round(float64(s.Volume) * d.factor))
		if to < d.minVolume {
			to = d.minVolume
		}
		if to > s.Volume {
			to = s.Volume
		}

		d.original[s.ID] = s.Volume
		targets = append(targets, fadeTarget{id: s.ID, from: s.Volume, to: to})
	}

	if err := d.fadeTo(ctx, targets); err != nil {
		return err
	}

	d.active = true
	return nil
}

// Restore brings ducked streams back to their original volume. Streams that
// appeared after Duck are left alone.
func (d *Ducker) Restore(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active {
		return nil
	}

	streams, err := d.mixer.Streams(ctx)
	if err != nil {
		return fmt.Errorf("list streams: %w", err)
	}

	var targets []fadeTarget
	for _, s := range streams {
		orig, ok := d.original[s.ID]
		if !ok || d.isSelf(s) {
			continue
		}
		targets = append(targets, fadeTarget{id: s.ID, from: s.Volume, to: orig})
	}

	if err := d.fadeTo(ctx, targets); err != nil {
		return err
	}

	d.original = make(map[int]int)
	d.active = false
	return nil
}

func (d *Ducker) isSelf(s Stream) bool {
	for _, name := range d.selfNames {
		if s.AppName == name {
			return true
		}
	}
	return false
}

func (d *Ducker) fadeTo(ctx context.Context, targets []fadeTarget) error {
	if len(targets) == 0 {
		return nil
	}

	const minStep = 10 * time.Millisecond

	steps := int(d.fade / minStep)
	if steps < 1 {
		steps = 1
	}
	stepDur := d.fade / time.Duration(steps)

	for i := 1; i <= steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		frac := float64(i) / float64(steps)
		for _, t := range targets {
			v := int(math.Round(float64(t.from) + float64(t.to-t.from)*frac))
			if err := d.mixer.SetVolume(ctx, t.id, v); err != nil {
				return fmt.Errorf("set volume id=%d: %w", t.id, err)
			}
		}

		if i < steps {
			time.Sleep(stepDur)
		}
	}

	return nil
}

// Pactl drives PulseAudio/PipeWire through the pactl command.
type Pactl struct{}

func (Pactl) Streams(ctx context.Context) ([]Stream, error) {
	out, err := exec.CommandContext(ctx, "pactl", "list", "sink-inputs").Output()
	if err != nil {
		return nil, fmt.Errorf("pactl list sink-inputs: %w", err)
	}
	return parseSinkInputs(string(out)), nil
}

func (Pactl) SetVolume(ctx context.Context, id, percent int) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 150 {
		percent = 150
	}
	arg := strconv.Itoa(percent) + "%"
	return exec.CommandContext(ctx, "pactl", "set-sink-input-volume", strconv.Itoa(id), arg).Run()
}

func parseSinkInputs(text string) []Stream {
	parts := strings.Split(text, "Sink Input #")
	if len(parts) <= 1 {
		return nil
	}

	var res []Stream
	for _, block := range parts[1:] {
		nl := strings.IndexByte(block, '\n')
		if nl <= 0 {
			continue
		}

		id, err := strconv.Atoi(strings.TrimSpace(block[:nl]))
		if err != nil {
			continue
		}

		s := Stream{ID: id}
		for _, line := range strings.Split(block[nl+1:], "\n") {
			line = strings.TrimSpace(line)

			if strings.HasPrefix(line, "Volume:") && s.Volume == 0 {
				if m := percentRe.FindStringSubmatch(line); len(m) >= 2 {
					s.Volume, _ = strconv.Atoi(m[1])
				}
			}

			// application.name = "Firefox"
			if strings.HasPrefix(line, "application.name =") && s.AppName == "" {
				if q := strings.Index(line, `"`); q >= 0 {
					s.AppName = strings.TrimSuffix(line[q+1:], `"`)
				}
			}
		}

		if s.Volume == 0 && s.AppName == "" {
			continue
		}
		res = append(res, s)
	}

	return res
}

func clampFloat(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
