package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingEngine struct {
	mu     sync.Mutex
	said   []string
	block  chan struct{}
	active int
	max    int
	spoke  chan string
}

func newEngine() *recordingEngine {
	return &recordingEngine{spoke: make(chan string, 16)}
}

func (e *recordingEngine) Say(text string) error {
	e.mu.Lock()
	e.active++
	if e.active > e.max {
		e.max = e.active
	}
	e.mu.Unlock()

	if e.block != nil {
		<-e.block
	}

	e.mu.Lock()
	e.active--
	e.said = append(e.said, text)
	e.mu.Unlock()

	e.spoke <- text
	return nil
}

func waitSpoken(t *testing.T, e *recordingEngine, n int) []string {
	t.Helper()
	var got []string
	for i := 0; i < n; i++ {
		select {
		case s := <-e.spoke:
			got = append(got, s)
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of %d utterances spoken", i, n)
		}
	}
	return got
}

func TestSpeak_DoesNotBlock(t *testing.T) {
	e := newEngine()
	e.block = make(chan struct{})
	p := NewPlayer(e)
	defer p.Close()

	done := make(chan struct{})
	go func() {
		p.Speak("first")
		p.Speak("second")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Speak blocked on a busy engine")
	}
	close(e.block)
	waitSpoken(t, e, 2)
}

func TestSpeak_QueuedInOrderWithoutOverlap(t *testing.T) {
	e := newEngine()
	p := NewPlayer(e)
	defer p.Close()

	for _, s := range []string{"a", "b", "c"} {
		p.Speak(s)
	}

	got := waitSpoken(t, e, 3)
	for i, want := range []string{"a", "b", "c"} {
		if got[i] != want {
			t.Errorf("utterance %d = %q, want %q", i, got[i], want)
		}
	}
	if e.max != 1 {
		t.Errorf("max concurrent utterances = %d, want 1", e.max)
	}
}

func TestSpeak_EmptyIgnored(t *testing.T) {
	e := newEngine()
	p := NewPlayer(e)
	defer p.Close()

	p.Speak("")
	p.Speak("real")

	if got := waitSpoken(t, e, 1); got[0] != "real" {
		t.Errorf("spoke %q", got[0])
	}
}

func TestSpeak_QueueFullDrops(t *testing.T) {
	e := newEngine()
	e.block = make(chan struct{})
	p := NewPlayer(e, WithQueueSize(1))
	defer p.Close()

	p.Speak("playing")
	// Wait until the worker has taken the first utterance off the queue.
	deadline := time.Now().Add(time.Second)
	for {
		e.mu.Lock()
		busy := e.active == 1
		e.mu.Unlock()
		if busy || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	p.Speak("queued")
	p.Speak("dropped")
	close(e.block)

	got := waitSpoken(t, e, 2)
	if got[0] != "playing" || got[1] != "queued" {
		t.Errorf("spoken = %v", got)
	}

	select {
	case s := <-e.spoke:
		t.Errorf("dropped utterance was spoken: %q", s)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSpeak_AfterCloseIgnored(t *testing.T) {
	e := newEngine()
	p := NewPlayer(e)
	p.Close()
	p.Close()

	p.Speak("late")

	select {
	case s := <-e.spoke:
		t.Errorf("spoke %q after Close", s)
	case <-time.After(50 * time.Millisecond):
	}
}

type fakeDucker struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (d *fakeDucker) Duck(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "duck")
	return d.err
}

func (d *fakeDucker) Restore(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "restore")
	return d.err
}

func TestPlay_DucksAroundUtterance(t *testing.T) {
	e := newEngine()
	d := &fakeDucker{}
	p := NewPlayer(e, WithDucker(d))
	defer p.Close()

	p.Speak("hello")
	waitSpoken(t, e, 1)

	deadline := time.Now().Add(time.Second)
	for {
		d.mu.Lock()
		n := len(d.calls)
		d.mu.Unlock()
		if n == 2 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.calls) != 2 || d.calls[0] != "duck" || d.calls[1] != "restore" {
		t.Errorf("ducker calls = %v", d.calls)
	}
}

func TestPlay_DuckFailureStillSpeaks(t *testing.T) {
	e := newEngine()
	p := NewPlayer(e, WithDucker(&fakeDucker{err: errors.New("no pactl")}))
	defer p.Close()

	p.Speak("hello")
	waitSpoken(t, e, 1)
}

type lockedMixer struct {
	mu      sync.Mutex
	streams []Stream
	sets    []int
	done    chan struct{}
}

func (m *lockedMixer) Streams(ctx context.Context) ([]Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Stream(nil), m.streams...), nil
}

func (m *lockedMixer) SetVolume(ctx context.Context, id, percent int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets = append(m.sets, percent)
	for i := range m.streams {
		if m.streams[i].ID == id {
			m.streams[i].Volume = percent
		}
	}
	if len(m.sets) == 2 {
		close(m.done)
	}
	return nil
}

func TestPlay_WithPactlDucker(t *testing.T) {
	m := &lockedMixer{
		streams: []Stream{
			{ID: 41, Volume: 80, AppName: "Firefox"},
			{ID: 57, Volume: 100, AppName: "espeak"},
		},
		done: make(chan struct{}),
	}
	e := newEngine()
	p := NewPlayer(e, WithDucker(NewDucker(m, []string{"espeak"}, 0.5, 0)))
	defer p.Close()

	p.Speak("hello")
	waitSpoken(t, e, 1)

	select {
	case <-m.done:
	case <-time.After(2 * time.Second):
		t.Fatal("ducked stream was not restored")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sets) != 2 || m.sets[0] != 40 || m.sets[1] != 80 {
		t.Errorf("volumes set = %v, want [40 80]", m.sets)
	}
}
