// Package notify plays the short audio cue that tells the user the
// microphone is open.
package notify

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
)

var (
	speakerMu   sync.Mutex
	speakerRate beep.SampleRate
)

// Beep plays the mp3 at path and blocks until it has finished.
func Beep(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open cue: %w", err)
	}

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("decode cue: %w", err)
	}
	defer streamer.Close()

	speakerMu.Lock()
	if speakerRate != format.SampleRate {
		if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
			speakerMu.Unlock()
			return fmt.Errorf("init speaker: %w", err)
		}
		speakerRate = format.SampleRate
	}
	speakerMu.Unlock()

	done := make(chan struct{})
	speaker.Play(beep.Seq(streamer, beep.Callback(func() {
		close(done)
	})))
	<-done
	return nil
}

// Cue returns a capture state hook that beeps in the background whenever
// capture starts. An empty path disables the cue.
func Cue(path string, onErr func(error)) func(capturing bool) {
	return func(capturing bool) {
		if !capturing || path == "" {
			return
		}
		go func() {
			if err := Beep(path); err != nil && onErr != nil {
				onErr(err)
			}
		}()
	}
}
