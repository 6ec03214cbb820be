package notify

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestBeep_MissingFile(t *testing.T) {
	err := Beep(filepath.Join(t.TempDir(), "missing.mp3"))
	if err == nil {
		t.Fatal("expected error for missing cue file")
	}
}

func TestBeep_NotMP3(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.mp3")
	if err := os.WriteFile(path, []byte("not an mp3"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := Beep(path); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestCue_ReportsErrorOnStart(t *testing.T) {
	errs := make(chan error, 1)
	hook := Cue(filepath.Join(t.TempDir(), "missing.mp3"), func(err error) { errs <- err })

	hook(false)
	select {
	case err := <-errs:
		t.Fatalf("cue fired on capture end: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	hook(true)
	select {
	case err := <-errs:
		if err == nil {
			t.Fatal("nil error reported")
		}
	case <-time.After(time.Second):
		t.Fatal("cue did not run on capture start")
	}
}

func TestCue_EmptyPathDisabled(t *testing.T) {
	called := false
	Cue("", func(error) { called = true })(true)
	time.Sleep(20 * time.Millisecond)
	if called {
		t.Error("disabled cue reported an error")
	}
}
