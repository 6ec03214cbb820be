package tts

/*
#cgo LDFLAGS: -lespeak-ng
#include <stdlib.h>
#include <espeak-ng/speak_lib.h>

int
espeak_say(const char *text, const char *lang)
{
	if (!text || !lang)
	{ return -1; }

	if (espeak_Initialize(AUDIO_OUTPUT_SYNCH_PLAYBACK, 500, NULL, 0) < 0)
	{ return -2; }

	espeak_VOICE specs = { .languages = lang };
	espeak_SetVoiceByProperties(&specs);

	espeak_Synth(text, 500, 0, 0, 0, espeakCHARS_AUTO, NULL, NULL);
	espeak_Synchronize();
	espeak_Terminate();

	return 0;
}
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// Espeak speaks through espeak-ng. Say blocks until playback finishes and
// must not be called concurrently.
type Espeak struct {
	Language string
}

func NewEspeak(language string) *Espeak {
	if language == "" {
		language = "en"
	}
	return &Espeak{Language: language}
}

func (e *Espeak) Say(text string) error {
	if text == "" {
		return nil
	}

	ctext := C.CString(text)
	defer C.free(unsafe.Pointer(ctext))

	clang := C.CString(e.Language)
	defer C.free(unsafe.Pointer(clang))

	rc := C.espeak_say(ctext, clang)
	if rc != 0 {
		return fmt.Errorf("espeak_say failed: %d", int(rc))
	}

	return nil
}
