package playback

import (
	"strings"
	"unicode"
)

// Speakable strips emoji and pictographs from a reply so the synthesizer
// does not read out their names, and folds line breaks into pauses.
func Speakable(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	for _, r := range text {
		switch {
		case r == '\n':
			b.WriteString(". ")
		case r == '\u200d' || r == '\ufe0f':
		case r >= 0x1F000 || (r >= 0x2600 && r <= 0x27BF):
		case unicode.IsPrint(r) || unicode.IsSpace(r):
			b.WriteRune(r)
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}
