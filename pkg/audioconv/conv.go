// Package audioconv decodes audio files into the 16 kHz mono PCM the
// transcriber consumes.
package audioconv

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	popus "github.com/pekim/opus"
)

const TargetRate = 16000

var ErrUnsupported = errors.New("unsupported audio format")

type format int

const (
	formatUnknown format = iota
	formatWAV
	formatMP3
	formatOgg
)

// File is a capture source that replays a recorded utterance from disk
// instead of the microphone.
type File struct {
	Path       string
	MaxSamples int // 0 = no limit
}

func (f File) Record(ctx context.Context, _ <-chan struct{}) ([]float32, error) {
	return DecodeFile(ctx, f.Path, f.MaxSamples)
}

func DecodeFile(ctx context.Context, path string, maxSamples int) ([]float32, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	pcm, err := Decode(ctx, fh, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	if maxSamples > 0 && len(pcm) > maxSamples {
		pcm = pcm[:maxSamples]
	}
	return pcm, nil
}

// Decode reads r as wav, mp3 or ogg (vorbis, then opus). ext is a hint
// such as ".wav"; when empty or unknown the container is sniffed.
func Decode(ctx context.Context, r io.ReadSeeker, ext string) ([]float32, error) {
	f, err := detect(r, ext)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch f {
	case formatWAV:
		return decodeWAV(r)
	case formatMP3:
		return decodeMP3(r)
	case formatOgg:
		pcm, verr := decodeVorbis(r)
		if verr == nil {
			return pcm, nil
		}
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		pcm, oerr := decodeOpus(r)
		if oerr != nil {
			return nil, fmt.Errorf("ogg: vorbis: %v; opus: %w", verr, oerr)
		}
		return pcm, nil
	}
	return nil, ErrUnsupported
}

func detect(r io.ReadSeeker, ext string) (format, error) {
	switch ext {
	case ".wav":
		return formatWAV, nil
	case ".mp3":
		return formatMP3, nil
	case ".ogg", ".oga", ".opus":
		return formatOgg, nil
	}

	magic, _ := bufio.NewReader(r).Peek(4)
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return formatUnknown, err
	}
	switch {
	case string(magic) == "RIFF":
		return formatWAV, nil
	case string(magic) == "OggS":
		return formatOgg, nil
	case len(magic) >= 3 && string(magic[:3]) == "ID3":
		return formatMP3, nil
	}
	return formatUnknown, fmt.Errorf("%w: %q", ErrUnsupported, ext)
}

func decodeWAV(r io.ReadSeeker) ([]float32, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.New("invalid wav")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	if buf == nil || len(buf.Data) == 0 {
		return nil, errors.New("empty wav")
	}

	depth := int(dec.BitDepth)
	if depth == 0 {
		depth = 16
	}
	channels, rate := 1, 44100
	if buf.Format != nil {
		if buf.Format.NumChannels > 0 {
			channels = buf.Format.NumChannels
		}
		if buf.Format.SampleRate > 0 {
			rate = buf.Format.SampleRate
		}
	}
	return toTarget(intsToFloat(buf.Data, depth), channels, rate), nil
}

func decodeMP3(r io.Reader) ([]float32, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	var raw bytes.Buffer
	if _, err := io.Copy(&raw, dec); err != nil {
		return nil, err
	}
	samples := make([]int16, raw.Len()/2)
	if err := binary.Read(&raw, binary.LittleEndian, samples); err != nil {
		return nil, err
	}

	rate := dec.SampleRate()
	if rate <= 0 {
		rate = 44100
	}
	// go-mp3 always emits interleaved stereo.
	return toTarget(int16sToFloat(samples), 2, rate), nil
}

func decodeVorbis(r io.Reader) ([]float32, error) {
	pcm, f, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if f == nil || f.Channels <= 0 || f.SampleRate <= 0 {
		return nil, errors.New("invalid ogg/vorbis stream")
	}
	return toTarget(pcm, f.Channels, f.SampleRate), nil
}

func decodeOpus(r io.ReadSeeker) ([]float32, error) {
	dec, err := popus.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	defer dec.Destroy()

	channels := dec.ChannelCount()
	if channels <= 0 {
		channels = 1
	}

	// libopus decodes at 48 kHz.
	var (
		pcm []float32
		buf = make([]int16, 48000*channels/2)
	)
	for {
		n, err := dec.Read(buf)
		if n > 0 {
			pcm = append(pcm, int16sToFloat(buf[:n*channels])...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	if len(pcm) == 0 {
		return nil, errors.New("empty opus stream")
	}
	return toTarget(pcm, channels, 48000), nil
}
