package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// Format of the captured stream.
const (
	FormatS16LE = "s16le"
	FormatF32LE = "f32le"
)

// Pump reads src in frames of frameBytes of PCM16 and hands each one to
// send. Float captures are converted first. A short trailing frame is sent
// as is. Pump returns nil at EOF or when ctx is cancelled.
func Pump(ctx context.Context, src io.Reader, format string, frameBytes int, send func([]byte) error) error {
	if frameBytes <= 0 {
		return errors.New("audio: frame size must be positive")
	}
	readBytes := frameBytes
	if format == FormatF32LE {
		readBytes = frameBytes * 2
	}
	buf := make([]byte, readBytes)
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := io.ReadFull(src, buf)
		if n > 0 {
			frame := make([]byte, n)
			copy(frame, buf[:n])
			if format == FormatF32LE {
				frame = FloatToPCM16(BytesToFloat32(frame))
			}
			if serr := send(frame); serr != nil {
				return serr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// BytesToFloat32 decodes little-endian float32 samples.
func BytesToFloat32(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

// FloatToPCM16 clamps samples to [-1, 1] and encodes them as little-endian
// signed 16-bit.
func FloatToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		var v int16
		if s < 0 {
			v = int16(s * 0x8000)
		} else {
			v = int16(s * 0x7fff)
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// RMS of PCM16 audio, for level diagnostics.
func RMS(b []byte) float64 {
	if len(b) < 2 {
		return 0
	}
	var sum float64
	n := len(b) / 2
	for i := 0; i < n; i++ {
		sample := int16(binary.LittleEndian.Uint16(b[i*2:]))
		sum += float64(sample) * float64(sample)
	}
	return math.Sqrt(sum / float64(n))
}
