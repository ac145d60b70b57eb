// Package capture turns audio and screen devices into timestamped samples
// delivered on their own cadence.
package capture

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
)

// ErrNoFrame is returned by ScreenStream.Grab when nothing new is on screen.
// It is not a device failure.
var ErrNoFrame = errors.New("no frame available")

// Format describes the PCM stream a Microphone produces. Samples are signed
// 16-bit little endian.
type Format struct {
	SampleRate int
	Channels   int
}

// BytesPerSecond returns the byte rate of the stream.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * 2
}

// DefaultFormat is 16kHz mono, the usual input for speech-to-text.
var DefaultFormat = Format{SampleRate: 16000, Channels: 1}

// Microphone is an audio input device. Open acquires the device and closing
// the returned stream releases it.
type Microphone interface {
	Name() string
	Format() Format
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Still is one captured screen image.
type Still struct {
	Image       []byte
	MIMEType    string
	WindowLabel string
}

// Screen is a display capture device.
type Screen interface {
	Name() string
	Open(ctx context.Context) (ScreenStream, error)
}

// ScreenStream is an acquired display capture.
type ScreenStream interface {
	Grab(ctx context.Context) (Still, error)
	Close() error
}

// Sequencer hands out chunk sequence numbers in submission order. One
// sequencer is shared by every audio source of a session.
type Sequencer struct {
	n atomic.Int64
}

// Next returns the next sequence number, starting at 1.
func (s *Sequencer) Next() int64 {
	return s.n.Add(1)
}
