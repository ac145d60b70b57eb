package capture

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/livecoach/internal/clock"
	"github.com/xiaot623/gogo/livecoach/internal/domain"
)

type deniedMic struct{}

func (deniedMic) Name() string   { return "microphone" }
func (deniedMic) Format() Format { return DefaultFormat }
func (deniedMic) Open(ctx context.Context) (io.ReadCloser, error) {
	return nil, errors.New("permission denied")
}

type chunkRecorder struct {
	mu     sync.Mutex
	chunks []AudioChunk
	errs   []error
}

func (r *chunkRecorder) chunk(c AudioChunk) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks = append(r.chunks, c)
}

func (r *chunkRecorder) err(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *chunkRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chunks)
}

func TestAudioSourceDeniedDevice(t *testing.T) {
	src := NewAudioSource(deniedMic{}, AudioOptions{})
	err := src.Start(context.Background())

	var devErr *domain.DeviceError
	require.ErrorAs(t, err, &devErr)
	assert.Equal(t, "microphone", devErr.Source)

	src.Stop()
}

func TestAudioSourceChunksPushedAudio(t *testing.T) {
	format := Format{SampleRate: 1000, Channels: 1} // 2000 bytes per second
	mic := NewPushMicrophone("microphone", format)
	rec := &chunkRecorder{}
	seq := &Sequencer{}

	var levels []float64
	var levelMu sync.Mutex
	src := NewAudioSource(mic, AudioOptions{
		Clock:         clock.NewFake(time.Unix(0, 0)),
		ChunkInterval: time.Second,
		IsUser:        true,
		Sequencer:     seq,
		OnChunk:       rec.chunk,
		OnError:       rec.err,
		OnLevel: func(l float64) {
			levelMu.Lock()
			levels = append(levels, l)
			levelMu.Unlock()
		},
	})
	require.NoError(t, src.Start(context.Background()))

	_, err := mic.Write(make([]byte, 3000))
	require.NoError(t, err)
	_, err = mic.Write(make([]byte, 1000))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, 5*time.Millisecond)
	src.Stop()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, int64(1), rec.chunks[0].Seq)
	assert.Equal(t, int64(2), rec.chunks[1].Seq)
	assert.True(t, rec.chunks[0].IsUser)
	assert.Equal(t, time.Second, rec.chunks[0].Duration)
	assert.Equal(t, "audio/wav", rec.chunks[0].MIMEType)
	assert.Len(t, rec.chunks[0].Data, 44+2000)
	assert.Empty(t, rec.errs)

	levelMu.Lock()
	assert.NotEmpty(t, levels)
	levelMu.Unlock()
}

func TestAudioSourceRestartAfterStop(t *testing.T) {
	mic := NewPushMicrophone("microphone", DefaultFormat)
	src := NewAudioSource(mic, AudioOptions{})

	require.NoError(t, src.Start(context.Background()))
	src.Stop()

	_, err := mic.Write([]byte{1, 2})
	assert.ErrorIs(t, err, ErrNotListening)

	require.NoError(t, src.Start(context.Background()))
	_, err = mic.Write([]byte{1, 2})
	assert.NoError(t, err)
	src.Stop()
	src.Stop()
}

type flakyScreen struct {
	mu    sync.Mutex
	grabs int
	fails bool
	open  bool
}

func (s *flakyScreen) Name() string { return "screen" }

func (s *flakyScreen) Open(ctx context.Context) (ScreenStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = true
	return s, nil
}

func (s *flakyScreen) Grab(ctx context.Context) (Still, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grabs++
	if s.fails {
		return Still{}, errors.New("display lost")
	}
	return Still{Image: []byte{0xff}, MIMEType: "image/png"}, nil
}

func (s *flakyScreen) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	return nil
}

func TestScreenSourceGrabsOnInterval(t *testing.T) {
	fc := clock.NewFake(time.Unix(100, 0))
	screen := &flakyScreen{}
	var frames []domain.CaptureFrame

	src := NewScreenSource(screen, ScreenOptions{
		Clock:    fc,
		Interval: 3 * time.Second,
		OnFrame:  func(f domain.CaptureFrame) { frames = append(frames, f) },
	})
	require.NoError(t, src.Start(context.Background()))

	fc.Advance(7 * time.Second)
	require.Len(t, frames, 2)
	assert.Equal(t, time.Unix(103, 0), frames[0].CapturedAt)
	assert.Equal(t, time.Unix(106, 0), frames[1].CapturedAt)
	assert.NotEqual(t, frames[0].ID, frames[1].ID)

	src.Stop()
	assert.False(t, screen.open)
	fc.Advance(10 * time.Second)
	assert.Len(t, frames, 2)
}

func TestScreenSourceFailureIsTerminal(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	screen := &flakyScreen{fails: true}
	var errs []error

	src := NewScreenSource(screen, ScreenOptions{
		Clock:    fc,
		Interval: time.Second,
		OnError:  func(err error) { errs = append(errs, err) },
	})
	require.NoError(t, src.Start(context.Background()))

	fc.Advance(5 * time.Second)
	require.Len(t, errs, 1)
	assert.Equal(t, 1, screen.grabs)
	assert.False(t, screen.open)

	var devErr *domain.DeviceError
	assert.ErrorAs(t, errs[0], &devErr)
	src.Stop()
}

func TestPushScreenGrabsEachFrameOnce(t *testing.T) {
	screen := NewPushScreen("screen")
	assert.ErrorIs(t, screen.Submit(Still{}), ErrNotListening)

	stream, err := screen.Open(context.Background())
	require.NoError(t, err)

	_, err = stream.Grab(context.Background())
	assert.ErrorIs(t, err, ErrNoFrame)

	require.NoError(t, screen.Submit(Still{Image: []byte{1}, MIMEType: "image/png"}))
	still, err := stream.Grab(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, still.Image)

	_, err = stream.Grab(context.Background())
	assert.ErrorIs(t, err, ErrNoFrame)

	_, err = screen.Open(context.Background())
	assert.ErrorIs(t, err, ErrDeviceBusy)
	require.NoError(t, stream.Close())
}

func TestEncodeWAVHeader(t *testing.T) {
	pcm := make([]byte, 320)
	binary.LittleEndian.PutUint16(pcm[2:], uint16(1234))
	neg := int16(-42)
	binary.LittleEndian.PutUint16(pcm[4:], uint16(neg))

	out, err := EncodeWAV(pcm, DefaultFormat)
	require.NoError(t, err)

	require.Len(t, out, 364)
	assert.Equal(t, "RIFF", string(out[0:4]))
	assert.Equal(t, "WAVE", string(out[8:12]))
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(out[24:]))
	assert.Equal(t, uint32(320), binary.LittleEndian.Uint32(out[40:]))

	dec := wav.NewDecoder(bytes.NewReader(out))
	require.True(t, dec.IsValidFile())
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	require.Len(t, buf.Data, 160)
	assert.Equal(t, []int{0, 1234, -42}, buf.Data[:3])
}

func TestLevel(t *testing.T) {
	assert.Equal(t, 0.0, Level(nil))
	assert.Equal(t, 0.0, Level(make([]byte, 64)))

	loud := make([]byte, 8)
	min := int16(-32768)
	for i := 0; i < 4; i++ {
		binary.LittleEndian.PutUint16(loud[2*i:], uint16(min))
	}
	assert.InDelta(t, 1.0, Level(loud), 1e-9)
}
