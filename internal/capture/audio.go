package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/xiaot623/gogo/livecoach/internal/clock"
	"github.com/xiaot623/gogo/livecoach/internal/domain"
)

const readSize = 4096

// AudioChunk is a fixed-length slice of audio ready for transcription.
type AudioChunk struct {
	Seq        int64
	Source     string
	IsUser     bool
	Data       []byte // WAV container
	MIMEType   string
	CapturedAt time.Time
	Duration   time.Duration
}

// AudioOptions configures an AudioSource.
type AudioOptions struct {
	Clock         clock.Clock
	ChunkInterval time.Duration
	IsUser        bool
	Sequencer     *Sequencer

	OnLevel func(level float64)
	OnChunk func(AudioChunk)
	OnError func(error)
}

// AudioSource reads a microphone continuously, reporting a level for every
// read and one chunk per ChunkInterval of audio.
type AudioSource struct {
	mic  Microphone
	opts AudioOptions

	mu      sync.Mutex
	cancel  context.CancelFunc
	stream  io.ReadCloser
	closeFn func()
	done    chan struct{}
}

// NewAudioSource creates a stopped source for mic.
func NewAudioSource(mic Microphone, opts AudioOptions) *AudioSource {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.ChunkInterval <= 0 {
		opts.ChunkInterval = time.Second
	}
	if opts.Sequencer == nil {
		opts.Sequencer = &Sequencer{}
	}
	return &AudioSource{mic: mic, opts: opts}
}

// Name returns the device name.
func (s *AudioSource) Name() string { return s.mic.Name() }

// Start acquires the microphone and begins reading. A failure to acquire is
// returned as a *domain.DeviceError and leaves nothing open.
func (s *AudioSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		select {
		case <-s.done:
			s.cancel()
		default:
			return nil
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	stream, err := s.mic.Open(runCtx)
	if err != nil {
		cancel()
		return &domain.DeviceError{Source: s.mic.Name(), Err: err}
	}

	var once sync.Once
	s.stream = stream
	s.closeFn = func() { once.Do(func() { _ = stream.Close() }) }
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(runCtx, stream, s.closeFn, s.done)
	return nil
}

// Stop releases the microphone and waits for the reader to exit. It is safe
// to call more than once.
func (s *AudioSource) Stop() {
	s.mu.Lock()
	cancel, closeFn, done := s.cancel, s.closeFn, s.done
	s.cancel, s.closeFn, s.done, s.stream = nil, nil, nil, nil
	s.mu.Unlock()
	if done == nil {
		return
	}
	cancel()
	closeFn()
	<-done
}

func (s *AudioSource) run(ctx context.Context, stream io.Reader, release func(), done chan struct{}) {
	defer close(done)
	defer release()

	chunkBytes := int(s.opts.ChunkInterval.Seconds() * float64(s.mic.Format().BytesPerSecond()))
	if chunkBytes%2 == 1 {
		chunkBytes++
	}

	buf := make([]byte, readSize)
	var pending []byte
	chunkStart := s.opts.Clock.Now()

	for {
		n, err := stream.Read(buf)
		if n > 0 {
			if s.opts.OnLevel != nil {
				s.opts.OnLevel(Level(buf[:n]))
			}
			if len(pending) == 0 {
				chunkStart = s.opts.Clock.Now()
			}
			pending = append(pending, buf[:n]...)
			for len(pending) >= chunkBytes {
				s.emit(pending[:chunkBytes], chunkStart)
				pending = append([]byte(nil), pending[chunkBytes:]...)
				chunkStart = s.opts.Clock.Now()
			}
		}
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, io.EOF) {
			if len(pending) > 0 {
				s.emit(pending, chunkStart)
			}
			return
		}
		if s.opts.OnError != nil {
			s.opts.OnError(&domain.DeviceError{Source: s.mic.Name(), Err: fmt.Errorf("read: %w", err)})
		}
		return
	}
}

func (s *AudioSource) emit(pcm []byte, capturedAt time.Time) {
	if s.opts.OnChunk == nil {
		return
	}
	format := s.mic.Format()
	data, err := EncodeWAV(pcm, format)
	if err != nil {
		log.Printf("WARN: %s: dropping chunk: %v", s.mic.Name(), err)
		return
	}
	s.opts.OnChunk(AudioChunk{
		Seq:        s.opts.Sequencer.Next(),
		Source:     s.mic.Name(),
		IsUser:     s.opts.IsUser,
		Data:       data,
		MIMEType:   "audio/wav",
		CapturedAt: capturedAt,
		Duration:   time.Duration(float64(len(pcm)) / float64(format.BytesPerSecond()) * float64(time.Second)),
	})
}
