package capture

import (
	"context"
	"errors"
	"io"
	"sync"
)

var (
	// ErrNotListening is returned when data is pushed to a device nobody has open.
	ErrNotListening = errors.New("device is not open")
	// ErrBacklog is returned when the push buffer is full.
	ErrBacklog = errors.New("device backlog full")
	// ErrDeviceBusy is returned by Open when the device is already open.
	ErrDeviceBusy = errors.New("device already open")
)

// PushMicrophone is a Microphone fed by network uploads.
type PushMicrophone struct {
	name   string
	format Format

	mu     sync.Mutex
	stream *pushStream
}

// NewPushMicrophone creates a push-fed microphone.
func NewPushMicrophone(name string, format Format) *PushMicrophone {
	return &PushMicrophone{name: name, format: format}
}

func (m *PushMicrophone) Name() string   { return m.name }
func (m *PushMicrophone) Format() Format { return m.format }

// Open hands out the single reader of pushed audio.
func (m *PushMicrophone) Open(ctx context.Context) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stream != nil {
		return nil, ErrDeviceBusy
	}
	s := &pushStream{mic: m, data: make(chan []byte, 64), done: make(chan struct{})}
	m.stream = s
	return s, nil
}

// Write queues PCM bytes for the open reader. Bytes pushed while no reader is
// open are dropped with ErrNotListening.
func (m *PushMicrophone) Write(p []byte) (int, error) {
	m.mu.Lock()
	s := m.stream
	m.mu.Unlock()
	if s == nil {
		return 0, ErrNotListening
	}
	b := append([]byte(nil), p...)
	select {
	case s.data <- b:
		return len(p), nil
	case <-s.done:
		return 0, ErrNotListening
	default:
		return 0, ErrBacklog
	}
}

type pushStream struct {
	mic  *PushMicrophone
	data chan []byte
	rest []byte
	done chan struct{}
	once sync.Once
}

func (s *pushStream) Read(p []byte) (int, error) {
	if len(s.rest) == 0 {
		select {
		case b := <-s.data:
			s.rest = b
		case <-s.done:
			return 0, io.ErrClosedPipe
		}
	}
	n := copy(p, s.rest)
	s.rest = s.rest[n:]
	return n, nil
}

func (s *pushStream) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.mic.mu.Lock()
		if s.mic.stream == s {
			s.mic.stream = nil
		}
		s.mic.mu.Unlock()
	})
	return nil
}

// PushScreen is a Screen fed by uploaded frames. Each uploaded frame is
// grabbed at most once.
type PushScreen struct {
	name string

	mu      sync.Mutex
	open    bool
	latest  *Still
	version int64
	grabbed int64
}

// NewPushScreen creates a push-fed display.
func NewPushScreen(name string) *PushScreen {
	return &PushScreen{name: name}
}

func (p *PushScreen) Name() string { return p.name }

// Submit replaces the current frame.
func (p *PushScreen) Submit(still Still) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return ErrNotListening
	}
	p.latest = &still
	p.version++
	return nil
}

// Open acquires the display.
func (p *PushScreen) Open(ctx context.Context) (ScreenStream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.open {
		return nil, ErrDeviceBusy
	}
	p.open = true
	return &pushScreenStream{screen: p}, nil
}

type pushScreenStream struct {
	screen *PushScreen
	once   sync.Once
}

func (s *pushScreenStream) Grab(ctx context.Context) (Still, error) {
	p := s.screen
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.latest == nil || p.version == p.grabbed {
		return Still{}, ErrNoFrame
	}
	p.grabbed = p.version
	return *p.latest, nil
}

func (s *pushScreenStream) Close() error {
	s.once.Do(func() {
		p := s.screen
		p.mu.Lock()
		p.open = false
		p.latest = nil
		p.mu.Unlock()
	})
	return nil
}
