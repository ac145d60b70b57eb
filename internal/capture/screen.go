package capture

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xiaot623/gogo/livecoach/internal/clock"
	"github.com/xiaot623/gogo/livecoach/internal/domain"
)

// ScreenOptions configures a ScreenSource.
type ScreenOptions struct {
	Clock    clock.Clock
	Interval time.Duration

	OnFrame func(domain.CaptureFrame)
	OnError func(error)
}

// ScreenSource grabs a frame from a display every Interval.
type ScreenSource struct {
	screen Screen
	opts   ScreenOptions

	mu      sync.Mutex
	stream  ScreenStream
	ctx     context.Context
	cancel  context.CancelFunc
	ticker  clock.Timer
	release func()
	grabs   sync.WaitGroup
	busy    atomic.Bool
	failed  atomic.Bool
}

// NewScreenSource creates a stopped source for screen.
func NewScreenSource(screen Screen, opts ScreenOptions) *ScreenSource {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Interval <= 0 {
		opts.Interval = 3 * time.Second
	}
	return &ScreenSource{screen: screen, opts: opts}
}

// Name returns the device name.
func (s *ScreenSource) Name() string { return s.screen.Name() }

// Start acquires the display and schedules periodic grabs.
func (s *ScreenSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	stream, err := s.screen.Open(runCtx)
	if err != nil {
		cancel()
		return &domain.DeviceError{Source: s.screen.Name(), Err: err}
	}

	var once sync.Once
	s.stream = stream
	s.ctx = runCtx
	s.cancel = cancel
	s.release = func() { once.Do(func() { _ = stream.Close() }) }
	s.failed.Store(false)
	s.ticker = clock.Every(s.opts.Clock, s.opts.Interval, s.tick)
	return nil
}

// Stop cancels the schedule, waits for an in-progress grab and releases the
// display. It is safe to call more than once.
func (s *ScreenSource) Stop() {
	s.mu.Lock()
	if s.stream == nil {
		s.mu.Unlock()
		return
	}
	ticker, cancel, release := s.ticker, s.cancel, s.release
	s.stream = nil
	s.mu.Unlock()

	ticker.Stop()
	cancel()
	s.grabs.Wait()
	release()
}

func (s *ScreenSource) tick() {
	if !s.busy.CompareAndSwap(false, true) {
		return
	}
	defer s.busy.Store(false)

	s.mu.Lock()
	stream, ctx := s.stream, s.ctx
	if stream == nil {
		s.mu.Unlock()
		return
	}
	s.grabs.Add(1)
	s.mu.Unlock()
	defer s.grabs.Done()

	still, err := stream.Grab(ctx)
	if err != nil {
		if errors.Is(err, ErrNoFrame) || ctx.Err() != nil {
			return
		}
		s.fail(err)
		return
	}

	if s.opts.OnFrame != nil {
		s.opts.OnFrame(domain.CaptureFrame{
			ID:          domain.NewID("frm"),
			Image:       still.Image,
			MIMEType:    still.MIMEType,
			CapturedAt:  s.opts.Clock.Now(),
			WindowLabel: still.WindowLabel,
		})
	}
}

func (s *ScreenSource) fail(err error) {
	if !s.failed.CompareAndSwap(false, true) {
		return
	}
	s.mu.Lock()
	ticker, cancel, release := s.ticker, s.cancel, s.release
	s.stream = nil
	s.mu.Unlock()

	ticker.Stop()
	cancel()
	// The failing grab still holds a WaitGroup slot, so release directly.
	release()

	if s.opts.OnError != nil {
		s.opts.OnError(&domain.DeviceError{Source: s.screen.Name(), Err: err})
	}
}
