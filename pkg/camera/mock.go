package camera

import (
	"context"
	"sync"
	"time"
)

// Mock implements VideoSource for testing. Frames are synthesized from
// Data; FrameFunc and StillFunc override the defaults when set.
type Mock struct {
	// Data is returned as the payload of every frame.
	Data []byte

	// FrameFunc is called when Frame is invoked.
	FrameFunc func(ctx context.Context) (Frame, error)

	// StillFunc is called when Still is invoked.
	StillFunc func(ctx context.Context) (Frame, error)

	mu     sync.Mutex
	ready  bool
	closed bool
	seq    uint64
	frames int
	stills int
	closes int
}

// NewMock creates an open, ready mock source.
func NewMock() *Mock {
	return &Mock{Data: []byte("frame"), ready: true}
}

// SetReady toggles decoded-data availability.
func (m *Mock) SetReady(ready bool) {
	m.mu.Lock()
	m.ready = ready
	m.mu.Unlock()
}

// Ready implements VideoSource.
func (m *Mock) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready && !m.closed
}

// Frame implements VideoSource.
func (m *Mock) Frame(ctx context.Context) (Frame, error) {
	m.mu.Lock()
	m.frames++
	fn := m.FrameFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx)
	}
	return m.next(FormatJPEG)
}

// Still implements VideoSource.
func (m *Mock) Still(ctx context.Context) (Frame, error) {
	m.mu.Lock()
	m.stills++
	fn := m.StillFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx)
	}
	return m.next(FormatJPEG)
}

func (m *Mock) next(format string) (Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Frame{}, ErrClosed
	}
	if !m.ready {
		return Frame{}, ErrNotReady
	}
	m.seq++
	return Frame{
		Data:       m.Data,
		Format:     format,
		Width:      640,
		Height:     480,
		Seq:        m.seq,
		CapturedAt: time.Now(),
	}, nil
}

// Close implements VideoSource.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	m.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Frames returns how many live frames were requested.
func (m *Mock) Frames() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames
}

// Stills returns how many stills were taken.
func (m *Mock) Stills() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stills
}

// MockOpener hands out Mock sources, or Err when set.
type MockOpener struct {
	// Err, when non-nil, is returned by Open.
	Err error

	// New builds each source. Defaults to NewMock.
	New func() *Mock

	mu     sync.Mutex
	opened []*Mock
}

// Open implements Opener.
func (o *MockOpener) Open(ctx context.Context) (VideoSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Err != nil {
		return nil, o.Err
	}
	build := o.New
	if build == nil {
		build = NewMock
	}
	m := build()
	o.opened = append(o.opened, m)
	return m, nil
}

// Opened returns every source handed out so far.
func (o *MockOpener) Opened() []*Mock {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*Mock(nil), o.opened...)
}

// Last returns the most recently opened source, or nil.
func (o *MockOpener) Last() *Mock {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.opened) == 0 {
		return nil
	}
	return o.opened[len(o.opened)-1]
}
