package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-attend/internal/log"
	"github.com/teslashibe/go-attend/pkg/admission"
	"github.com/teslashibe/go-attend/pkg/camera"
	"github.com/teslashibe/go-attend/pkg/detection"
	"github.com/teslashibe/go-attend/pkg/metrics"
	"github.com/teslashibe/go-attend/pkg/verify"
)

// Submitter sends a captured still for verification.
type Submitter interface {
	Submit(ctx context.Context, req verify.Request) verify.Outcome
	Refreshes() *verify.Counter
}

// Controller is the capture gate. All methods are safe for concurrent use.
//
// A camera is held exactly while the state is Live, Capturing or
// AwaitingResult, and the detection loop runs exactly while Live.
type Controller struct {
	cfg       Config
	opener    camera.Opener
	adapter   *detection.Adapter
	submitter Submitter
	logger    *slog.Logger

	mu          sync.Mutex
	state       State
	gen         uint64 // Bumped whenever in-flight work must be discarded
	id          string
	source      camera.VideoSource
	loop        *pollLoop
	stab        *admission.Stabilizer
	lastCount   int
	warning     string
	lastErr     error
	lastOutcome *verify.Outcome
	captureStop context.CancelFunc

	subMu  sync.Mutex
	subs   map[int]func(Status)
	nextID int
}

// pollLoop is one run of the detection ticker.
type pollLoop struct {
	cancel context.CancelFunc
	done   chan struct{}
	busy   atomic.Bool
	wg     sync.WaitGroup
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// New creates an idle controller.
func New(cfg Config, opener camera.Opener, adapter *detection.Adapter, submitter Submitter, opts ...Option) *Controller {
	def := DefaultConfig()
	if cfg.Admission.Threshold < 1 {
		cfg.Admission.Threshold = def.Admission.Threshold
	}
	if cfg.Admission.Interval <= 0 {
		cfg.Admission.Interval = def.Admission.Interval
	}
	if cfg.StillTimeout <= 0 {
		cfg.StillTimeout = def.StillTimeout
	}

	c := &Controller{
		cfg:       cfg,
		opener:    opener,
		adapter:   adapter,
		submitter: submitter,
		logger:    log.L(),
		stab:      admission.NewStabilizer(cfg.Admission.Threshold),
		subs:      make(map[int]func(Status)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "session")
	return c
}

// Start begins a new session. An active session is torn down first.
// On failure the controller stays Idle and holds no camera.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		return ErrClosed
	}
	wasActive := c.state.Active()
	release := c.detachLocked()
	c.state = Idle
	c.lastErr = nil
	gen := c.gen
	c.mu.Unlock()

	release()
	if wasActive {
		metrics.RecordSessionEnd()
		c.logger.Info("session replaced")
	}

	if err := c.adapter.EnsureReady(ctx); err != nil {
		return c.startFailed(gen, "model_unavailable", err)
	}

	src, err := c.opener.Open(ctx)
	if err != nil {
		if !errors.Is(err, camera.ErrUnavailable) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %v", camera.ErrUnavailable, err)
		}
		return c.startFailed(gen, "camera_unavailable", err)
	}

	c.mu.Lock()
	if c.gen != gen || c.state != Idle {
		c.mu.Unlock()
		_ = src.Close()
		metrics.RecordSessionStart("canceled")
		return ErrCanceled
	}
	c.id = uuid.NewString()
	c.source = src
	c.stab.Reset()
	c.lastCount = 0
	c.warning = ""
	c.lastOutcome = nil
	c.state = Live
	c.startLoopLocked()
	id := c.id
	c.mu.Unlock()

	metrics.RecordSessionStart("started")
	c.logger.Info("session started", "session", id, "interval", c.cfg.Admission.Interval)
	c.notify()
	return nil
}

func (c *Controller) startFailed(gen uint64, status string, err error) error {
	c.mu.Lock()
	if c.gen == gen {
		c.lastErr = err
	}
	c.mu.Unlock()

	metrics.RecordSessionStart(status)
	c.logger.Warn("session start failed", "reason", status, "error", err)
	c.notify()
	return err
}

// Capture takes a still and submits it. It is a no-op returning
// ErrCaptureBlocked while more than one face is in frame, and ErrNotLive
// outside the Live state. On success the session ends; on failure it
// returns to Live with its admission state intact.
func (c *Controller) Capture(ctx context.Context) (verify.Outcome, error) {
	c.mu.Lock()
	switch {
	case c.state == Closed:
		c.mu.Unlock()
		return verify.Outcome{}, ErrClosed
	case c.state != Live:
		c.mu.Unlock()
		return verify.Outcome{}, ErrNotLive
	}
	snap := c.stab.Snapshot()
	if snap.State == admission.MultiFace {
		c.mu.Unlock()
		return verify.MultiFace(snap.LastCount), ErrCaptureBlocked
	}

	c.state = Capturing
	stopLoop := c.stopLoopLocked()
	gen := c.gen
	src := c.source
	id := c.id
	count := c.lastCount
	ctx, cancel := context.WithCancel(ctx)
	c.captureStop = cancel
	c.mu.Unlock()
	defer cancel()

	stopLoop()
	c.logger.Info("capturing", "session", id, "faces", count)
	c.notify()

	stillCtx, stillCancel := context.WithTimeout(ctx, c.cfg.StillTimeout)
	frame, err := src.Still(stillCtx)
	stillCancel()
	if err == nil && frame.Empty() {
		err = camera.ErrNotReady
	}
	if err != nil {
		return c.finish(gen, verify.CaptureFailed(err))
	}

	req := verify.Request{
		Image:       frame.Data,
		Filename:    "face" + frame.Ext(),
		ContentType: frame.Format,
		Admission:   snap.State,
		FaceCount:   count,
	}
	var confidence float64
	if c.cfg.RecheckStill {
		if res, err := c.adapter.DetectImage(ctx, frame.Data); err == nil {
			req.FaceCount = res.FaceCount
			req.Counted = true
			if p := detection.Primary(res.Faces); p != nil {
				confidence = p.Confidence
			}
			c.logger.Debug("still rechecked", "session", id, "faces", res.FaceCount, "confidence", confidence)
		} else {
			c.logger.Debug("still recheck failed", "error", err)
		}
	}

	c.mu.Lock()
	if c.gen != gen || c.state != Capturing {
		c.mu.Unlock()
		return verify.Outcome{}, ErrCanceled
	}
	c.state = AwaitingResult
	c.mu.Unlock()
	c.notify()

	out := c.submitter.Submit(ctx, req)
	out.Confidence = confidence
	return c.finish(gen, out)
}

// finish applies a capture outcome unless the session moved on meanwhile.
// A success is always recorded: the backend has already counted it.
func (c *Controller) finish(gen uint64, out verify.Outcome) (verify.Outcome, error) {
	c.mu.Lock()
	if c.gen != gen || (c.state != Capturing && c.state != AwaitingResult) {
		if out.Success {
			c.lastOutcome = &out
		}
		c.mu.Unlock()
		if out.Success {
			c.logger.Info("check-in recorded after cancel", "time", out.Timestamp)
			c.notify()
		}
		return out, ErrCanceled
	}
	c.captureStop = nil
	c.lastOutcome = &out

	if out.Success {
		release := c.detachLocked()
		c.state = Idle
		id := c.id
		c.mu.Unlock()

		release()
		metrics.RecordSessionEnd()
		c.logger.Info("check-in complete", "session", id, "time", out.Timestamp)
		c.notify()
		return out, nil
	}

	c.state = Live
	c.startLoopLocked()
	c.mu.Unlock()

	c.logger.Info("check-in failed, resuming", "kind", out.Kind)
	c.notify()
	return out, nil
}

// Cancel ends the session from any state, discarding in-flight work.
func (c *Controller) Cancel() {
	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		return
	}
	wasActive := c.state.Active()
	release := c.detachLocked()
	c.state = Idle
	id := c.id
	c.mu.Unlock()

	release()
	if wasActive {
		metrics.RecordSessionEnd()
		c.logger.Info("session canceled", "session", id)
		c.notify()
	}
}

// Close tears down any session and rejects further use.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		return nil
	}
	wasActive := c.state.Active()
	src := c.source
	loop := c.loop
	c.gen++
	c.source, c.loop = nil, nil
	if c.captureStop != nil {
		c.captureStop()
		c.captureStop = nil
	}
	c.state = Closed
	c.mu.Unlock()

	stop(loop)
	var err error
	if src != nil {
		err = src.Close()
	}
	if wasActive {
		metrics.RecordSessionEnd()
	}
	c.notify()

	c.subMu.Lock()
	c.subs = make(map[int]func(Status))
	c.subMu.Unlock()
	return err
}

// detachLocked invalidates in-flight work and detaches the camera and
// loop. The returned func stops them and must be called without c.mu.
func (c *Controller) detachLocked() func() {
	c.gen++
	if c.captureStop != nil {
		c.captureStop()
		c.captureStop = nil
	}
	src, loop := c.source, c.loop
	c.source, c.loop = nil, nil
	c.stab.Reset()
	c.lastCount = 0
	c.warning = ""
	return func() {
		stop(loop)
		if src != nil {
			if err := src.Close(); err != nil {
				c.logger.Warn("camera close failed", "error", err)
			}
		}
	}
}

// stopLoopLocked detaches the poll loop but keeps the camera.
func (c *Controller) stopLoopLocked() func() {
	c.gen++
	loop := c.loop
	c.loop = nil
	return func() { stop(loop) }
}

func stop(l *pollLoop) {
	if l == nil {
		return
	}
	l.cancel()
	<-l.done
}

func (c *Controller) startLoopLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	l := &pollLoop{cancel: cancel, done: make(chan struct{})}
	c.loop = l
	go c.poll(ctx, l, c.gen, c.source)
}

func (c *Controller) poll(ctx context.Context, l *pollLoop, gen uint64, src camera.VideoSource) {
	ticker := time.NewTicker(c.cfg.Admission.Interval)
	defer func() {
		ticker.Stop()
		l.wg.Wait()
		close(l.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			if !l.busy.CompareAndSwap(false, true) {
				metrics.RecordTick(metrics.TickBusy)
				continue
			}
			l.wg.Add(1)
			go func() {
				defer l.wg.Done()
				defer l.busy.Store(false)
				c.tick(ctx, gen, src)
			}()
		}
	}
}

// tick runs one detection and applies it if the session is still current.
func (c *Controller) tick(ctx context.Context, gen uint64, src camera.VideoSource) {
	res, ok := c.adapter.Detect(ctx, src)
	if !ok {
		metrics.RecordTick(metrics.TickSkipped)
		return
	}

	c.mu.Lock()
	if c.gen != gen || c.state != Live || ctx.Err() != nil {
		c.mu.Unlock()
		metrics.RecordTick(metrics.TickStale)
		return
	}
	c.lastCount = res.FaceCount
	from := c.stab.State()
	ev := c.stab.Observe(res.FaceCount)
	to := c.stab.State()
	switch ev {
	case admission.EventWarn:
		c.warning = verify.MultiFaceMessage(res.FaceCount)
	case admission.EventCleared:
		c.warning = ""
	}
	id := c.id
	c.mu.Unlock()

	metrics.RecordTick(metrics.TickDetected)
	if from != to {
		c.logger.Debug("admission changed", "session", id, "from", from, "to", to, "faces", res.FaceCount)
	}
	if ev == admission.EventWarn {
		c.logger.Info("multiple faces in frame", "session", id, "faces", res.FaceCount)
	}
	c.notify()
}

// Preview returns the current live frame.
func (c *Controller) Preview(ctx context.Context) (camera.Frame, error) {
	c.mu.Lock()
	src := c.source
	state := c.state
	c.mu.Unlock()
	if state != Live || src == nil {
		return camera.Frame{}, ErrNotLive
	}
	return src.Frame(ctx)
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Admission returns the stabilized admission state of the current session.
func (c *Controller) Admission() admission.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stab.State()
}

// LastOutcome returns the outcome of the most recent capture, if any.
func (c *Controller) LastOutcome() (verify.Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastOutcome == nil {
		return verify.Outcome{}, false
	}
	return *c.lastOutcome, true
}

// RefreshCount returns how many check-ins have succeeded.
func (c *Controller) RefreshCount() uint64 {
	return c.submitter.Refreshes().Value()
}

// CanCapture reports whether the capture action is enabled.
func (c *Controller) CanCapture() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canCaptureLocked()
}

func (c *Controller) canCaptureLocked() bool {
	return c.state == Live && c.stab.State() != admission.MultiFace && c.adapter.Ready()
}

// Status returns a snapshot for display.
func (c *Controller) Status() Status {
	c.mu.Lock()
	snap := c.stab.Snapshot()
	st := Status{
		State:             c.state,
		Admission:         snap.State,
		FaceCount:         c.lastCount,
		ConsecutiveSingle: snap.ConsecutiveSingle,
		Threshold:         c.stab.Threshold(),
		CanCapture:        c.canCaptureLocked(),
		ModelReady:        c.adapter.Ready(),
		Warning:           c.warning,
		UpdatedAt:         time.Now(),
	}
	if c.state.Active() {
		st.SessionID = c.id
	}
	if c.lastErr != nil {
		st.Error = c.lastErr.Error()
	}
	if c.lastOutcome != nil {
		out := *c.lastOutcome
		st.LastOutcome = &out
	}
	c.mu.Unlock()

	st.Refreshes = c.RefreshCount()
	return st
}

// Subscribe registers fn to receive a Status after every observable
// change. fn runs on the goroutine that made the change and must not
// block or call back into the controller's mutating methods.
func (c *Controller) Subscribe(fn func(Status)) (unsubscribe func()) {
	c.subMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

func (c *Controller) notify() {
	c.subMu.Lock()
	if len(c.subs) == 0 {
		c.subMu.Unlock()
		return
	}
	fns := make([]func(Status), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()

	st := c.Status()
	for _, fn := range fns {
		fn(st)
	}
}
