package history

import (
	"context"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-attend/internal/log"
	"github.com/teslashibe/go-attend/pkg/verify"
)

// Lister is implemented by Client.
type Lister interface {
	List(ctx context.Context, f Filter) ([]Record, error)
}

// Watcher reloads history whenever the refresh counter moves.
type Watcher struct {
	lister  Lister
	counter *verify.Counter
	filter  func() Filter
	logger  *slog.Logger

	mu       sync.RWMutex
	records  []Record
	err      error
	revision uint64
	onReload func([]Record)
}

// NewWatcher creates a watcher. filter is evaluated on every reload;
// nil means Today.
func NewWatcher(lister Lister, counter *verify.Counter, filter func() Filter) *Watcher {
	if filter == nil {
		filter = Today
	}
	return &Watcher{
		lister:  lister,
		counter: counter,
		filter:  filter,
		logger:  log.Component("history"),
	}
}

// OnReload registers a callback run after every successful reload.
func (w *Watcher) OnReload(fn func([]Record)) {
	w.mu.Lock()
	w.onReload = fn
	w.mu.Unlock()
}

// Run loads once, then reloads after every refresh until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	ch, stop := w.counter.Watch()
	defer stop()

	w.Reload(ctx, w.counter.Value())
	for {
		select {
		case <-ctx.Done():
			return
		case rev := <-ch:
			w.Reload(ctx, rev)
		}
	}
}

// Reload fetches records and tags them with rev.
func (w *Watcher) Reload(ctx context.Context, rev uint64) {
	records, err := w.lister.List(ctx, w.filter())

	w.mu.Lock()
	w.err = err
	if err == nil {
		w.records = records
		w.revision = rev
	}
	fn := w.onReload
	w.mu.Unlock()

	if err != nil {
		if ctx.Err() == nil {
			w.logger.Warn("history reload failed", "error", err)
		}
		return
	}
	w.logger.Debug("history reloaded", "records", len(records), "revision", rev)
	if fn != nil {
		fn(records)
	}
}

// Records returns the last loaded records and the refresh revision they reflect.
func (w *Watcher) Records() ([]Record, uint64) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]Record(nil), w.records...), w.revision
}

// Err returns the last reload error, if any.
func (w *Watcher) Err() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.err
}
