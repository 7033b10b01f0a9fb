package offline

import (
	"context"
	"log/slog"
	"time"
)

type Flusher interface {
	Flush(ctx context.Context) (FlushResult, error)
}

type Prober interface {
	Reachable(ctx context.Context) bool
}

// Watcher triggers flushes on the events that make delivery likely: the
// server becoming reachable again, and the app returning to the foreground.
type Watcher struct {
	queue      Flusher
	probe      Prober
	interval   time.Duration
	foreground chan struct{}
	reachable  bool
}

func NewWatcher(queue Flusher, probe Prober, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Watcher{
		queue:      queue,
		probe:      probe,
		interval:   interval,
		foreground: make(chan struct{}, 1),
	}
}

// Foreground requests a flush. Signals collapse while one is pending.
func (w *Watcher) Foreground() {
	select {
	case w.foreground <- struct{}{}:
	default:
	}
}

// Run probes until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.check(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.check(ctx)
		case <-w.foreground:
			w.flush(ctx, "foreground")
		}
	}
}

func (w *Watcher) check(ctx context.Context) {
	up := w.probe.Reachable(ctx)
	was := w.reachable
	w.reachable = up
	switch {
	case up && !was:
		w.flush(ctx, "reachable")
	case !up && was:
		slog.Info("server unreachable, holding captures")
	}
}

func (w *Watcher) flush(ctx context.Context, trigger string) {
	res, err := w.queue.Flush(ctx)
	if err != nil {
		slog.Warn("flush failed", "trigger", trigger, "error", err)
		return
	}
	if res.Submitted > 0 {
		slog.Info("flush done", "trigger", trigger, "submitted", res.Submitted, "duplicates", res.Duplicates)
	}
}
