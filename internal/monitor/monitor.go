// Package monitor discovers evdev input nodes under a device directory
// and hands each to the interceptor package, both at startup (a
// directory scan) and as they appear later (an fsnotify watch). It
// does not itself decide what to do with a device beyond opening it —
// that decision (spawn a per-device task) belongs to the caller
// draining Interceptors().
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/rkvm-go/rkvm/internal/interceptor"
	"github.com/rkvm-go/rkvm/internal/model"
	"github.com/rkvm-go/rkvm/internal/registry"
)

// eventNodePrefix is the base-name prefix evdev character devices use
// under the device directory (e.g. "event3").
const eventNodePrefix = "event"

// Monitor scans dir for evdev nodes and watches it for new ones,
// publishing every successfully opened Interceptor on a single-slot
// channel per spec: the consumer is expected to drain it promptly and
// spawn its own per-device task rather than let discoveries queue up
// here.
type Monitor struct {
	dir    string
	reg    *registry.Registry
	logger *slog.Logger

	interceptors chan *interceptor.Interceptor
	errs         chan error
}

// New returns a Monitor over dir, not yet started.
func New(dir string, reg *registry.Registry, logger *slog.Logger) *Monitor {
	return &Monitor{
		dir:          dir,
		reg:          reg,
		logger:       logger,
		interceptors: make(chan *interceptor.Interceptor, 1),
		errs:         make(chan error, 1),
	}
}

// Interceptors returns the channel of newly opened interceptors.
func (m *Monitor) Interceptors() <-chan *interceptor.Interceptor { return m.interceptors }

// Errors returns the channel of fatal monitor errors (anything other
// than model.ErrNotApplicable from a failed open).
func (m *Monitor) Errors() <-chan error { return m.errs }

// Run performs the initial directory scan, then watches dir for new
// entries until ctx is done. It blocks; callers run it in its own
// goroutine.
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.scan(); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return model.Wrapf(model.KindInput, "creating device directory watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(m.dir); err != nil {
		return model.Wrapf(model.KindInput, "watching %s: %w", m.dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create == 0 {
				continue
			}
			if !strings.HasPrefix(filepath.Base(ev.Name), eventNodePrefix) {
				continue
			}
			m.tryOpen(ev.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.logger.Warn("device directory watcher error", "error", err)
		}
	}
}

func (m *Monitor) scan() error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return model.Wrapf(model.KindInput, "scanning %s: %w", m.dir, err)
	}
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), eventNodePrefix) {
			continue
		}
		m.tryOpen(filepath.Join(m.dir, entry.Name()))
	}
	return nil
}

// tryOpen opens path via the interceptor package. model.ErrNotApplicable
// is quiet, per spec; any other error is surfaced on Errors.
func (m *Monitor) tryOpen(path string) {
	ic, err := interceptor.Open(path, m.reg)
	if err != nil {
		if errors.Is(err, model.ErrNotApplicable) {
			m.logger.Debug("skipping device", "path", path, "reason", err)
			return
		}
		select {
		case m.errs <- err:
		default:
			m.logger.Error("dropped monitor error, channel full", "path", path, "error", err)
		}
		return
	}
	m.logger.Info("device opened", "path", path, "name", ic.Name())
	m.interceptors <- ic
}
