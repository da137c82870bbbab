// Package watch re-runs a transformation whenever sources, stylesheets or the
// project file change, and optionally on a fixed interval.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/docweave/internal/logfields"
)

// DefaultDebounce is the quiet period after the last change before a re-run.
const DefaultDebounce = 300 * time.Millisecond

// RunFunc performs one transformation run. force is set for scheduled sweeps,
// which regenerate every output regardless of timestamps.
type RunFunc func(ctx context.Context, force bool) error

// Options configures a Watcher.
type Options struct {
	// Paths are directories (watched recursively) or single files.
	Paths []string
	// ExcludeDirs are never watched and their events never trigger a run,
	// typically the destination directory.
	ExcludeDirs []string
	Debounce    time.Duration
	// Every, when positive, schedules a forced run on that interval.
	Every time.Duration
}

// Watcher drives a RunFunc from filesystem events. Runs never overlap: a
// change seen while a run is in progress queues exactly one follow-up run.
type Watcher struct {
	run    RunFunc
	opts   Options
	logger *slog.Logger

	roots    []string
	files    map[string]bool
	excludes []string

	requests chan struct{}
	force    atomic.Bool
	mu       sync.Mutex
	timer    *time.Timer
}

// New returns a Watcher for run.
func New(run RunFunc, opts Options) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	return &Watcher{
		run:      run,
		opts:     opts,
		logger:   slog.Default(),
		files:    map[string]bool{},
		requests: make(chan struct{}, 1),
	}
}

// WithLogger sets the logger.
func (w *Watcher) WithLogger(l *slog.Logger) *Watcher {
	w.logger = l
	return w
}

// Run performs an initial run and then re-runs on change until ctx is done.
// The run in progress at cancellation is allowed to finish.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	if err := w.watchPaths(fsw); err != nil {
		return err
	}

	if w.opts.Every > 0 {
		sched, err := w.schedule()
		if err != nil {
			return err
		}
		sched.Start()
		defer func() {
			if err := sched.Shutdown(); err != nil {
				w.logger.Warn("Scheduler shutdown failed", logfields.Error(err))
			}
		}()
	}

	done := make(chan struct{})
	go w.worker(ctx, done)
	w.request()

	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			<-done
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(fsw, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", logfields.Error(err))
		}
	}
}

// Trigger schedules a debounced run.
func (w *Watcher) Trigger() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.opts.Debounce, w.request)
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

// sweep enqueues a run that ignores freshness. A pending change-triggered
// run is upgraded rather than followed by a second one.
func (w *Watcher) sweep() {
	w.force.Store(true)
	w.request()
}

// request enqueues a run unless one is already pending.
func (w *Watcher) request() {
	select {
	case w.requests <- struct{}{}:
	default:
	}
}

func (w *Watcher) worker(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.requests:
			if ctx.Err() != nil {
				return
			}
			start := time.Now()
			force := w.force.Swap(false)
			if err := w.run(ctx, force); err != nil {
				w.logger.Warn("Run failed", logfields.Error(err))
			}
			w.logger.Debug("Run complete",
				slog.Bool("forced", force),
				logfields.DurationMS(float64(time.Since(start).Milliseconds())))
		}
	}
}

func (w *Watcher) schedule() (gocron.Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(w.opts.Every),
		gocron.NewTask(func() {
			w.logger.Debug("Scheduled sweep")
			w.sweep()
		}),
		gocron.WithName("docweave-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("failed to create periodic sweep job: %w", err)
	}
	return s, nil
}

func (w *Watcher) watchPaths(fsw *fsnotify.Watcher) error {
	for _, dir := range w.opts.ExcludeDirs {
		if abs, err := filepath.Abs(dir); err == nil {
			w.excludes = append(w.excludes, abs)
		}
	}
	for _, p := range w.opts.Paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolve watch path %s: %w", p, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			w.logger.Warn("Watch path not found", logfields.Path(abs))
			continue
		}
		if info.IsDir() {
			w.roots = append(w.roots, abs)
			w.addDirsRecursive(fsw, abs)
			continue
		}
		w.files[abs] = true
		if err := fsw.Add(filepath.Dir(abs)); err != nil {
			w.logger.Warn("Watch add failed", logfields.Path(abs), logfields.Error(err))
		}
	}
	return nil
}

func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, ev fsnotify.Event) {
	if !w.relevant(ev.Name) {
		return
	}
	if ev.Op&fsnotify.Create == fsnotify.Create {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			w.addDirsRecursive(fsw, ev.Name)
		}
	}
	w.logger.Debug("File change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
	w.Trigger()
}

func (w *Watcher) relevant(path string) bool {
	if shouldIgnoreEvent(path) || w.excluded(path) {
		return false
	}
	if w.files[path] {
		return true
	}
	for _, root := range w.roots {
		if within(root, path) {
			return true
		}
	}
	return false
}

func (w *Watcher) excluded(path string) bool {
	for _, dir := range w.excludes {
		if within(dir, path) {
			return true
		}
	}
	return false
}

func (w *Watcher) addDirsRecursive(fsw *fsnotify.Watcher, root string) {
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if w.excluded(path) || (path != root && strings.HasPrefix(d.Name(), ".")) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			w.logger.Warn("Watch add failed", logfields.Path(path), logfields.Error(err))
		}
		return nil
	})
}

func within(dir, path string) bool {
	return path == dir || strings.HasPrefix(path, dir+string(filepath.Separator))
}

// shouldIgnoreEvent reports events for hidden, editor swap and lock files.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)

	if strings.HasPrefix(base, ".") {
		return true
	}
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#") {
		return true
	}
	return base == "Thumbs.db"
}
