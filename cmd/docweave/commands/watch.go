package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"git.home.luguber.info/inful/docweave/internal/config"
	"git.home.luguber.info/inful/docweave/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	RunFlags

	Debounce time.Duration `help:"Quiet period after a change before re-running" default:"300ms"`
	Every    time.Duration `help:"Also run a forced full regeneration on this interval (0 disables)" default:"0s"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	cfg, err := w.load(root)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	s, err := newSession(cfg, g.logger(), os.Stdout)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	opts := watchOptions(cfg, w.Debounce, w.Every)
	watcher := watch.New(func(ctx context.Context, force bool) error {
		_, err := s.run(ctx, nil, force)
		return err
	}, opts).WithLogger(g.logger())

	g.logger().Info("Watching for changes", slog.Int("paths", len(opts.Paths)), slog.Duration("every", w.Every))
	return watcher.Run(ctx)
}

func watchOptions(cfg *config.Config, debounce, every time.Duration) watch.Options {
	paths := append([]string{cfg.BaseDir}, cfg.TemplatePath...)
	if cfg.ProjectFile != "" {
		paths = append(paths, filepath.Join(cfg.BaseDir, filepath.FromSlash(cfg.ProjectFile)))
	}
	return watch.Options{
		Paths:       paths,
		ExcludeDirs: []string{cfg.DestDir},
		Debounce:    debounce,
		Every:       every,
	}
}
