package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// TransformCmd implements the 'transform' command.
type TransformCmd struct {
	RunFlags

	Files []string `arg:"" optional:"" help:"Input files relative to the base directory (default: scan)"`
}

func (t *TransformCmd) Run(g *Global, root *CLI) error {
	cfg, err := t.load(root)
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

	var files []string
	if len(t.Files) > 0 {
		files = t.Files
	}
	_, err = s.run(ctx, files, false)
	return err
}
