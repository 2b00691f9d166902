package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/starford/arbor/internal/apperr"
	"github.com/starford/arbor/internal/mcpserver"
	"github.com/starford/arbor/internal/models"
	"github.com/starford/arbor/internal/persist"
	"github.com/starford/arbor/internal/render"
	"github.com/starford/arbor/internal/storage"
	"github.com/starford/arbor/internal/tree"
)

// RunMCP serves the forest to an MCP client over stdio. Stdout carries the
// protocol, so logs go to stderr.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := NewLogger(os.Stderr, cfg.App)
	slog.SetDefault(logger)

	c, err := openCore(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(runCtx)
	c.background(gCtx, g, cfg.Storage.Key)

	g.Go(func() error {
		defer cancel()
		logger.Info("MCP server starting on stdio", slog.String("version", app.version))
		return mcpserver.New(c.svc, app.version).ServeStdio()
	})

	return g.Wait()
}

// loadForest reads the stored forest without starting an editor.
func loadForest(ctx context.Context, cfg *Config) (models.Forest, error) {
	store, err := storage.Open(ctx, cfg.Storage.Driver, cfg.Storage.Location())
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	defer store.Close()

	snap, err := persist.Load(ctx, store, cfg.Storage.Key)
	if err != nil {
		return nil, fmt.Errorf("load tree: %w", err)
	}
	return snap.Forest, nil
}

// Reset removes the stored forest so the next start begins empty.
func Reset(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	slog.SetDefault(quietLogger(os.Stderr, cfg.App))

	store, err := storage.Open(ctx, cfg.Storage.Driver, cfg.Storage.Location())
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer store.Close()

	if err := store.Delete(ctx, cfg.Storage.Key); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	_, err = fmt.Fprintf(app.out, "removed tree %q from %s storage\n", cfg.Storage.Key, cfg.Storage.Driver)
	return err
}

// PrintTree writes an indented outline of the stored forest with node ids.
func PrintTree(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	slog.SetDefault(quietLogger(os.Stderr, app.config.App))

	f, err := loadForest(ctx, app.config)
	if err != nil {
		return err
	}
	return writeOutline(app.out, f)
}

func writeOutline(w io.Writer, f models.Forest) error {
	if len(f) == 0 {
		_, err := fmt.Fprintln(w, "(empty)")
		return err
	}
	var werr error
	tree.Walk(f, func(n *models.Node, depth int) bool {
		name := n.Name
		if n.IsFolder() {
			name += "/"
		}
		_, werr = fmt.Fprintf(w, "%s%s  [%s]\n", strings.Repeat("  ", depth), name, n.ID)
		return werr == nil
	})
	return werr
}

// Cat renders file id from the stored forest for the terminal.
func Cat(ctx context.Context, id string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	slog.SetDefault(quietLogger(os.Stderr, app.config.App))

	f, err := loadForest(ctx, app.config)
	if err != nil {
		return err
	}
	n, ok := tree.Lookup(f, id)
	if !ok {
		return fmt.Errorf("cat %s: %w", id, apperr.ErrNotFound)
	}
	if !n.IsFile() {
		return fmt.Errorf("cat %s: %w", id, apperr.ErrNotFile)
	}

	out, err := render.Terminal(n.Content, app.style, app.width)
	if err != nil {
		return fmt.Errorf("cat %s: %w", id, err)
	}
	_, err = io.WriteString(app.out, out)
	return err
}
