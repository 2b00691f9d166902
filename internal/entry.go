// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/arbor/internal/api"
	"github.com/starford/arbor/internal/editor"
	"github.com/starford/arbor/internal/identity"
	"github.com/starford/arbor/internal/index"
	"github.com/starford/arbor/internal/models"
	"github.com/starford/arbor/internal/nodeservice"
	"github.com/starford/arbor/internal/persist"
	"github.com/starford/arbor/internal/sse"
	"github.com/starford/arbor/internal/storage"
	"github.com/starford/arbor/internal/tree"
)

// core is the editor with everything that follows its commits: the saver,
// the optional search index and, when serving HTTP, the SSE broker.
type core struct {
	logger  *slog.Logger
	store   storage.Store
	saver   *persist.Saver
	db      *index.DB
	indexer *index.Indexer
	ed      *editor.Editor
	svc     *nodeservice.Service
}

// openCore rehydrates the forest from the configured store and wires the
// observers. broker may be nil.
func openCore(ctx context.Context, cfg *Config, logger *slog.Logger, broker *sse.Broker) (*core, error) {
	store, err := storage.Open(ctx, cfg.Storage.Driver, cfg.Storage.Location())
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	c := &core{logger: logger, store: store}

	snap, err := persist.Load(ctx, store, cfg.Storage.Key)
	if err != nil {
		// Refuse to start over a corrupt tree.
		store.Close()
		return nil, fmt.Errorf("load tree: %w", err)
	}

	saverOpts := []persist.SaverOption{
		persist.WithDebounce(cfg.Persist.Debounce),
		persist.WithSaverLogger(logger),
	}
	if broker != nil {
		saverOpts = append(saverOpts, persist.OnError(func(err error) {
			broker.Publish(sse.Event{Type: "persist.failed", Data: map[string]string{"error": err.Error()}})
		}))
	}
	c.saver = persist.NewSaver(store, cfg.Storage.Key, saverOpts...)
	c.saver.Seed(snap, 0)

	ids, err := identity.New(cfg.Identity.Strategy)
	if err != nil {
		c.Close()
		return nil, err
	}

	edOpts := []editor.Option{
		editor.WithForest(snap.Forest),
		editor.WithGenerator(ids),
		editor.WithLogger(logger),
		editor.WithObserver(func(ch editor.Change) { c.saver.Notify(ch.Forest, ch.Revision) }),
	}
	if broker != nil {
		edOpts = append(edOpts, editor.WithObserver(broker.PublishChange))
	}

	svcOpts := []nodeservice.Option{nodeservice.WithStatus(c.saver.Status)}
	if cfg.Index.Enabled {
		c.db, err = index.Open(cfg.Index.Path)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("init index: %w", err)
		}
		c.indexer = index.NewIndexer(c.db, logger)
		edOpts = append(edOpts, editor.WithObserver(func(ch editor.Change) {
			c.indexer.Notify(ch.Forest, ch.Revision)
		}))
		svcOpts = append(svcOpts, nodeservice.WithIndex(c.db))
	}

	c.ed, err = editor.New(edOpts...)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("init editor: %w", err)
	}
	if c.indexer != nil {
		c.indexer.Notify(snap.Forest, 0)
	}
	c.svc = nodeservice.New(c.ed, svcOpts...)

	logger.Info("Tree loaded",
		slog.String("driver", cfg.Storage.Driver),
		slog.String("key", cfg.Storage.Key),
		slog.Int("nodes", len(tree.IDs(snap.Forest))))
	return c, nil
}

// background starts the saver, the indexer and, for the fs driver, the
// watcher that picks up edits made by other processes.
func (c *core) background(ctx context.Context, g *errgroup.Group, key string) {
	g.Go(func() error { return c.saver.Run(ctx) })
	if c.indexer != nil {
		g.Go(func() error { return c.indexer.Run(ctx) })
	}
	if fsStore, ok := c.store.(*storage.FS); ok {
		g.Go(func() error {
			err := persist.Watch(ctx, fsStore, key, c.saver, c.logger, func(f models.Forest) error {
				return c.ed.Replace(f)
			})
			if err != nil {
				c.logger.Warn("watcher disabled", slog.String("error", err.Error()))
			}
			return nil
		})
	}
}

// Close releases the store and the index.
func (c *core) Close() {
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.logger.Warn("close index", slog.String("error", err.Error()))
		}
	}
	if err := c.store.Close(); err != nil {
		c.logger.Warn("close storage", slog.String("error", err.Error()))
	}
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", out: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := NewLogger(os.Stdout, cfg.App)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_driver", cfg.Storage.Driver),
		slog.Bool("index_enabled", cfg.Index.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	c, err := openCore(ctx, cfg, logger, broker)
	if err != nil {
		return err
	}
	defer c.Close()

	apiRouter := api.NewRouter(c.svc, api.RouterConfig{
		AuthEnabled: cfg.Auth.AuthEnabled(),
		Token:       cfg.Auth.Token,
		CORSOrigins: cfg.App.HTTP.CORSOrigins,
		Events:      broker,
	})

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(runCtx)

	c.background(gCtx, g, cfg.Storage.Key)

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// Ends open event streams so Shutdown does not wait on them.
		broker.Close()

		shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		// Stops the saver (which flushes), the indexer and the watcher.
		cancel()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	st := c.saver.Status()
	logger.Info("Server stopped successfully",
		slog.Uint64("saved_revision", st.SavedRevision),
		slog.Uint64("pending_revision", st.PendingRevision))
	return nil
}

// quietLogger is used by the one-shot CLI commands.
func quietLogger(w io.Writer, cfg ApplicationConfig) *slog.Logger {
	if cfg.LogLevel < slog.LevelWarn {
		cfg.LogLevel = slog.LevelWarn
	}
	return NewLogger(w, cfg)
}
