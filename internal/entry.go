// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/starford/notepress/internal/journal"
	"github.com/starford/notepress/internal/notestore"
	"github.com/starford/notepress/internal/preview"
	"github.com/starford/notepress/internal/record"
	"github.com/starford/notepress/internal/syncer"
	"github.com/starford/notepress/internal/wordpress"
)

// Run executes a sync run with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := newLogger(cfg)

	dryRun := cfg.Sync.DryRun
	if app.dryRun != nil {
		dryRun = *app.dryRun
	}

	logger.Info("Configuration loaded",
		slog.String("notestore_url", cfg.Notestore.BaseURL),
		slog.String("wordpress_url", cfg.WordPress.BaseURL),
		slog.String("journal_path", cfg.Journal.Path),
		slog.Bool("dry_run", dryRun),
		slog.String("log_level", cfg.App.LogLevel.String()))

	store := notestore.NewClient(cfg.Notestore.BaseURL, cfg.Notestore.Token, cfg.Notestore.PageSize, logger)
	wp := wordpress.NewClient(cfg.WordPress.BaseURL, cfg.WordPress.Username, cfg.WordPress.Password)

	jdb, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return fmt.Errorf("init journal: %w", err)
	}
	defer jdb.Close()

	// The resolver cache is scoped to this run so records never go stale
	// across runs.
	resolver := record.NewResolver(store, logger)
	s := syncer.New(store, wp, resolver, jdb, logger, dryRun)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gCtx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		defer cancel()
		if app.noteRef != "" {
			return s.SyncNote(gCtx, app.noteRef)
		}
		query := cfg.Sync.Query
		if app.query != "" {
			query = app.query
		}
		if query == "" {
			return fmt.Errorf("no sync query configured (set sync.query or pass --query)")
		}
		return s.SyncQuery(gCtx, query)
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
			cancel()
		case <-gCtx.Done():
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Sync run error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Sync run finished")
	return nil
}

// Preview resolves a single note and writes its content rendered to HTML
// to stdout.
func Preview(ctx context.Context, cfg *Config, ref string) error {
	logger := newLogger(cfg)

	store := notestore.NewClient(cfg.Notestore.BaseURL, cfg.Notestore.Token, cfg.Notestore.PageSize, logger)
	resolver := record.NewResolver(store, logger)

	rec, err := resolver.Resolve(ctx, ref)
	if err != nil {
		return err
	}
	post, ok := rec.(*record.Post)
	if !ok {
		return fmt.Errorf("note %q is an image attachment, nothing to preview", rec.Title())
	}

	content, err := post.Content(ctx)
	if err != nil {
		return err
	}
	out := content
	if post.ContentFormat() != "html" {
		out, err = preview.HTML(content)
		if err != nil {
			return err
		}
	}
	_, err = fmt.Fprintln(os.Stdout, out)
	return err
}

// Status prints the most recent journal entries.
func Status(_ context.Context, cfg *Config, limit int) error {
	jdb, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return fmt.Errorf("init journal: %w", err)
	}
	defer jdb.Close()

	events, err := jdb.Recent(limit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Println("no sync events recorded")
		return nil
	}
	for _, ev := range events {
		line := fmt.Sprintf("%s\t%-9s\t%s", ev.CreatedAt.Format("2006-01-02 15:04:05"), ev.Action, ev.Title)
		if ev.ExternalID != 0 {
			line += fmt.Sprintf("\t(id %d)", ev.ExternalID)
		}
		if ev.Detail != "" {
			line += "\t" + ev.Detail
		}
		fmt.Println(line)
	}
	return nil
}

// newLogger installs a structured JSON logger as the process default.
func newLogger(cfg *Config) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}
