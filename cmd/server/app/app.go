// Package app contains the main entrypoint for the server.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starquake/quizstore/internal/config"
	"github.com/starquake/quizstore/internal/docs"
	"github.com/starquake/quizstore/internal/logging"
	"github.com/starquake/quizstore/internal/quiz"
	"github.com/starquake/quizstore/internal/server"
	"github.com/starquake/quizstore/internal/store"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Lifecycle states, logged under the "state" key.
const (
	StateStarting   = "STARTING"
	StateConnected  = "CONNECTED"
	StateServing    = "SERVING"
	StateClosing    = "CLOSING"
	StateTerminated = "TERMINATED"
)

// Run connects to the database, ensures the quizzes collection exists and serves HTTP on ln until ctx is
// canceled or the process receives SIGINT or SIGTERM. If ln is nil, Run listens on HOST:PORT.
// A database that cannot be reached at startup is fatal: Run returns an error wrapping docstore.ErrConnection.
func Run(
	ctx context.Context,
	getenv func(string) string,
	stdout io.Writer,
	ln net.Listener,
) error {
	var err error
	mainCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg *config.Config
	if cfg, err = config.Parse(getenv); err != nil {
		msg := "error parsing config"
		logging.New(stdout, config.LogLevelDefault).ErrorContext(ctx, msg, logging.ErrAttr(err))
		closeListener(ln)

		return fmt.Errorf("%s: %w", msg, err)
	}

	logger := logging.New(stdout, cfg.LogLevel)
	logger.InfoContext(ctx, "starting",
		slog.String("state", StateStarting),
		slog.String("env", cfg.AppEnvironment),
		slog.String("driver", cfg.DBDriver),
	)

	stores, err := store.Open(cfg, logger)
	if err != nil {
		closeListener(ln)

		return fmt.Errorf("error opening store: %w", err)
	}

	if err = stores.Docs.Connect(mainCtx); err != nil {
		logger.ErrorContext(ctx, "error connecting to database",
			slog.String("state", StateTerminated), logging.ErrAttr(err))
		closeListener(ln)

		return fmt.Errorf("error connecting to database: %w", err)
	}
	logger.InfoContext(ctx, "connected to database", slog.String("state", StateConnected))

	err = serve(ctx, mainCtx, logger, cfg, stores, ln)

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if closeErr := stores.Docs.Close(closeCtx); closeErr != nil {
		logger.ErrorContext(ctx, "error closing database connection", logging.ErrAttr(closeErr))
		err = errors.Join(err, fmt.Errorf("error closing database connection: %w", closeErr))
	}
	logger.InfoContext(ctx, "stopped", slog.String("state", StateTerminated))

	return err
}

// serve runs the HTTP server until mainCtx is done, then drains it for up to shutdownTimeout.
func serve(
	ctx context.Context,
	mainCtx context.Context,
	logger *slog.Logger,
	cfg *config.Config,
	stores *store.Stores,
	ln net.Listener,
) error {
	var err error
	// An existing collection is tolerated by EnsureCollection. Any other failure stops startup.
	if err = stores.Docs.EnsureCollection(mainCtx, quiz.CollectionName); err != nil {
		logger.ErrorContext(ctx, "error ensuring collection",
			slog.String("collection", quiz.CollectionName), logging.ErrAttr(err))
		closeListener(ln)

		return fmt.Errorf("error ensuring collection %q: %w", quiz.CollectionName, err)
	}

	if ln == nil {
		listenConfig := &net.ListenConfig{}
		ln, err = listenConfig.Listen(mainCtx, "tcp", net.JoinHostPort(cfg.Host, cfg.Port))
		if err != nil {
			return fmt.Errorf("error listening on %s:%s: %w", cfg.Host, cfg.Port, err)
		}
	}

	httpServer := &http.Server{
		ReadHeaderTimeout: readHeaderTimeout,
		Handler:           server.NewServer(logger, cfg, stores),
	}

	g, gCtx := errgroup.WithContext(mainCtx)
	g.Go(func() error {
		addr := ln.Addr().String()
		logger.InfoContext(ctx, "listening on "+addr, slog.String("state", StateServing), slog.String("addr", addr))
		logger.InfoContext(ctx, fmt.Sprintf("visit http://%s%s for the API reference", addr, docs.Prefix))
		if httpErr := httpServer.Serve(ln); httpErr != nil && !errors.Is(httpErr, http.ErrServerClosed) {
			return fmt.Errorf("error listening and serving: %w", httpErr)
		}

		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		logger.InfoContext(ctx, "shutting down", slog.String("state", StateClosing))
		// make a new context for the Shutdown
		shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer shutdownCancel()
		if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			return fmt.Errorf("error shutting down server: %w", shutdownErr)
		}

		return nil
	})

	if err = g.Wait(); err != nil {
		logger.ErrorContext(ctx, "server stopped with error", logging.ErrAttr(err))

		return err
	}

	return nil
}

func closeListener(ln net.Listener) {
	if ln != nil {
		_ = ln.Close()
	}
}
