package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/serije/internal/auth"
	"github.com/desertthunder/serije/internal/server"
	"github.com/desertthunder/serije/internal/services"
	"github.com/desertthunder/serije/internal/shared"
	"github.com/desertthunder/serije/internal/web"
	"github.com/urfave/cli/v3"
)

var errConfigNotSpecified = fmt.Errorf("%w: configuration file not specified", shared.ErrMissingArgument)

// Serve loads the config file named by the first argument, migrates the
// database and serves until SIGINT or SIGTERM.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("config")
	if path == "" {
		path = cmd.Args().First()
	}
	if path == "" {
		return errConfigNotSpecified
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("configuration file does not exist: %s", path)
	}

	config, err := r.loadConfig(path)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, closeFn, err := r.buildServer(ctx, config)
	if err != nil {
		return err
	}
	defer closeFn()

	return srv.Run(ctx)
}

// buildServer wires the store, TMDB gateway, sessions and pages into a [server.Server].
func (r *Runner) buildServer(ctx context.Context, config *shared.Config) (*server.Server, func(), error) {
	db, store, err := r.openStore(ctx, config)
	if err != nil {
		return nil, nil, err
	}

	if config.TMDB.APIKey == "" && config.TMDB.ReadAccessToken == "" {
		r.logger.Warn("no TMDB credentials configured, catalog requests will be rejected upstream")
	}

	catalog := services.NewTMDBService(config.TMDB, nil, r.logger)
	hasher := auth.NewHasher(config.Security)
	sessions := auth.NewManager(store.Sessions(), config.Session, r.logger)

	srv := server.New(server.Options{
		Config:   config,
		Store:    store,
		Catalog:  catalog,
		Hasher:   hasher,
		Sessions: sessions,
		Logger:   r.logger,
	})

	pages, err := web.New(web.Options{
		Store:      store,
		Catalog:    catalog,
		Hasher:     hasher,
		Sessions:   sessions,
		Logger:     r.logger,
		LoginLimit: srv.LoginLimiter(),
	})
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to load templates: %w", err)
	}
	srv.Mount(pages)

	r.logger.Info("server configured", "addr", config.Server.Addr(), "database", config.Database.Path)
	return srv, func() { db.Close() }, nil
}
