package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/serije/internal/formatter"
	"github.com/desertthunder/serije/internal/repositories"
	"github.com/desertthunder/serije/internal/services"
	"github.com/desertthunder/serije/internal/shared"
	"github.com/desertthunder/serije/internal/tasks"
	"github.com/desertthunder/serije/internal/ui"
	"github.com/urfave/cli/v3"
)

// FavoritesList prints one user's favorites as a table or JSON.
func (r *Runner) FavoritesList(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	db, store, err := r.openStore(ctx, config)
	if err != nil {
		return err
	}
	defer db.Close()

	user, err := store.Users().GetByUsername(ctx, cmd.String("user"))
	if err != nil {
		return err
	}

	favorites, err := store.Favorites().ListByUser(ctx, user.ID())
	if err != nil {
		return fmt.Errorf("failed to list favorites: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(favorites, true)
	}

	r.writePlain("%s\n", ui.Styles.Title(fmt.Sprintf("Favoriti: %s (%d)", user.Username(), len(favorites))))
	return r.writePlain("%s\n", ui.FavoritesTable(favorites))
}

// FavoritesExport writes one user's favorites to a file, or with --all every
// user's favorites into a directory with a manifest.
func (r *Runner) FavoritesExport(ctx context.Context, cmd *cli.Command) error {
	username := cmd.String("user")
	all := cmd.Bool("all")

	switch {
	case username == "" && !all:
		return fmt.Errorf("%w: either --user or --all must be provided", shared.ErrMissingArgument)
	case username != "" && all:
		return fmt.Errorf("%w: cannot specify both --user and --all", shared.ErrInvalidArgument)
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	db, store, err := r.openStore(ctx, config)
	if err != nil {
		return err
	}
	defer db.Close()

	if all {
		return r.bulkExport(ctx, store, tasks.BulkExportOpts{
			Format:     format,
			OutputDir:  cmd.String("output"),
			NumWorkers: int(cmd.Int("workers")),
		})
	}

	user, err := store.Users().GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	favorites, err := store.Favorites().ListByUser(ctx, user.ID())
	if err != nil {
		return fmt.Errorf("failed to list favorites: %w", err)
	}

	path, err := formatter.WriteExport(formatter.NewFavoritesExport(user, favorites), format, cmd.String("output"))
	if err != nil {
		return err
	}

	r.logger.Info("favorites exported", "user", user.Username(), "count", len(favorites), "path", path)
	return r.writePlain("%s\n", ui.Styles.OK(fmt.Sprintf("✓ %d favorites exported to %s", len(favorites), path)))
}

func (r *Runner) bulkExport(ctx context.Context, store *repositories.Store, opts tasks.BulkExportOpts) error {
	engine := tasks.NewEngine(store, nil, r.logger)

	progress, done := r.printProgress()
	result, err := engine.BulkExport(ctx, progress, opts)
	close(progress)
	done()
	if err != nil {
		return fmt.Errorf("bulk export failed: %w", err)
	}

	r.writePlain("\n%s\n", ui.Styles.Title("Bulk Export Summary"))
	r.writePlain("Users:      %d\n", result.TotalUsers)
	r.writePlain("Successful: %s\n", ui.Styles.OK(fmt.Sprint(result.SuccessfulExports)))
	if result.FailedExports > 0 {
		r.writePlain("Failed:     %s\n", ui.Styles.Err(fmt.Sprint(result.FailedExports)))
	}
	r.writePlain("Directory:  %s\n", result.OutputDirectory)
	return r.writePlain("Manifest:   %s\n", result.ManifestPath)
}

// FavoritesRefresh re-fetches TMDB metadata for stored favorites.
func (r *Runner) FavoritesRefresh(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	db, store, err := r.openStore(ctx, config)
	if err != nil {
		return err
	}
	defer db.Close()

	opts := tasks.RefreshOpts{
		OnlyMissing: cmd.Bool("only-missing"),
		NumWorkers:  int(cmd.Int("workers")),
		RateLimit:   cmd.Float("rate"),
	}
	if username := cmd.String("user"); username != "" {
		user, err := store.Users().GetByUsername(ctx, username)
		if err != nil {
			return err
		}
		opts.UserID = user.ID()
	}

	engine := tasks.NewEngine(store, services.NewTMDBService(config.TMDB, nil, r.logger), r.logger)

	progress, done := r.printProgress()
	result, err := engine.Refresh(ctx, progress, opts)
	close(progress)
	done()
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}

	r.writePlain("\n%s\n", ui.Styles.Title("Refresh Summary"))
	r.writePlain("Favorites: %d\n", result.Total)
	r.writePlain("Updated:   %s\n", ui.Styles.OK(fmt.Sprint(result.Updated)))
	r.writePlain("Unchanged: %d\n", result.Unchanged)
	if result.Skipped > 0 {
		r.writePlain("Skipped:   %d\n", result.Skipped)
	}
	if result.Failed > 0 {
		r.writePlain("Failed:    %s\n", ui.Styles.Err(fmt.Sprint(result.Failed)))
	}
	return nil
}

// printProgress returns a channel whose updates are printed until it is
// closed. The returned func blocks until every received update is written.
func (r *Runner) printProgress() (chan tasks.ProgressUpdate, func()) {
	progress := make(chan tasks.ProgressUpdate, 32)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progress {
			r.writePlain("%s\n", ui.Styles.Help(update.Message))
		}
	}()

	return progress, wg.Wait
}
