package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/serije/internal/ui"
	"github.com/urfave/cli/v3"
)

// UsersList prints every registered user as a table or JSON.
func (r *Runner) UsersList(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	db, store, err := r.openStore(ctx, config)
	if err != nil {
		return err
	}
	defer db.Close()

	users, err := store.Users().List(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(users, true)
	}

	if len(users) == 0 {
		return r.writePlain("%s\n", ui.Styles.Warn("nema korisnika"))
	}

	r.writePlain("%s\n", ui.Styles.Title(fmt.Sprintf("Korisnici (%d)", len(users))))
	return r.writePlain("%s\n", ui.UsersTable(users))
}
