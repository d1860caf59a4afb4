// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"codeberg.org/oliverandrich/storefront/internal/database"
	"codeberg.org/oliverandrich/storefront/internal/repository"
	"github.com/urfave/cli/v3"
)

func usersCommand() *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "Manage user accounts",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List all users, newest first",
				Action: listUsers,
			},
			{
				Name:  "delete",
				Usage: "Delete a user together with their backup codes",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "id", Usage: "ID of the user to delete", Required: true},
				},
				Action: deleteUser,
			},
		},
	}
}

func openRepository(cmd *cli.Command) (*repository.Repository, func(), error) {
	db, err := database.Open(cmd.String("database-dsn"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return repository.New(db), func() { _ = db.Close() }, nil
}

func listUsers(ctx context.Context, cmd *cli.Command) error {
	repo, closeDB, err := openRepository(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	users, err := repo.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	w := tabwriter.NewWriter(cmd.Root().Writer, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\t2FA\tCREATED")
	for _, u := range users {
		twoFactor := "off"
		if u.TwoFactorEnabled() {
			twoFactor = "on"
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			u.ID, u.Username, u.Email, twoFactor, u.CreatedAt.Format(time.DateTime))
	}
	return w.Flush()
}

func deleteUser(ctx context.Context, cmd *cli.Command) error {
	repo, closeDB, err := openRepository(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	id := cmd.Int64("id")
	if err := repo.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("user %d not found", id)
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}

	_, _ = fmt.Fprintf(cmd.Root().Writer, "User %d deleted\n", id)
	return nil
}
