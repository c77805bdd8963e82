package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"game_catalogue/internal/app"
	"game_catalogue/internal/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "catalogctl",
		Short:        "Maintenance commands for the game catalogue",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "path to config yaml file")

	// open builds the app for one command run
	open := func(cmd *cobra.Command) (*app.App, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		return app.New(cmd.Context(), cfg, app.SetupLogger(cfg.Env))
	}

	root.AddCommand(
		migrateCmd(open),
		backupCmd(open),
		scrapePricesCmd(open),
		fetchArtworkCmd(open),
	)

	return root
}

type opener func(cmd *cobra.Command) (*app.App, error)

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func migrateCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// app.New migrates on open
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			fmt.Fprintln(cmd.OutOrStdout(), "database is up to date")
			return nil
		},
	}
}

func backupCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create or list database snapshots",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Write a new snapshot into the backup folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			f, err := a.Backups.Create(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, f)
		},
	}, &cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			files, err := a.Backups.List()
			if err != nil {
				return err
			}
			for _, f := range files {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%s\n", f.CreatedAt.Format("2006-01-02 15:04:05"), f.Size, f.Path)
			}
			return nil
		},
	})

	return cmd
}

func scrapePricesCmd(open opener) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "scrape-prices",
		Short: "Run the automatic price refresh once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.Prices.RunAuto(cmd.Context(), force)
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "run even when auto scraping is disabled")

	return cmd
}

func fetchArtworkCmd(open opener) *cobra.Command {
	var (
		limit  int
		gameID int64
	)

	cmd := &cobra.Command{
		Use:   "fetch-artwork",
		Short: "Download SteamGridDB artwork for games that lack it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return errors.New("--limit must not be negative")
			}

			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if gameID > 0 {
				res, err := a.Artwork.FetchForGame(cmd.Context(), gameID)
				if err != nil {
					return err
				}
				return printJSON(cmd, res)
			}

			batch, err := a.Artwork.FetchMissing(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printJSON(cmd, batch)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "games to process, 0 for the default")
	cmd.Flags().Int64Var(&gameID, "game", 0, "fetch artwork for a single game id")

	return cmd
}
