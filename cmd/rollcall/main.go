package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tech-arch1tect/rollcall"
	"github.com/tech-arch1tect/rollcall/config"
)

func main() {
	if err := newRootCommand(nil).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCommand builds the CLI. A nil cfg means configuration is read from the
// environment and .env.
func newRootCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "rollcall",
		Short:         "Email verification and student registration service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newServeCommand(cfg))
	cmd.AddCommand(newMigrateCommand(cfg))
	cmd.AddCommand(newPurgeCommand(cfg))
	return cmd
}

func baseOptions(cfg *config.Config, opts ...rollcall.Option) []rollcall.Option {
	if cfg != nil {
		opts = append(opts, rollcall.WithConfig(cfg))
	}
	return opts
}

func newServeCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := rollcall.New(baseOptions(cfg, rollcall.WithMail(), rollcall.WithBilling())...)
			if err != nil {
				return err
			}
			return app.Run()
		},
	}
}

func newMigrateCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := rollcall.New(baseOptions(cfg, rollcall.WithoutHTTP(), rollcall.WithBilling())...)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Migrate(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newPurgeCommand(cfg *config.Config) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "purge-verifications",
		Short: "Delete expired and consumed verification codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			app, err := rollcall.New(baseOptions(cfg, rollcall.WithoutHTTP())...)
			if err != nil {
				return err
			}
			defer app.Close()

			retention := olderThan
			if retention <= 0 {
				retention = app.Config().Cleanup.Retention
			}

			removed, err := app.Reaper().PurgeStale(ctx, retention)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d verification codes older than %s\n", removed, retention)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Retention window (defaults to CLEANUP_RETENTION)")
	return cmd
}
