package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"redditcord/internal/app"
)

// Version is set via ldflags at build time.
var Version = "dev"

func main() {
	var cfgPath string

	root := &cobra.Command{
		Use:           "redditcord",
		Short:         "Discord bot that posts new Reddit submissions on a schedule",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cfgPath)
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "./config.json", "path to config file (json, yaml or toml; empty for env only)")

	root.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Validate the config and print the effective settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Check(cfgPath, cmd.OutOrStdout())
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "redditcord %s\n", Version)
		},
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath string) error {
	a, err := app.NewApp(cfgPath)
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		stopCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		_ = a.Stop(stopCtx)
		return fmt.Errorf("start: %w", err)
	}

	select {
	case <-ctx.Done():
	case <-a.Done():
	}

	stopCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	_ = a.Stop(stopCtx)
	return a.Err()
}
