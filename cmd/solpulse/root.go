package main

import (
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/spf13/cobra"

	"github.com/solpulse/solpulse/sphttp"
	"github.com/solpulse/solpulse/sprpc/spsolana"
	"github.com/solpulse/solpulse/spstore"
	"github.com/solpulse/solpulse/spwatch"
)

// NewRootCommand builds the solpulse command tree.
func NewRootCommand() *cobra.Command {
	var (
		configPath string
		listen     string
		dbPath     string
		endpoint   string
	)

	cmd := &cobra.Command{
		Use:   "solpulse",
		Short: "Watch real and total TPS on a Solana cluster",
		Long: `solpulse polls one Solana RPC endpoint for its recent performance samples,
derives real (non-vote) and total transactions per second,
and serves the current connection status and metrics as JSON.

The watched endpoint persists across restarts.
Pass --endpoint to switch; the new choice is persisted as given.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := DefaultConfig()
			if configPath != "" {
				var err error
				cfg, err = LoadConfig(configPath)
				if err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("listen") {
				cfg.Listen = listen
			}
			if cmd.Flags().Changed("db") {
				cfg.DBPath = dbPath
			}

			return run(cmd, cfg, endpoint)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	fs.StringVar(&listen, "listen", defaultListen, "HTTP status listen address")
	fs.StringVar(&dbPath, "db", "", "SQLite settings database path (empty: in-memory)")
	fs.StringVar(&endpoint, "endpoint", "", "switch to this RPC endpoint and persist it")

	return cmd
}

func run(cmd *cobra.Command, cfg Config, endpointOverride string) error {
	ctx := cmd.Context()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var store spstore.SettingStore
	if cfg.DBPath == "" {
		log.Warn("No settings database configured; endpoint choice will not persist")
		store = spstore.NewMemoryStore()
	} else {
		sqlStore, err := spstore.NewSQLiteStore(ctx, cfg.DBPath)
		if err != nil {
			return err
		}
		defer sqlStore.Close()
		store = sqlStore
	}

	sup, err := spwatch.New(ctx, spwatch.Options{
		Log:          log.With("sys", "watch"),
		Store:        store,
		Dialer:       spsolana.Dialer{},
		PollInterval: cfg.PollInterval(),
		SampleCount:  cfg.SampleCount,
	})
	if err != nil {
		return fmt.Errorf("start supervisor: %w", err)
	}
	defer sup.Close()

	// An explicitly requested endpoint is the user's choice;
	// it is persisted and used exactly as supplied.
	if endpointOverride != "" {
		if err := sup.SetEndpoint(endpointOverride); err != nil {
			return err
		}
	}

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Listen, err)
	}

	srv := sphttp.NewServer(ctx, log.With("sys", "http"), sphttp.ServerConfig{
		Listener: ln,
		Source:   sup,
	})
	log.Info("Serving status", "addr", ln.Addr().String())

	<-ctx.Done()
	srv.Wait()
	return nil
}
