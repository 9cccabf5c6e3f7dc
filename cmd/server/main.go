package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chatme/relay-server/internal/app"
	"github.com/chatme/relay-server/internal/config"
	"github.com/chatme/relay-server/internal/log"
)

func main() {
	var (
		configPath  string
		addr        string
		logLevel    string
		dbPath      string
		ringTimeout time.Duration
	)

	rootCmd := &cobra.Command{
		Use:   "relay-server",
		Short: "Chat and call-signaling relay server",
		Long: "relay-server connects clients over websockets, routes chat messages " +
			"between users and groups, and relays peer-to-peer call signaling.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.New(logLevel)

			cfg, path, err := config.Load(logger, configPath)
			if err != nil {
				return err
			}
			cfg.UpdateFrom(config.Config{
				Addr:         addr,
				LogLevel:     logLevel,
				DatabasePath: dbPath,
				RingTimeout:  ringTimeout,
			})

			logger = log.New(cfg.LogLevel)
			logger.Info().Str("config", path).Str("addr", cfg.Addr).Msg("starting relay server")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(&cfg, logger)
			if err != nil {
				return err
			}

			if err := application.Run(ctx); err != nil {
				return err
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	rootCmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.Flags().StringVar(&dbPath, "db", "", "path to the sqlite database")
	rootCmd.Flags().DurationVar(&ringTimeout, "ring-timeout", 0, "how long a call may ring before failing (0 = config default)")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
