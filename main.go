package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kabili207/mesh-inbox/internal/appinit"
	"github.com/kabili207/mesh-inbox/internal/config"
	"github.com/kabili207/mesh-inbox/internal/connectors"
	"github.com/kabili207/mesh-inbox/internal/hub"
	"github.com/kabili207/mesh-inbox/internal/link"
	"github.com/kabili207/mesh-inbox/internal/notify"
	"github.com/kabili207/mesh-inbox/internal/observers"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configPath  string
	envPath     string
	verbose     bool
	interactive bool
)

var rootCmd = &cobra.Command{
	Use:          "mesh-inbox",
	Short:        "Receive mesh text messages and group invitations",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, newLogger())
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Configuration file")
	rootCmd.Flags().StringVar(&envPath, "env-file", ".env", "Optional dotenv file")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.Flags().BoolVar(&interactive, "interactive", true, "Prompt for settings when the configuration file is missing")
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()
}

func buildConnectors(cfg *config.Configuration, logger zerolog.Logger) []connectors.MeshConnector {
	var meshConnectors []connectors.MeshConnector
	if cfg.UDP.Enabled {
		meshConnectors = append(meshConnectors, connectors.NewUDPMessageHandler(logger))
	}
	if cfg.Broker != "" {
		meshConnectors = append(meshConnectors, connectors.NewMqttConnector(connectors.MqttOptions{
			Broker:    cfg.Broker,
			Username:  cfg.Username,
			Password:  cfg.Password,
			RootTopic: cfg.RootTopic,
		}, logger))
	}
	return meshConnectors
}

func run(ctx context.Context, logger zerolog.Logger) error {
	if err := config.LoadEnv(envPath); err != nil {
		return err
	}

	cfg, err := config.Load(configPath, interactive)
	if err != nil {
		return err
	}

	meshLink := link.New(buildConnectors(cfg, logger), link.Options{
		DedupTTL:      time.Duration(cfg.DedupTTL),
		RevokedTokens: cfg.RevokedTokens,
	}, logger)

	if err := appinit.SetApplicationToken(ctx, meshLink, cfg.AppToken); err != nil {
		if errors.Is(err, link.ErrInvalidCredential) {
			logger.Error().Err(err).Msg("The application token was rejected")
		}
		return err
	}

	notifier := notify.Multi{
		notify.NewConsole(os.Stdout, notify.DefaultWidth),
		notify.NewLog(logger),
	}

	messageHub := hub.NewHub(meshLink, notifier, logger, hub.WithQueueSize(cfg.Hub.QueueSize))
	messageHub.AddObserver(observers.NewInbox(cfg.Inbox.Capacity, os.Stdout))

	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name("mesh-inbox"))
		if err != nil {
			return err
		}
		defer nc.Close()
		messageHub.AddObserver(observers.NewNATSBridge(nc, cfg.NATS.Subject, logger))
		logger.Info().Str("url", cfg.NATS.URL).Str("subject", cfg.NATS.Subject).Msg("Publishing messages to NATS")
	}

	messageHub.StartListening()

	if err := meshLink.Start(); err != nil {
		meshLink.Stop()
		messageHub.Stop()
		return err
	}

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	meshLink.Stop()
	messageHub.Stop()
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
