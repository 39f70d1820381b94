package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lherron/amyq/internal/config"
	"github.com/lherron/amyq/internal/db"
	"github.com/lherron/amyq/internal/logging"
	"github.com/lherron/amyq/internal/server"
	"github.com/lherron/amyq/internal/tracing"
)

var rootDaemonCmd = &cobra.Command{
	Use:   "amyqd",
	Short: "HTTP API for comparing and merging workshop records",
	Long: `amyqd serves the merge engine over HTTP:

  GET  /v1/health    liveness and database status
  POST /v1/compare   {kind, base, other}
  POST /v1/merge     a merge plan; base and other accept any selector
  GET  /metrics      Prometheus metrics

Requests to /v1/compare and /v1/merge need "Authorization: Bearer <token>"
when a token is configured.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runDaemon,
}

var (
	daemonAddr         string
	daemonToken        string
	daemonLogLevel     string
	daemonOTLPInsecure bool
)

// ExecuteDaemon runs the daemon root command
func ExecuteDaemon() error {
	return rootDaemonCmd.Execute()
}

func init() {
	rootDaemonCmd.Flags().String("db", "", "Path to database file (overrides AMYQ_DB_PATH)")
	rootDaemonCmd.Flags().StringVar(&daemonAddr, "addr", "", "Listen address (overrides AMYQD_ADDR)")
	rootDaemonCmd.Flags().StringVar(&daemonToken, "token", "", "Shared bearer token (overrides AMYQD_TOKEN)")
	rootDaemonCmd.Flags().StringVar(&daemonLogLevel, "log-level", "info", "Log level unless AMYQ_LOG_LEVEL is set")
	rootDaemonCmd.Flags().BoolVar(&daemonOTLPInsecure, "otlp-insecure", false, "Send traces to AMYQ_OTLP_ENDPOINT without TLS")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if dbPath := cmd.Flag("db").Value.String(); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if daemonAddr != "" {
		cfg.DaemonAddr = daemonAddr
	}
	if daemonToken != "" {
		cfg.DaemonToken = daemonToken
	}

	level := daemonLogLevel
	if os.Getenv("AMYQ_LOG_LEVEL") != "" {
		level = cfg.LogLevel
	}
	logger, err := logging.New(logging.Config{Level: level, Format: cfg.LogFormat})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, "amyqd", cfg.OTLPEndpoint, daemonOTLPInsecure)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("failed to flush traces", zap.Error(err))
		}
	}()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()
	if err := database.RequiresMigrationError(); err != nil {
		return err
	}

	engine, cleanup, err := newEngine(ctx, cfg, database, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if cfg.DaemonToken == "" {
		logger.Warn("no daemon token configured; merge endpoints are unauthenticated")
	}

	srv, err := server.New(server.Options{
		DB:           database,
		Engine:       engine,
		Logger:       logger,
		Token:        cfg.DaemonToken,
		DefaultActor: cfg.GetActorID(),
		Version:      Version,
	})
	if err != nil {
		return err
	}
	return srv.Start(ctx, cfg.DaemonAddr)
}
