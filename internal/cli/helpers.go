package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lherron/amyq/internal/cli/appctx"
	"github.com/lherron/amyq/internal/config"
	"github.com/lherron/amyq/internal/db"
	"github.com/lherron/amyq/internal/lock"
	"github.com/lherron/amyq/internal/merge"
	"github.com/lherron/amyq/internal/publish"
	"github.com/lherron/amyq/internal/render"
	"github.com/lherron/amyq/internal/webhooks"
)

// ExitError carries a process exit code through cobra's error return.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode returns the exit code err asks for, 1 for any other error and
// 0 for nil.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

func exitError(code int, err error) error {
	return &ExitError{Code: code, Err: err}
}

// newRenderer honors --output and --porcelain, falling back to the
// configured output format.
func newRenderer(app *appctx.App, cmd *cobra.Command) (*render.Renderer, error) {
	format := app.Config.Output
	if f := cmd.Flag("output"); f != nil && f.Changed {
		format = f.Value.String()
	}
	parsed, err := render.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	porcelain := false
	if f := cmd.Flag("porcelain"); f != nil {
		porcelain = f.Value.String() == "true"
	}
	return render.NewRenderer(cmd.OutOrStdout(), render.Options{Format: parsed, Porcelain: porcelain}), nil
}

// newLocker builds the merge locker named by cfg.LockBackend. The returned
// close function releases any client connection.
func newLocker(cfg *config.Config, database *db.DB) (lock.Locker, func() error, error) {
	noop := func() error { return nil }
	switch cfg.LockBackend {
	case "", config.LockBackendSQLite:
		return lock.NewSQLite(database.DB, lock.Owner("amyq")), noop, nil
	case config.LockBackendMemory:
		return lock.NewMemory(), noop, nil
	case config.LockBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return lock.NewRedis(client, ""), client.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown lock backend %q", cfg.LockBackend)
}

// newEngine wires a merge engine from configuration: the configured locker
// plus Kafka and webhook notifiers when they are configured. The cleanup function must be
// called once the engine is no longer used.
func newEngine(ctx context.Context, cfg *config.Config, database *db.DB, logger *zap.Logger) (*merge.Engine, func(), error) {
	locker, closeLocker, err := newLocker(cfg, database)
	if err != nil {
		return nil, nil, err
	}

	opts := []merge.Option{
		merge.WithLocker(locker),
		merge.WithLogger(logger),
	}
	if cfg.LockTTL > 0 {
		opts = append(opts, merge.WithLockTTL(cfg.LockTTL))
	}

	var notifiers merge.Notifiers
	var producer *publish.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer, err = publish.NewProducer(publish.ProducerConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		}, logger)
		if err != nil {
			_ = closeLocker()
			return nil, nil, err
		}
		notifiers = append(notifiers, publish.NewEmitter(producer, logger))
	}
	if len(cfg.WebhookURLs) > 0 {
		notifiers = append(notifiers, webhooks.NewDispatcher(cfg.WebhookURLs, logger))
	}
	if len(notifiers) > 0 {
		opts = append(opts, merge.WithNotifier(notifiers))
	}

	cleanup := func() {
		if producer != nil {
			if err := producer.Close(); err != nil {
				logger.Warn("failed to close kafka producer", zap.Error(err))
			}
		}
		if err := closeLocker(); err != nil {
			logger.Warn("failed to close lock backend", zap.Error(err))
		}
	}

	engine, err := merge.NewEngine(ctx, database.DB, merge.DefaultRegistry(), opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return engine, cleanup, nil
}
