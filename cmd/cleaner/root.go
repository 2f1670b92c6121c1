package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"remoteworks-cleaner/internal/app"
	"remoteworks-cleaner/internal/models/ports"
	"remoteworks-cleaner/internal/pkg/config"
	"remoteworks-cleaner/internal/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// deps - точки подмены для тестов
type deps struct {
	loadConfig func() (*config.Config, error)
	newLogger  func(verbose bool) (*zap.Logger, error)
	openApp    func(ctx context.Context, cfg *config.Config, logger *zap.Logger, subs ...ports.ProgressSubscriber) (*app.App, error)
}

func defaultDeps() deps {
	return deps{
		loadConfig: config.LoadConfig,
		newLogger:  logger.NewCLILogger,
		openApp:    app.New,
	}
}

// session - окружение одной команды
type session struct {
	cfg    *config.Config
	logger *zap.Logger
	app    *app.App
}

func (s *session) close() {
	s.app.Close()
	_ = s.logger.Sync()
}

type rootOptions struct {
	verbose bool
	timeout time.Duration
}

func newRootCmd(d deps) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "cleaner",
		Short: "Maintenance tasks for the marketplace datastore",
		Long: `Maintenance tasks for the marketplace datastore.

Available subcommands:
  notifications  - Delete stale notifications, optionally with stale projects
  collection     - Delete stale documents from any collection with cascade rules
  set-admin-role - Grant a role to the user with the given email`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Write info-level logs to stderr")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 0, "Abort the run after this duration (0 = no limit)")

	setup := func(cmd *cobra.Command) (*session, context.Context, context.CancelFunc, error) {
		return start(cmd, d, opts)
	}

	cmd.AddCommand(
		newNotificationsCmd(setup),
		newCollectionCmd(setup),
		newSetAdminRoleCmd(setup),
	)
	return cmd
}

type setupFunc func(cmd *cobra.Command) (*session, context.Context, context.CancelFunc, error)

// start загружает конфигурацию, создает логгер и подключается к хранилищу
func start(cmd *cobra.Command, d deps, opts *rootOptions) (*session, context.Context, context.CancelFunc, error) {
	cfg, err := d.loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	log, err := d.newLogger(opts.verbose)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create logger: %w", err)
	}

	// Прерывание по Ctrl+C отменяет задачу; уже зафиксированные пакеты остаются
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	cancel := stop
	if opts.timeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, opts.timeout)
		cancel = func() {
			cancelTimeout()
			stop()
		}
	}

	a, err := d.openApp(ctx, cfg, log, consoleProgress(cmd.OutOrStdout()))
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}

	return &session{cfg: cfg, logger: log, app: a}, ctx, cancel, nil
}
