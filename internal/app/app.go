// Package app wires the relay together: persistence, the storage provider,
// the Telegram client, the transfer orchestrator, the bot handler and the
// optional admin API. It also owns signal handling and graceful shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/megarelay/internal/admin"
	"github.com/dmitrijs2005/megarelay/internal/bot"
	"github.com/dmitrijs2005/megarelay/internal/config"
	"github.com/dmitrijs2005/megarelay/internal/credentials"
	"github.com/dmitrijs2005/megarelay/internal/cryptox"
	"github.com/dmitrijs2005/megarelay/internal/dbx"
	"github.com/dmitrijs2005/megarelay/internal/filex"
	"github.com/dmitrijs2005/megarelay/internal/logging"
	"github.com/dmitrijs2005/megarelay/internal/media"
	"github.com/dmitrijs2005/megarelay/internal/migrations"
	"github.com/dmitrijs2005/megarelay/internal/storage"
	"github.com/dmitrijs2005/megarelay/internal/telegram"
	"github.com/dmitrijs2005/megarelay/internal/transfer"
	"github.com/dmitrijs2005/megarelay/internal/users"
)

// ShutdownTimeout bounds how long queued jobs and the admin API get to wind
// down after a stop signal.
const ShutdownTimeout = 30 * time.Second

// openPostgres is a test seam for dbx.OpenPostgres.
var openPostgres = dbx.OpenPostgres

type App struct {
	config *config.Config
	logger logging.Logger
}

func NewApp(c *config.Config, l logging.Logger) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &App{config: c, logger: l}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// repositories holds the persistence backends selected by StorageBackend.
type repositories struct {
	credentials credentials.Repository
	users       users.Repository
	close       func() error
}

func (app *App) openRepositories(ctx context.Context) (*repositories, error) {
	var repos *repositories

	switch app.config.StorageBackend {
	case config.BackendPostgres:
		db, err := openPostgres(ctx, app.config.DatabaseDSN, migrations.FS)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		repos = &repositories{
			credentials: credentials.NewPostgresRepository(db),
			users:       users.NewPostgresRepository(db),
			close:       db.Close,
		}
	default:
		repos = &repositories{
			credentials: credentials.NewJSONRepository(app.config.AccountsFile),
			users:       users.NewJSONRepository(app.config.UsersFile),
			close:       func() error { return nil },
		}
	}

	if app.config.MasterPassword != "" {
		sealer, err := cryptox.NewSealer(app.config.MasterPassword)
		if err != nil {
			_ = repos.close()
			return nil, fmt.Errorf("sealer init error: %w", err)
		}
		repos.credentials = credentials.NewSealedRepository(repos.credentials, sealer)
	} else {
		app.logger.Warn(ctx, "master password not set, storage secrets are persisted unsealed")
	}

	return repos, nil
}

// prepareWorkDir creates the download directory and clears files left over
// from a previous run.
func (app *App) prepareWorkDir(ctx context.Context) (string, error) {
	dir, err := filex.EnsureDir(app.config.WorkDir)
	if err != nil {
		return "", fmt.Errorf("work dir: %w", err)
	}

	n, err := filex.RemoveStale(dir, media.LocalPrefix)
	if err != nil {
		app.logger.Warn(ctx, "stale file cleanup failed", "dir", dir, "error", err)
	} else if n > 0 {
		app.logger.Info(ctx, "removed stale downloads", "dir", dir, "count", n)
	}
	return dir, nil
}

func (app *App) s3Config() storage.S3Config {
	return storage.S3Config{
		Region:       app.config.S3Region,
		BaseEndpoint: app.config.S3BaseEndpoint,
		Bucket:       app.config.S3Bucket,
		UsePathStyle: app.config.S3UsePathStyle,
		LinkTTL:      app.config.ShareLinkTTL,
	}
}

func (app *App) orchestratorOptions(workDir string) transfer.Options {
	return transfer.Options{
		WorkDir:          workDir,
		BatchSize:        app.config.BatchSize,
		BatchCooldown:    app.config.BatchCooldown,
		ProgressInterval: app.config.ProgressInterval,
		MaxRetries:       app.config.MaxRetries,
		RetryDelay:       app.config.RetryDelay,
		HistorySize:      app.config.HistorySize,
	}
}

// Run starts every component and blocks until a stop signal arrives or one
// of them fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "backend", app.config.StorageBackend)

	app.initSignalHandler(cancelFunc)

	workDir, err := app.prepareWorkDir(ctx)
	if err != nil {
		return err
	}

	repos, err := app.openRepositories(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := repos.close(); err != nil {
			app.logger.Error(ctx, "repository close failed", "error", err)
		}
	}()

	provider := storage.NewS3Provider(app.s3Config())

	store, err := credentials.Open(ctx, repos.credentials, provider, app.logger)
	if err != nil {
		return err
	}
	seen, err := users.Open(ctx, repos.users, app.logger)
	if err != nil {
		return err
	}

	tg, err := telegram.New(app.config.BotToken, app.config.TelegramEndpoint, nil, app.logger)
	if err != nil {
		return err
	}
	app.logger.Info(ctx, "authorized on telegram", "username", tg.Username())

	orch := transfer.NewOrchestrator(app.orchestratorOptions(workDir), tg, store, provider, app.logger)
	handler := bot.NewHandler(tg, orch, store, seen, bot.Options{
		AdminIDs:     app.config.AdminUserIDs,
		LogChannelID: app.config.LogChannelID,
	}, app.logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := handler.Run(gctx, tg.Updates(gctx)); err != nil {
			return err
		}
		if gctx.Err() == nil {
			return errors.New("telegram update stream stopped")
		}
		return nil
	})

	if app.config.AdminAddr != "" {
		srv := admin.NewServer(app.config.AdminAddr, orch, seen, app.logger, app.config.AdminSecret)
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		app.logger.Info(ctx, "shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return orch.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		app.logger.Error(ctx, "app stopped with error", "error", err)
		return err
	}

	app.logger.Info(context.Background(), "app stopped")
	return nil
}
