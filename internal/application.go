package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rocketscienceinc/gridarbiter/internal/config"
	"github.com/rocketscienceinc/gridarbiter/internal/repository"
	"github.com/rocketscienceinc/gridarbiter/internal/repository/storage"
	"github.com/rocketscienceinc/gridarbiter/internal/repository/storage/sqlite"
	"github.com/rocketscienceinc/gridarbiter/internal/usecase"
	"github.com/rocketscienceinc/gridarbiter/transport/rest"
	"github.com/rocketscienceinc/gridarbiter/transport/websocket"
)

var (
	ErrAddrNotFound   = errors.New("redis address string is empty")
	ErrUnknownArchive = errors.New("unknown archive driver")
)

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	matches, closeArchive, err := openArchive(ctx, log, conf.Archive)
	if err != nil {
		return err
	}
	defer closeArchive()

	registry := usecase.NewRegistry(logger, conf.Game.Settings(), conf.Game.IdleTimeout, matches)
	go registry.Run(ctx, conf.Game.ReapInterval)

	// run HTTP server
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		handlers := rest.NewHandlers(logger, matches, registry)
		if httpErr := rest.Start(ctx, logger, conf.HTTPPort, rest.NewRouter(handlers, conf.AllowedOrigins)); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	// run Websocket server
	wsErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting WebSocket server", "port", conf.SocketPort, "mode", conf.Game.Mode)
		wsServer := websocket.New(logger, registry, conf.AllowedOrigins)
		if wsErr := wsServer.Start(ctx, conf.SocketPort); wsErr != nil {
			log.Error("WebSocket server error", "error", wsErr)
			wsErrCh <- wsErr
		}
	}()

	select {
	case err = <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case err = <-wsErrCh:
		return fmt.Errorf("WebSocket server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		return nil
	}
}

// openArchive - builds the match repository selected by the archive driver.
func openArchive(ctx context.Context, log *slog.Logger, conf config.Archive) (repository.MatchRepository, func(), error) {
	switch conf.Driver {
	case config.ArchiveMemory, "":
		return repository.NewMemoryMatchRepository(conf.RecentLimit), func() {}, nil

	case config.ArchiveRedis:
		redisAddrString := conf.Redis.GetRedisAddr()
		if redisAddrString == "" {
			return nil, nil, ErrAddrNotFound
		}

		redisStorage, err := storage.NewRedisStorage(ctx, redisAddrString)
		if err != nil {
			return nil, nil, fmt.Errorf("could not connect to redis storage: %w", err)
		}

		closer := func() {
			if err := redisStorage.Close(); err != nil {
				log.Error("could not close redis storage", "error", err)
			}
		}

		return repository.NewMatchRepository(redisStorage, conf.TTL, conf.RecentLimit), closer, nil

	case config.ArchiveSQLite:
		sqliteStorage, err := sqlite.New(conf.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("could not open sqlite storage: %w", err)
		}

		if err = sqliteStorage.Init(ctx); err != nil {
			_ = sqliteStorage.Close()
			return nil, nil, fmt.Errorf("could not init sqlite storage: %w", err)
		}

		closer := func() {
			if err := sqliteStorage.Close(); err != nil {
				log.Error("could not close sqlite storage", "error", err)
			}
		}

		return repository.NewSQLiteMatchRepository(sqliteStorage.Connection), closer, nil

	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownArchive, conf.Driver)
	}
}
