// Package maintenance собирает фоновое приложение обслуживания:
// периодический проход завершает истекшие подписки, рассылает
// напоминания и отключает исчерпанные акции и гранты.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/entitlement-engine/internal/cache"
	"github.com/magabrotheeeer/entitlement-engine/internal/config"
	"github.com/magabrotheeeer/entitlement-engine/internal/rabbitmq"
	maintenanceservice "github.com/magabrotheeeer/entitlement-engine/internal/services/maintenance"
	"github.com/magabrotheeeer/entitlement-engine/internal/storage/repository"
)

// App представляет приложение обслуживания.
type App struct {
	maintenanceService *maintenanceservice.Service
	sweepInterval      time.Duration
	conn               *amqp.Connection
	ch                 *amqp.Channel
	db                 *repository.Storage
	logger             *slog.Logger
}

func waitForDB(db *repository.Storage) error {
	for attempt := 0; attempt < 10; attempt++ {
		err := repository.CheckDatabaseReady(db)
		if err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries")
}

// New создает новый экземпляр приложения обслуживания.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		closeResources(nil, conn, logger)
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}
	notifier := rabbitmq.NewNotifier(ch, "billing")

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}

	if err := waitForDB(db); err != nil {
		closeResources(ch, conn, logger)
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	maintenanceService := maintenanceservice.New(db, cacheRedis, notifier, logger, cfg.TrialExpiringSoonDays)

	return &App{
		maintenanceService: maintenanceService,
		sweepInterval:      cfg.SweepInterval,
		conn:               conn,
		ch:                 ch,
		db:                 db,
		logger:             logger,
	}, nil
}

func closeResources(ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", slog.Any("err", err))
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", slog.Any("err", err))
		}
	}
}

// Run запускает периодический проход обслуживания.
func (a *App) Run(ctx context.Context) error {
	go a.maintenanceService.Run(ctx, a.sweepInterval)

	<-ctx.Done()

	a.logger.Info("shutting down maintenance service")

	closeResources(a.ch, a.conn, a.logger)
	if err := a.db.DB.Close(); err != nil {
		a.logger.Error("failed to close database", slog.Any("err", err))
	}

	return nil
}
