package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"botdesk/internal/ai"
	"botdesk/internal/cache"
	"botdesk/internal/config"
	"botdesk/internal/logger"
	"botdesk/internal/model"
	mysqlClient "botdesk/internal/platform/mysql"
	"botdesk/internal/platform/objectstore"
	rabbitmqClient "botdesk/internal/platform/rabbitmq"
	redisClient "botdesk/internal/platform/redis"
	"botdesk/internal/worker"
)

type App struct {
	Config      *config.Config
	Log         *logger.ZapLogger
	MySQL       *gorm.DB
	Redis       *redis.Client
	MQConn      *amqp.Connection
	Store       *objectstore.S3Store
	Transcripts *cache.TranscriptCache
	AI          *ai.AskClient
	Jobs        *rabbitmqClient.JobPublisher
	IndexWorker *worker.DocumentIndexWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	log, err := logger.New(cfg.Log.File, cfg.IsProd())
	if err != nil {
		return nil, fmt.Errorf("init logger failed: %w", err)
	}
	app := &App{Config: cfg, Log: log, StartedAt: time.Now()}

	if err := app.connect(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}

	app.Transcripts = cache.NewTranscriptCache(
		app.Redis,
		time.Duration(cfg.Redis.TranscriptTTLSeconds)*time.Second,
		time.Duration(cfg.Redis.TranscriptDirtyTTLSeconds)*time.Second,
	)
	app.AI = ai.NewAskClient(cfg.AI.BaseURL, time.Duration(cfg.AI.ProcessTimeoutSeconds)*time.Second)
	app.Jobs = rabbitmqClient.NewJobPublisher(app.MQConn, cfg.RabbitMQ.DocumentIndexQueue)

	app.IndexWorker = worker.NewDocumentIndexWorker(
		app.MQConn,
		app.AI,
		cfg.RabbitMQ.DocumentIndexQueue,
		time.Duration(cfg.AI.ProcessTimeoutSeconds)*time.Second,
		log,
	)
	if err := app.IndexWorker.Start(ctx); err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("start document index worker failed: %w", err)
	}

	log.Info("bootstrap", "application ready", map[string]interface{}{
		"env":  cfg.App.Env,
		"addr": cfg.HTTPAddr(),
	})
	return app, nil
}

func (a *App) connect(ctx context.Context) error {
	var err error
	a.MySQL, err = mysqlClient.New(ctx, a.Config.MySQLDSN(), a.Log.Zap())
	if err != nil {
		return err
	}
	if err := a.MySQL.AutoMigrate(
		&model.User{},
		&model.Chatbot{},
		&model.Document{},
		&model.Conversation{},
		&model.Session{},
		&model.QRScan{},
		&model.PlatformSetting{},
	); err != nil {
		return fmt.Errorf("auto migrate tables failed: %w", err)
	}

	if a.Redis, err = redisClient.New(ctx, a.Config.Redis); err != nil {
		return err
	}
	if a.MQConn, err = rabbitmqClient.New(ctx, a.Config.RabbitMQ.URL, a.Config.App.Name); err != nil {
		return err
	}
	if a.Store, err = objectstore.NewS3Store(ctx, a.Config.Storage); err != nil {
		return err
	}
	return nil
}

func (a *App) Close() error {
	var closeErr error
	if a.IndexWorker != nil {
		a.IndexWorker.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	if a.Log != nil {
		_ = a.Log.Sync()
	}
	return closeErr
}
