package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/iRayau/AI-chat/internal/ai"
	"github.com/iRayau/AI-chat/internal/config"
	"github.com/iRayau/AI-chat/internal/model"
	postgresClient "github.com/iRayau/AI-chat/internal/platform/postgres"
	rabbitmqClient "github.com/iRayau/AI-chat/internal/platform/rabbitmq"
	redisClient "github.com/iRayau/AI-chat/internal/platform/redis"
	"github.com/iRayau/AI-chat/internal/search"
)

// App holds the collaborators resolved once at startup. Capabilities are
// explicit: a nil field means the provider is unconfigured and every caller
// degrades instead of failing.
type App struct {
	Config *config.Config
	DB     *gorm.DB
	Redis  *redis.Client
	MQConn *amqp.Connection
	LLM    *ai.Client
	Search *search.Client

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	app := &App{
		Config:    cfg,
		StartedAt: time.Now(),
	}

	if cfg.StoreConfigured() {
		db, err := postgresClient.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		if err := db.AutoMigrate(&model.User{}, &model.Chat{}, &model.Message{}); err != nil {
			return nil, fmt.Errorf("auto migrate tables failed: %w", err)
		}
		app.DB = db
	} else {
		log.Printf("DATABASE_URL not set, persistence disabled")
	}

	if cfg.CacheConfigured() {
		redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		app.Redis = redisCli
	}

	if cfg.BrokerConfigured() {
		mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
		if err != nil {
			return nil, err
		}
		app.MQConn = mqConn
	}

	if cfg.LLMConfigured() {
		app.LLM = ai.NewClient(ai.Config{
			BaseURL:    cfg.LLM.BaseURL,
			APIKey:     cfg.LLM.APIKey,
			Model:      cfg.LLM.Model,
			TitleModel: cfg.LLM.TitleModel,
		})
	} else {
		log.Printf("OPENAI_API_KEY not set, completion provider disabled")
	}

	app.Search = search.NewClient(search.Config{
		APIKey:   cfg.Search.APIKey,
		BaseURL:  cfg.Search.BaseURL,
		Location: cfg.Search.Location,
		Country:  cfg.Search.Country,
		Language: cfg.Search.Language,
	})
	if !cfg.SearchConfigured() {
		log.Printf("SERPER_API_KEY not set, search falls back to placeholder results")
	}

	return app, nil
}

func (a *App) Close() error {
	var closeErr error
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
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
