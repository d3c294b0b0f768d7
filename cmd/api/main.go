package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nimasrn/campaign-gateway/internal/compose"
	"github.com/nimasrn/campaign-gateway/internal/config"
	"github.com/nimasrn/campaign-gateway/internal/handlers"
	"github.com/nimasrn/campaign-gateway/internal/queue"
	"github.com/nimasrn/campaign-gateway/internal/repository"
	"github.com/nimasrn/campaign-gateway/internal/services"
	xhttp "github.com/nimasrn/campaign-gateway/pkg/http"
	"github.com/nimasrn/campaign-gateway/pkg/logger"
	"github.com/nimasrn/campaign-gateway/pkg/pg"
	"github.com/nimasrn/campaign-gateway/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	// transport (tcp for now)
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 5))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := false
	if config.Get().AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	dispatchQ, err := queue.New(redisAdap, queue.Config{
		Name:              config.Get().QueueName,
		ConsumerGroup:     config.Get().QueueConsumerGroup,
		MaxRetries:        config.Get().QueueMaxRetries,
		VisibilityTimeout: config.Get().QueueVisibilityTimeout,
		PollInterval:      config.Get().QueuePollInterval,
		BatchSize:         config.Get().QueueBatchSize,
		MaxLen:            config.Get().QueueMaxLen,
		EnableDLQ:         config.Get().QueueEnableDLQ,
	})
	if err != nil {
		logger.Error("failed creating dispatch queue", "error", err)
		return
	}

	webhookQ, err := queue.New(redisAdap, queue.Config{
		Name:          config.Get().WebhookQueueName,
		ConsumerGroup: config.Get().WebhookQueueConsumerGroup,
		MaxRetries:    config.Get().QueueMaxRetries,
		MaxLen:        config.Get().QueueMaxLen,
		EnableDLQ:     config.Get().QueueEnableDLQ,
	})
	if err != nil {
		logger.Error("failed creating webhook queue", "error", err)
		return
	}

	campaignRepo := repository.NewCampaignRepository(db)
	subscriberRepo := repository.NewSubscriberRepository(db)
	templateRepo := repository.NewEmailTemplateRepository(db)
	emailLogRepo := repository.NewEmailLogRepository(db)

	composer := compose.New(compose.Identity{
		Email: config.Get().FromEmail,
		Name:  config.Get().FromName,
	}, config.Get().UnsubscribeBaseURL)

	// services; scheduled sends are armed by the dispatcher process, which
	// re-scans due campaigns, so no scheduler here.
	campaignService := services.NewCampaignService(campaignRepo, templateRepo, emailLogRepo, nil, dispatchQ)
	subscriberService := services.NewSubscriberService(subscriberRepo)
	templateService := services.NewTemplateService(templateRepo, composer)
	healthService := services.NewHealthService()

	// v1 handlers
	campaignHandler := handlers.NewCampaignHandler(campaignService)
	subscriberHandler := handlers.NewSubscriberHandler(subscriberService)
	templateHandler := handlers.NewTemplateHandler(templateService)
	emailLogHandler := handlers.NewEmailLogHandler(emailLogRepo)
	webhookHandler := handlers.NewWebhookHandler(webhookQ)
	healthHandler := handlers.NewHealthHandler(healthService)

	g := s.Router.Group("/api/v1")
	handlers.RegisterCampaignRoutes(g, campaignHandler)
	handlers.RegisterSubscriberRoutes(g, subscriberHandler)
	handlers.RegisterTemplateRoutes(g, templateHandler)
	handlers.RegisterEmailLogRoutes(g, emailLogHandler)
	handlers.RegisterWebhookRoutes(g, webhookHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		var err = s.ListenAndServe(config.Get().HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	select {
	case <-c:
		s.Shutdown()
	}
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
