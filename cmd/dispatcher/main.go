package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"github.com/nimasrn/campaign-gateway/internal/compose"
	"github.com/nimasrn/campaign-gateway/internal/config"
	"github.com/nimasrn/campaign-gateway/internal/delivery"
	"github.com/nimasrn/campaign-gateway/internal/dispatch"
	"github.com/nimasrn/campaign-gateway/internal/queue"
	"github.com/nimasrn/campaign-gateway/internal/repository"
	"github.com/nimasrn/campaign-gateway/internal/scheduler"
	"github.com/nimasrn/campaign-gateway/internal/webhook"
	"github.com/nimasrn/campaign-gateway/pkg/logger"
	"github.com/nimasrn/campaign-gateway/pkg/pg"
	"github.com/nimasrn/campaign-gateway/pkg/prom"
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
		ConsumerName:      config.Get().QueueConsumerName,
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

	client, err := delivery.New(config.Get())
	if err != nil {
		logger.Error("failed to create delivery client", "error", err)
		return
	}

	campaignRepo := repository.NewCampaignRepository(db)
	subscriberRepo := repository.NewSubscriberRepository(db)
	emailLogRepo := repository.NewEmailLogRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)

	composer := compose.New(compose.Identity{
		Email: config.Get().FromEmail,
		Name:  config.Get().FromName,
	}, config.Get().UnsubscribeBaseURL)

	// One limiter for the whole process: concurrent campaigns share the
	// provider's rate budget.
	limiter := rate.NewLimiter(rate.Limit(config.Get().EmailRateLimit), 1)
	lease := dispatch.NewSendLease(redisAdap, 0)

	engine := dispatch.NewEngine(
		campaignRepo,
		subscriberRepo,
		emailLogRepo,
		db,
		lease,
		composer,
		client,
		limiter,
		dispatch.Config{
			BatchSize:       config.Get().EmailBatchSize,
			RateLimit:       config.Get().EmailRateLimit,
			InterBatchPause: config.Get().EmailInterBatchPause,
		},
	)

	dispatchService := dispatch.NewService(engine, dispatchQ, 4)

	webhookProcessor := webhook.NewProcessor(emailLogRepo, subscriberRepo, webhookEventRepo)

	// Scheduled campaigns publish their own trigger when due.
	sched := scheduler.New(func(campaignID int64) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := dispatchQ.PublishJSON(ctx, dispatch.Trigger{CampaignID: campaignID}, map[string]string{
			"type": "campaign_send",
		}); err != nil {
			logger.Error("failed to publish scheduled trigger", "campaign_id", campaignID, "error", err)
		}
	})

	seedScheduler := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		// A generous horizon: everything due in the next scan window gets an
		// in-memory timer; re-arming an existing one is a no-op in effect.
		due, err := campaignRepo.ListDue(ctx, time.Now().Add(2*time.Minute))
		if err != nil {
			logger.Error("failed to list due campaigns", "error", err)
			return
		}
		for _, c := range due {
			if c.ScheduledAt != nil {
				sched.Schedule(c.ID, *c.ScheduledAt)
			}
		}
	}
	seedScheduler()

	crontab := cron.New()
	if _, err := crontab.AddFunc("@every 1m", seedScheduler); err != nil {
		logger.Error("failed to register scheduler scan", "error", err)
		return
	}
	if _, err := crontab.AddFunc("@daily", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		cutoff := time.Now().AddDate(0, 0, -config.Get().WebhookRetentionDays)
		purged, err := webhookEventRepo.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			logger.Error("webhook event cleanup failed", "error", err)
			return
		}
		logger.Info("webhook events purged", "count", purged, "cutoff", cutoff)
	}); err != nil {
		logger.Error("failed to register webhook cleanup", "error", err)
		return
	}
	crontab.Start()

	var hostname string
	hostname, err = os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	err = prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace)
	if err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}

	go func() {
		prom.ListenAndServer(":9100", "/metrics")
	}()

	if err := dispatchService.Start(); err != nil {
		logger.Error("failed to start dispatch service", "error", err)
		return
	}
	if err := webhookQ.Consume(webhookProcessor.Handler); err != nil {
		logger.Error("failed to start webhook consumer", "error", err)
		return
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	select {
	case <-c:
		crontab.Stop()
		sched.Stop()
		if err := webhookQ.Stop(dispatch.ShutdownTimeout); err != nil {
			logger.Error("error stopping webhook queue", "error", err)
		}
		dispatchService.Stop()
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
