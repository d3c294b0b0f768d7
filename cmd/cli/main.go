package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nimasrn/campaign-gateway/internal/config"
	"github.com/nimasrn/campaign-gateway/internal/queue"
	"github.com/nimasrn/campaign-gateway/internal/repository"
	"github.com/nimasrn/campaign-gateway/internal/services"
	"github.com/nimasrn/campaign-gateway/pkg/logger"
	"github.com/nimasrn/campaign-gateway/pkg/pg"
	"github.com/nimasrn/campaign-gateway/pkg/redis"
)

// Usage:
//
//	cli migrate [--dir=./migrations] [--env=.env]
//	cli send --id=<campaign_id> [--test]
//	cli import --file=subscribers.csv
//	cli stats --id=<campaign_id>
func main() {
	err := config.Load(getEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
	}

	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "migrate":
		runMigrate()
	case "send":
		runSend()
	case "import":
		runImport()
	case "stats":
		runStats()
	default:
		fmt.Println("usage: cli <migrate|send|import|stats> [flags]")
	}
}

func runMigrate() {
	pgConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}
	err := pg.Migrate(pgConf, getMigrationPath())
	if err != nil {
		logger.Error("migration: error running migrations", "error", err)
	}
}

func runSend() {
	id, err := argInt64("--id=")
	if err != nil {
		logger.Error("send: --id=<campaign_id> is required", "error", err)
		return
	}
	testMode := argPresent("--test")

	db, err := connectDB()
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}
	dispatchQ, err := connectDispatchQueue()
	if err != nil {
		logger.Error("failed creating dispatch queue", "error", err)
		return
	}

	campaignRepo := repository.NewCampaignRepository(db)
	emailLogRepo := repository.NewEmailLogRepository(db)
	svc := services.NewCampaignService(campaignRepo, nil, emailLogRepo, nil, dispatchQ)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := svc.Send(ctx, id, testMode); err != nil {
		logger.Error("send failed", "campaign_id", id, "error", err)
		return
	}
	logger.Info("campaign send queued", "campaign_id", id, "test_mode", testMode)
}

func runImport() {
	path := argString("--file=")
	if path == "" {
		logger.Error("import: --file=<path.csv> is required")
		return
	}

	f, err := os.Open(path)
	if err != nil {
		logger.Error("import: cannot open file", "path", path, "error", err)
		return
	}
	defer f.Close()

	db, err := connectDB()
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	svc := services.NewSubscriberService(repository.NewSubscriberRepository(db))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	result, err := svc.ImportCSV(ctx, f)
	if err != nil {
		logger.Error("import failed", "path", path, "error", err)
		return
	}
	fmt.Printf("imported=%d updated=%d skipped=%d\n", result.Imported, result.Updated, result.Skipped)
}

func runStats() {
	id, err := argInt64("--id=")
	if err != nil {
		logger.Error("stats: --id=<campaign_id> is required", "error", err)
		return
	}

	db, err := connectDB()
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	campaignRepo := repository.NewCampaignRepository(db)
	emailLogRepo := repository.NewEmailLogRepository(db)
	svc := services.NewCampaignService(campaignRepo, nil, emailLogRepo, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats, err := svc.Stats(ctx, id)
	if err != nil {
		logger.Error("stats failed", "campaign_id", id, "error", err)
		return
	}
	out, _ := json.MarshalIndent(stats, "", "  ")
	fmt.Println(string(out))
}

func connectDB() (*pg.DB, error) {
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
	return pg.CreateReadWrite(readConf, writeConf, false)
}

func connectDispatchQueue() (*queue.Queue, error) {
	redisAdap, err := redis.NewRedisAdapter("cli", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "cli",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		return nil, err
	}
	return queue.New(redisAdap, queue.Config{
		Name:          config.Get().QueueName,
		ConsumerGroup: config.Get().QueueConsumerGroup,
		MaxLen:        config.Get().QueueMaxLen,
		EnableDLQ:     config.Get().QueueEnableDLQ,
	})
}

func argString(prefix string) string {
	for _, v := range os.Args {
		if strings.HasPrefix(v, prefix) {
			return strings.TrimPrefix(v, prefix)
		}
	}
	return ""
}

func argInt64(prefix string) (int64, error) {
	v := argString(prefix)
	if v == "" {
		return 0, fmt.Errorf("missing %s", prefix)
	}
	return strconv.ParseInt(v, 10, 64)
}

func argPresent(flag string) bool {
	for _, v := range os.Args {
		if v == flag {
			return true
		}
	}
	return false
}

func getEnvPath() string {
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
	if _, err := os.Open(".env"); err != nil {
		return ""
	}
	return ".env"
}

func getMigrationPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--dir=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed migrations dir, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	if _, err := os.Open("./migrations"); err != nil {
		logger.Error("failed to open the default migrations dir, got error" + err.Error())
		return ""
	}
	return "./migrations"
}
