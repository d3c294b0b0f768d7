package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SendEmailRequest mirrors the gateway's HTTP delivery payload.
type SendEmailRequest struct {
	From            string `json:"from" binding:"required"`
	FromName        string `json:"from_name"`
	To              string `json:"to" binding:"required"`
	ToName          string `json:"to_name"`
	Subject         string `json:"subject" binding:"required"`
	HTML            string `json:"html"`
	Text            string `json:"text"`
	ListUnsubscribe string `json:"list_unsubscribe"`
	CampaignID      int64  `json:"campaign_id"`
}

type SendEmailResponse struct {
	MessageID   string    `json:"message_id"`
	Status      string    `json:"status"`
	ErrorCode   string    `json:"error_code,omitempty"`
	ErrorMsg    string    `json:"error_message,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}

type HealthResponse struct {
	Status       string    `json:"status"`
	ProviderID   string    `json:"provider_id"`
	Timestamp    time.Time `json:"timestamp"`
	DeliveryRate float64   `json:"delivery_rate"`
}

// webhookEvent is posted back to the gateway's ingestion endpoint when
// callbacks are enabled.
type webhookEvent struct {
	EventType         string    `json:"event_type"`
	Email             string    `json:"email"`
	ProviderMessageID string    `json:"provider_message_id"`
	Timestamp         time.Time `json:"timestamp"`
}

// MockProvider simulates an email delivery provider.
type MockProvider struct {
	deliveryRate float64
	minDelay     time.Duration
	maxDelay     time.Duration
	providerID   string
	webhookURL   string
	rng          *rand.Rand
}

func NewMockProvider(deliveryRate float64, minDelay, maxDelay time.Duration, webhookURL string) *MockProvider {
	return &MockProvider{
		deliveryRate: deliveryRate,
		minDelay:     minDelay,
		maxDelay:     maxDelay,
		providerID:   "MOCK_PROVIDER_" + uuid.New().String()[:8],
		webhookURL:   webhookURL,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (m *MockProvider) simulateDelivery(req *SendEmailRequest) *SendEmailResponse {
	delay := m.randomDelay()
	time.Sleep(delay)

	response := &SendEmailResponse{
		MessageID:   uuid.NewString(),
		ProcessedAt: time.Now(),
	}

	if m.shouldSucceed() {
		response.Status = "accepted"

		log.Info().
			Str("message_id", response.MessageID).
			Str("to", req.To).
			Int64("campaign_id", req.CampaignID).
			Dur("delay", delay).
			Msg("Email accepted")

		if m.webhookURL != "" {
			go m.emitDeliveryEvents(req.To, response.MessageID)
		}
	} else {
		response.Status = "failed"
		response.ErrorCode = m.randomErrorCode()
		response.ErrorMsg = m.errorMessage(response.ErrorCode)

		log.Warn().
			Str("message_id", response.MessageID).
			Str("to", req.To).
			Str("error_code", response.ErrorCode).
			Msg("Email delivery failed")
	}

	return response
}

// emitDeliveryEvents posts a delivered event and, some of the time, an open
// and a click, spaced out like a real mailbox would produce them.
func (m *MockProvider) emitDeliveryEvents(email, messageID string) {
	m.postWebhook(webhookEvent{
		EventType:         "delivered",
		Email:             email,
		ProviderMessageID: messageID,
		Timestamp:         time.Now(),
	})

	if m.rng.Float64() < 0.5 {
		time.Sleep(time.Duration(m.rng.Intn(3000)) * time.Millisecond)
		m.postWebhook(webhookEvent{
			EventType:         "open",
			Email:             email,
			ProviderMessageID: messageID,
			Timestamp:         time.Now(),
		})

		if m.rng.Float64() < 0.3 {
			time.Sleep(time.Duration(m.rng.Intn(2000)) * time.Millisecond)
			m.postWebhook(webhookEvent{
				EventType:         "click",
				Email:             email,
				ProviderMessageID: messageID,
				Timestamp:         time.Now(),
			})
		}
	}
}

func (m *MockProvider) postWebhook(ev webhookEvent) {
	body, _ := json.Marshal(ev)
	resp, err := http.Post(m.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Warn().Err(err).Str("event_type", ev.EventType).Msg("Webhook callback failed")
		return
	}
	resp.Body.Close()
	log.Info().
		Str("event_type", ev.EventType).
		Str("provider_message_id", ev.ProviderMessageID).
		Msg("Webhook callback sent")
}

func (m *MockProvider) randomDelay() time.Duration {
	delta := m.maxDelay - m.minDelay
	if delta <= 0 {
		return m.minDelay
	}
	return m.minDelay + time.Duration(m.rng.Int63n(int64(delta)))
}

func (m *MockProvider) shouldSucceed() bool {
	return m.rng.Float64() < m.deliveryRate
}

func (m *MockProvider) randomErrorCode() string {
	errorCodes := []string{
		"INVALID_RECIPIENT",
		"MAILBOX_FULL",
		"NETWORK_ERROR",
		"TIMEOUT",
		"CONTENT_REJECTED",
		"RATE_LIMITED",
	}
	return errorCodes[m.rng.Intn(len(errorCodes))]
}

func (m *MockProvider) errorMessage(code string) string {
	messages := map[string]string{
		"INVALID_RECIPIENT": "The recipient address does not exist",
		"MAILBOX_FULL":      "The recipient mailbox is over quota",
		"NETWORK_ERROR":     "Network connectivity issue with the receiving MX",
		"TIMEOUT":           "Email delivery timed out",
		"CONTENT_REJECTED":  "Email content violates provider policies",
		"RATE_LIMITED":      "Sending rate limit exceeded",
	}

	if msg, ok := messages[code]; ok {
		return msg
	}
	return "Unknown error occurred"
}

type Handler struct {
	provider *MockProvider
}

func NewHandler(provider *MockProvider) *Handler {
	return &Handler{provider: provider}
}

func (h *Handler) SendEmail(c *gin.Context) {
	var req SendEmailRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	response := h.provider.simulateDelivery(&req)

	statusCode := http.StatusOK
	if response.Status == "failed" {
		statusCode = http.StatusAccepted // 202: accepted but failed delivery
	}

	c.JSON(statusCode, response)
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:       "healthy",
		ProviderID:   h.provider.providerID,
		Timestamp:    time.Now(),
		DeliveryRate: h.provider.deliveryRate,
	})
}

// UpdateConfig allows changing the failure rate at runtime.
func (h *Handler) UpdateConfig(c *gin.Context) {
	var config struct {
		DeliveryRate *float64 `json:"delivery_rate"`
	}

	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if config.DeliveryRate != nil {
		if *config.DeliveryRate >= 0 && *config.DeliveryRate <= 1.0 {
			h.provider.deliveryRate = *config.DeliveryRate
			log.Info().Float64("rate", *config.DeliveryRate).Msg("Updated delivery rate")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "Configuration updated",
		"delivery_rate": h.provider.deliveryRate,
	})
}

func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.Default()

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Msg("Request processed")
	})

	v1 := router.Group("/api/v1")
	{
		v1.POST("/email/send", handler.SendEmail)
		v1.GET("/health", handler.HealthCheck)
		v1.PUT("/config", handler.UpdateConfig)
	}

	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	port := getEnv("PORT", "8081")
	deliveryRate := getEnvFloat("DELIVERY_RATE", 1)
	minDelay := getEnvDuration("MIN_DELAY", 50*time.Millisecond)
	maxDelay := getEnvDuration("MAX_DELAY", 500*time.Millisecond)
	webhookURL := getEnv("WEBHOOK_URL", "")

	log.Info().
		Str("port", port).
		Float64("delivery_rate", deliveryRate).
		Dur("min_delay", minDelay).
		Dur("max_delay", maxDelay).
		Str("webhook_url", webhookURL).
		Msg("Starting Mock Email Provider")

	provider := NewMockProvider(deliveryRate, minDelay, maxDelay, webhookURL)
	handler := NewHandler(provider)
	router := SetupRouter(handler)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
