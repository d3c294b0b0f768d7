package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/nimasrn/campaign-gateway/internal/model"
	"github.com/nimasrn/campaign-gateway/pkg/logger"
)

const sendPath = "/api/v1/email/send"

// SendRequest is the JSON body posted to the HTTP provider.
type SendRequest struct {
	From            string `json:"from"`
	FromName        string `json:"from_name,omitempty"`
	To              string `json:"to"`
	ToName          string `json:"to_name,omitempty"`
	Subject         string `json:"subject"`
	HTML            string `json:"html"`
	Text            string `json:"text,omitempty"`
	ListUnsubscribe string `json:"list_unsubscribe,omitempty"`
	CampaignID      int64  `json:"campaign_id"`
}

type SendResponse struct {
	MessageID   string    `json:"message_id"`
	Status      string    `json:"status"`
	ErrorCode   string    `json:"error_code,omitempty"`
	ErrorMsg    string    `json:"error_message,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}

type HTTPConfig struct {
	URL             string
	Timeout         time.Duration
	MaxRetries      int
	RetryDelay      time.Duration
	MaxConns        int
	ReadBufferSize  int
	WriteBufferSize int
}

// HTTPClient talks to a generic JSON email relay over fasthttp.
type HTTPClient struct {
	config HTTPConfig
	client *fasthttp.Client
}

func NewHTTPClient(config HTTPConfig) (*HTTPClient, error) {
	if config.URL == "" {
		return nil, errors.New("provider url is required")
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = 500 * time.Millisecond
	}
	if config.MaxConns == 0 {
		config.MaxConns = 512
	}

	c := &HTTPClient{
		config: config,
		client: &fasthttp.Client{
			MaxConnsPerHost:     config.MaxConns,
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxIdleConnDuration: 60 * time.Second,
			ReadBufferSize:      config.ReadBufferSize,
			WriteBufferSize:     config.WriteBufferSize,
		},
	}
	logger.Info("http delivery client initialized", "url", config.URL, "timeout", config.Timeout)
	return c, nil
}

func (c *HTTPClient) Send(ctx context.Context, email *model.OutboundEmail) (string, error) {
	body, err := json.Marshal(SendRequest{
		From:            email.From,
		FromName:        email.FromName,
		To:              email.To,
		ToName:          email.ToName,
		Subject:         email.Subject,
		HTML:            email.HTML,
		Text:            email.Text,
		ListUnsubscribe: email.ListUnsubscribe,
		CampaignID:      email.CampaignID,
	})
	if err != nil {
		return "", &Error{Provider: "http", Reason: "marshal request", Err: err}
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", &Error{Provider: "http", Reason: "cancelled", Err: ctx.Err()}
			case <-time.After(c.config.RetryDelay):
			}
		}

		start := time.Now()
		respBody, err := c.doRequest(ctx, body)
		latency := time.Since(start).Milliseconds()
		if err != nil {
			logger.Warn("provider request failed", "error", err, "attempt", attempt+1)
			lastErr = err
			continue
		}

		var resp SendResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return "", &Error{Provider: "http", Reason: "unmarshal response", Err: err}
		}
		if resp.ErrorCode != "" {
			return "", &Error{Provider: "http", Reason: resp.ErrorCode + ": " + resp.ErrorMsg}
		}

		logger.Info("email accepted by provider",
			"message_id", resp.MessageID, "status", resp.Status, "latency_ms", latency)
		return resp.MessageID, nil
	}

	return "", &Error{Provider: "http", Reason: "request failed", Err: lastErr}
}

func (c *HTTPClient) doRequest(ctx context.Context, body []byte) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.config.URL + sendPath)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}

	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, err
	}

	statusCode := resp.StatusCode()
	if statusCode != fasthttp.StatusOK && statusCode != fasthttp.StatusAccepted {
		return nil, errors.New("unexpected status code " + fasthttp.StatusMessage(statusCode))
	}

	result := make([]byte, len(resp.Body()))
	copy(result, resp.Body())
	return result, nil
}
