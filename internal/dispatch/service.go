package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nimasrn/campaign-gateway/internal/queue"
	"github.com/nimasrn/campaign-gateway/internal/repository"
	"github.com/nimasrn/campaign-gateway/pkg/logger"
	"github.com/nimasrn/campaign-gateway/pkg/worker"
)

const ShutdownTimeout = time.Minute

// Trigger is the payload published onto the dispatch queue to start a
// campaign send. When TestEmail is set the trigger sends a single ephemeral
// message to that address instead of running the campaign.
type Trigger struct {
	CampaignID int64  `json:"campaign_id"`
	TestMode   bool   `json:"test_mode,omitempty"`
	TestEmail  string `json:"test_email,omitempty"`
}

// Service consumes dispatch triggers and runs them through the engine on a
// worker pool, so several campaigns can send concurrently while each one
// stays strictly sequential inside.
type Service struct {
	engine *Engine
	queue  *queue.Queue
	worker *worker.WorkerManager
	wg     sync.WaitGroup
}

func NewService(engine *Engine, q *queue.Queue, workers int) *Service {
	if workers <= 0 {
		workers = 4
	}
	return &Service{
		engine: engine,
		queue:  q,
		worker: worker.NewWorkerManager(workers*2, workers, nil),
	}
}

func (s *Service) Start() error {
	s.worker.SetWorker(s.workerHandler)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.worker.Start(); err != nil {
			logger.Error("dispatch worker pool stopped", "error", err)
		}
	}()

	if err := s.queue.Consume(s.messageHandler); err != nil {
		return fmt.Errorf("failed to start dispatch consumer: %w", err)
	}

	logger.Info("dispatch service started")
	return nil
}

func (s *Service) Stop() {
	if err := s.queue.Stop(ShutdownTimeout); err != nil {
		logger.Error("error stopping dispatch queue", "error", err)
	}
	s.worker.Exit()
	s.wg.Wait()
	logger.Info("dispatch service stopped")
}

type dispatchJob struct {
	msg        *queue.Message
	resultChan chan error
	ctx        context.Context
}

// messageHandler hands the trigger to the worker pool and waits for the
// outcome so queue ack semantics follow the send result.
func (s *Service) messageHandler(ctx context.Context, msg *queue.Message) error {
	resultChan := make(chan error, 1)
	job := &dispatchJob{msg: msg, resultChan: resultChan, ctx: ctx}

	s.worker.Enqueue(job)

	select {
	case err := <-resultChan:
		return err
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for dispatch worker: %w", ctx.Err())
	}
}

func (s *Service) workerHandler(workerIndex int, job interface{}) {
	dj, ok := job.(*dispatchJob)
	if !ok {
		logger.Error("invalid job type in dispatch worker", "worker", workerIndex)
		return
	}

	var result error

	var trig Trigger
	if err := json.Unmarshal(dj.msg.Data, &trig); err != nil {
		// Malformed triggers cannot succeed on retry.
		logger.Error("malformed dispatch trigger", "worker", workerIndex, "error", err)
		result = nil
	} else {
		result = s.runTrigger(dj.ctx, trig, workerIndex)
	}

	select {
	case dj.resultChan <- result:
	case <-dj.ctx.Done():
		logger.Warn("context cancelled while reporting dispatch result", "worker", workerIndex)
	}
}

func (s *Service) runTrigger(ctx context.Context, trig Trigger, workerIndex int) error {
	if trig.TestEmail != "" {
		providerID, err := s.engine.SendTest(ctx, trig.CampaignID, trig.TestEmail)
		if errors.Is(err, repository.ErrCampaignNotFound) {
			logger.Warn("test send for missing campaign", "campaign_id", trig.CampaignID)
			return nil
		}
		if err != nil {
			return err
		}
		logger.Info("test email sent",
			"worker", workerIndex, "campaign_id", trig.CampaignID,
			"to", trig.TestEmail, "provider_message_id", providerID)
		return nil
	}

	report, err := s.engine.Send(ctx, trig.CampaignID, Options{TestMode: trig.TestMode})
	if err == nil {
		logger.Info("dispatch trigger done",
			"worker", workerIndex, "campaign_id", trig.CampaignID,
			"sent", report.Sent, "failed", report.Failed)
		return nil
	}

	// Permanent outcomes: retrying cannot change them, so the message is
	// acked and the condition only logged.
	var invalidState *InvalidStateError
	var alreadySending *AlreadySendingError
	switch {
	case errors.Is(err, repository.ErrCampaignNotFound):
		logger.Warn("dispatch trigger for missing campaign", "campaign_id", trig.CampaignID)
		return nil
	case errors.As(err, &invalidState):
		logger.Warn("dispatch trigger in invalid state", "campaign_id", trig.CampaignID, "error", err)
		return nil
	case errors.As(err, &alreadySending):
		logger.Info("dispatch trigger skipped, send in flight", "campaign_id", trig.CampaignID)
		return nil
	}

	// Anything else already drove the campaign to failed; surface it so the
	// queue counts the attempt.
	return err
}
