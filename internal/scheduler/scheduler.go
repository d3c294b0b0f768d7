// Package scheduler fires one-shot campaign triggers at their scheduled
// time. It keeps an in-memory timer per pending campaign; the dispatcher
// re-seeds it from the store on startup so restarts lose nothing.
package scheduler

import (
	"sync"
	"time"

	"github.com/nimasrn/campaign-gateway/pkg/logger"
)

// FireFunc is invoked when a campaign's scheduled time arrives.
type FireFunc func(campaignID int64)

type Scheduler struct {
	mu      sync.Mutex
	timers  map[int64]*time.Timer
	fire    FireFunc
	stopped bool
}

func New(fire FireFunc) *Scheduler {
	return &Scheduler{
		timers: make(map[int64]*time.Timer),
		fire:   fire,
	}
}

// Schedule arms (or re-arms) the trigger for a campaign. A time in the past
// fires immediately.
func (s *Scheduler) Schedule(campaignID int64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	if existing, ok := s.timers[campaignID]; ok {
		existing.Stop()
	}

	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}

	s.timers[campaignID] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, campaignID)
		stopped := s.stopped
		s.mu.Unlock()
		if stopped {
			return
		}
		logger.Info("scheduled campaign due", "campaign_id", campaignID)
		s.fire(campaignID)
	})
	logger.Info("campaign scheduled", "campaign_id", campaignID, "at", at, "in", delay.String())
}

// Cancel removes a pending trigger. Cancelling an unknown or already fired
// campaign is a no-op and reports false.
func (s *Scheduler) Cancel(campaignID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer, ok := s.timers[campaignID]
	if !ok {
		return false
	}
	timer.Stop()
	delete(s.timers, campaignID)
	logger.Info("scheduled campaign cancelled", "campaign_id", campaignID)
	return true
}

// Pending reports how many triggers are armed.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop disarms every timer. The scheduler cannot be reused afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	logger.Info("scheduler stopped")
}
