package dispatch

import (
	"fmt"

	"github.com/nimasrn/campaign-gateway/internal/model"
)

// InvalidStateError is returned when a send is requested for a campaign
// that is not in a sendable status.
type InvalidStateError struct {
	CampaignID int64
	Status     model.CampaignStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("campaign %d cannot be sent from status %q", e.CampaignID, e.Status)
}

// AlreadySendingError is returned when another send of the same campaign
// holds the lease. Callers must not queue behind it.
type AlreadySendingError struct {
	CampaignID int64
}

func (e *AlreadySendingError) Error() string {
	return fmt.Sprintf("campaign %d is already being sent", e.CampaignID)
}
