package fixtures

import (
	"fmt"
	"time"

	"github.com/nimasrn/campaign-gateway/internal/model"
)

func NewTestCampaign(name string, status model.CampaignStatus) *model.Campaign {
	return &model.Campaign{
		Name:     name,
		Subject:  "Hello {{ name }}",
		BodyHTML: "<p>Hi {{ name }}!</p>",
		BodyText: "Hi {{ name }}!",
		Status:   status,
	}
}

func NewScheduledCampaign(name string, at time.Time) *model.Campaign {
	c := NewTestCampaign(name, model.CampaignStatusScheduled)
	c.ScheduledAt = &at
	return c
}

func NewTestSubscriber(i int) model.Subscriber {
	return model.NewSubscriber(fmt.Sprintf("subscriber%d@example.com", i), fmt.Sprintf("Subscriber %d", i))
}

func CampaignCreateRequest(name string) model.CampaignCreateRequest {
	return model.CampaignCreateRequest{
		Name:     name,
		Subject:  "Hello {{ name }}",
		BodyHTML: "<p>Hi {{ name }}!</p>",
	}
}

var (
	ValidEmails = []string{
		"ada@example.com",
		"grace@example.org",
		"linus.t@example.net",
		"margaret+tag@example.io",
	}

	InvalidEmails = []string{
		"",
		"no-at-sign",
		"   ",
	}

	ValidTemplateBodies = []string{
		"Hello {{ name }}",
		"Plain text, no placeholders",
		"{{ custom_message }} from {{ from_name }}",
	}

	MalformedTemplateBodies = []string{
		"Hello {{ name",
		"Hello name }}",
		"{{ a {{ b }}",
	}
)

func CampaignFilterByStatus(statuses ...model.CampaignStatus) model.CampaignFilter {
	return model.CampaignFilter{
		Statuses: statuses,
		Limit:    50,
		Offset:   0,
	}
}

func SubscriberFilterActive() model.SubscriberFilter {
	active := true
	return model.SubscriberFilter{
		Active: &active,
		Limit:  50,
	}
}
