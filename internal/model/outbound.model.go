package model

// OutboundEmail is a fully composed, ready-to-send message handed to a
// delivery client. All templating has already been applied.
type OutboundEmail struct {
	From     string `json:"from"`
	FromName string `json:"from_name"`
	To       string `json:"to"`
	ToName   string `json:"to_name"`
	Subject  string `json:"subject"`
	HTML     string `json:"html"`
	Text     string `json:"text,omitempty"`

	// ListUnsubscribe carries the one-click unsubscribe URL for the
	// List-Unsubscribe header.
	ListUnsubscribe string `json:"list_unsubscribe,omitempty"`

	// Correlation metadata for delivery-provider callbacks.
	CampaignID   int64  `json:"campaign_id"`
	SubscriberID *int64 `json:"subscriber_id,omitempty"`
}
