// Package compose builds ready-to-send messages from a subscriber and
// campaign pair.
package compose

import (
	"fmt"
	"net/url"

	"github.com/pkg/errors"

	"github.com/nimasrn/campaign-gateway/internal/model"
	"github.com/nimasrn/campaign-gateway/internal/render"
)

// ErrCompose wraps any render failure during composition. The caller must
// record the recipient's attempt as failed, not skip it.
var ErrCompose = errors.New("compose failed")

// Identity is the sender identity stamped on every outbound message.
type Identity struct {
	Email string
	Name  string
}

type Composer struct {
	From               Identity
	UnsubscribeBaseURL string
}

func New(from Identity, unsubscribeBaseURL string) *Composer {
	return &Composer{From: from, UnsubscribeBaseURL: unsubscribeBaseURL}
}

// Compose renders the campaign bodies and subject for one subscriber.
// The text body is omitted when the campaign has none.
func (c *Composer) Compose(sub model.Subscriber, camp model.Campaign) (model.OutboundEmail, error) {
	ctx := c.context(sub, camp)

	subject, err := render.Render(camp.Subject, ctx)
	if err != nil {
		return model.OutboundEmail{}, fmt.Errorf("%w: subject: %w", ErrCompose, err)
	}

	html, err := render.Render(camp.BodyHTML, ctx)
	if err != nil {
		return model.OutboundEmail{}, fmt.Errorf("%w: html body: %w", ErrCompose, err)
	}

	var text string
	if camp.BodyText != "" {
		text, err = render.Render(camp.BodyText, ctx)
		if err != nil {
			return model.OutboundEmail{}, fmt.Errorf("%w: text body: %w", ErrCompose, err)
		}
	}

	out := model.OutboundEmail{
		From:            c.From.Email,
		FromName:        c.From.Name,
		To:              sub.Email,
		ToName:          sub.DisplayName(),
		Subject:         subject,
		HTML:            html,
		Text:            text,
		ListUnsubscribe: ctx["unsubscribe_url"],
		CampaignID:      camp.ID,
	}
	if sub.ID != 0 {
		id := sub.ID
		out.SubscriberID = &id
	}
	return out, nil
}

func (c *Composer) context(sub model.Subscriber, camp model.Campaign) map[string]string {
	return map[string]string{
		"name":            sub.DisplayName(),
		"email":           sub.Email,
		"subject":         camp.Subject,
		"custom_message":  sub.CustomMessage,
		"from_name":       c.From.Name,
		"unsubscribe_url": c.unsubscribeURL(sub.UnsubscribeToken),
		"campaign_name":   camp.Name,
	}
}

func (c *Composer) unsubscribeURL(token string) string {
	if c.UnsubscribeBaseURL == "" || token == "" {
		return ""
	}
	u, err := url.Parse(c.UnsubscribeBaseURL)
	if err != nil {
		return c.UnsubscribeBaseURL + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}
