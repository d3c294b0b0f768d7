package delivery

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v3"

	"github.com/nimasrn/campaign-gateway/internal/model"
)

// ResendClient sends through the Resend API.
type ResendClient struct {
	client *resend.Client
}

func NewResendClient(apiKey string) *ResendClient {
	return &ResendClient{client: resend.NewClient(apiKey)}
}

func (c *ResendClient) Send(ctx context.Context, email *model.OutboundEmail) (string, error) {
	from := email.From
	if email.FromName != "" {
		from = fmt.Sprintf("%s <%s>", email.FromName, email.From)
	}

	req := &resend.SendEmailRequest{
		From:    from,
		To:      []string{email.To},
		Subject: email.Subject,
		Html:    email.HTML,
		Text:    email.Text,
		Tags: []resend.Tag{
			{Name: "campaign_id", Value: fmt.Sprintf("%d", email.CampaignID)},
		},
	}
	if email.ListUnsubscribe != "" {
		req.Headers = map[string]string{"List-Unsubscribe": "<" + email.ListUnsubscribe + ">"}
	}

	sent, err := c.client.Emails.SendWithContext(ctx, req)
	if err != nil {
		return "", &Error{Provider: "resend", Reason: "send email", Err: err}
	}
	return sent.Id, nil
}
