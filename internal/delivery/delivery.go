// Package delivery integrates with the outbound email providers. All
// provider failures surface as *Error so the dispatch engine can treat
// them uniformly as per-recipient failures.
package delivery

import (
	"context"
	"fmt"

	"github.com/nimasrn/campaign-gateway/internal/config"
	"github.com/nimasrn/campaign-gateway/internal/model"
)

// Client sends one composed message and returns the provider's message id.
type Client interface {
	Send(ctx context.Context, email *model.OutboundEmail) (providerMessageID string, err error)
}

// Error is a provider-side send failure.
type Error struct {
	Provider string
	Reason   string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("delivery via %s failed: %s: %v", e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("delivery via %s failed: %s", e.Provider, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds the delivery client selected by EMAIL_PROVIDER.
func New(cfg *config.Config) (Client, error) {
	switch cfg.EmailProvider {
	case "resend":
		return NewResendClient(cfg.ResendAPIKey), nil
	case "http", "":
		return NewHTTPClient(HTTPConfig{
			URL:     cfg.ProviderURL,
			Timeout: cfg.ProviderTimeout,
		})
	}
	return nil, fmt.Errorf("unknown email provider %q", cfg.EmailProvider)
}
