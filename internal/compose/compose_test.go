package compose

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimasrn/campaign-gateway/internal/model"
	"github.com/nimasrn/campaign-gateway/internal/render"
)

func newComposer() *Composer {
	return New(Identity{Email: "news@acme.test", Name: "Acme News"}, "https://acme.test/unsubscribe")
}

func TestCompose(t *testing.T) {
	sub := model.Subscriber{
		ID:               7,
		Email:            "ada@example.com",
		Name:             "Ada",
		CustomMessage:    "see you there",
		UnsubscribeToken: "tok-123",
	}
	camp := model.Campaign{
		ID:       42,
		Name:     "Launch",
		Subject:  "Hi {{ name }}",
		BodyHTML: "<p>{{ custom_message }} — {{ from_name }}</p><a href=\"{{ unsubscribe_url }}\">bye</a>",
		BodyText: "{{ campaign_name }} for {{ email }}",
	}

	out, err := newComposer().Compose(sub, camp)
	require.NoError(t, err)

	assert.Equal(t, "news@acme.test", out.From)
	assert.Equal(t, "ada@example.com", out.To)
	assert.Equal(t, "Hi Ada", out.Subject)
	assert.Contains(t, out.HTML, "see you there — Acme News")
	assert.Contains(t, out.HTML, "https://acme.test/unsubscribe?token=tok-123")
	assert.Equal(t, "Launch for ada@example.com", out.Text)
	assert.Equal(t, int64(42), out.CampaignID)
	require.NotNil(t, out.SubscriberID)
	assert.Equal(t, int64(7), *out.SubscriberID)
}

func TestCompose_NameFallsBackToLocalPart(t *testing.T) {
	sub := model.Subscriber{Email: "grace.h@example.com", UnsubscribeToken: "t"}
	camp := model.Campaign{Subject: "Hello {{ name }}", BodyHTML: "x"}

	out, err := newComposer().Compose(sub, camp)
	require.NoError(t, err)
	assert.Equal(t, "Hello grace.h", out.Subject)
}

func TestCompose_TextBodyOmittedWhenAbsent(t *testing.T) {
	sub := model.Subscriber{Email: "a@b.test", UnsubscribeToken: "t"}
	camp := model.Campaign{Subject: "s", BodyHTML: "<p>hi</p>"}

	out, err := newComposer().Compose(sub, camp)
	require.NoError(t, err)
	assert.Empty(t, out.Text)
}

func TestCompose_MalformedBodyWrapsError(t *testing.T) {
	sub := model.Subscriber{Email: "a@b.test", UnsubscribeToken: "t"}
	camp := model.Campaign{Subject: "s", BodyHTML: "broken {{ name"}

	_, err := newComposer().Compose(sub, camp)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCompose))
	// The render cause stays in the chain so callers can tell a syntax
	// failure apart from other composition problems.
	assert.True(t, errors.Is(err, render.ErrMalformedTemplate))
}

func TestCompose_EphemeralSubscriberHasNoID(t *testing.T) {
	sub := model.Subscriber{Email: "test@b.test", UnsubscribeToken: "t"}
	camp := model.Campaign{ID: 1, Subject: "s", BodyHTML: "x"}

	out, err := newComposer().Compose(sub, camp)
	require.NoError(t, err)
	assert.Nil(t, out.SubscriberID)
}
