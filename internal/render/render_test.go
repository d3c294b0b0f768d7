package render

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_Substitution(t *testing.T) {
	ctx := map[string]string{
		"name":            "Ada",
		"email":           "ada@example.com",
		"unsubscribe_url": "https://x.test/unsub?token=abc",
	}

	out, err := Render("Hi {{ name }}, this goes to {{ email }}.", ctx)
	require.NoError(t, err)
	assert.Equal(t, "Hi Ada, this goes to ada@example.com.", out)
}

func TestRender_WhitespaceInsidePlaceholder(t *testing.T) {
	ctx := map[string]string{"name": "Ada"}

	for _, body := range []string{"{{name}}", "{{ name }}", "{{  name  }}", "{{\tname }}"} {
		out, err := Render(body, ctx)
		require.NoError(t, err, body)
		assert.Equal(t, "Ada", out, body)
	}
}

func TestRender_UnrecognizedPlaceholderKeptVerbatim(t *testing.T) {
	out, err := Render("Hello {{ nickname }}!", map[string]string{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "Hello {{ nickname }}!", out)
}

func TestRender_NoPlaceholders(t *testing.T) {
	out, err := Render("plain text, no markers", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain text, no markers", out)
}

func TestRender_EmptyBody(t *testing.T) {
	out, err := Render("", map[string]string{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestRender_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unclosed open", "Hello {{ name"},
		{"dangling close", "Hello name }}"},
		{"close before open", "}} {{ name }}"},
		{"nested open", "{{ {{ name }} }}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Render(tt.body, map[string]string{"name": "Ada"})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedTemplate))
		})
	}
}

func TestRender_Idempotent(t *testing.T) {
	ctx := map[string]string{"name": "Ada"}
	once, err := Render("Hi {{ name }}", ctx)
	require.NoError(t, err)
	twice, err := Render(once, ctx)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("Hi {{ name }}"))
	assert.ErrorIs(t, Validate("Hi {{ name"), ErrMalformedTemplate)
}
