// Package render expands {{ placeholder }} markers in campaign bodies
// against a per-recipient context. Unrecognized placeholders are left
// verbatim so a stray marker never breaks a send.
package render

import (
	"strings"

	"github.com/pkg/errors"
)

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

// ErrMalformedTemplate is returned when placeholder delimiters are
// unbalanced. Wrap it with context, compare with errors.Is.
var ErrMalformedTemplate = errors.New("malformed template: unbalanced placeholder delimiters")

// Render substitutes every placeholder whose trimmed key appears in ctx.
// Placeholders with unknown keys are kept as-is, including their delimiters.
// The function is pure: same inputs, same output, no side effects.
func Render(body string, ctx map[string]string) (string, error) {
	if !strings.Contains(body, openDelim) && !strings.Contains(body, closeDelim) {
		return body, nil
	}

	var b strings.Builder
	b.Grow(len(body))

	rest := body
	for {
		start := strings.Index(rest, openDelim)
		if start < 0 {
			// A dangling close delimiter with no open before it is malformed.
			if strings.Contains(rest, closeDelim) {
				return "", errors.Wrapf(ErrMalformedTemplate, "unexpected %q", closeDelim)
			}
			b.WriteString(rest)
			return b.String(), nil
		}

		head := rest[:start]
		if strings.Contains(head, closeDelim) {
			return "", errors.Wrapf(ErrMalformedTemplate, "unexpected %q", closeDelim)
		}
		b.WriteString(head)

		rest = rest[start+len(openDelim):]
		end := strings.Index(rest, closeDelim)
		if end < 0 {
			return "", errors.Wrapf(ErrMalformedTemplate, "unclosed %q", openDelim)
		}
		inner := rest[:end]
		if strings.Contains(inner, openDelim) {
			return "", errors.Wrapf(ErrMalformedTemplate, "nested %q", openDelim)
		}

		key := strings.TrimSpace(inner)
		if val, ok := ctx[key]; ok {
			b.WriteString(val)
		} else {
			b.WriteString(openDelim)
			b.WriteString(inner)
			b.WriteString(closeDelim)
		}
		rest = rest[end+len(closeDelim):]
	}
}

// Validate reports whether the body's delimiters are balanced without
// rendering it. Useful at template-save time.
func Validate(body string) error {
	_, err := Render(body, nil)
	return err
}
