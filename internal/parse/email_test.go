package parse_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/optimode/mxprobe/internal/parse"
)

func TestNewEmail_ASCII(t *testing.T) {
	e := parse.NewEmail("  user@Example.COM ")
	assert.True(t, e.Valid)
	assert.Equal(t, "user", e.Local)
	assert.Equal(t, "example.com", e.Domain)
	assert.Equal(t, "user@example.com", e.Address())
}

func TestNewEmail_Invalid(t *testing.T) {
	for _, raw := range []string{"", "noatsign", "@nodomain", "nolocal@"} {
		e := parse.NewEmail(raw)
		assert.False(t, e.Valid, "expected invalid for %q", raw)
		assert.Equal(t, raw, e.Address())
	}
}

func TestNewEmail_IDN(t *testing.T) {
	e := parse.NewEmail("user@münchen.de")
	assert.True(t, e.Valid)
	assert.Equal(t, "xn--mnchen-3ya.de", e.Domain)
	assert.Equal(t, "münchen.de", e.DomainUnicode)

	e = parse.NewEmail("user@xn--mnchen-3ya.de")
	assert.Equal(t, "münchen.de", e.DomainUnicode)
}

func TestNewEmail_UnicodeLocal(t *testing.T) {
	e := parse.NewEmail("用户@example.com")
	assert.True(t, e.Valid)
	assert.Equal(t, "用户", e.Local)
}

func TestDomain(t *testing.T) {
	assert.Equal(t, "example.com", parse.Domain("a@EXAMPLE.com"))
	assert.Equal(t, "", parse.Domain("broken"))
}
