package mail

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewComposer_BareHost(t *testing.T) {
	c, err := NewComposer("weather.example.com")
	require.NoError(t, err)

	msg, err := c.Login("a@x.com", "tok-123")
	require.NoError(t, err)

	assert.Equal(t, "weather@weather.example.com", msg.From)
	assert.Equal(t, "a@x.com", msg.To)
	assert.Equal(t, "Weather Station Login Attempt", msg.Subject)
	assert.Contains(t, msg.HTML, `href="https://weather.example.com/verify_login?c=tok-123"`)
}

func TestComposer_RegistrationLink(t *testing.T) {
	c, err := NewComposer("http://localhost:8080/")
	require.NoError(t, err)

	msg, err := c.Registration("b@x.com", "abc_DEF-9")
	require.NoError(t, err)

	assert.Equal(t, "Weather Station Registration", msg.Subject)
	assert.Contains(t, msg.HTML, `href="http://localhost:8080/verify_register?c=abc_DEF-9"`)
	assert.Equal(t, "weather@localhost", msg.From)
}

func TestNewComposer_Invalid(t *testing.T) {
	_, err := NewComposer("https://")
	assert.Error(t, err)
}

func TestNewMsg_SetsHeaders(t *testing.T) {
	m, err := newMsg(Message{
		From:    "weather@example.com",
		To:      "a@x.com",
		Subject: "Weather Station Login Attempt",
		HTML:    "<b>hi</b>",
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()

	for _, want := range []string{
		"Subject: Weather Station Login Attempt",
		"Message-ID: <",
		"@example.com>",
		"text/html",
	} {
		assert.Contains(t, raw, want)
	}
}

func TestNewMsg_BadAddress(t *testing.T) {
	_, err := newMsg(Message{From: "weather@example.com", To: "not an address"})
	assert.Error(t, err, "malformed recipient accepted")
}

func TestLogSender(t *testing.T) {
	assert.NoError(t, (LogSender{}).Send(context.Background(), Message{To: "a@x.com"}))
}

func TestDomainOf(t *testing.T) {
	tests := map[string]string{
		"weather@example.com":   "example.com",
		"Weather <weather@a.b>": "a.b",
		"no-at-sign":            "localhost",
	}
	for in, want := range tests {
		assert.Equal(t, want, domainOf(in), "domainOf(%q)", in)
	}
}
