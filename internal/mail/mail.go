// Package mail delivers the HTML emails that carry login and registration
// links.
package mail

import (
	"context"
	"log/slog"
	"strings"
)

// Message is a single HTML email.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// Sender delivers a message. A nil error means the transport accepted it.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the log instead of delivering them. Useful in
// development, where the verification link can be copied from the output.
type LogSender struct{}

// Send logs msg at info level and never fails.
func (LogSender) Send(ctx context.Context, msg Message) error {
	slog.InfoContext(ctx, "mail not delivered, log transport in use",
		"from", msg.From,
		"to", msg.To,
		"subject", msg.Subject,
		"html", msg.HTML,
	)
	return nil
}

// domainOf returns the part of an address after the last "@".
func domainOf(addr string) string {
	if i := strings.LastIndex(addr, "@"); i >= 0 {
		return strings.TrimSuffix(addr[i+1:], ">")
	}
	return "localhost"
}
