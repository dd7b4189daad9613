package mail

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	gomail "github.com/wneessen/go-mail"
)

// newMsg converts a Message into a go-mail message with a unique Message-ID.
func newMsg(msg Message) (*gomail.Msg, error) {
	m := gomail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return nil, fmt.Errorf("setting from address %q: %w", msg.From, err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("setting to address %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetMessageIDWithValue(uuid.NewString() + "@" + domainOf(msg.From))
	m.SetDate()
	m.SetBodyString(gomail.TypeTextHTML, msg.HTML)
	return m, nil
}

// SMTPConfig holds the settings of an SMTP relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// TLS is "mandatory", "opportunistic" or "none".
	TLS string
}

// SMTPSender delivers messages through an SMTP relay, one connection per
// message.
type SMTPSender struct {
	client *gomail.Client
}

// NewSMTPSender creates a sender for the given relay. No connection is made
// until the first Send.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(tlsPolicy(cfg.TLS)),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating smtp client for %s: %w", cfg.Host, err)
	}
	return &SMTPSender{client: client}, nil
}

func tlsPolicy(s string) gomail.TLSPolicy {
	switch s {
	case "none":
		return gomail.NoTLS
	case "opportunistic":
		return gomail.TLSOpportunistic
	default:
		return gomail.TLSMandatory
	}
}

// Send dials the relay and delivers msg.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := newMsg(msg)
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("sending mail to %s: %w", msg.To, err)
	}
	return nil
}

// SendmailSender pipes messages to a local sendmail binary.
type SendmailSender struct {
	Path string
}

// Send pipes msg to the sendmail binary.
func (s SendmailSender) Send(ctx context.Context, msg Message) error {
	m, err := newMsg(msg)
	if err != nil {
		return err
	}
	if err := m.WriteToSendmailWithContext(ctx, s.Path); err != nil {
		return fmt.Errorf("piping mail for %s to %s: %w", msg.To, s.Path, err)
	}
	return nil
}
