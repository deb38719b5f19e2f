// Package notify delivers catalog notifications by email.
package notify

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// Sender delivers a plain-text message.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// NopSender discards messages.
type NopSender struct{}

// Send implements Sender.
func (NopSender) Send(ctx context.Context, to, subject, _ string) error {
	zctx.From(ctx).Debug("Notification discarded",
		zap.String("to", to),
		zap.String("subject", subject),
	)
	return nil
}

// TLSPolicy selects how the SMTP connection is secured.
type TLSPolicy string

// Supported TLS policies.
const (
	TLSMandatory     TLSPolicy = "mandatory"
	TLSOpportunistic TLSPolicy = "opportunistic"
	TLSNone          TLSPolicy = "none"
)

// SMTPConfig configures SMTPSender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	TLS      TLSPolicy
}

// SMTPSender sends mail through an SMTP relay. A new connection is made for
// each message.
type SMTPSender struct {
	cfg  SMTPConfig
	opts []mail.Option
}

// NewSMTPSender validates cfg and returns an SMTPSender.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host is required")
	}
	if cfg.From == "" {
		return nil, errors.New("sender address is required")
	}

	opts := []mail.Option{mail.WithTLSPolicy(tlsPolicy(cfg.TLS))}
	if cfg.Port > 0 {
		opts = append(opts, mail.WithPort(cfg.Port))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	return &SMTPSender{cfg: cfg, opts: opts}, nil
}

func tlsPolicy(p TLSPolicy) mail.TLSPolicy {
	switch TLSPolicy(strings.ToLower(string(p))) {
	case TLSNone:
		return mail.NoTLS
	case TLSOpportunistic:
		return mail.TLSOpportunistic
	default:
		return mail.TLSMandatory
	}
}

// Send implements Sender.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	m := mail.NewMsg()
	if err := m.From(s.cfg.From); err != nil {
		return errors.Wrapf(err, "set from %q", s.cfg.From)
	}
	if err := m.To(to); err != nil {
		return errors.Wrapf(err, "set to %q", to)
	}
	m.Subject(subject)
	m.SetBodyString(mail.TypeTextPlain, body)

	c, err := mail.NewClient(s.cfg.Host, s.opts...)
	if err != nil {
		return errors.Wrap(err, "create smtp client")
	}
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return errors.Wrapf(err, "send to %q", to)
	}

	zctx.From(ctx).Info("Notification sent",
		zap.String("to", to),
		zap.String("subject", subject),
	)
	return nil
}
