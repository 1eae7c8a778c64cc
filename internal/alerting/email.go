package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
)

// SMTPOptions parameterise the SMTP email channel.
type SMTPOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// SMTPEmailSender delivers alerts through an SMTP relay. STARTTLS is used
// whenever the relay offers it.
type SMTPEmailSender struct {
	opts   SMTPOptions
	logger zerolog.Logger
}

// NewSMTPEmailSender 构造 SMTP 邮件通道。
func NewSMTPEmailSender(opts SMTPOptions, logger zerolog.Logger) *SMTPEmailSender {
	if opts.Port == 0 {
		opts.Port = 587
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &SMTPEmailSender{opts: opts, logger: logger.With().Str("component", "alert_email").Logger()}
}

// SendEmail writes one HTML message to to.
func (s *SMTPEmailSender) SendEmail(ctx context.Context, to, subject, htmlBody string) error {
	if s.opts.Host == "" || s.opts.From == "" {
		return fmt.Errorf("smtp host/from not configured")
	}

	msg, err := buildMessage(s.opts.From, to, subject, htmlBody)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(s.opts.Host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	s.logger.Info().Str("to", to).Msg("告警已发送 (Email)")
	return nil
}

func (s *SMTPEmailSender) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.opts.Port),
		mail.WithTimeout(s.opts.Timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if s.opts.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.opts.Username),
			mail.WithPassword(s.opts.Password),
		)
	}
	return opts
}

// buildMessage validates both addresses and leaves header encoding and body
// line wrapping to go-mail.
func buildMessage(from, to, subject, htmlBody string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", from, err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)
	return msg, nil
}

var _ EmailSender = (*SMTPEmailSender)(nil)
