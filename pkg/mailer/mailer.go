package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jordan-wright/email"

	"github.com/angelmondragon/storefront-backoffice/pkg/config"
	"github.com/angelmondragon/storefront-backoffice/pkg/logger"
)

// ErrDisabled is returned by the dispatcher when no SMTP relay is configured.
var ErrDisabled = errors.New("email delivery disabled")

// SendResult carries the provider-side identifier of a sent message.
type SendResult struct {
	MessageID string
}

// Dispatcher sends templated email. Callers treat every error as non-fatal.
type Dispatcher interface {
	Send(ctx context.Context, to, subject string, tmpl Template, data any) (SendResult, error)
}

type transport interface {
	Send(addr string, a smtp.Auth, e *email.Email) error
}

type smtpTransport struct{}

func (smtpTransport) Send(addr string, a smtp.Auth, e *email.Email) error {
	return e.Send(addr, a)
}

// SMTPMailer delivers through an SMTP relay behind a circuit breaker.
type SMTPMailer struct {
	from      string
	addr      string
	host      string
	auth      smtp.Auth
	timeout   time.Duration
	breaker   *Breaker
	transport transport
	logg      *logger.Logger
}

// New returns an SMTPMailer, or a disabled dispatcher when the relay host is unset.
func New(cfg config.SMTPConfig, breakerCfg config.MailerConfig, logg *logger.Logger) Dispatcher {
	if !cfg.Enabled() {
		return disabledDispatcher{}
	}
	var auth smtp.Auth
	if cfg.User != "" {
		auth = smtp.PlainAuth("", cfg.User, cfg.Password, cfg.Host)
	}
	return &SMTPMailer{
		from:    cfg.From,
		addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		host:    cfg.Host,
		auth:    auth,
		timeout: cfg.Timeout,
		breaker: NewBreaker(BreakerConfig{
			FailureThreshold: breakerCfg.BreakerFailureThreshold,
			OpenTimeout:      breakerCfg.BreakerOpenTimeout,
		}),
		transport: smtpTransport{},
		logg:      logg,
	}
}

// Send renders tmpl and hands the message to the relay.
func (m *SMTPMailer) Send(ctx context.Context, to, subject string, tmpl Template, data any) (SendResult, error) {
	to = strings.TrimSpace(to)
	if to == "" {
		return SendResult{}, errors.New("recipient is required")
	}
	body, err := Render(tmpl, data)
	if err != nil {
		return SendResult{}, err
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), m.host)
	e := email.NewEmail()
	e.From = m.from
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(body)
	e.Headers.Set("Message-Id", messageID)

	err = m.breaker.Execute(func() error {
		return m.deliver(ctx, e)
	})
	if err != nil {
		if m.logg != nil {
			logCtx := m.logg.WithFields(ctx, map[string]any{
				"template":      string(tmpl),
				"breaker_state": m.breaker.State().String(),
			})
			m.logg.Warn(logCtx, "email delivery failed")
		}
		return SendResult{}, fmt.Errorf("send %s: %w", tmpl, err)
	}
	return SendResult{MessageID: messageID}, nil
}

// deliver bounds the blocking SMTP exchange by the context and the configured timeout.
// On timeout the exchange keeps running in the background; its result is dropped.
func (m *SMTPMailer) deliver(ctx context.Context, e *email.Email) error {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		done <- m.transport.Send(m.addr, m.auth, e)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type disabledDispatcher struct{}

func (disabledDispatcher) Send(context.Context, string, string, Template, any) (SendResult, error) {
	return SendResult{}, ErrDisabled
}
