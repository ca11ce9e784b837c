// Package mail delivers notifications over SMTP.
package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/smtp"
	"net/textproto"
	"strings"

	"github.com/jordan-wright/email"
	"go.uber.org/zap"

	"github.com/tymekw/kotori-notify/internal/tracker"
)

// Config holds SMTP connection and sender details.
type Config struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	FromName string `mapstructure:"from_name"`
}

// SMTPTransport implements tracker.Transport over SMTP with implicit TLS.
type SMTPTransport struct {
	cfg    Config
	logger *zap.Logger
}

// New builds an SMTPTransport.
func New(cfg Config, logger *zap.Logger) *SMTPTransport {
	if cfg.Port == 0 {
		cfg.Port = 465
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPTransport{cfg: cfg, logger: logger}
}

// Send delivers one message. The outcome classifies failures so callers can
// tell a broken credential from a transient fault; err is nil iff sent.
func (t *SMTPTransport) Send(ctx context.Context, msg tracker.Message) (tracker.DeliveryOutcome, error) {
	if err := ctx.Err(); err != nil {
		return tracker.OutcomeTransient, err
	}

	e := email.NewEmail()
	e.From = fmt.Sprintf("%s <%s>", t.cfg.FromName, t.cfg.From)
	if t.cfg.FromName == "" {
		e.From = t.cfg.From
	}
	e.To = []string{msg.To}
	e.Subject = msg.Subject
	e.Text = []byte(msg.Body)

	addr := fmt.Sprintf("%s:%d", t.cfg.Host, t.cfg.Port)
	auth := smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, t.cfg.Host)

	if err := e.SendWithTLS(addr, auth, &tls.Config{ServerName: t.cfg.Host}); err != nil {
		return Classify(err), fmt.Errorf("send via %s: %w", addr, err)
	}
	t.logger.Debug("email accepted by server",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return tracker.OutcomeSent, nil
}

// Classify maps an SMTP error to a delivery outcome. Authentication
// rejections (534/535 and friends) are split out because they will not heal
// on retry without operator action.
func Classify(err error) tracker.DeliveryOutcome {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		switch protoErr.Code {
		case 530, 534, 535:
			return tracker.OutcomeAuthFailed
		}
	}
	if strings.Contains(strings.ToLower(err.Error()), "authentication") {
		return tracker.OutcomeAuthFailed
	}
	return tracker.OutcomeTransient
}
