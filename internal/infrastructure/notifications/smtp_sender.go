package notifications

import (
	"context"
	"fmt"

	gomail "gopkg.in/gomail.v2"

	"github.com/retailiq/customer-segmentation/pkg/config"
	apperrors "github.com/retailiq/customer-segmentation/pkg/errors"
)

// SMTPSender delivers segment-triggered messages over SMTP. One synchronous
// delivery per call; transport and auth failures surface as errors and the
// caller decides how to proceed. No retry here.
type SMTPSender struct {
	host     string
	port     int
	user     string
	password string
	from     string
}

// NewSMTPSender creates an SMTP sender from mail configuration. Credentials
// are required: dispatch without them is rejected up front rather than
// failing per recipient.
func NewSMTPSender(cfg *config.SMTPConfig) (*SMTPSender, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("EMAIL_USER and EMAIL_PASS must be set")
	}

	return &SMTPSender{
		host:     cfg.Host,
		port:     cfg.Port,
		user:     cfg.User,
		password: cfg.Password,
		from:     cfg.Sender(),
	}, nil
}

// Send attempts one delivery. Implicit TLS is used on port 465, STARTTLS
// otherwise, matching common provider setups.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewDeliveryError(fmt.Sprintf("delivery to %s aborted", to), err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := gomail.NewDialer(s.host, s.port, s.user, s.password)
	d.SSL = s.port == 465

	if err := d.DialAndSend(m); err != nil {
		return apperrors.NewDeliveryError(fmt.Sprintf("failed to deliver message to %s", to), err)
	}

	return nil
}
