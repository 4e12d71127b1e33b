package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strings"

	"complaint-service/internal/config"
	"complaint-service/internal/metrics"
)

// Sender delivers one email with both HTML and plain-text bodies. The service
// owns the body content; delivery is fully delegated here.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
}

// NewSender selects the delivery backend from config. Anything other than
// "smtp" falls back to log-only delivery, which is what local development
// wants anyway.
func NewSender(cfg config.EmailConfig, logger *slog.Logger) Sender {
	switch cfg.Sender {
	case "smtp":
		return &SMTPSender{
			addr:   fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
			from:   cfg.From,
			logger: logger,
		}
	default:
		return &LogSender{logger: logger}
	}
}

// Instrument wraps a Sender so successful deliveries are counted.
func Instrument(next Sender, m *metrics.Metrics) Sender {
	return &instrumentedSender{next: next, metrics: m}
}

type instrumentedSender struct {
	next    Sender
	metrics *metrics.Metrics
}

func (s *instrumentedSender) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	err := s.next.Send(ctx, to, subject, htmlBody, textBody)
	if err == nil {
		s.metrics.RecordEmailSent(ctx)
	}
	return err
}

// LogSender writes the mail to the log instead of delivering it.
type LogSender struct {
	logger *slog.Logger
}

func (s *LogSender) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	s.logger.InfoContext(ctx, "outbound email (log sender)",
		"to", to,
		"subject", subject,
		"body", textBody,
	)
	return nil
}

type SMTPSender struct {
	addr   string
	from   string
	logger *slog.Logger
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	msg, err := buildMessage(s.from, to, subject, htmlBody, textBody)
	if err != nil {
		return err
	}
	if err := smtp.SendMail(s.addr, nil, s.from, []string{to}, msg); err != nil {
		s.logger.ErrorContext(ctx, "smtp delivery failed", "to", to, "error", err)
		return err
	}
	s.logger.InfoContext(ctx, "email sent", "to", to, "subject", subject)
	return nil
}

// buildMessage assembles a multipart/alternative message with the plain-text
// part first so clients that cannot render HTML still show something useful.
func buildMessage(from, to, subject, htmlBody, textBody string) ([]byte, error) {
	var sb strings.Builder
	mw := multipart.NewWriter(&sb)

	fmt.Fprintf(&sb, "From: %s\r\n", from)
	fmt.Fprintf(&sb, "To: %s\r\n", to)
	fmt.Fprintf(&sb, "Subject: %s\r\n", subject)
	fmt.Fprintf(&sb, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&sb, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", mw.Boundary())

	textPart, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/plain; charset=utf-8"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := textPart.Write([]byte(textBody)); err != nil {
		return nil, err
	}

	htmlPart, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/html; charset=utf-8"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := htmlPart.Write([]byte(htmlBody)); err != nil {
		return nil, err
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return []byte(sb.String()), nil
}
