// Package mailer delivers the newsletter over SMTP.
package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"

	mail "gopkg.in/mail.v2"
)

// ErrNoRecipients is reported when there is nobody to send to.
var ErrNoRecipients = errors.New("no opted-in recipients")

// Message is one newsletter delivery.
type Message struct {
	Subject    string
	HTML       string
	PDF        []byte
	PDFName    string
	Recipients []string
}

// Outcome reports how a delivery went.
type Outcome struct {
	Success bool   `json:"success"`
	Count   int    `json:"count"`
	Error   string `json:"error,omitempty"`
}

// Sender delivers a message to its recipients.
type Sender interface {
	Send(ctx context.Context, msg Message) Outcome
}

// Config holds SMTP settings.
type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	TLSEnabled  bool
	FromAddress string
	FromName    string
	BatchSize   int
}

// dialer is the part of *mail.Dialer the sender uses.
type dialer interface {
	DialAndSend(m ...*mail.Message) error
}

// SMTPSender sends recipients in BCC batches so addresses are never
// disclosed to each other.
type SMTPSender struct {
	cfg    Config
	dialer dialer
	log    *slog.Logger
}

// NewSMTPSender creates a sender for cfg.
func NewSMTPSender(cfg Config, log *slog.Logger) *SMTPSender {
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	if cfg.TLSEnabled {
		d.StartTLSPolicy = mail.MandatoryStartTLS
		d.TLSConfig = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
	}
	return newSender(cfg, d, log)
}

func newSender(cfg Config, d dialer, log *slog.Logger) *SMTPSender {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if log == nil {
		log = slog.Default()
	}
	return &SMTPSender{cfg: cfg, dialer: d, log: log}
}

// Send delivers msg batch by batch and stops at the first failed batch.
// Count is the number of recipients whose batch was accepted.
func (s *SMTPSender) Send(ctx context.Context, msg Message) Outcome {
	if len(msg.Recipients) == 0 {
		return Outcome{Success: false, Count: 0, Error: ErrNoRecipients.Error()}
	}

	sent := 0
	for _, batch := range Batches(msg.Recipients, s.cfg.BatchSize) {
		if err := ctx.Err(); err != nil {
			return Outcome{Success: false, Count: sent, Error: err.Error()}
		}
		if err := s.dialer.DialAndSend(s.build(msg, batch)); err != nil {
			s.log.Error("newsletter batch failed", "error", err.Error(), "sent", sent, "batch_size", len(batch))
			return Outcome{Success: false, Count: sent, Error: fmt.Sprintf("failed to send batch: %v", err)}
		}
		sent += len(batch)
		s.log.Debug("newsletter batch sent", "batch_size", len(batch), "sent", sent)
	}

	s.log.Info("newsletter sent", "recipients", sent)
	return Outcome{Success: true, Count: sent}
}

func (s *SMTPSender) build(msg Message, bcc []string) *mail.Message {
	m := mail.NewMessage()
	m.SetAddressHeader("From", s.cfg.FromAddress, s.cfg.FromName)
	m.SetHeader("To", s.cfg.FromAddress)
	m.SetHeader("Bcc", bcc...)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)

	if len(msg.PDF) > 0 {
		name := msg.PDFName
		if name == "" {
			name = "newsletter.pdf"
		}
		data := msg.PDF
		m.Attach(name, mail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		}))
	}
	return m
}

// Batches splits recipients into consecutive groups of at most size.
func Batches(recipients []string, size int) [][]string {
	if size <= 0 {
		size = len(recipients)
	}
	var out [][]string
	for start := 0; start < len(recipients); start += size {
		end := min(start+size, len(recipients))
		out = append(out, recipients[start:end])
	}
	return out
}
