// Package mail sends the service's outbound emails.
package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/kycdesk/intake-service/internal/config"
)

// ErrNoRecipients is returned for a message without addresses.
var ErrNoRecipients = errors.New("mail: no recipients")

// Attachment is a file attached either from memory (Data) or from disk (Path).
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
	Path        string
}

// Message is one outbound email.
type Message struct {
	To          []string
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender delivers through an SMTP relay.
type SMTPSender struct {
	client *gomail.Client
	from   string
}

// NewSMTPSender builds a client for the configured relay. Authentication is
// enabled when a username is set.
func NewSMTPSender(cfg config.MailConfig) (*SMTPSender, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.SMTPPort),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(cfg.NotifyTimeout()),
	}
	if cfg.SMTPUsername != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.SMTPUsername),
			gomail.WithPassword(cfg.SMTPPassword),
		)
	}
	client, err := gomail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("mail client: %w", err)
	}
	return &SMTPSender{client: client, from: cfg.From}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := build(s.from, msg)
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send %q: %w", msg.Subject, err)
	}
	return nil
}

func build(from string, msg Message) (*gomail.Msg, error) {
	if len(msg.To) == 0 {
		return nil, ErrNoRecipients
	}
	m := gomail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("from %q: %w", from, err)
	}
	if err := m.To(msg.To...); err != nil {
		return nil, fmt.Errorf("to %s: %w", strings.Join(msg.To, ","), err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(gomail.TypeTextHTML, msg.HTML)
	}

	for _, a := range msg.Attachments {
		var fileOpts []gomail.FileOption
		if a.ContentType != "" {
			fileOpts = append(fileOpts, gomail.WithFileContentType(gomail.ContentType(a.ContentType)))
		}
		if a.Path != "" {
			m.AttachFile(a.Path, append(fileOpts, gomail.WithFileName(a.Filename))...)
			continue
		}
		if err := m.AttachReader(a.Filename, bytes.NewReader(a.Data), fileOpts...); err != nil {
			return nil, fmt.Errorf("attach %s: %w", a.Filename, err)
		}
	}
	return m, nil
}

// LogSender drops messages after logging them; used when mail is disabled.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender returns a sender that only logs.
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}
	s.logger.Info("mail disabled; message dropped",
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("attachments", len(msg.Attachments)))
	return nil
}

// NewSender returns the SMTP sender when mail is enabled, else a LogSender.
func NewSender(cfg config.MailConfig, logger *zap.Logger) (Sender, error) {
	if !cfg.Enabled {
		return NewLogSender(logger), nil
	}
	return NewSMTPSender(cfg)
}
