package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kycdesk/intake-service/internal/config"
	"github.com/kycdesk/intake-service/internal/domain"
	"github.com/kycdesk/intake-service/internal/events"
	"github.com/kycdesk/intake-service/internal/formdata"
	"github.com/kycdesk/intake-service/internal/mail"
	"github.com/kycdesk/intake-service/internal/observability"
	"github.com/kycdesk/intake-service/internal/pdf"
)

// Notification failure kinds, as counted in metrics.
const (
	FailurePDF            = "pdf"
	FailureAdminEmail     = "admin_email"
	FailureApplicantEmail = "applicant_email"
	FailureResetEmail     = "reset_email"
)

// FileResolver maps a stored file's public path to disk.
type FileResolver interface {
	Resolve(publicPath string) (string, error)
}

// NotificationService renders summaries and sends emails for domain events.
type NotificationService struct {
	dispatcher      events.Dispatcher
	sender          mail.Sender
	pdf             *pdf.Generator
	files           FileResolver
	metrics         *observability.Metrics
	logger          *zap.Logger
	adminRecipients []string
	publicWebURL    string
	now             func() time.Time
}

// NotificationDependencies bundles collaborators of the notification service.
type NotificationDependencies struct {
	Dispatcher events.Dispatcher
	Sender     mail.Sender
	PDF        *pdf.Generator
	Files      FileResolver
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Now        func() time.Time
}

// NewNotificationService creates the service.
func NewNotificationService(cfg config.Config, deps NotificationDependencies) *NotificationService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	generator := deps.PDF
	if generator == nil {
		generator = pdf.NewGenerator(cfg.App.Name)
	}
	sender := deps.Sender
	if sender == nil {
		sender = mail.NewLogSender(logger)
	}
	return &NotificationService{
		dispatcher:      deps.Dispatcher,
		sender:          sender,
		pdf:             generator,
		files:           deps.Files,
		metrics:         deps.Metrics,
		logger:          logger,
		adminRecipients: cfg.Mail.AdminRecipients,
		publicWebURL:    strings.TrimRight(cfg.App.PublicWebURL, "/"),
		now:             now,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n == nil || n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventApplicationSubmitted, n.handleApplicationWritten)
	n.dispatcher.Subscribe(events.EventApplicationUpdated, n.handleApplicationWritten)
	n.dispatcher.Subscribe(events.EventPasswordResetRequested, n.handlePasswordReset)
}

// handleApplicationWritten sends the admin email (summary PDF and every
// stored file attached) and the applicant confirmation concurrently.
func (n *NotificationService) handleApplicationWritten(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ApplicationPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	app := &payload.Application
	action := event.Type.Action()
	log := n.logger.With(
		zap.String("event_type", string(event.Type)),
		zap.String("application_id", app.ID),
		zap.String("category", string(payload.Category)))

	var g errgroup.Group
	g.Go(func() error {
		if err := n.sendAdmin(ctx, payload.Category, app, action); err != nil {
			n.metrics.RecordNotificationFailure(FailureAdminEmail)
			log.Error("admin notification failed", zap.Error(err))
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := n.sendApplicant(ctx, payload.Category, app, action); err != nil {
			n.metrics.RecordNotificationFailure(FailureApplicantEmail)
			log.Error("applicant confirmation failed", zap.Error(err))
			return err
		}
		return nil
	})
	return g.Wait()
}

func (n *NotificationService) sendAdmin(ctx context.Context, category domain.Category, app *domain.Application, action string) error {
	if len(n.adminRecipients) == 0 {
		n.logger.Debug("no admin recipients configured", zap.String("application_id", app.ID))
		return nil
	}
	contact := formdata.ExtractContact(app.FormData)

	lines := make([]mail.FileLine, 0, len(app.Files))
	attachments := make([]mail.Attachment, 0, len(app.Files)+1)

	summary, err := n.pdf.Render(pdf.Summary{Application: app, Category: category, Action: action, GeneratedAt: n.now()})
	if err != nil {
		n.metrics.RecordNotificationFailure(FailurePDF)
		n.logger.Error("summary pdf failed; sending without it", zap.String("application_id", app.ID), zap.Error(err))
	} else {
		attachments = append(attachments, mail.Attachment{
			Filename:    fmt.Sprintf("application-%s.pdf", app.ID),
			ContentType: "application/pdf",
			Data:        summary,
		})
	}

	for _, f := range app.Files {
		lines = append(lines, mail.FileLine{Label: formdata.Humanize(f.Field), Name: f.OriginalName})
		if n.files == nil {
			continue
		}
		p, err := n.files.Resolve(f.Path)
		if err != nil {
			n.logger.Warn("skipping attachment", zap.String("path", f.Path), zap.Error(err))
			continue
		}
		attachments = append(attachments, mail.Attachment{Filename: f.OriginalName, ContentType: f.MimeType, Path: p})
	}

	msg, err := mail.AdminNotification{
		CategoryLabel: category.Label(),
		Action:        action,
		ApplicationID: app.ID,
		FormKey:       app.FormKey,
		Contact:       contact,
		Fields:        formdata.Flatten(app.FormData),
		Files:         lines,
		EditUntil:     app.EditUntil,
		At:            app.UpdatedAt,
	}.Render(n.adminRecipients)
	if err != nil {
		return err
	}
	msg.Attachments = attachments
	return n.sender.Send(ctx, msg)
}

func (n *NotificationService) sendApplicant(ctx context.Context, category domain.Category, app *domain.Application, action string) error {
	email, ok := formdata.LookupEmail(app.FormData, category.ApplicantEmailPaths())
	if !ok {
		n.logger.Debug("no applicant email found", zap.String("application_id", app.ID))
		return nil
	}
	msg, err := mail.ApplicantConfirmation{
		Name:          formdata.ExtractContact(app.FormData).Name,
		CategoryLabel: category.Label(),
		Action:        action,
		ApplicationID: app.ID,
		EditURL:       n.publicWebURL + "/edit/" + app.ID,
		EditUntil:     app.EditUntil,
	}.Render(email)
	if err != nil {
		return err
	}
	return n.sender.Send(ctx, msg)
}

func (n *NotificationService) handlePasswordReset(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.PasswordResetPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	msg, err := mail.PasswordReset{Name: payload.Name, ResetURL: payload.ResetURL, ExpiresIn: payload.ExpiresIn}.Render(payload.Email)
	if err == nil {
		err = n.sender.Send(ctx, msg)
	}
	if err != nil {
		n.metrics.RecordNotificationFailure(FailureResetEmail)
		n.logger.Error("password reset email failed", zap.String("user_id", event.SubjectID), zap.Error(err))
		return err
	}
	return nil
}
