package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"sync"
	texttemplate "text/template"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/hireflow/internal/models"
	"github.com/charlesng35/hireflow/pkg/logger"
	"github.com/charlesng35/hireflow/pkg/mail"
	"github.com/charlesng35/hireflow/pkg/metrics"
)

const defaultMailTimeout = 10 * time.Second

const (
	templateEmailVerification   = "email_verification"
	templatePasswordReset       = "password_reset"
	templateInvitation          = "invitation"
	templateApplicationReceived = "application_received"
)

var mailTemplates = template.Must(template.New("mail").Parse(`
{{define "email_verification"}}<p>Hi {{.Name}},</p>
<p>Thanks for registering with {{.App}}. Please confirm your email address:</p>
<p><a href="{{.Link}}">Verify my email</a></p>
<p>If you did not create an account, you can ignore this message.</p>{{end}}
{{define "password_reset"}}<p>Hi {{.Name}},</p>
<p>We received a request to reset your {{.App}} password. The link below is valid for one hour:</p>
<p><a href="{{.Link}}">Reset my password</a></p>
<p>If you did not request a reset, no action is needed.</p>{{end}}
{{define "invitation"}}<p>Hello {{.Name}},</p>
<p>{{if .Inviter}}{{.Inviter}} has invited you{{else}}You have been invited{{end}} to join the {{.App}} hiring team.</p>
<p><a href="{{.Link}}">Set up my account</a></p>
<p>The invitation expires on {{.Expires}}.</p>{{end}}
{{define "application_received"}}<p>Hi {{.Name}},</p>
<p>We received your application for <strong>{{.Job}}</strong>. Our team will review it and get back to you.</p>{{end}}
`))

var textTemplates = texttemplate.Must(texttemplate.New("mail").Parse(`
{{define "email_verification"}}Hi {{.Name}},

Confirm your email address for {{.App}}:
{{.Link}}
{{end}}
{{define "password_reset"}}Hi {{.Name}},

Reset your {{.App}} password within the next hour:
{{.Link}}
{{end}}
{{define "invitation"}}Hello {{.Name}},

{{if .Inviter}}{{.Inviter}} has invited you{{else}}You have been invited{{end}} to join the {{.App}} hiring team.
Set up your account before {{.Expires}}:
{{.Link}}
{{end}}
{{define "application_received"}}Hi {{.Name}},

We received your application for {{.Job}}.
{{end}}
`))

// NotifierOption customises Notifier behaviour.
type NotifierOption func(*Notifier)

// WithNotifierBaseURL sets the public URL used to build links in emails.
func WithNotifierBaseURL(baseURL string) NotifierOption {
	return func(n *Notifier) {
		n.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

// WithNotifierAppName sets the product name used in email copy.
func WithNotifierAppName(name string) NotifierOption {
	return func(n *Notifier) {
		if strings.TrimSpace(name) != "" {
			n.appName = strings.TrimSpace(name)
		}
	}
}

// WithAsyncDelivery sends mail on a background goroutine with its own timeout.
func WithAsyncDelivery(timeout time.Duration) NotifierOption {
	return func(n *Notifier) {
		n.async = true
		if timeout > 0 {
			n.timeout = timeout
		}
	}
}

// Notifier renders and sends transactional email. Delivery is
// fire-and-forget: failures are logged and counted, never returned.
type Notifier struct {
	mailer  mail.Mailer
	baseURL string
	appName string
	async   bool
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewNotifier wraps a mailer. A nil mailer disables delivery.
func NewNotifier(mailer mail.Mailer, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		mailer:  mailer,
		appName: "HireFlow",
		timeout: defaultMailTimeout,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Wait blocks until in-flight asynchronous deliveries finish.
func (n *Notifier) Wait() {
	if n == nil {
		return
	}
	n.wg.Wait()
}

// VerificationLink builds the email verification URL for token.
func (n *Notifier) VerificationLink(token string) string {
	return n.link("/verify-email", token)
}

// PasswordResetLink builds the password reset URL for token.
func (n *Notifier) PasswordResetLink(token string) string {
	return n.link("/reset-password", token)
}

// InvitationLink builds the account setup URL for token.
func (n *Notifier) InvitationLink(token string) string {
	return n.link("/accept-invitation", token)
}

func (n *Notifier) link(path, token string) string {
	if n == nil {
		return ""
	}
	return fmt.Sprintf("%s%s?token=%s", n.baseURL, path, url.QueryEscape(token))
}

// SendEmailVerification mails the verification link to a new applicant.
func (n *Notifier) SendEmailVerification(ctx context.Context, account *models.Account, token string) {
	n.send(ctx, templateEmailVerification, account.Email, "Confirm your email address", map[string]any{
		"Name": account.FullName(),
		"Link": n.VerificationLink(token),
	})
}

// SendPasswordReset mails a password reset link.
func (n *Notifier) SendPasswordReset(ctx context.Context, account *models.Account, token string) {
	n.send(ctx, templatePasswordReset, account.Email, "Reset your password", map[string]any{
		"Name": account.FullName(),
		"Link": n.PasswordResetLink(token),
	})
}

// SendInvitation mails an account setup link to an invited team member.
func (n *Notifier) SendInvitation(ctx context.Context, account *models.Account, token, inviter string, expiresAt time.Time) {
	if n == nil {
		return
	}
	n.send(ctx, templateInvitation, account.Email, "You're invited to "+n.appName, map[string]any{
		"Name":    account.FullName(),
		"Link":    n.InvitationLink(token),
		"Inviter": inviter,
		"Expires": expiresAt.UTC().Format("Jan 2, 2006 15:04 MST"),
	})
}

// SendApplicationReceived confirms a submitted application to the applicant.
func (n *Notifier) SendApplicationReceived(ctx context.Context, account *models.Account, job *models.Job) {
	n.send(ctx, templateApplicationReceived, account.Email, "We received your application", map[string]any{
		"Name": account.FullName(),
		"Job":  job.Title,
	})
}

func (n *Notifier) send(ctx context.Context, name, to, subject string, data map[string]any) {
	if n == nil {
		return
	}
	log := logger.WithModule("mail")

	if n.mailer == nil {
		metrics.MailDeliveries.WithLabelValues(name, "disabled").Inc()
		return
	}

	data["App"] = n.appName
	var html, text bytes.Buffer
	if err := errors.Join(
		mailTemplates.ExecuteTemplate(&html, name, data),
		textTemplates.ExecuteTemplate(&text, name, data),
	); err != nil {
		metrics.MailDeliveries.WithLabelValues(name, "failed").Inc()
		log.Error("render email template", zap.String("template", name), zap.Error(err))
		return
	}

	msg := mail.Message{
		To:      []string{to},
		Subject: subject,
		Text:    text.String(),
		HTML:    html.String(),
	}

	deliver := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, n.timeout)
		defer cancel()

		err := n.mailer.Send(ctx, msg)
		switch {
		case err == nil:
			metrics.MailDeliveries.WithLabelValues(name, "sent").Inc()
		case errors.Is(err, mail.ErrSMTPDisabled):
			metrics.MailDeliveries.WithLabelValues(name, "disabled").Inc()
			log.Debug("smtp disabled, email skipped", zap.String("template", name))
		default:
			metrics.MailDeliveries.WithLabelValues(name, "failed").Inc()
			log.Warn("email delivery failed", zap.String("template", name), logger.Email("to", to), zap.Error(err))
		}
	}

	ctx = context.WithoutCancel(ensureContext(ctx))
	if !n.async {
		deliver(ctx)
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		deliver(ctx)
	}()
}
