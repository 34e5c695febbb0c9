package app

import (
	"strings"

	"github.com/charlesng35/hireflow/internal/services"
	"github.com/charlesng35/hireflow/pkg/mail"
)

// SMTPSettings converts EmailConfig to the mail package representation.
func (c EmailConfig) SMTPSettings() mail.SMTPSettings {
	return mail.SMTPSettings{
		Enabled:  c.SMTP.Enabled,
		Host:     c.SMTP.Host,
		Port:     c.SMTP.Port,
		Username: c.SMTP.Username,
		Password: c.SMTP.Password,
		From:     c.SMTP.From,
		UseTLS:   c.SMTP.UseTLS,
		Timeout:  c.SMTP.Timeout,
	}
}

// NotifierOptions builds the notifier options for the configured links and delivery mode.
func (c Config) NotifierOptions() []services.NotifierOption {
	opts := []services.NotifierOption{
		services.WithNotifierBaseURL(strings.TrimRight(c.Server.PublicURL, "/")),
	}
	if name := strings.TrimSpace(c.Email.AppName); name != "" {
		opts = append(opts, services.WithNotifierAppName(name))
	}
	if c.Email.Async {
		opts = append(opts, services.WithAsyncDelivery(c.Email.AsyncTimeout))
	}
	return opts
}
