package mail

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/smtp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	authed  bool
	from    string
	rcpts   []string
	data    bytes.Buffer
	quit    bool
	closed  bool
	rcptErr error
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func (f *fakeSession) Auth(smtp.Auth) error          { f.authed = true; return nil }
func (f *fakeSession) Mail(from string) error        { f.from = from; return nil }
func (f *fakeSession) Data() (io.WriteCloser, error) { return nopCloser{&f.data}, nil }
func (f *fakeSession) Quit() error                   { f.quit = true; return nil }
func (f *fakeSession) Close() error                  { f.closed = true; return nil }

func (f *fakeSession) Rcpt(to string) error {
	if f.rcptErr != nil {
		return f.rcptErr
	}
	f.rcpts = append(f.rcpts, to)
	return nil
}

func newTestMailer(t *testing.T, cfg SMTPSettings, fake *fakeSession) *SMTPMailer {
	t.Helper()
	cfg.Enabled = true
	if cfg.Host == "" {
		cfg.Host = "smtp.example.com"
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	m, err := NewSMTPMailer(cfg)
	require.NoError(t, err)
	m.dial = func(context.Context, SMTPSettings) (session, error) { return fake, nil }
	m.now = func() time.Time { return composedAt }
	return m
}

func TestNewSMTPMailerValidation(t *testing.T) {
	_, err := NewSMTPMailer(SMTPSettings{Enabled: true})
	require.ErrorContains(t, err, "host is required")

	_, err = NewSMTPMailer(SMTPSettings{Enabled: true, Host: "smtp.example.com"})
	require.ErrorContains(t, err, "port is required")

	m, err := NewSMTPMailer(SMTPSettings{})
	require.NoError(t, err)
	require.False(t, m.Enabled())
	require.Equal(t, defaultSMTPTimeout, m.cfg.Timeout)
	require.ErrorIs(t, m.Send(context.Background(), Message{To: []string{"jane@example.com"}}), ErrSMTPDisabled)
}

func TestSMTPMailerSend(t *testing.T) {
	session := &fakeSession{}
	m := newTestMailer(t, SMTPSettings{From: "no-reply@hireflow.io", Username: "mailer", Password: "secret"}, session)

	err := m.Send(context.Background(), Message{
		To:      []string{"jane@example.com", " JANE@example.com ", ""},
		Subject: "Reset your password",
		Text:    "Reset link inside",
	})
	require.NoError(t, err)

	require.True(t, session.authed)
	require.Equal(t, "no-reply@hireflow.io", session.from)
	require.Equal(t, []string{"jane@example.com"}, session.rcpts, "recipients de-duplicated case-insensitively")
	require.Contains(t, session.data.String(), "Subject: Reset your password")
	require.True(t, session.quit)
	require.True(t, session.closed)
}

func TestSMTPMailerSkipsAuthWithoutUsername(t *testing.T) {
	session := &fakeSession{}
	m := newTestMailer(t, SMTPSettings{From: "no-reply@hireflow.io"}, session)
	require.NoError(t, m.Send(context.Background(), Message{To: []string{"jane@example.com"}, Text: "hi"}))
	require.False(t, session.authed)
}

func TestSMTPMailerEnvelopeErrors(t *testing.T) {
	cases := []struct {
		name string
		cfg  SMTPSettings
		msg  Message
		want string
	}{
		{name: "no sender", msg: Message{To: []string{"jane@example.com"}}, want: "sender address is required"},
		{name: "bad sender", msg: Message{From: "invalid-from", To: []string{"jane@example.com"}}, want: "invalid from address"},
		{name: "blank recipients", cfg: SMTPSettings{From: "no-reply@hireflow.io"}, msg: Message{To: []string{" ", "\t"}}, want: "at least one recipient"},
		{name: "bad recipient", cfg: SMTPSettings{From: "no-reply@hireflow.io"}, msg: Message{To: []string{"jane@example.com", "bad-address"}}, want: "invalid recipient address"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			session := &fakeSession{}
			m := newTestMailer(t, tc.cfg, session)
			require.ErrorContains(t, m.Send(context.Background(), tc.msg), tc.want)
			require.False(t, session.closed, "no connection opened for invalid envelopes")
		})
	}
}

func TestSMTPMailerPropagatesServerErrors(t *testing.T) {
	session := &fakeSession{rcptErr: errors.New("550 mailbox unavailable")}
	m := newTestMailer(t, SMTPSettings{From: "no-reply@hireflow.io"}, session)

	err := m.Send(context.Background(), Message{To: []string{"jane@example.com"}, Text: "hi"})
	require.ErrorContains(t, err, "550 mailbox unavailable")
	require.True(t, session.closed)
	require.False(t, session.quit)
}
