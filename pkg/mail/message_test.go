package mail

import (
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var composedAt = time.Date(2024, 5, 4, 9, 0, 0, 0, time.UTC)

func parse(t *testing.T, raw []byte) *mail.Message {
	t.Helper()
	msg, err := mail.ReadMessage(strings.NewReader(string(raw)))
	require.NoError(t, err)
	return msg
}

func TestComposeSinglePart(t *testing.T) {
	raw, err := Compose("HireFlow <no-reply@hireflow.io>", []string{"jane@example.com"}, Message{
		Subject: "Confirm your\r\nemail",
		HTML:    `<a href="https://jobs.example.com/verify-email?token=abc">Verify</a>`,
	}, composedAt)
	require.NoError(t, err)

	msg := parse(t, raw)
	require.Equal(t, "Confirm your email", msg.Header.Get("Subject"), "header injection collapsed")
	require.Equal(t, "jane@example.com", msg.Header.Get("To"))
	require.True(t, strings.HasSuffix(msg.Header.Get("Message-ID"), "@hireflow.io>"))

	date, err := msg.Header.Date()
	require.NoError(t, err)
	require.True(t, date.Equal(composedAt))

	mediaType, _, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "text/html", mediaType)
	require.Equal(t, "quoted-printable", msg.Header.Get("Content-Transfer-Encoding"))
}

func TestComposeEncodesNonASCIISubject(t *testing.T) {
	raw, err := Compose("no-reply@hireflow.io", []string{"jose@example.com"}, Message{
		Subject: "Bienvenue, José",
		Text:    "Bonjour",
	}, composedAt)
	require.NoError(t, err)

	header := parse(t, raw).Header.Get("Subject")
	require.True(t, strings.HasPrefix(header, "=?utf-8?q?"), header)

	decoded, err := new(mime.WordDecoder).DecodeHeader(header)
	require.NoError(t, err)
	require.Equal(t, "Bienvenue, José", decoded)
}

func TestComposeAlternative(t *testing.T) {
	raw, err := Compose("no-reply@hireflow.io", []string{"jane@example.com"}, Message{
		ReplyTo: "talent@hireflow.io",
		Subject: "We received your application",
		Text:    "Thanks for applying.",
		HTML:    "<p>Thanks for applying.</p>",
	}, composedAt)
	require.NoError(t, err)

	msg := parse(t, raw)
	require.Equal(t, "talent@hireflow.io", msg.Header.Get("Reply-To"))

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/alternative", mediaType)

	reader := multipart.NewReader(msg.Body, params["boundary"])
	var types, bodies []string
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		body, err := io.ReadAll(part)
		require.NoError(t, err)
		types = append(types, part.Header.Get("Content-Type"))
		bodies = append(bodies, string(body))
	}
	require.Equal(t, []string{"text/plain; charset=UTF-8", "text/html; charset=UTF-8"}, types)
	require.Equal(t, "Thanks for applying.", bodies[0])
	require.Equal(t, "<p>Thanks for applying.</p>", bodies[1])
}
