package mail

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message is one outbound email. Text and HTML may both be set, in which
// case a multipart/alternative body is produced.
type Message struct {
	From    string
	ReplyTo string
	To      []string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Compose renders msg as an RFC 5322 message. Headers use RFC 2047 encoding
// and bodies are quoted-printable, so non-ASCII names survive any relay.
func Compose(from string, to []string, msg Message, now time.Time) ([]byte, error) {
	var buf bytes.Buffer

	domain := "localhost"
	if addr, err := mail.ParseAddress(from); err == nil {
		if _, host, ok := strings.Cut(addr.Address, "@"); ok {
			domain = host
		}
	}

	header := textproto.MIMEHeader{}
	header.Set("From", from)
	header.Set("To", strings.Join(to, ", "))
	if msg.ReplyTo != "" {
		header.Set("Reply-To", msg.ReplyTo)
	}
	header.Set("Subject", mime.QEncoding.Encode("utf-8", singleLine(msg.Subject)))
	header.Set("Date", now.UTC().Format(time.RFC1123Z))
	header.Set("Message-ID", fmt.Sprintf("<%s@%s>", uuid.NewString(), domain))
	header.Set("MIME-Version", "1.0")

	text, html := strings.TrimSpace(msg.Text) != "", strings.TrimSpace(msg.HTML) != ""
	if text && html {
		mw := multipart.NewWriter(&buf)
		header.Set("Content-Type", "multipart/alternative; boundary="+mw.Boundary())
		writeHeader(&buf, header)

		for _, part := range []struct{ contentType, body string }{
			{"text/plain; charset=UTF-8", msg.Text},
			{"text/html; charset=UTF-8", msg.HTML},
		} {
			w, err := mw.CreatePart(textproto.MIMEHeader{
				"Content-Type":              {part.contentType},
				"Content-Transfer-Encoding": {"quoted-printable"},
			})
			if err != nil {
				return nil, err
			}
			if err := writeQuotedPrintable(w, part.body); err != nil {
				return nil, err
			}
		}
		if err := mw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	contentType, body := "text/plain; charset=UTF-8", msg.Text
	if html {
		contentType, body = "text/html; charset=UTF-8", msg.HTML
	}
	header.Set("Content-Type", contentType)
	header.Set("Content-Transfer-Encoding", "quoted-printable")
	writeHeader(&buf, header)
	if err := writeQuotedPrintable(&buf, body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var headerOrder = []string{"From", "To", "Reply-To", "Subject", "Date", "Message-ID", "MIME-Version", "Content-Type", "Content-Transfer-Encoding"}

func writeHeader(buf *bytes.Buffer, header textproto.MIMEHeader) {
	for _, key := range headerOrder {
		if value := header.Get(key); value != "" {
			fmt.Fprintf(buf, "%s: %s\r\n", key, value)
		}
	}
	buf.WriteString("\r\n")
}

func writeQuotedPrintable(w io.Writer, body string) error {
	qp := quotedprintable.NewWriter(w)
	if _, err := qp.Write([]byte(body)); err != nil {
		return err
	}
	return qp.Close()
}

func singleLine(value string) string {
	return strings.Join(strings.Fields(value), " ")
}
