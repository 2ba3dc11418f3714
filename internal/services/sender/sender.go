// Package sender доставляет письма: напрямую через SMTP или через очередь RabbitMQ,
// которую вычитывает notification-sender.
package sender

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"strings"

	"github.com/magabrotheeeer/auth-service/internal/lib/sl"
	"github.com/magabrotheeeer/auth-service/internal/lib/smtp"
)

const forwardPrefix = "[FORWARD] "

// Mailer отправляет письма через SMTP-транспорт.
//
// При заданном forwardTo каждое письмо дублируется на этот адрес с префиксом
// "[FORWARD] " в теме. Сбой отправки копии не возвращается вызывающему: он
// пишется в лог уровнем Warn, а Send считает доставку успешной, если ушло
// основное письмо. Копия на адрес самого получателя не отправляется.
type Mailer struct {
	transport smtp.TransportInterface
	forwardTo string
	log       *slog.Logger
}

// NewMailer создает новый экземпляр Mailer. Если forwardTo задан,
// копия каждого письма уходит и на этот адрес.
func NewMailer(transport smtp.TransportInterface, forwardTo string, log *slog.Logger) *Mailer {
	return &Mailer{
		transport: transport,
		forwardTo: forwardTo,
		log:       log,
	}
}

// Send отправляет письмо с текстовой и, если задана, HTML-версией.
// Ошибка отправки копии только логируется.
func (m *Mailer) Send(ctx context.Context, to, subject, text, html string) error {
	const op = "sender.Send"

	if err := m.sendEmail(ctx, to, subject, text, html); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if m.forwardTo != "" && !strings.EqualFold(m.forwardTo, to) {
		if err := m.sendEmail(ctx, m.forwardTo, forwardPrefix+subject, text, html); err != nil {
			m.log.Warn("failed to forward email copy", slog.String("op", op), slog.String("forward_to", m.forwardTo), sl.Err(err))
		}
	}
	return nil
}

func (m *Mailer) sendEmail(ctx context.Context, to, subject, text, html string) error {
	from := m.transport.GetFrom()
	msg, err := buildMessage(from, to, subject, text, html)
	if err != nil {
		return err
	}

	client, err := m.transport.Connect(ctx)
	if err != nil {
		m.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer client.Close()

	if err = client.Mail(from); err != nil {
		m.log.Error("failed to set MAIL FROM", slog.String("from", from), sl.Err(err))
		return err
	}
	if err = client.Rcpt(to); err != nil {
		m.log.Error("failed to set RCPT TO", slog.String("recipient", to), sl.Err(err))
		return err
	}

	wc, err := client.Data()
	if err != nil {
		m.log.Error("failed to get Data writer", sl.Err(err))
		return err
	}
	if _, err = wc.Write(msg); err != nil {
		m.log.Error("failed to write email body", sl.Err(err))
		return err
	}
	if err = wc.Close(); err != nil {
		m.log.Error("failed to close Data writer", sl.Err(err))
		return err
	}
	if err = client.Quit(); err != nil {
		m.log.Error("failed to quit SMTP client", sl.Err(err))
		return err
	}

	m.log.Info("email sent successfully", slog.String("to", to))
	return nil
}

// buildMessage собирает RFC 5322 письмо. При пустом html письмо однокомпонентное.
func buildMessage(from, to, subject, text, html string) ([]byte, error) {
	var buf bytes.Buffer
	headers := []string{
		"From: " + from,
		"To: " + to,
		"Subject: " + mime.QEncoding.Encode("utf-8", subject),
		"MIME-Version: 1.0",
	}

	if html == "" {
		headers = append(headers,
			`Content-Type: text/plain; charset="UTF-8"`,
			"Content-Transfer-Encoding: quoted-printable",
		)
		buf.WriteString(strings.Join(headers, "\r\n") + "\r\n\r\n")
		if err := writeQuoted(&buf, text); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, part := range []struct{ contentType, content string }{
		{`text/plain; charset="UTF-8"`, text},
		{`text/html; charset="UTF-8"`, html},
	} {
		w, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {part.contentType},
			"Content-Transfer-Encoding": {"quoted-printable"},
		})
		if err != nil {
			return nil, err
		}
		if err = writeQuoted(w, part.content); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	headers = append(headers, fmt.Sprintf(`Content-Type: multipart/alternative; boundary="%s"`, mw.Boundary()))
	buf.WriteString(strings.Join(headers, "\r\n") + "\r\n\r\n")
	buf.Write(body.Bytes())
	return buf.Bytes(), nil
}

func writeQuoted(w io.Writer, s string) error {
	qw := quotedprintable.NewWriter(w)
	if _, err := qw.Write([]byte(s)); err != nil {
		return err
	}
	return qw.Close()
}
