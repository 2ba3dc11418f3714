package sender

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/auth-service/internal/lib/sl"
	"github.com/magabrotheeeer/auth-service/internal/rabbitmq"
)

// EmailMessage письмо в очереди уведомлений.
type EmailMessage struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html,omitempty"`
}

// Publisher публикует сообщение по ключу маршрутизации.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// QueueDispatcher ставит письма в очередь вместо прямой отправки.
type QueueDispatcher struct {
	publisher Publisher
}

// NewQueueDispatcher создает новый экземпляр QueueDispatcher.
func NewQueueDispatcher(publisher Publisher) *QueueDispatcher {
	return &QueueDispatcher{publisher: publisher}
}

// Send публикует письмо в очередь notifications.email.
func (d *QueueDispatcher) Send(ctx context.Context, to, subject, text, html string) error {
	const op = "sender.QueueDispatcher.Send"
	msg := EmailMessage{To: to, Subject: subject, Text: text, HTML: html}
	if err := d.publisher.Publish(ctx, rabbitmq.EmailRoutingKey, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// HandleEmail обрабатывает сообщение из очереди писем.
// Нечитаемое сообщение отбрасывается, иначе оно возвращалось бы в очередь бесконечно.
func (m *Mailer) HandleEmail(ctx context.Context, body []byte) error {
	const op = "sender.HandleEmail"

	var msg EmailMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		m.log.Error("failed to unmarshal message body, dropping", slog.String("op", op), sl.Err(err))
		return nil
	}
	if msg.To == "" {
		m.log.Error("message without recipient, dropping", slog.String("op", op))
		return nil
	}
	if err := m.Send(ctx, msg.To, msg.Subject, msg.Text, msg.HTML); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
