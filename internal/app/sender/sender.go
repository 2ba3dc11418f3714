// Package sender собирает процесс, который читает письма из очереди и отправляет их по SMTP.
package sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/auth-service/internal/config"
	"github.com/magabrotheeeer/auth-service/internal/lib/sl"
	"github.com/magabrotheeeer/auth-service/internal/lib/smtp"
	"github.com/magabrotheeeer/auth-service/internal/rabbitmq"
	senderservice "github.com/magabrotheeeer/auth-service/internal/services/sender"
)

type App struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	mailer *senderservice.Mailer
	logger *slog.Logger
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.sender.New"

	if cfg.RabbitMQ.URL == "" {
		return nil, fmt.Errorf("%s: rabbitmq url is not set", op)
	}
	conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.Retries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	transport := smtp.NewTransport(cfg.SMTP, logger)
	return &App{
		conn:   conn,
		ch:     ch,
		mailer: senderservice.NewMailer(transport, cfg.SMTP.ForwardTo, logger),
		logger: logger,
	}, nil
}

// ErrConsumerStopped чтение очереди прекратилось до отмены контекста.
var ErrConsumerStopped = errors.New("email consumer stopped unexpectedly")

// consumer запущенное чтение очереди.
type consumer interface {
	Done() <-chan struct{}
	Wait()
}

// Run потребляет очередь писем до отмены ctx и дожидается обработчиков, которые уже работают.
// Если брокер закрыл доставку раньше, Run возвращает ErrConsumerStopped.
func (a *App) Run(ctx context.Context) error {
	c, err := rabbitmq.ConsumerMessage(ctx, a.logger, a.ch, rabbitmq.EmailQueue, a.mailer.HandleEmail)
	if err != nil {
		a.logger.Error("failed to start email consumer", slog.String("queue", rabbitmq.EmailQueue), sl.Err(err))
		a.close()
		return err
	}
	a.logger.Info("email consumer started", slog.String("queue", rabbitmq.EmailQueue))

	err = supervise(ctx, a.logger, c)
	a.close()
	return err
}

func supervise(ctx context.Context, log *slog.Logger, c consumer) error {
	const op = "app.sender.Run"

	select {
	case <-ctx.Done():
		log.Info("sender service shutting down gracefully")
		c.Wait()
		return nil
	case <-c.Done():
		c.Wait()
		if ctx.Err() != nil {
			return nil
		}
		log.Error("email consumer stopped before shutdown", slog.String("queue", rabbitmq.EmailQueue))
		return fmt.Errorf("%s: %w", op, ErrConsumerStopped)
	}
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
}
