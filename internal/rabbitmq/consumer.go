package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/auth-service/internal/lib/sl"
)

const prefetchCount = 10

// Consumer запущенное чтение очереди.
type Consumer struct {
	done chan struct{}
	wg   sync.WaitGroup
}

// Done закрывается, когда цикл чтения остановился: по отмене ctx или
// потому, что брокер закрыл канал доставки.
func (c *Consumer) Done() <-chan struct{} {
	return c.done
}

// Wait ждёт остановки цикла и завершения уже запущенных обработчиков.
func (c *Consumer) Wait() {
	<-c.done
	c.wg.Wait()
}

// ConsumerMessage запускает чтение очереди. Каждое сообщение обрабатывается
// в отдельной горутине, одновременно не больше prefetchCount. Успех подтверждается
// Ack, ошибка обработчика возвращает сообщение в очередь через Nack.
func ConsumerMessage(ctx context.Context, log *slog.Logger, ch *amqp.Channel, queueName string, handler func(context.Context, []byte) error) (*Consumer, error) {
	const op = "rabbitmq.ConsumerMessage"
	delivery, err := ch.Consume(
		queueName,
		"",    // consumer
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return consume(ctx, log, delivery, handler), nil
}

func consume(ctx context.Context, log *slog.Logger, delivery <-chan amqp.Delivery, handler func(context.Context, []byte) error) *Consumer {
	c := &Consumer{done: make(chan struct{})}
	sem := make(chan struct{}, prefetchCount)
	go func() {
		defer close(c.done)
		for {
			select {
			case d, ok := <-delivery:
				if !ok {
					log.Warn("delivery channel closed by broker")
					return
				}
				sem <- struct{}{}
				c.wg.Add(1)
				go func(d amqp.Delivery) {
					defer c.wg.Done()
					defer func() { <-sem }()
					handleDelivery(ctx, log, d, handler)
				}(d)
			case <-ctx.Done():
				return
			}
		}
	}()
	return c
}

type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func handleDelivery(ctx context.Context, log *slog.Logger, d amqp.Delivery, handler func(context.Context, []byte) error) {
	process(ctx, log, d, d.Body, handler)
}

func process(ctx context.Context, log *slog.Logger, ack acknowledger, body []byte, handler func(context.Context, []byte) error) {
	if err := handler(ctx, body); err != nil {
		log.Warn("message handling failed, requeueing", sl.Err(err))
		if nackErr := ack.Nack(false, true); nackErr != nil {
			log.Error("failed to nack message", sl.Err(nackErr))
		}
		return
	}
	if ackErr := ack.Ack(false); ackErr != nil {
		log.Error("failed to ack message", sl.Err(ackErr))
	}
}
