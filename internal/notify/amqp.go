// Package notify publishes outbound owner notifications to a message
// broker. Publishing is fire-and-forget from the billing flows: a broker
// outage is logged and never fails the transaction that triggered it.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const (
	QueueReceiptIssued   = "receipt.issued"
	QueuePaymentReminder = "payment.reminder"
)

type Publisher struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	log      *slog.Logger
}

// NewPublisher connects and declares the notification exchange and queues.
// A nil Publisher is valid and drops every message, so wiring stays simple
// when no broker is configured.
func NewPublisher(url, exchange string, log *slog.Logger) (*Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	p := &Publisher{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
		log:      log,
	}

	if err := p.setup(); err != nil {
		p.Close()
		return nil, fmt.Errorf("setup exchange and queues: %w", err)
	}

	return p, nil
}

func (p *Publisher) setup() error {
	if err := p.channel.ExchangeDeclare(
		p.exchange,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, queue := range []string{QueueReceiptIssued, QueuePaymentReminder} {
		if _, err := p.channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}
		if err := p.channel.QueueBind(queue, queue, p.exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", queue, err)
		}
	}
	return nil
}

func (p *Publisher) publish(ctx context.Context, queue string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return p.channel.PublishWithContext(
		ctx,
		p.exchange,
		queue, // routing key matches queue name on a direct exchange
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

// ReceiptIssued enqueues a new-receipt notification. Errors are logged, not
// returned: notifications must never undo committed billing work.
func (p *Publisher) ReceiptIssued(ctx context.Context, msg ReceiptIssuedMessage) {
	if p == nil {
		return
	}
	msg.Timestamp = time.Now()

	body, err := msg.ToJSON()
	if err != nil {
		p.log.Error("marshal receipt notification", "receipt", msg.Number, "err", err)
		return
	}
	if err := p.publish(ctx, QueueReceiptIssued, body); err != nil {
		p.log.Error("publish receipt notification", "receipt", msg.Number, "err", err)
		return
	}
	p.log.Debug("receipt notification queued", "receipt", msg.Number, "owner", msg.OwnerID)
}

// PaymentReminder enqueues a reminder for an owner with open receipts.
func (p *Publisher) PaymentReminder(ctx context.Context, msg PaymentReminderMessage) {
	if p == nil {
		return
	}
	msg.Timestamp = time.Now()

	body, err := msg.ToJSON()
	if err != nil {
		p.log.Error("marshal payment reminder", "owner", msg.OwnerID, "err", err)
		return
	}
	if err := p.publish(ctx, QueuePaymentReminder, body); err != nil {
		p.log.Error("publish payment reminder", "owner", msg.OwnerID, "err", err)
		return
	}
	p.log.Debug("payment reminder queued", "owner", msg.OwnerID)
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
