package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// TitleJob asks the background worker to generate a short title for a
// freshly created chat from its first user message.
type TitleJob struct {
	ChatID  string `json:"chat_id"`
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

type TitlePublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewTitlePublisher(conn *amqp.Connection, queueName string) *TitlePublisher {
	return &TitlePublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *TitlePublisher) Publish(ctx context.Context, chatID, userID, message string) error {
	job := TitleJob{ChatID: chatID, UserID: userID, Message: message}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	_, err = ch.QueueDeclare(
		p.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue failed: %w", err)
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal title job failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return fmt.Errorf("publish title job failed: %w", err)
	}
	return nil
}
