package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iRayau/AI-chat/internal/app"
	"github.com/iRayau/AI-chat/internal/platform/rabbitmq"
)

// TitleWorker consumes queued title jobs, asks the title service for a short
// generated title, and patches the chat row. Failures are logged and the
// delivery is dropped; the truncated first-message title simply remains.
type TitleWorker struct {
	conn      *amqp.Connection
	titles    *app.TitleService
	chats     app.ChatStore
	queueName string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewTitleWorker(conn *amqp.Connection, titles *app.TitleService, chats app.ChatStore, queueName string) *TitleWorker {
	return &TitleWorker{
		conn:      conn,
		titles:    titles,
		chats:     chats,
		queueName: queueName,
	}
}

func (w *TitleWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				w.handle(workerCtx, d)
			}
		}
	}()

	return nil
}

func (w *TitleWorker) handle(ctx context.Context, d amqp.Delivery) {
	var job rabbitmq.TitleJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		log.Printf("worker decode title job failed: %v", err)
		_ = d.Nack(false, false)
		return
	}

	genCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	title := w.titles.Generate(genCtx, job.Message)
	if err := w.chats.UpdateTitle(job.ChatID, job.UserID, title); err != nil {
		log.Printf("worker update chat title failed: %v", err)
		_ = d.Nack(false, false)
		return
	}

	_ = d.Ack(false)
}

func (w *TitleWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
