package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"botdesk/internal/logger"
	"botdesk/internal/model"
)

// Indexer builds the knowledge base of a chatbot on the AI service.
type Indexer interface {
	Process(ctx context.Context, chatbotID uint) error
	Reindex(ctx context.Context, chatbotID uint) error
}

// DocumentIndexWorker drains the index job queue one delivery at a time.
// Failed jobs are dropped after logging; there is no retry.
type DocumentIndexWorker struct {
	conn           *amqp.Connection
	indexer        Indexer
	queueName      string
	processTimeout time.Duration
	log            logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewDocumentIndexWorker(conn *amqp.Connection, indexer Indexer, queueName string, processTimeout time.Duration, log logger.Logger) *DocumentIndexWorker {
	return &DocumentIndexWorker{
		conn:           conn,
		indexer:        indexer,
		queueName:      queueName,
		processTimeout: processTimeout,
		log:            log,
	}
}

func (w *DocumentIndexWorker) Start(ctx context.Context) error {
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
	if _, err := ch.QueueDeclare(w.queueName, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(w.queueName, "", false, false, false, false, nil)
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
				if err := w.handle(workerCtx, d.Body); err != nil {
					_ = d.Nack(false, false)
					continue
				}
				_ = d.Ack(false)
			}
		}
	}()

	w.log.Info("worker", "document index worker started", map[string]interface{}{"queue": w.queueName})
	return nil
}

func (w *DocumentIndexWorker) handle(ctx context.Context, body []byte) error {
	var job model.IndexJob
	if err := json.Unmarshal(body, &job); err != nil {
		w.log.Error("worker", "decode index job failed", map[string]interface{}{"error": err})
		return err
	}
	if job.ChatbotID == 0 {
		err := fmt.Errorf("index job without chatbot id")
		w.log.Error("worker", "invalid index job", map[string]interface{}{"error": err})
		return err
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.processTimeout)
	defer cancel()

	var err error
	switch job.Kind {
	case model.IndexJobReindex:
		err = w.indexer.Reindex(jobCtx, job.ChatbotID)
	case model.IndexJobProcess, "":
		err = w.indexer.Process(jobCtx, job.ChatbotID)
	default:
		err = fmt.Errorf("unknown index job kind %q", job.Kind)
	}
	details := map[string]interface{}{
		"chatbot_id": job.ChatbotID,
		"kind":       string(job.Kind),
	}
	if err != nil {
		details["error"] = err
		w.log.Error("worker", "index job failed", details)
		return err
	}
	w.log.Info("worker", "index job done", details)
	return nil
}

func (w *DocumentIndexWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
