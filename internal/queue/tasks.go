package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"knowledge-engine/internal/logger"
	"knowledge-engine/models"
)

const (
	TaskIngestDocument = "document:ingest"
	TaskRefreshTopic   = "memory:refresh_topic"
)

// Ingester is the slice of the document service the worker needs.
type Ingester interface {
	IngestDocument(ctx context.Context, doc models.Document) (int, error)
}

// Refresher re-pulls external content for one popular topic.
type Refresher interface {
	RefreshTopic(ctx context.Context, topic string) (int, error)
}

type RefreshTopicPayload struct {
	Topic string `json:"topic"`
}

// NewIngestDocumentTask wraps a document for background ingestion.
func NewIngestDocumentTask(doc models.Document) (*asynq.Task, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIngestDocument,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(5*time.Minute),
		asynq.Queue("default"),
	), nil
}

// NewRefreshTopicTask schedules an external refresh of one topic.
func NewRefreshTopicTask(topic string) (*asynq.Task, error) {
	payload, err := json.Marshal(RefreshTopicPayload{Topic: topic})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskRefreshTopic,
		payload,
		asynq.MaxRetry(2),
		asynq.Timeout(3*time.Minute),
		asynq.Queue("low"),
	), nil
}

// TaskProcessor holds the handlers registered on the worker mux.
type TaskProcessor struct {
	ingester  Ingester
	refresher Refresher
}

func NewTaskProcessor(ingester Ingester, refresher Refresher) *TaskProcessor {
	return &TaskProcessor{ingester: ingester, refresher: refresher}
}

func (p *TaskProcessor) HandleIngestDocument(ctx context.Context, t *asynq.Task) error {
	var doc models.Document
	if err := json.Unmarshal(t.Payload(), &doc); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	chunks, err := p.ingester.IngestDocument(ctx, doc)
	if err != nil {
		// Bad input will not get better on retry
		if errors.Is(err, models.ErrMalformedDocument) {
			logger.Warn("Dropping malformed document", "document_id", doc.ID, "error", err)
			return asynq.SkipRetry
		}
		return err
	}

	logger.Info("Document ingested", "document_id", doc.ID, "chunks", chunks)
	return nil
}

func (p *TaskProcessor) HandleRefreshTopic(ctx context.Context, t *asynq.Task) error {
	var payload RefreshTopicPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	added, err := p.refresher.RefreshTopic(ctx, payload.Topic)
	if err != nil {
		return err
	}

	logger.Info("Topic refreshed", "topic", payload.Topic, "documents_added", added)
	return nil
}
