package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"catalog-service/internal/models"
)

const (
	streamName     = "CATALOG"
	subjectPrefix  = "catalog."
	publishTimeout = 5 * time.Second
)

// Event subjects published by the catalog service.
const (
	SubjectProductCreated  = subjectPrefix + "product.created"
	SubjectProductUpdated  = subjectPrefix + "product.updated"
	SubjectProductDeleted  = subjectPrefix + "product.deleted"
	SubjectImportCompleted = subjectPrefix + "import.completed"
	SubjectImportFailed    = subjectPrefix + "import.failed"
)

// CatalogEvent is the envelope published to JetStream for audit consumers.
type CatalogEvent struct {
	EventType string      `json:"event_type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// Publisher publishes catalog events to NATS JetStream. A nil *Publisher is
// safe to call; every method becomes a no-op, so callers do not need to
// guard for the NATS-less configuration.
type Publisher struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	logger *logrus.Entry
}

// NewPublisher connects to NATS and ensures the catalog stream exists.
func NewPublisher(natsURL string, logger *logrus.Logger) (*Publisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("catalog-service"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if _, err := js.AddStream(&nats.StreamConfig{
		Name:     streamName,
		Subjects: []string{subjectPrefix + ">"},
	}); err != nil {
		logger.WithError(err).Warn("Failed to ensure catalog stream (may already exist)")
	}

	return &Publisher{
		nc:     nc,
		js:     js,
		logger: logger.WithField("component", "catalog-events"),
	}, nil
}

// Close closes the NATS connection
func (p *Publisher) Close() {
	if p == nil || p.nc == nil {
		return
	}
	p.nc.Close()
}

// PublishProductCreated publishes a catalog.product.created event
func (p *Publisher) PublishProductCreated(product *models.Product) {
	p.publish(SubjectProductCreated, product)
}

// PublishProductUpdated publishes a catalog.product.updated event
func (p *Publisher) PublishProductUpdated(product *models.Product) {
	p.publish(SubjectProductUpdated, product)
}

// PublishProductDeleted publishes a catalog.product.deleted event
func (p *Publisher) PublishProductDeleted(sku string) {
	p.publish(SubjectProductDeleted, map[string]string{"sku": sku})
}

// PublishImportFinished publishes the terminal event of an import job.
func (p *Publisher) PublishImportFinished(jobID string, succeeded bool) {
	subject := SubjectImportCompleted
	if !succeeded {
		subject = SubjectImportFailed
	}
	p.publish(subject, map[string]string{"job_id": jobID})
}

// publish is fire-and-forget; a failed publish is logged, never propagated.
// Event delivery is an audit concern and must not fail catalog writes.
func (p *Publisher) publish(subject string, data interface{}) {
	if p == nil || p.js == nil {
		return
	}

	event := CatalogEvent{
		EventType: subject,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.WithError(err).WithField("subject", subject).Error("Failed to marshal event")
		return
	}

	if _, err := p.js.Publish(subject, payload, nats.AckWait(publishTimeout)); err != nil {
		p.logger.WithError(err).WithField("subject", subject).Warn("Failed to publish event")
	}
}
