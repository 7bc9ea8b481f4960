package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"catalog-service/internal/models"
	"catalog-service/internal/repository"
)

// DeliveryError wraps a network-level failure (timeout, refused connection,
// DNS) so handlers can distinguish it from a not-found subscription. An
// upstream non-2xx response is not a DeliveryError.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("Request failed: %s", e.Err.Error())
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Dispatcher notifies external systems of catalog events. Implemented by
// WebhookService; the import pipeline depends on this interface only.
type Dispatcher interface {
	Dispatch(ctx context.Context, eventType string, payload interface{})
}

// WebhookService drives outbound webhook deliveries: on-demand test calls
// and event dispatch to subscribed endpoints.
type WebhookService struct {
	repo   repository.WebhooksStore
	client *http.Client
	logger *logrus.Entry
}

var _ Dispatcher = (*WebhookService)(nil)

// NewWebhookService creates a webhook service with a bounded delivery timeout.
func NewWebhookService(repo repository.WebhooksStore, timeout time.Duration, logger *logrus.Logger) *WebhookService {
	return &WebhookService{
		repo:   repo,
		client: &http.Client{Timeout: timeout},
		logger: logger.WithField("component", "webhook-service"),
	}
}

// TestDelivery fires a fixed test payload at the webhook's URL and reports
// the upstream status code, elapsed time and response body. A transport
// failure is returned as a *DeliveryError; an upstream error status is a
// successful test result carrying that code.
func (s *WebhookService) TestDelivery(ctx context.Context, id uuid.UUID) (*models.WebhookTestResult, error) {
	webhook, err := s.repo.GetWebhookByID(ctx, id)
	if err != nil {
		return nil, err
	}

	payload := map[string]string{"message": "Test webhook trigger"}
	start := time.Now()
	resp, err := s.post(ctx, webhook.URL, payload)
	if err != nil {
		return nil, &DeliveryError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &DeliveryError{Err: err}
	}

	return &models.WebhookTestResult{
		StatusCode:     resp.StatusCode,
		ResponseTimeMs: time.Since(start).Milliseconds(),
		ResponseBody:   string(body),
	}, nil
}

// Dispatch sends the event to every active webhook subscribed to eventType.
// Failures are logged and never propagated; there is no retry or delivery
// log.
func (s *WebhookService) Dispatch(ctx context.Context, eventType string, payload interface{}) {
	webhooks, err := s.repo.ListWebhooks(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list webhooks for dispatch")
		return
	}

	body := map[string]interface{}{
		"event_type": eventType,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"data":       payload,
	}

	for _, webhook := range webhooks {
		if !webhook.Active || !webhook.EventTypes.Contains(eventType) {
			continue
		}
		resp, err := s.post(ctx, webhook.URL, body)
		if err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"webhook_id": webhook.ID,
				"event_type": eventType,
			}).Warn("Webhook delivery failed")
			continue
		}
		resp.Body.Close()
		s.logger.WithFields(logrus.Fields{
			"webhook_id": webhook.ID,
			"event_type": eventType,
			"status":     resp.StatusCode,
		}).Debug("Webhook delivered")
	}
}

func (s *WebhookService) post(ctx context.Context, url string, payload interface{}) (*http.Response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.client.Do(req)
}
