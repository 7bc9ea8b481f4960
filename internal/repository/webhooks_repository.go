package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"catalog-service/internal/models"
)

// WebhooksStore is the storage contract for webhook subscriptions.
type WebhooksStore interface {
	ListWebhooks(ctx context.Context) ([]models.Webhook, error)
	GetWebhookByID(ctx context.Context, id uuid.UUID) (*models.Webhook, error)
	CreateWebhook(ctx context.Context, webhook *models.Webhook) error
	UpdateWebhook(ctx context.Context, id uuid.UUID, patch *models.UpdateWebhookRequest) (*models.Webhook, error)
	DeleteWebhook(ctx context.Context, id uuid.UUID) error
}

type WebhooksRepository struct {
	db *gorm.DB
}

var _ WebhooksStore = (*WebhooksRepository)(nil)

func NewWebhooksRepository(db *gorm.DB) *WebhooksRepository {
	return &WebhooksRepository{db: db}
}

func (r *WebhooksRepository) ListWebhooks(ctx context.Context) ([]models.Webhook, error) {
	webhooks := make([]models.Webhook, 0)
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&webhooks).Error; err != nil {
		return nil, err
	}
	return webhooks, nil
}

func (r *WebhooksRepository) GetWebhookByID(ctx context.Context, id uuid.UUID) (*models.Webhook, error) {
	var webhook models.Webhook
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&webhook).Error; err != nil {
		return nil, err
	}
	return &webhook, nil
}

func (r *WebhooksRepository) CreateWebhook(ctx context.Context, webhook *models.Webhook) error {
	return r.db.WithContext(ctx).Create(webhook).Error
}

// UpdateWebhook applies a partial update. Returns gorm.ErrRecordNotFound
// when the id does not exist.
func (r *WebhooksRepository) UpdateWebhook(ctx context.Context, id uuid.UUID, patch *models.UpdateWebhookRequest) (*models.Webhook, error) {
	var webhook models.Webhook
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&webhook).Error; err != nil {
		return nil, err
	}

	patch.Apply(&webhook)

	if err := r.db.WithContext(ctx).Save(&webhook).Error; err != nil {
		return nil, err
	}
	return &webhook, nil
}

func (r *WebhooksRepository) DeleteWebhook(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Webhook{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
