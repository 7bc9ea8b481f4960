package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"catalog-service/internal/models"
	"catalog-service/internal/repository"
	"catalog-service/internal/services"
)

type WebhooksHandler struct {
	repo    repository.WebhooksStore
	service *services.WebhookService
	logger  *logrus.Entry
}

func NewWebhooksHandler(repo repository.WebhooksStore, service *services.WebhookService, logger *logrus.Logger) *WebhooksHandler {
	return &WebhooksHandler{
		repo:    repo,
		service: service,
		logger:  logger.WithField("component", "webhooks-handler"),
	}
}

// ListWebhooks returns all registered webhooks
// @Summary List webhooks
// @Tags webhooks
// @Produce json
// @Success 200 {array} models.Webhook
// @Router /webhooks [get]
func (h *WebhooksHandler) ListWebhooks(c *gin.Context) {
	webhooks, err := h.repo.ListWebhooks(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list webhooks")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error:   models.Error{Code: "FETCH_FAILED", Message: "Failed to fetch webhooks"},
		})
		return
	}
	c.JSON(http.StatusOK, webhooks)
}

// CreateWebhook registers a new webhook subscription
// @Summary Register a webhook
// @Tags webhooks
// @Accept json
// @Produce json
// @Param webhook body models.CreateWebhookRequest true "Webhook"
// @Success 200 {object} models.Webhook
// @Failure 400 {object} models.ErrorResponse
// @Router /webhooks [post]
func (h *WebhooksHandler) CreateWebhook(c *gin.Context) {
	var req models.CreateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error:   models.Error{Code: "VALIDATION_ERROR", Message: err.Error()},
		})
		return
	}

	webhook := models.Webhook{
		URL:        req.URL,
		EventTypes: models.StringArray(req.EventTypes),
		Active:     true,
	}
	if req.Active != nil {
		webhook.Active = *req.Active
	}

	if err := h.repo.CreateWebhook(c.Request.Context(), &webhook); err != nil {
		h.logger.WithError(err).Error("Failed to create webhook")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error:   models.Error{Code: "CREATE_FAILED", Message: "Failed to create webhook"},
		})
		return
	}

	h.logger.WithFields(logrus.Fields{
		"webhook_id":  webhook.ID,
		"event_types": webhook.EventTypes,
	}).Info("Webhook registered")

	c.JSON(http.StatusOK, webhook)
}

// UpdateWebhook applies a partial update to a webhook
// @Summary Update a webhook
// @Tags webhooks
// @Accept json
// @Produce json
// @Param id path string true "Webhook ID"
// @Param webhook body models.UpdateWebhookRequest true "Fields to update"
// @Success 200 {object} models.Webhook
// @Failure 404 {object} models.ErrorResponse
// @Router /webhooks/{id} [put]
func (h *WebhooksHandler) UpdateWebhook(c *gin.Context) {
	id, ok := h.webhookID(c)
	if !ok {
		return
	}

	var req models.UpdateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error:   models.Error{Code: "VALIDATION_ERROR", Message: err.Error()},
		})
		return
	}

	webhook, err := h.repo.UpdateWebhook(c.Request.Context(), id, &req)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			h.webhookNotFound(c)
			return
		}
		h.logger.WithError(err).WithField("webhook_id", id).Error("Failed to update webhook")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error:   models.Error{Code: "UPDATE_FAILED", Message: "Failed to update webhook"},
		})
		return
	}

	c.JSON(http.StatusOK, webhook)
}

// DeleteWebhook removes a webhook subscription
// @Summary Delete a webhook
// @Tags webhooks
// @Produce json
// @Param id path string true "Webhook ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} models.ErrorResponse
// @Router /webhooks/{id} [delete]
func (h *WebhooksHandler) DeleteWebhook(c *gin.Context) {
	id, ok := h.webhookID(c)
	if !ok {
		return
	}

	if err := h.repo.DeleteWebhook(c.Request.Context(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			h.webhookNotFound(c)
			return
		}
		h.logger.WithError(err).WithField("webhook_id", id).Error("Failed to delete webhook")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error:   models.Error{Code: "DELETE_FAILED", Message: "Failed to delete webhook"},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"detail": "Webhook deleted successfully"})
}

// TestWebhook fires a test payload at the webhook URL
// @Summary Send a test delivery
// @Description An upstream error status is reported as a successful test; only transport failures return 400
// @Tags webhooks
// @Produce json
// @Param id path string true "Webhook ID"
// @Success 200 {object} models.WebhookTestResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /webhooks/{id}/test [post]
func (h *WebhooksHandler) TestWebhook(c *gin.Context) {
	id, ok := h.webhookID(c)
	if !ok {
		return
	}

	result, err := h.service.TestDelivery(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			h.webhookNotFound(c)
			return
		}
		var deliveryErr *services.DeliveryError
		if errors.As(err, &deliveryErr) {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Success: false,
				Error:   models.Error{Code: "DELIVERY_FAILED", Message: deliveryErr.Error()},
			})
			return
		}
		h.logger.WithError(err).WithField("webhook_id", id).Error("Webhook test failed")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error:   models.Error{Code: "TEST_FAILED", Message: "Failed to test webhook"},
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *WebhooksHandler) webhookID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error:   models.Error{Code: "INVALID_ID", Message: "Invalid webhook ID", Field: "id"},
		})
		return uuid.Nil, false
	}
	return id, true
}

func (h *WebhooksHandler) webhookNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, models.ErrorResponse{
		Success: false,
		Error:   models.Error{Code: "WEBHOOK_NOT_FOUND", Message: "Webhook not found"},
	})
}
