package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// StringArray is stored as a JSONB array of strings.
type StringArray []string

func (a StringArray) Value() (driver.Value, error) {
	return json.Marshal(a)
}

func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = make(StringArray, 0)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, a)
}

// Contains reports whether the array holds the given value.
func (a StringArray) Contains(v string) bool {
	for _, s := range a {
		if s == v {
			return true
		}
	}
	return false
}

// Webhook represents a subscription used to notify external systems of
// catalog events such as import completion.
type Webhook struct {
	ID         uuid.UUID   `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	URL        string      `json:"url" gorm:"not null"`
	EventTypes StringArray `json:"event_types" gorm:"type:jsonb;not null"`
	Active     bool        `json:"active" gorm:"not null;default:true"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// TableName returns the table name for the Webhook model
func (Webhook) TableName() string {
	return "webhooks"
}

// CreateWebhookRequest represents a request to register a webhook
type CreateWebhookRequest struct {
	URL        string   `json:"url" binding:"required,url"`
	EventTypes []string `json:"event_types" binding:"required,min=1"`
	Active     *bool    `json:"active,omitempty"`
}

// UpdateWebhookRequest represents a partial webhook update
type UpdateWebhookRequest struct {
	URL        *string  `json:"url,omitempty" binding:"omitempty,url"`
	EventTypes []string `json:"event_types,omitempty"`
	Active     *bool    `json:"active,omitempty"`
}

// Apply merges the set fields of the patch onto the webhook.
func (r *UpdateWebhookRequest) Apply(w *Webhook) {
	if r.URL != nil {
		w.URL = *r.URL
	}
	if r.EventTypes != nil {
		w.EventTypes = StringArray(r.EventTypes)
	}
	if r.Active != nil {
		w.Active = *r.Active
	}
}

// WebhookTestResult reports the outcome of a test delivery. An upstream
// error status is still a successful test carrying that status code.
type WebhookTestResult struct {
	StatusCode     int    `json:"status_code"`
	ResponseTimeMs int64  `json:"response_time_ms"`
	ResponseBody   string `json:"response_body"`
}
