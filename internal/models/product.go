package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product represents a catalog entry. Uniqueness is enforced on the
// normalized (lowercased, trimmed) SKU via the sku_lower unique index;
// the original SKU casing from the most recent write is preserved in SKU.
type Product struct {
	ID          uuid.UUID        `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	SKU         string           `json:"sku" gorm:"not null;size:255"`
	SKULower    string           `json:"-" gorm:"column:sku_lower;not null;size:255;uniqueIndex:uq_products_sku_lower"`
	Name        *string          `json:"name" gorm:"size:512"`
	Description *string          `json:"description" gorm:"size:1024"`
	Price       *decimal.Decimal `json:"price" gorm:"type:numeric(10,2)"`
	Active      bool             `json:"active" gorm:"not null;default:true"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// TableName returns the table name for the Product model
func (Product) TableName() string {
	return "products"
}

// NormalizeSKU derives the uniqueness key for a SKU: trimmed and lowercased.
func NormalizeSKU(sku string) string {
	return strings.ToLower(strings.TrimSpace(sku))
}

// CreateProductRequest represents a request to create a new product
type CreateProductRequest struct {
	SKU         string           `json:"sku" binding:"required"`
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Active      *bool            `json:"active,omitempty"`
}

// UpdateProductRequest represents a partial update. Only set fields are
// applied; a SKU change also refreshes the normalized key.
type UpdateProductRequest struct {
	SKU         *string          `json:"sku,omitempty"`
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Active      *bool            `json:"active,omitempty"`
}

// Apply merges the set fields of the patch onto the product.
func (r *UpdateProductRequest) Apply(p *Product) {
	if r.SKU != nil {
		p.SKU = strings.TrimSpace(*r.SKU)
		p.SKULower = NormalizeSKU(*r.SKU)
	}
	if r.Name != nil {
		p.Name = r.Name
	}
	if r.Description != nil {
		p.Description = r.Description
	}
	if r.Price != nil {
		p.Price = r.Price
	}
	if r.Active != nil {
		p.Active = *r.Active
	}
}

// ProductFilter captures list query parameters. Text filters are
// case-insensitive partial matches; Active is an exact match.
type ProductFilter struct {
	SKU         string
	Name        string
	Description string
	Active      *bool
	Skip        int
	Limit       int
}

type ErrorResponse struct {
	Success bool  `json:"success"`
	Error   Error `json:"error"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}
