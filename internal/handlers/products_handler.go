package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"catalog-service/internal/events"
	"catalog-service/internal/models"
	"catalog-service/internal/repository"
)

type ProductsHandler struct {
	repo         repository.ProductsStore
	publisher    *events.Publisher
	defaultLimit int
	maxLimit     int
}

func NewProductsHandler(repo repository.ProductsStore, publisher *events.Publisher, defaultLimit, maxLimit int) *ProductsHandler {
	return &ProductsHandler{
		repo:         repo,
		publisher:    publisher,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

// GetProducts lists products with optional filters and pagination
// @Summary List products
// @Description Case-insensitive partial match on sku/name/description, exact match on active
// @Tags products
// @Produce json
// @Param sku query string false "Filter by SKU (partial match)"
// @Param name query string false "Filter by name (partial match)"
// @Param description query string false "Filter by description (partial match)"
// @Param active query bool false "Filter by active status"
// @Param skip query int false "Records to skip" default(0)
// @Param limit query int false "Max records to return" default(20)
// @Success 200 {array} models.Product
// @Router /products [get]
func (h *ProductsHandler) GetProducts(c *gin.Context) {
	filter := models.ProductFilter{
		SKU:         c.Query("sku"),
		Name:        c.Query("name"),
		Description: c.Query("description"),
		Skip:        0,
		Limit:       h.defaultLimit,
	}

	if raw := c.Query("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Success: false,
				Error:   models.Error{Code: "VALIDATION_ERROR", Message: "active must be a boolean", Field: "active"},
			})
			return
		}
		filter.Active = &active
	}
	if raw := c.Query("skip"); raw != "" {
		if skip, err := strconv.Atoi(raw); err == nil && skip >= 0 {
			filter.Skip = skip
		}
	}
	if raw := c.Query("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}
	if filter.Limit > h.maxLimit {
		filter.Limit = h.maxLimit
	}

	products, err := h.repo.ListProducts(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error:   models.Error{Code: "DB_ERROR", Message: "Failed to list products"},
		})
		return
	}

	c.JSON(http.StatusOK, products)
}

// CreateProduct creates a new product
// @Summary Create a product
// @Tags products
// @Accept json
// @Produce json
// @Param product body models.CreateProductRequest true "Product data"
// @Success 200 {object} models.Product
// @Failure 409 {object} models.ErrorResponse
// @Router /products [post]
func (h *ProductsHandler) CreateProduct(c *gin.Context) {
	var req models.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error:   models.Error{Code: "VALIDATION_ERROR", Message: err.Error()},
		})
		return
	}

	product := &models.Product{
		SKU:         req.SKU,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Active:      true,
	}
	if req.Active != nil {
		product.Active = *req.Active
	}

	if err := h.repo.CreateProduct(c.Request.Context(), product); err != nil {
		if errors.Is(err, repository.ErrDuplicateSKU) {
			c.JSON(http.StatusConflict, models.ErrorResponse{
				Success: false,
				Error:   models.Error{Code: "DUPLICATE_SKU", Message: err.Error(), Field: "sku"},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error:   models.Error{Code: "DB_ERROR", Message: "Failed to create product"},
		})
		return
	}

	h.publisher.PublishProductCreated(product)
	c.JSON(http.StatusOK, product)
}

// UpdateProduct applies a partial update to a product by SKU
// @Summary Update a product
// @Tags products
// @Accept json
// @Produce json
// @Param sku path string true "Product SKU"
// @Param product body models.UpdateProductRequest true "Fields to update"
// @Success 200 {object} models.Product
// @Failure 404 {object} models.ErrorResponse
// @Router /products/{sku} [put]
func (h *ProductsHandler) UpdateProduct(c *gin.Context) {
	sku := c.Param("sku")

	var req models.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error:   models.Error{Code: "VALIDATION_ERROR", Message: err.Error()},
		})
		return
	}

	product, err := h.repo.UpdateProduct(c.Request.Context(), sku, &req)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Success: false,
				Error:   models.Error{Code: "PRODUCT_NOT_FOUND", Message: "Product not found"},
			})
		case errors.Is(err, repository.ErrDuplicateSKU):
			c.JSON(http.StatusConflict, models.ErrorResponse{
				Success: false,
				Error:   models.Error{Code: "DUPLICATE_SKU", Message: err.Error(), Field: "sku"},
			})
		default:
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Success: false,
				Error:   models.Error{Code: "DB_ERROR", Message: "Failed to update product"},
			})
		}
		return
	}

	h.publisher.PublishProductUpdated(product)
	c.JSON(http.StatusOK, product)
}

// DeleteProduct deletes a product by SKU
// @Summary Delete a product
// @Tags products
// @Produce json
// @Param sku path string true "Product SKU"
// @Success 200 {object} map[string]string
// @Failure 404 {object} models.ErrorResponse
// @Router /products/{sku} [delete]
func (h *ProductsHandler) DeleteProduct(c *gin.Context) {
	sku := c.Param("sku")

	if err := h.repo.DeleteProduct(c.Request.Context(), sku); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Success: false,
				Error:   models.Error{Code: "PRODUCT_NOT_FOUND", Message: "Product not found"},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error:   models.Error{Code: "DB_ERROR", Message: "Failed to delete product"},
		})
		return
	}

	h.publisher.PublishProductDeleted(sku)
	c.JSON(http.StatusOK, gin.H{"detail": fmt.Sprintf("Product with SKU '%s' deleted successfully", sku)})
}

// DeleteAllProducts deletes every product in one transaction
// @Summary Delete all products
// @Tags products
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 500 {object} models.ErrorResponse
// @Router /products [delete]
func (h *ProductsHandler) DeleteAllProducts(c *gin.Context) {
	deleted, err := h.repo.DeleteAllProducts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error:   models.Error{Code: "DB_ERROR", Message: fmt.Sprintf("Failed to delete products: %s", err.Error())},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Deleted %d products successfully.", deleted)})
}
