package controllers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	apperrors "github.com/yashrajoria/shoppingcart-service/common/errors"
	"github.com/yashrajoria/shoppingcart-service/common/logger"
	"github.com/yashrajoria/shoppingcart-service/models"
	"github.com/yashrajoria/shoppingcart-service/repository"
	"github.com/yashrajoria/shoppingcart-service/services"
	"go.uber.org/zap"
)

func init() {
	// validation errors name the JSON key the client sent
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if tag == "" || tag == "-" {
				return f.Name
			}
			return tag
		})
	}
}

// ShoppingCartController handles HTTP requests for shopping cart items
type ShoppingCartController struct {
	service services.ShoppingCartService
}

// NewShoppingCartController creates a new ShoppingCartController
func NewShoppingCartController(service services.ShoppingCartService) *ShoppingCartController {
	return &ShoppingCartController{service: service}
}

// GetAll returns the first page of shopping cart items
// GET /shoppingcartitem
func (sc *ShoppingCartController) GetAll(c *gin.Context) {
	logger.Info(c, "Getting all shopping cart items")

	items, err := sc.service.ListItems(c.Request.Context())
	if err != nil {
		sc.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, items)
}

// Get returns a single shopping cart item
// GET /shoppingcartitem/:id/:category
func (sc *ShoppingCartController) Get(c *gin.Context) {
	id, category := c.Param("id"), c.Param("category")
	logger.Info(c, "Getting shopping cart item", zap.String("id", id), zap.String("category", category))

	item, err := sc.service.GetItem(c.Request.Context(), id, category)
	if err != nil {
		sc.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, item)
}

// Create adds a new, uncollected shopping cart item
// POST /shoppingcartitem
func (sc *ShoppingCartController) Create(c *gin.Context) {
	var req models.CreateShoppingCartItem
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.ErrBadRequest.Wrap(err).WithDetails(bindingDetails(err)))
		return
	}
	logger.Info(c, "Creating shopping cart item", zap.String("itemName", req.ItemName), zap.String("category", req.Category))

	item, err := sc.service.CreateItem(c.Request.Context(), &req)
	if err != nil {
		sc.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, item)
}

// Update sets the collected flag of an existing item
// PUT /shoppingcartitem/:id/:category
func (sc *ShoppingCartController) Update(c *gin.Context) {
	id, category := c.Param("id"), c.Param("category")

	var req models.UpdateShoppingCartItem
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.ErrBadRequest.Wrap(err).WithDetails(bindingDetails(err)))
		return
	}
	logger.Info(c, "Updating shopping cart item",
		zap.String("id", id),
		zap.String("category", category),
		zap.Bool("collected", *req.Collected),
	)

	item, err := sc.service.UpdateItem(c.Request.Context(), id, category, &req)
	if err != nil {
		sc.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, item)
}

// Delete removes a shopping cart item
// DELETE /shoppingcartitem/:id/:category
func (sc *ShoppingCartController) Delete(c *gin.Context) {
	id, category := c.Param("id"), c.Param("category")
	logger.Info(c, "Deleting shopping cart item", zap.String("id", id), zap.String("category", category))

	if err := sc.service.DeleteItem(c.Request.Context(), id, category); err != nil {
		sc.handleError(c, err)
		return
	}

	c.Status(http.StatusOK)
}

// handleError maps service errors onto the shared application errors;
// ErrorMiddleware renders the response.
func (sc *ShoppingCartController) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		_ = c.Error(apperrors.ErrNotFound.Wrap(err).WithDetails("Shopping cart item not found"))
	case errors.Is(err, repository.ErrAlreadyExists):
		_ = c.Error(apperrors.ErrConflict.Wrap(err).WithDetails("Shopping cart item already exists"))
	case errors.Is(err, repository.ErrConflict):
		_ = c.Error(apperrors.ErrConflict.Wrap(err).WithDetails("Shopping cart item was modified concurrently, retry the update"))
	case errors.Is(err, context.DeadlineExceeded):
		_ = c.Error(apperrors.ErrServiceUnavailable.Wrap(err).WithDetails("Store did not respond in time"))
	default:
		_ = c.Error(err)
	}
}

// bindingDetails flattens validator errors into "field: tag" pairs; anything
// else (malformed JSON, wrong types) is reported as is.
func bindingDetails(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}
