package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/shoppingcart-service/controllers"
)

// RegisterShoppingCartRoutes registers all shopping cart item routes
func RegisterShoppingCartRoutes(r gin.IRouter, ctrl *controllers.ShoppingCartController) {
	items := r.Group("/shoppingcartitem")
	{
		items.GET("", ctrl.GetAll)
		items.POST("", ctrl.Create)

		items.GET("/:id/:category", ctrl.Get)
		items.PUT("/:id/:category", ctrl.Update)
		items.DELETE("/:id/:category", ctrl.Delete)
	}
}
