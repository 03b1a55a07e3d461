package routes

import (
	"affiliate_mall/handlers"
	"affiliate_mall/middleware"

	"github.com/gofiber/fiber/v2"
)

// RegisterCartRoutes 设置购物车相关路由
// 购物车操作全部需要登录，游客购物车由客户端保管并在登录时合并
func RegisterCartRoutes(api fiber.Router) {
	cart := api.Group("/cart", middleware.UserAuthMiddleware())

	cart.Get("/", handlers.GetCart)                  // 获取购物车内容
	cart.Post("/items", handlers.AddCartItem)        // 添加商品
	cart.Put("/items/:id", handlers.UpdateCartItem)  // 更新条目数量
	cart.Delete("/items/:id", handlers.RemoveCartItem) // 移除条目
	cart.Delete("/", handlers.ClearCart)             // 清空购物车
}
