package routes

import (
	"affiliate_mall/handlers"
	"affiliate_mall/middleware"

	"github.com/gofiber/fiber/v2"
)

// RegisterOrderRoutes 设置订单相关路由
func RegisterOrderRoutes(api fiber.Router) {
	orders := api.Group("/orders", middleware.UserAuthMiddleware())

	orders.Post("/", handlers.PlaceOrder)      // 从购物车下单
	orders.Get("/", handlers.GetMyOrders)      // 获取自己的订单列表
	orders.Get("/:id", handlers.GetOrderDetail) // 订单详情（本人或管理员）

	// 管理员路由
	admin := api.Group("/admin/orders", middleware.UserAuthMiddleware(), middleware.AdminRequired())
	admin.Get("/", handlers.AdminGetAllOrders)              // 所有订单列表
	admin.Put("/:id/status", handlers.AdminUpdateOrderStatuses) // 更新订单状态并触发佣金流转
}
