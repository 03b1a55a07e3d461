package routes

import (
	"affiliate_mall/handlers"
	"affiliate_mall/middleware"

	"github.com/gofiber/fiber/v2"
)

// RegisterProductRoutes 设置商品相关路由
func RegisterProductRoutes(api fiber.Router) {
	products := api.Group("/products")

	// 公开路由，游客可浏览
	products.Get("/", handlers.ListProducts)   // 商品列表（仅有库存）
	products.Get("/:id", handlers.GetProduct)  // 商品详情

	// 管理员路由
	admin := api.Group("/admin/products", middleware.UserAuthMiddleware(), middleware.AdminRequired())
	admin.Get("/", handlers.AdminListProducts)         // 商品列表（含零库存）
	admin.Post("/", handlers.AdminCreateProduct)       // 创建商品
	admin.Put("/:id", handlers.AdminUpdateProduct)     // 更新商品
	admin.Delete("/:id", handlers.AdminDeleteProduct)  // 删除商品
}
