package routes

import (
	"affiliate_mall/handlers"
	"affiliate_mall/middleware"

	"github.com/gofiber/fiber/v2"
)

// RegisterAuthRoutes 设置认证相关路由
func RegisterAuthRoutes(api fiber.Router) {
	auth := api.Group("/auth")

	// 不需要认证的路由
	auth.Post("/register", handlers.Register) // 用户注册
	auth.Post("/login", handlers.Login)       // 用户登录（可携带游客购物车）

	// 需要认证的路由
	auth.Get("/profile", middleware.UserAuthMiddleware(), handlers.GetProfile) // 获取当前用户资料
}
