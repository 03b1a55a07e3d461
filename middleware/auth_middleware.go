package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"affiliate_mall/database"
	"affiliate_mall/models"
	"affiliate_mall/utils"
)

// UserAuthMiddleware 验证用户身份的中间件
// 该中间件负责处理所有需要登录的路由请求:
// 解析Authorization头中的Bearer令牌，校验签名后从数据库加载用户，
// 并将用户信息写入请求上下文供后续处理函数使用
func UserAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// 从请求头获取Authorization
		// 检查是否提供了Bearer令牌
		authHeader := c.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "未提供有效的认证令牌",
			})
		}

		// 从Authorization头中提取令牌
		// 去掉"Bearer "前缀，获取实际的JWT令牌字符串
		tokenString := authHeader[7:]

		// 解析令牌
		// 验证JWT令牌的签名并提取声明信息
		claims, err := utils.ParseToken(tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "无效的认证令牌",
			})
		}

		// 查询用户信息
		// 令牌有效也要确认用户仍然存在
		var user models.User
		if err := database.GetDB().First(&user, claims.UserID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "用户不存在或已被删除",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "验证用户身份失败",
			})
		}

		// 将用户信息存储在上下文中，供后续处理函数使用
		// 这些信息可以通过c.Locals()在后续处理函数中获取
		c.Locals("user_id", user.ID)
		c.Locals("username", user.Username)
		c.Locals("is_admin", user.IsAdmin)
		c.Locals("is_affiliate", user.IsAffiliate)

		// 继续处理请求
		return c.Next()
	}
}

// AdminRequired 管理员权限中间件
// 必须在 UserAuthMiddleware 之后挂载，校验当前用户是否为管理员
func AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		isAdmin, ok := c.Locals("is_admin").(bool)
		if !ok || !isAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "需要管理员权限",
			})
		}
		return c.Next()
	}
}

// AffiliateRequired 推广员权限中间件
// 必须在 UserAuthMiddleware 之后挂载，校验当前用户是否为推广员
func AffiliateRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		isAffiliate, ok := c.Locals("is_affiliate").(bool)
		if !ok || !isAffiliate {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "需要推广员权限",
			})
		}
		return c.Next()
	}
}
