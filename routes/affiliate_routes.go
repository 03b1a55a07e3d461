package routes

import (
	"affiliate_mall/handlers"
	"affiliate_mall/middleware"

	"github.com/gofiber/fiber/v2"
)

// RegisterAffiliateRoutes 设置推广相关路由
// 包括推广员侧的佣金查询、提现，以及管理员侧的推广员管理和佣金结算
func RegisterAffiliateRoutes(api fiber.Router) {
	// 推广员路由，需要登录且具有推广员身份
	affiliate := api.Group("/affiliate", middleware.UserAuthMiddleware(), middleware.AffiliateRequired())

	affiliate.Get("/dashboard", handlers.GetAffiliateDashboard) // 余额与各状态佣金汇总
	affiliate.Get("/earnings", handlers.GetMyEarnings)          // 佣金明细列表
	affiliate.Post("/withdrawals", handlers.RequestWithdrawal)  // 提交提现申请
	affiliate.Get("/withdrawals", handlers.GetMyWithdrawals)    // 自己的提现申请列表

	// 管理员路由
	admin := api.Group("/admin/affiliate", middleware.UserAuthMiddleware(), middleware.AdminRequired())

	admin.Get("/users", handlers.AdminListAffiliates)                    // 推广员列表
	admin.Put("/users/:id", handlers.AdminManageAffiliate)               // 开通/停用推广员资格
	admin.Get("/earnings/awaiting", handlers.AdminListAwaitingClearance) // 等待结算的佣金列表
	admin.Post("/earnings/finalize", handlers.AdminFinalizeEarnings)     // 按ID批量结算佣金
	admin.Post("/earnings/finalize-eligible", handlers.AdminFinalizeEligibleEarnings) // 结算所有过窗口期的佣金
	admin.Get("/withdrawals", handlers.AdminListWithdrawals)             // 提现申请列表
	admin.Put("/withdrawals/:id", handlers.AdminProcessWithdrawal)       // 批准/拒绝提现申请
}
