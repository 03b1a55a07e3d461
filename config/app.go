// Package config 提供应用程序配置和初始化功能
// 该包负责处理应用程序的配置加载、初始化和服务器设置等核心功能
package config

import (
	"encoding/json"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"affiliate_mall/database"
	"affiliate_mall/handlers"
	"affiliate_mall/routes"
)

// InitApp 初始化整个应用程序
// 该函数是应用程序启动的核心，负责：
// 1. 初始化数据库连接
// 2. 执行数据库迁移
// 3. 按需启动佣金结算定时任务
func InitApp() {
	// 初始化数据库连接
	// 如果数据库连接失败，程序将终止
	database.Init()

	// 执行数据库迁移
	// 确保所有必要的表和结构都存在
	database.Migrate()

	// 启动佣金结算定时任务
	startClearanceScheduler()

	log.Println("应用程序初始化完成")
}

// startClearanceScheduler 启动佣金结算定时任务
// 由环境变量 CLEARANCE_INTERVAL_MINUTES 控制，未设置或为0时不启动，
// 结算交由管理员手动触发。每个周期将所有过了退款窗口期的佣金入账
func startClearanceScheduler() {
	intervalStr := os.Getenv("CLEARANCE_INTERVAL_MINUTES")
	if intervalStr == "" {
		log.Println("未设置CLEARANCE_INTERVAL_MINUTES，佣金结算定时任务未启动")
		return
	}
	interval, err := strconv.Atoi(intervalStr)
	if err != nil || interval <= 0 {
		log.Printf("CLEARANCE_INTERVAL_MINUTES 配置无效: %q，佣金结算定时任务未启动", intervalStr)
		return
	}

	go func() {
		ticker := time.NewTicker(time.Duration(interval) * time.Minute)
		defer ticker.Stop()

		for range ticker.C {
			processed, failed := handlers.FinalizeEligibleEarnings(
				database.GetDB(), handlers.RefundPeriodDays())
			if processed > 0 || failed > 0 {
				log.Printf("佣金结算定时任务: 成功 %d 条，失败 %d 条", processed, failed)
			}
		}
	}()

	log.Printf("佣金结算定时任务已启动，每 %d 分钟执行一次", interval)
}

// SetupApp 创建并配置Fiber应用实例
// 该函数负责：
// 1. 创建新的Fiber实例
// 2. 配置全局中间件
// 3. 设置路由
// 4. 配置错误处理
// 返回配置完成的Fiber实例
func SetupApp() *fiber.App {
	// 创建新的Fiber实例
	// 配置自定义的错误处理
	app := fiber.New(fiber.Config{
		// 启用案例敏感的路由
		CaseSensitive: true,
		// 服务器名称
		ServerHeader: "Affiliate Mall",
		// 限制请求体大小为10MB
		BodyLimit: 10 * 1024 * 1024,
		// 自定义错误处理
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// 默认错误码为500
			code := fiber.StatusInternalServerError

			// 如果是Fiber的错误，使用其状态码
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			// 构建错误响应
			return c.Status(code).JSON(fiber.Map{
				"error": true,
				"msg":   err.Error(),
			})
		},
		// 使用标准JSON编解码器，确保正确处理UTF-8字符
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
		Immutable:   true,
		// 设置应用名称和其他配置
		AppName:      "Affiliate Mall API",
		ReadTimeout:  60 * time.Second, // 读取超时时间，防止慢客户端攻击
		WriteTimeout: 60 * time.Second, // 写入超时时间，确保响应能够及时完成
		IdleTimeout:  60 * time.Second, // 空闲超时时间，优化连接池使用
	})

	// 配置日志中间件
	// 记录所有HTTP请求
	app.Use(logger.New(logger.Config{
		// 自定义日志格式
		Format: "${time} ${status} - ${method} ${path}\n",
		// 日志时间格式
		TimeFormat: "2006-01-02 15:04:05",
		// 日志输出位置
		Output: os.Stdout,
	}))

	// 配置恢复中间件
	// 防止应用因panic而崩溃
	app.Use(recover.New())

	// 配置CORS中间件
	// 允许跨域请求
	app.Use(cors.New(cors.Config{
		// 允许的源
		AllowOrigins: "*",
		// 允许的方法
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		// 允许的头部
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
		// 预检请求的有效期
		MaxAge: int(12 * time.Hour.Seconds()),
	}))

	// 设置API路由
	// 所有的API路由都以/api为前缀
	routes.SetupRoutes(app)

	log.Println("Fiber应用已创建")

	return app
}
