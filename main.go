package main

import (
	"affiliate_mall/config"
)

func main() {
	// 初始化应用：数据库连接、迁移、佣金结算定时任务
	config.InitApp()

	// 创建并配置Fiber应用
	app := config.SetupApp()

	// 启动服务器并等待终止信号
	config.StartServer(app)
}
