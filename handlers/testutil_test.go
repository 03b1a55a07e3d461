package handlers

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"affiliate_mall/models"
)

// 每个测试用独立命名的内存库，避免用例间互相污染
var testDBCounter int64

// setupTestDB 创建内存数据库并迁移所有表
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	n := atomic.AddInt64(&testDBCounter, 1)
	dsn := fmt.Sprintf("file:handlers_test_%d?mode=memory&cache=shared", n)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// 内存库限制单连接，保证事务与外部查询串行
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Cart{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.AffiliateEarning{},
		&models.WithdrawalRequest{},
	))
	return db
}

// createTestUser 创建普通测试用户
func createTestUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{
		Username:   username,
		Email:      username + "@example.com",
		IsVerified: true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// createTestAffiliate 创建已激活的推广员，余额按字符串金额初始化
func createTestAffiliate(t *testing.T, db *gorm.DB, username, code, balance string) *models.User {
	t.Helper()
	user := &models.User{
		Username:          username,
		Email:             username + "@example.com",
		IsVerified:        true,
		IsAffiliate:       true,
		UserAffiliateCode: &code,
		AffiliateBalance:  mustDecimal(t, balance),
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// createTestProduct 创建测试商品，价格与佣金比例用字符串表示
func createTestProduct(t *testing.T, db *gorm.DB, name, price string, stock int, bonusPercentage string) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:                     name,
		Price:                    mustDecimal(t, price),
		StockQuantity:            stock,
		AffiliateBonusPercentage: mustDecimal(t, bonusPercentage),
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

// addProductToCart 将商品以现价加入用户购物车
func addProductToCart(t *testing.T, db *gorm.DB, userID uint, product *models.Product, quantity int) {
	t.Helper()
	cart, err := getOrCreateCart(db, userID)
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.CartItem{
		CartID:          cart.ID,
		ProductID:       product.ID,
		Quantity:        quantity,
		PriceAtAddition: product.Price,
	}).Error)
}

func mustDecimal(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	require.NoError(t, err)
	return d
}

// reloadUser 重新读取用户记录
func reloadUser(t *testing.T, db *gorm.DB, userID uint) *models.User {
	t.Helper()
	var user models.User
	require.NoError(t, db.First(&user, userID).Error)
	return &user
}

// reloadEarning 重新读取佣金记录
func reloadEarning(t *testing.T, db *gorm.DB, earningID uint) *models.AffiliateEarning {
	t.Helper()
	var earning models.AffiliateEarning
	require.NoError(t, db.First(&earning, earningID).Error)
	return &earning
}
