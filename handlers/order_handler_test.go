package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"affiliate_mall/models"
)

func TestInitialPaymentStatus(t *testing.T) {
	tests := []struct {
		method string
		want   models.PaymentStatus
	}{
		{"cod", models.PaymentStatusPendingCOD},
		{"placeholder_card", models.PaymentStatusPaidPlaceholder},
		{"bank_transfer", models.PaymentStatusPendingPayment},
		{"", models.PaymentStatusPendingPayment},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, initialPaymentStatus(tt.method), "支付方式 %q", tt.method)
	}
}

func TestPlaceOrderForUser_EmptyCart(t *testing.T) {
	db := setupTestDB(t)
	buyer := createTestUser(t, db, "buyer")

	_, err := PlaceOrderForUser(db, buyer.ID, PlaceOrderRequest{
		ShippingAddress: "测试地址",
		PaymentMethod:   "cod",
	})
	assert.ErrorIs(t, err, ErrCartEmpty)
}

func TestPlaceOrderForUser_CreatesOrderAndEarnings(t *testing.T) {
	db := setupTestDB(t)
	buyer := createTestUser(t, db, "buyer")
	affiliate := createTestAffiliate(t, db, "ref1", "CODE0001", "0")

	// 带佣金和不带佣金的商品各一件
	bonusProduct := createTestProduct(t, db, "带佣金商品", "99.90", 10, "10")
	plainProduct := createTestProduct(t, db, "普通商品", "20.00", 5, "0")
	addProductToCart(t, db, buyer.ID, bonusProduct, 2)
	addProductToCart(t, db, buyer.ID, plainProduct, 1)

	order, err := PlaceOrderForUser(db, buyer.ID, PlaceOrderRequest{
		ShippingAddress: "测试地址",
		PaymentMethod:   "placeholder_card",
		AffiliateCode:   "CODE0001",
	})
	require.NoError(t, err)

	// 订单金额 = 99.90*2 + 20.00
	assert.True(t, order.TotalAmount.Equal(mustDecimal(t, "219.80")))
	assert.Equal(t, models.OrderStatusPending, order.OrderStatus)
	assert.Equal(t, models.PaymentStatusPaidPlaceholder, order.PaymentStatus)
	require.NotNil(t, order.ReferrerUserID)
	assert.Equal(t, affiliate.ID, *order.ReferrerUserID)

	var items []models.OrderItem
	require.NoError(t, db.Where("order_id = ?", order.ID).Find(&items).Error)
	assert.Len(t, items, 2)

	// 库存扣减
	var reloaded models.Product
	require.NoError(t, db.First(&reloaded, bonusProduct.ID).Error)
	assert.Equal(t, 8, reloaded.StockQuantity)
	reloaded = models.Product{}
	require.NoError(t, db.First(&reloaded, plainProduct.ID).Error)
	assert.Equal(t, 4, reloaded.StockQuantity)

	// 只有带佣金的商品产生佣金记录
	var earnings []models.AffiliateEarning
	require.NoError(t, db.Where("order_id = ?", order.ID).Find(&earnings).Error)
	require.Len(t, earnings, 1)
	earning := earnings[0]
	assert.Equal(t, affiliate.ID, earning.UserID)
	assert.Equal(t, bonusProduct.ID, earning.ProductID)
	assert.Equal(t, models.EarningStatusPending, earning.Status)
	// 99.90 * 2 * 10% = 19.98
	assert.True(t, earning.EarnedAmount.Equal(mustDecimal(t, "19.98")))
	assert.True(t, earning.CommissionRate.Equal(mustDecimal(t, "10")))
	assert.Nil(t, earning.OrderPaymentConfirmedAt)

	// 购物车已清空
	var cartItemCount int64
	require.NoError(t, db.Model(&models.CartItem{}).
		Joins("JOIN carts ON carts.id = cart_items.cart_id").
		Where("carts.user_id = ?", buyer.ID).Count(&cartItemCount).Error)
	assert.Zero(t, cartItemCount)
}

func TestPlaceOrderForUser_InsufficientStockRollsBack(t *testing.T) {
	db := setupTestDB(t)
	buyer := createTestUser(t, db, "buyer")
	scarce := createTestProduct(t, db, "紧俏商品", "10.00", 1, "0")
	addProductToCart(t, db, buyer.ID, scarce, 2)

	_, err := PlaceOrderForUser(db, buyer.ID, PlaceOrderRequest{
		ShippingAddress: "测试地址",
		PaymentMethod:   "cod",
	})
	// 库存不足是业务性失败，通过哨兵错误与内部错误区分
	require.ErrorIs(t, err, ErrInsufficientStock)

	// 整个事务回滚：无订单、库存不变、购物车保留
	var orderCount int64
	require.NoError(t, db.Model(&models.Order{}).Count(&orderCount).Error)
	assert.Zero(t, orderCount)

	var reloaded models.Product
	require.NoError(t, db.First(&reloaded, scarce.ID).Error)
	assert.Equal(t, 1, reloaded.StockQuantity)

	var cartItemCount int64
	require.NoError(t, db.Model(&models.CartItem{}).Count(&cartItemCount).Error)
	assert.Equal(t, int64(1), cartItemCount)
}

func TestPlaceOrderForUser_SelfReferralIgnored(t *testing.T) {
	db := setupTestDB(t)
	// 推广员购买自己推广的商品
	affiliate := createTestAffiliate(t, db, "ref1", "CODE0001", "0")
	product := createTestProduct(t, db, "商品", "50.00", 10, "10")
	addProductToCart(t, db, affiliate.ID, product, 1)

	order, err := PlaceOrderForUser(db, affiliate.ID, PlaceOrderRequest{
		ShippingAddress: "测试地址",
		PaymentMethod:   "cod",
		AffiliateCode:   "CODE0001",
	})
	require.NoError(t, err)

	assert.Nil(t, order.ReferrerUserID)
	assert.Nil(t, order.AffiliateCodeUsed)

	var earningCount int64
	require.NoError(t, db.Model(&models.AffiliateEarning{}).Count(&earningCount).Error)
	assert.Zero(t, earningCount)
}

func TestPlaceOrderForUser_InvalidCodeIgnored(t *testing.T) {
	db := setupTestDB(t)
	buyer := createTestUser(t, db, "buyer")
	product := createTestProduct(t, db, "商品", "50.00", 10, "10")
	addProductToCart(t, db, buyer.ID, product, 1)

	// 推广码不存在时静默忽略，下单照常成功
	order, err := PlaceOrderForUser(db, buyer.ID, PlaceOrderRequest{
		ShippingAddress: "测试地址",
		PaymentMethod:   "cod",
		AffiliateCode:   "NOSUCHCD",
	})
	require.NoError(t, err)
	assert.Nil(t, order.ReferrerUserID)
}

func TestPlaceOrderForUser_DeactivatedAffiliateCodeIgnored(t *testing.T) {
	db := setupTestDB(t)
	buyer := createTestUser(t, db, "buyer")
	affiliate := createTestAffiliate(t, db, "ref1", "CODE0001", "0")
	require.NoError(t, DeactivateAffiliateUser(db, affiliate.ID))

	product := createTestProduct(t, db, "商品", "50.00", 10, "10")
	addProductToCart(t, db, buyer.ID, product, 1)

	order, err := PlaceOrderForUser(db, buyer.ID, PlaceOrderRequest{
		ShippingAddress: "测试地址",
		PaymentMethod:   "cod",
		AffiliateCode:   "CODE0001",
	})
	require.NoError(t, err)
	assert.Nil(t, order.ReferrerUserID)
}

func TestApplyOrderStatusChange_DeliveredPaidEntersClearance(t *testing.T) {
	db := setupTestDB(t)
	buyer := createTestUser(t, db, "buyer")
	createTestAffiliate(t, db, "ref1", "CODE0001", "0")
	product := createTestProduct(t, db, "商品", "100.00", 10, "5")
	addProductToCart(t, db, buyer.ID, product, 1)

	order, err := PlaceOrderForUser(db, buyer.ID, PlaceOrderRequest{
		ShippingAddress: "测试地址",
		PaymentMethod:   "cod",
		AffiliateCode:   "CODE0001",
	})
	require.NoError(t, err)

	require.NoError(t, ApplyOrderStatusChange(db, order.ID, models.OrderStatusDelivered, models.PaymentStatusPaid))

	var reloaded models.Order
	require.NoError(t, db.First(&reloaded, order.ID).Error)
	assert.Equal(t, models.OrderStatusDelivered, reloaded.OrderStatus)
	assert.Equal(t, models.PaymentStatusPaid, reloaded.PaymentStatus)

	var earning models.AffiliateEarning
	require.NoError(t, db.Where("order_id = ?", order.ID).First(&earning).Error)
	assert.Equal(t, models.EarningStatusAwaitingClearance, earning.Status)
	assert.NotNil(t, earning.OrderPaymentConfirmedAt)
}

func TestApplyOrderStatusChange_RefundCancelsEarnings(t *testing.T) {
	db := setupTestDB(t)
	buyer := createTestUser(t, db, "buyer")
	createTestAffiliate(t, db, "ref1", "CODE0001", "0")
	product := createTestProduct(t, db, "商品", "100.00", 10, "5")
	addProductToCart(t, db, buyer.ID, product, 1)

	order, err := PlaceOrderForUser(db, buyer.ID, PlaceOrderRequest{
		ShippingAddress: "测试地址",
		PaymentMethod:   "cod",
		AffiliateCode:   "CODE0001",
	})
	require.NoError(t, err)

	require.NoError(t, ApplyOrderStatusChange(db, order.ID, models.OrderStatusDelivered, models.PaymentStatusRefunded))

	var earning models.AffiliateEarning
	require.NoError(t, db.Where("order_id = ?", order.ID).First(&earning).Error)
	assert.Equal(t, models.EarningStatusCancelled, earning.Status)
}

func TestApplyOrderStatusChange_RegressionLeavesAwaitingUntouched(t *testing.T) {
	db := setupTestDB(t)
	buyer := createTestUser(t, db, "buyer")
	createTestAffiliate(t, db, "ref1", "CODE0001", "0")
	product := createTestProduct(t, db, "商品", "100.00", 10, "5")
	addProductToCart(t, db, buyer.ID, product, 1)

	order, err := PlaceOrderForUser(db, buyer.ID, PlaceOrderRequest{
		ShippingAddress: "测试地址",
		PaymentMethod:   "cod",
		AffiliateCode:   "CODE0001",
	})
	require.NoError(t, err)

	require.NoError(t, ApplyOrderStatusChange(db, order.ID, models.OrderStatusDelivered, models.PaymentStatusPaid))
	// 订单从 delivered 回退到 shipped，没有取消/退款信号，佣金保持等待清算
	require.NoError(t, ApplyOrderStatusChange(db, order.ID, models.OrderStatusShipped, models.PaymentStatusPaid))

	var earning models.AffiliateEarning
	require.NoError(t, db.Where("order_id = ?", order.ID).First(&earning).Error)
	assert.Equal(t, models.EarningStatusAwaitingClearance, earning.Status)
}

func TestOrderHasFinalizedEarnings(t *testing.T) {
	db := setupTestDB(t)
	affiliate := createTestAffiliate(t, db, "ref1", "CODE0001", "0")

	confirmedAt := time.Now().AddDate(0, 0, -20)
	e := createEarning(t, db, affiliate.ID, 100, "10.00", models.EarningStatusAwaitingClearance, &confirmedAt)

	finalized, err := orderHasFinalizedEarnings(db, 100)
	require.NoError(t, err)
	assert.False(t, finalized)

	require.NoError(t, FinalizeEarning(db, e.ID))

	finalized, err = orderHasFinalizedEarnings(db, 100)
	require.NoError(t, err)
	assert.True(t, finalized)
}
