package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"affiliate_mall/models"
)

func TestMergeGuestCartForUser(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "alice")

	existing := createTestProduct(t, db, "已有商品", "10.00", 100, "0")
	fresh := createTestProduct(t, db, "新商品", "25.00", 100, "0")
	addProductToCart(t, db, user.ID, existing, 2)

	guest := models.GuestCart{Items: []models.GuestCartItem{
		// 与已有条目同商品：数量累加，价格快照取游客侧
		{ProductID: existing.ID, Quantity: 3, PriceAtAddition: mustDecimal(t, "9.50")},
		// 新商品：创建条目
		{ProductID: fresh.ID, Quantity: 1, PriceAtAddition: mustDecimal(t, "25.00")},
		// 不存在的商品：跳过
		{ProductID: 99999, Quantity: 1, PriceAtAddition: mustDecimal(t, "1.00")},
		// 数量非法：跳过
		{ProductID: fresh.ID, Quantity: 0, PriceAtAddition: mustDecimal(t, "25.00")},
	}}

	require.NoError(t, MergeGuestCartForUser(db, user.ID, guest))

	cart, err := getOrCreateCart(db, user.ID)
	require.NoError(t, err)

	var items []models.CartItem
	require.NoError(t, db.Where("cart_id = ?", cart.ID).Order("product_id ASC").Find(&items).Error)
	require.Len(t, items, 2)

	assert.Equal(t, existing.ID, items[0].ProductID)
	assert.Equal(t, 5, items[0].Quantity)
	assert.True(t, items[0].PriceAtAddition.Equal(mustDecimal(t, "9.50")))

	assert.Equal(t, fresh.ID, items[1].ProductID)
	assert.Equal(t, 1, items[1].Quantity)
}

func TestMergeGuestCartForUser_EmptyGuestCart(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "alice")
	product := createTestProduct(t, db, "商品", "10.00", 100, "0")
	addProductToCart(t, db, user.ID, product, 2)

	require.NoError(t, MergeGuestCartForUser(db, user.ID, models.GuestCart{}))

	var count int64
	require.NoError(t, db.Model(&models.CartItem{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestMergeGuestCartForUser_CreatesCartWhenMissing(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "bob")
	product := createTestProduct(t, db, "商品", "10.00", 100, "0")

	guest := models.GuestCart{Items: []models.GuestCartItem{
		{ProductID: product.ID, Quantity: 2, PriceAtAddition: mustDecimal(t, "10.00")},
	}}
	require.NoError(t, MergeGuestCartForUser(db, user.ID, guest))

	var cart models.Cart
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&cart).Error)

	var items []models.CartItem
	require.NoError(t, db.Where("cart_id = ?", cart.ID).Find(&items).Error)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)
}
