package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(value)
	require.NoError(t, err)
	return v
}

func TestMergeGuestCart(t *testing.T) {
	dbItems := []CartItem{
		{ID: 1, CartID: 1, ProductID: 10, Quantity: 2, PriceAtAddition: d(t, "10.00")},
		{ID: 2, CartID: 1, ProductID: 20, Quantity: 1, PriceAtAddition: d(t, "5.00")},
	}
	guest := GuestCart{Items: []GuestCartItem{
		// 同商品数量累加，价格快照取游客侧
		{ProductID: 10, Quantity: 3, PriceAtAddition: d(t, "9.00")},
		// 新商品追加
		{ProductID: 30, Quantity: 1, PriceAtAddition: d(t, "7.50")},
	}}

	merged := MergeGuestCart(dbItems, guest)
	require.Len(t, merged, 3)

	assert.Equal(t, uint(10), merged[0].ProductID)
	assert.Equal(t, 5, merged[0].Quantity)
	assert.True(t, merged[0].PriceAtAddition.Equal(d(t, "9.00")))
	// 已有条目保留主键，便于调用方走更新路径
	assert.Equal(t, uint(1), merged[0].ID)

	assert.Equal(t, uint(20), merged[1].ProductID)
	assert.Equal(t, 1, merged[1].Quantity)

	assert.Equal(t, uint(30), merged[2].ProductID)
	assert.Equal(t, 1, merged[2].Quantity)
	// 新条目没有主键
	assert.Zero(t, merged[2].ID)
}

func TestMergeGuestCart_SkipsInvalidItems(t *testing.T) {
	guest := GuestCart{Items: []GuestCartItem{
		{ProductID: 0, Quantity: 1, PriceAtAddition: d(t, "1.00")},
		{ProductID: 10, Quantity: 0, PriceAtAddition: d(t, "1.00")},
		{ProductID: 10, Quantity: -2, PriceAtAddition: d(t, "1.00")},
	}}

	merged := MergeGuestCart(nil, guest)
	assert.Empty(t, merged)
}

func TestMergeGuestCart_DuplicateGuestItemsAccumulate(t *testing.T) {
	guest := GuestCart{Items: []GuestCartItem{
		{ProductID: 10, Quantity: 1, PriceAtAddition: d(t, "2.00")},
		{ProductID: 10, Quantity: 2, PriceAtAddition: d(t, "1.80")},
	}}

	merged := MergeGuestCart(nil, guest)
	require.Len(t, merged, 1)
	assert.Equal(t, 3, merged[0].Quantity)
	// 后出现的价格快照覆盖先前的
	assert.True(t, merged[0].PriceAtAddition.Equal(d(t, "1.80")))
}

func TestMergeGuestCart_EmptyInputs(t *testing.T) {
	dbItems := []CartItem{
		{ID: 1, CartID: 1, ProductID: 10, Quantity: 2, PriceAtAddition: d(t, "10.00")},
	}

	merged := MergeGuestCart(dbItems, GuestCart{})
	require.Len(t, merged, 1)
	assert.Equal(t, 2, merged[0].Quantity)

	assert.Empty(t, MergeGuestCart(nil, GuestCart{}))
}
