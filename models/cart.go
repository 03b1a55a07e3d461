package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart 购物车模型
// 每个登录用户持有一个购物车
type Cart struct {
	ID        uint      `json:"id" gorm:"primaryKey"`             // 主键ID
	UserID    uint      `json:"user_id" gorm:"uniqueIndex"`       // 所属用户ID，唯一
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"` // 创建时间
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"` // 更新时间
}

// TableName 返回表名
func (Cart) TableName() string {
	return "carts"
}

// CartItem 购物车条目
// PriceAtAddition 记录加入购物车时的单价快照，下单时作为成交价
type CartItem struct {
	ID              uint            `json:"id" gorm:"primaryKey"`                                                     // 主键ID
	CartID          uint            `json:"cart_id" gorm:"index;index:idx_cart_product,unique"`                       // 购物车ID
	ProductID       uint            `json:"product_id" gorm:"index;index:idx_cart_product,unique"`                    // 商品ID
	Quantity        int             `json:"quantity" gorm:"not null"`                                                 // 数量，必须大于0
	PriceAtAddition decimal.Decimal `json:"price_at_addition" gorm:"type:decimal(10,2);not null"`                     // 加入时的单价快照
	CreatedAt       time.Time       `json:"created_at" gorm:"autoCreateTime"`                                         // 创建时间
	UpdatedAt       time.Time       `json:"updated_at" gorm:"autoUpdateTime"`                                         // 更新时间
}

// TableName 返回表名
func (CartItem) TableName() string {
	return "cart_items"
}

// GuestCartItem 游客购物车条目
// 游客购物车不落库，由客户端保管，登录时随请求提交并合并进数据库购物车
type GuestCartItem struct {
	ProductID       uint            `json:"product_id"`        // 商品ID
	Quantity        int             `json:"quantity"`          // 数量
	PriceAtAddition decimal.Decimal `json:"price_at_addition"` // 加入时的单价快照
}

// GuestCart 游客购物车值对象
type GuestCart struct {
	Items []GuestCartItem `json:"items"` // 条目列表
}

// MergeGuestCart 将游客购物车合并进数据库购物车条目，返回合并后的条目列表
// 纯函数，不触碰数据库：同一商品数量累加，价格快照取游客侧的值（与登录前看到的价格一致）；
// 数量非法的游客条目直接跳过
func MergeGuestCart(dbItems []CartItem, guest GuestCart) []CartItem {
	merged := make([]CartItem, len(dbItems))
	copy(merged, dbItems)

	index := make(map[uint]int, len(merged))
	for i, item := range merged {
		index[item.ProductID] = i
	}

	for _, g := range guest.Items {
		if g.ProductID == 0 || g.Quantity <= 0 {
			continue
		}
		if i, ok := index[g.ProductID]; ok {
			merged[i].Quantity += g.Quantity
			merged[i].PriceAtAddition = g.PriceAtAddition
			continue
		}
		merged = append(merged, CartItem{
			ProductID:       g.ProductID,
			Quantity:        g.Quantity,
			PriceAtAddition: g.PriceAtAddition,
		})
		index[g.ProductID] = len(merged) - 1
	}
	return merged
}
