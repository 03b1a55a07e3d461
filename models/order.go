package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order 订单模型
// ReferrerUserID 与 AffiliateCodeUsed 在下单时快照推荐关系；
// 一旦订单下任意佣金进入 cleared/paid，状态字段即被视为不可再修改（由状态更新入口校验）
type Order struct {
	ID                uint            `json:"id" gorm:"primaryKey"`                                   // 主键ID
	UserID            *uint           `json:"user_id" gorm:"index"`                                   // 下单用户ID，游客下单场景允许为空
	TotalAmount       decimal.Decimal `json:"total_amount" gorm:"type:decimal(10,2);not null"`        // 订单总金额
	ShippingAddress   string          `json:"shipping_address" gorm:"type:text;not null"`             // 收货地址
	PaymentMethod     string          `json:"payment_method" gorm:"size:50;not null"`                 // 支付方式：cod, placeholder_card 等
	OrderStatus       OrderStatus     `json:"order_status" gorm:"size:32;default:pending;index"`      // 订单状态
	PaymentStatus     PaymentStatus   `json:"payment_status" gorm:"size:32;not null;index"`           // 支付状态
	ReferrerUserID    *uint           `json:"referrer_user_id" gorm:"index"`                          // 推荐人用户ID，下单时快照
	AffiliateCodeUsed *string         `json:"affiliate_code_used" gorm:"size:32"`                     // 下单时使用的推广码
	CreatedAt         time.Time       `json:"created_at" gorm:"autoCreateTime"`                       // 创建时间
	UpdatedAt         time.Time       `json:"updated_at" gorm:"autoUpdateTime"`                       // 更新时间

	Items []OrderItem `json:"items,omitempty" gorm:"foreignKey:OrderID"` // 订单条目
}

// TableName 返回表名
func (Order) TableName() string {
	return "orders"
}

// OrderItem 订单条目
// PricePerUnit 为下单时的单价快照，与商品现价解耦
type OrderItem struct {
	ID           uint            `json:"id" gorm:"primaryKey"`                                                // 主键ID
	OrderID      uint            `json:"order_id" gorm:"index;constraint:OnDelete:CASCADE"`                   // 所属订单ID
	ProductID    uint            `json:"product_id" gorm:"index"`                                             // 商品ID
	Quantity     int             `json:"quantity" gorm:"not null"`                                            // 数量，必须大于0
	PricePerUnit decimal.Decimal `json:"price_per_unit" gorm:"type:decimal(10,2);not null"`                   // 下单时的单价快照
	CreatedAt    time.Time       `json:"created_at" gorm:"autoCreateTime"`                                    // 创建时间
	UpdatedAt    time.Time       `json:"updated_at" gorm:"autoUpdateTime"`                                    // 更新时间
}

// TableName 返回表名
func (OrderItem) TableName() string {
	return "order_items"
}
