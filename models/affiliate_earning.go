package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AffiliateEarning 推广佣金记录
// 每条记录对应一个订单条目与一位推荐人，金额与佣金比例在下单时快照。
// 时间戳约定：
//   - OrderPaymentConfirmedAt 在进入 awaiting_clearance 时写入
//   - ClearedAt 在进入 cleared 时写入，取消时置空
//   - ProcessedAt 在取消等终结性处理时写入
type AffiliateEarning struct {
	ID                      uint            `json:"id" gorm:"primaryKey"`                                 // 主键ID
	UserID                  uint            `json:"user_id" gorm:"index"`                                 // 推荐人用户ID
	OrderID                 uint            `json:"order_id" gorm:"index"`                                // 关联订单ID
	OrderItemID             uint            `json:"order_item_id" gorm:"index"`                           // 关联订单条目ID
	ProductID               uint            `json:"product_id" gorm:"index"`                              // 商品ID
	EarnedAmount            decimal.Decimal `json:"earned_amount" gorm:"type:decimal(10,2);not null"`     // 佣金金额
	CommissionRate          decimal.Decimal `json:"commission_rate" gorm:"type:decimal(5,2);not null"`    // 佣金比例快照（百分数）
	Status                  EarningStatus   `json:"status" gorm:"size:32;default:pending;index"`          // 佣金状态
	OrderPaymentConfirmedAt *time.Time      `json:"order_payment_confirmed_at" gorm:"index"`              // 订单确认收货+支付确认时间
	ClearedAt               *time.Time      `json:"cleared_at"`                                           // 清算入账时间
	ProcessedAt             *time.Time      `json:"processed_at"`                                         // 终结性处理时间
	CreatedAt               time.Time       `json:"created_at" gorm:"autoCreateTime"`                     // 创建时间
}

// TableName 返回表名
func (AffiliateEarning) TableName() string {
	return "affiliate_earnings"
}
