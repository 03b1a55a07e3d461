package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// WithdrawalRequest 提现申请
// 提交时校验金额不超过当前余额，但不冻结余额；
// 审批通过时再以受保护的扣减语句二次校验余额
type WithdrawalRequest struct {
	ID              uint             `json:"id" gorm:"primaryKey"`                                 // 主键ID
	UserID          uint             `json:"user_id" gorm:"index"`                                 // 申请用户ID
	RequestedAmount decimal.Decimal  `json:"requested_amount" gorm:"type:decimal(10,2);not null"`  // 申请金额
	PaymentDetails  string           `json:"payment_details" gorm:"type:text;not null"`            // 收款方式说明（自由文本）
	Status          WithdrawalStatus `json:"status" gorm:"size:32;default:pending;index"`          // 申请状态
	RequestedAt     time.Time        `json:"requested_at" gorm:"autoCreateTime"`                   // 申请时间
	ProcessedAt     *time.Time       `json:"processed_at"`                                         // 处理时间
	AdminNotes      *string          `json:"admin_notes" gorm:"type:text"`                         // 管理员备注
}

// TableName 返回表名
func (WithdrawalRequest) TableName() string {
	return "withdrawal_requests"
}
