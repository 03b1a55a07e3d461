package models

// 各类状态的封闭枚举类型
// 所有状态流转判断都以这里的常量为准，避免散落的字符串比较

// OrderStatus 订单状态
type OrderStatus string

// 订单状态常量
const (
	OrderStatusPending           OrderStatus = "pending"                  // 待处理
	OrderStatusProcessing        OrderStatus = "processing"               // 处理中
	OrderStatusShipped           OrderStatus = "shipped"                  // 已发货
	OrderStatusDelivered         OrderStatus = "delivered"                // 已送达
	OrderStatusCancelled         OrderStatus = "cancelled"                // 已取消
	OrderStatusPendingCODConfirm OrderStatus = "pending_cod_confirmation" // 货到付款待确认
)

// Valid 判断订单状态是否为合法枚举值
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusPendingCODConfirm:
		return true
	}
	return false
}

// PaymentStatus 支付状态
type PaymentStatus string

// 支付状态常量
const (
	PaymentStatusPendingPayment  PaymentStatus = "pending_payment"          // 待支付
	PaymentStatusPaid            PaymentStatus = "paid"                     // 已支付
	PaymentStatusPaidPlaceholder PaymentStatus = "paid_placeholder"         // 模拟支付成功（测试用）
	PaymentStatusFailed          PaymentStatus = "failed"                   // 支付失败
	PaymentStatusRefunded        PaymentStatus = "refunded"                 // 已退款
	PaymentStatusPendingCOD      PaymentStatus = "pending_cod_confirmation" // 货到付款待确认
)

// Valid 判断支付状态是否为合法枚举值
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPendingPayment, PaymentStatusPaid, PaymentStatusPaidPlaceholder,
		PaymentStatusFailed, PaymentStatusRefunded, PaymentStatusPendingCOD:
		return true
	}
	return false
}

// EarningStatus 推广佣金状态
// 生命周期: pending -> awaiting_clearance -> cleared -> paid
// 取消路径可以从任意非终态进入 cancelled；paid 和 cancelled 为终态
type EarningStatus string

// 佣金状态常量
const (
	EarningStatusPending           EarningStatus = "pending"            // 待确认（下单时创建）
	EarningStatusAwaitingClearance EarningStatus = "awaiting_clearance" // 等待清算期结束
	EarningStatusCleared           EarningStatus = "cleared"            // 已清算（余额已入账）
	EarningStatusPaid              EarningStatus = "paid"               // 已支付给推广人
	EarningStatusCancelled         EarningStatus = "cancelled"          // 已取消
)

// Valid 判断佣金状态是否为合法枚举值
func (s EarningStatus) Valid() bool {
	switch s {
	case EarningStatusPending, EarningStatusAwaitingClearance,
		EarningStatusCleared, EarningStatusPaid, EarningStatusCancelled:
		return true
	}
	return false
}

// Terminal 判断佣金状态是否为终态
func (s EarningStatus) Terminal() bool {
	return s == EarningStatusPaid || s == EarningStatusCancelled
}

// WithdrawalStatus 提现申请状态
type WithdrawalStatus string

// 提现申请状态常量
const (
	WithdrawalStatusPending  WithdrawalStatus = "pending"  // 待处理
	WithdrawalStatusApproved WithdrawalStatus = "approved" // 已批准
	WithdrawalStatusRejected WithdrawalStatus = "rejected" // 已拒绝
)

// Valid 判断提现状态是否为合法枚举值
func (s WithdrawalStatus) Valid() bool {
	switch s {
	case WithdrawalStatusPending, WithdrawalStatusApproved, WithdrawalStatusRejected:
		return true
	}
	return false
}

// EarningAction 订单状态变更对佣金记录产生的副作用
type EarningAction int

// 佣金副作用动作
const (
	EarningActionNone           EarningAction = iota // 不处理佣金
	EarningActionEnterClearance                      // pending 佣金进入清算等待期
	EarningActionCancel                              // 取消订单关联的佣金
)

// DecideEarningAction 根据新的订单状态和支付状态决定佣金副作用
// 判定规则全部集中在此，状态比较不散落在各个调用方：
//   - 已送达且已支付（含模拟支付）=> 进入清算等待期
//   - 订单取消、支付失败或退款 => 取消佣金
//   - 其他组合不触碰佣金。特别地，订单从 delivered 回退到 shipped/processing
//     而没有明确的取消或退款信号时，已处于 awaiting_clearance 的佣金保持不变
func DecideEarningAction(orderStatus OrderStatus, paymentStatus PaymentStatus) EarningAction {
	if orderStatus == OrderStatusDelivered &&
		(paymentStatus == PaymentStatusPaid || paymentStatus == PaymentStatusPaidPlaceholder) {
		return EarningActionEnterClearance
	}
	if orderStatus == OrderStatusCancelled ||
		paymentStatus == PaymentStatusFailed || paymentStatus == PaymentStatusRefunded {
		return EarningActionCancel
	}
	return EarningActionNone
}
