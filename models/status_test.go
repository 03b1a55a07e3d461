package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusValid(t *testing.T) {
	assert.True(t, OrderStatusDelivered.Valid())
	assert.True(t, OrderStatusPendingCODConfirm.Valid())
	assert.False(t, OrderStatus("shipped_back").Valid())
	assert.False(t, OrderStatus("").Valid())

	assert.True(t, PaymentStatusPaidPlaceholder.Valid())
	assert.False(t, PaymentStatus("partial").Valid())

	assert.True(t, EarningStatusAwaitingClearance.Valid())
	assert.False(t, EarningStatus("frozen").Valid())

	assert.True(t, WithdrawalStatusApproved.Valid())
	assert.False(t, WithdrawalStatus("cancelled").Valid())
}

func TestEarningStatusTerminal(t *testing.T) {
	assert.True(t, EarningStatusPaid.Terminal())
	assert.True(t, EarningStatusCancelled.Terminal())
	assert.False(t, EarningStatusPending.Terminal())
	assert.False(t, EarningStatusAwaitingClearance.Terminal())
	assert.False(t, EarningStatusCleared.Terminal())
}

func TestDecideEarningAction(t *testing.T) {
	tests := []struct {
		name          string
		orderStatus   OrderStatus
		paymentStatus PaymentStatus
		want          EarningAction
	}{
		{"送达且已支付进入清算", OrderStatusDelivered, PaymentStatusPaid, EarningActionEnterClearance},
		{"送达且模拟支付进入清算", OrderStatusDelivered, PaymentStatusPaidPlaceholder, EarningActionEnterClearance},
		{"送达但未支付不处理", OrderStatusDelivered, PaymentStatusPendingPayment, EarningActionNone},
		{"订单取消触发取消", OrderStatusCancelled, PaymentStatusPaid, EarningActionCancel},
		{"支付失败触发取消", OrderStatusProcessing, PaymentStatusFailed, EarningActionCancel},
		{"退款触发取消", OrderStatusDelivered, PaymentStatusRefunded, EarningActionCancel},
		{"发货中不处理", OrderStatusShipped, PaymentStatusPaid, EarningActionNone},
		{"从送达回退到发货不处理", OrderStatusShipped, PaymentStatusPaidPlaceholder, EarningActionNone},
		{"待处理不处理", OrderStatusPending, PaymentStatusPendingCOD, EarningActionNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecideEarningAction(tt.orderStatus, tt.paymentStatus))
		})
	}
}
