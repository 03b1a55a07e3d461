package handlers

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"affiliate_mall/database"
	"affiliate_mall/models"
	"affiliate_mall/utils"
)

// 下单相关错误
var (
	ErrCartEmpty            = errors.New("购物车为空，无法下单")
	ErrInsufficientStock    = errors.New("库存不足或已下架")
	ErrOrderStatusImmutable = errors.New("该订单的佣金已清算，状态不可再修改")
)

// PlaceOrderRequest 下单请求
type PlaceOrderRequest struct {
	ShippingAddress string `json:"shipping_address"` // 收货地址
	PaymentMethod   string `json:"payment_method"`   // 支付方式：cod, placeholder_card 等
	AffiliateCode   string `json:"affiliate_code"`   // 可选的推广码
}

// initialPaymentStatus 根据支付方式推导订单的初始支付状态
// 真实支付网关不在本系统范围内，placeholder_card 模拟一次成功支付
func initialPaymentStatus(paymentMethod string) models.PaymentStatus {
	switch paymentMethod {
	case "cod":
		return models.PaymentStatusPendingCOD
	case "placeholder_card":
		return models.PaymentStatusPaidPlaceholder
	default:
		return models.PaymentStatusPendingPayment
	}
}

// resolveReferrer 根据推广码解析推荐人
// 推广码必须属于一个已激活的推广员，且不能是买家本人；
// 推广码无效时静默忽略，不阻断下单
func resolveReferrer(db *gorm.DB, affiliateCode string, buyerID uint) (*uint, *string) {
	code := strings.TrimSpace(affiliateCode)
	if code == "" {
		return nil, nil
	}

	var referrer models.User
	err := db.Where("user_affiliate_code = ? AND is_affiliate = ?", code, true).First(&referrer).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("解析推广码 %q 失败: %v", code, err)
		}
		return nil, nil
	}
	// 不允许自己推荐自己
	if referrer.ID == buyerID {
		return nil, nil
	}
	return &referrer.ID, &code
}

// PlaceOrderForUser 为指定用户下单
// 在同一事务内完成：逐商品的受保护库存扣减（影响行数必须为1，
// 以此串行化同一商品的并发购买）、订单与订单条目落库（单价快照）、
// 清空购物车，以及推荐人存在时按条目创建 pending 佣金记录。
// 佣金金额 = 单价快照 × 数量 × 佣金比例快照 / 100，保留两位小数
func PlaceOrderForUser(db *gorm.DB, userID uint, req PlaceOrderRequest) (*models.Order, error) {
	// 读取购物车条目
	var cartItems []models.CartItem
	err := db.Joins("JOIN carts ON carts.id = cart_items.cart_id").
		Where("carts.user_id = ?", userID).
		Find(&cartItems).Error
	if err != nil {
		log.Printf("读取用户 %d 购物车失败: %v", userID, err)
		return nil, err
	}
	if len(cartItems) == 0 {
		return nil, ErrCartEmpty
	}

	// 计算订单总额
	total := decimal.Zero
	for _, item := range cartItems {
		total = total.Add(item.PriceAtAddition.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	paymentStatus := initialPaymentStatus(req.PaymentMethod)
	referrerUserID, affiliateCodeUsed := resolveReferrer(db, req.AffiliateCode, userID)

	tx := db.Begin()
	if tx.Error != nil {
		log.Printf("用户 %d 下单时开启事务失败: %v", userID, tx.Error)
		return nil, tx.Error
	}

	var txCommitted bool
	defer func() {
		if !txCommitted {
			tx.Rollback()
		}
	}()

	// 逐商品扣减库存
	// 带库存下限条件的UPDATE影响行数为0时说明库存不足或商品不存在，
	// 并发购买同一商品时由数据库保证不会超卖
	for _, item := range cartItems {
		result := tx.Model(&models.Product{}).
			Where("id = ? AND stock_quantity >= ?", item.ProductID, item.Quantity).
			Update("stock_quantity", gorm.Expr("stock_quantity - ?", item.Quantity))
		if result.Error != nil {
			log.Printf("扣减商品 %d 库存失败: %v", item.ProductID, result.Error)
			return nil, result.Error
		}
		if result.RowsAffected == 0 {
			return nil, fmt.Errorf("商品 %d %w", item.ProductID, ErrInsufficientStock)
		}
	}

	// 创建订单
	order := models.Order{
		UserID:            &userID,
		TotalAmount:       total,
		ShippingAddress:   req.ShippingAddress,
		PaymentMethod:     req.PaymentMethod,
		OrderStatus:       models.OrderStatusPending,
		PaymentStatus:     paymentStatus,
		ReferrerUserID:    referrerUserID,
		AffiliateCodeUsed: affiliateCodeUsed,
	}
	if err := tx.Create(&order).Error; err != nil {
		log.Printf("用户 %d 创建订单失败: %v", userID, err)
		return nil, err
	}

	// 创建订单条目并按需创建佣金记录
	for _, item := range cartItems {
		orderItem := models.OrderItem{
			OrderID:      order.ID,
			ProductID:    item.ProductID,
			Quantity:     item.Quantity,
			PricePerUnit: item.PriceAtAddition,
		}
		if err := tx.Create(&orderItem).Error; err != nil {
			log.Printf("订单 %d 创建条目失败 (商品 %d): %v", order.ID, item.ProductID, err)
			return nil, err
		}

		// 推荐人存在且商品佣金比例为正时创建 pending 佣金
		// 佣金比例在此刻快照，之后修改商品比例不影响该条佣金
		if referrerUserID != nil {
			var product models.Product
			if err := tx.First(&product, item.ProductID).Error; err != nil {
				log.Printf("订单 %d 查询商品 %d 失败: %v", order.ID, item.ProductID, err)
				return nil, err
			}
			if product.AffiliateBonusPercentage.IsPositive() {
				earnedAmount := orderItem.PricePerUnit.
					Mul(decimal.NewFromInt(int64(orderItem.Quantity))).
					Mul(product.AffiliateBonusPercentage).
					Div(decimal.NewFromInt(100)).
					Round(2)
				earning := models.AffiliateEarning{
					UserID:         *referrerUserID,
					OrderID:        order.ID,
					OrderItemID:    orderItem.ID,
					ProductID:      item.ProductID,
					EarnedAmount:   earnedAmount,
					CommissionRate: product.AffiliateBonusPercentage,
					Status:         models.EarningStatusPending,
				}
				if err := tx.Create(&earning).Error; err != nil {
					log.Printf("订单 %d 创建佣金记录失败 (条目 %d): %v", order.ID, orderItem.ID, err)
					return nil, err
				}
			}
		}
	}

	// 下单成功后清空购物车
	var cart models.Cart
	if err := tx.Where("user_id = ?", userID).First(&cart).Error; err != nil {
		log.Printf("下单后查询用户 %d 购物车失败: %v", userID, err)
		return nil, err
	}
	if err := tx.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error; err != nil {
		log.Printf("清空用户 %d 购物车失败: %v", userID, err)
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		log.Printf("用户 %d 下单提交事务失败: %v", userID, err)
		return nil, err
	}
	txCommitted = true
	return &order, nil
}

// ApplyOrderStatusChange 应用订单状态变更并处理佣金副作用
// 状态写入先无条件执行，随后按规则表决定佣金动作。
// 状态写入与佣金处理不在同一个原子单元内：状态已写入而佣金处理失败时，
// 调用方可以只重试佣金这一步（两个转换入口各自幂等或可安全跳过）
func ApplyOrderStatusChange(db *gorm.DB, orderID uint, newOrderStatus models.OrderStatus, newPaymentStatus models.PaymentStatus) error {
	err := db.Model(&models.Order{}).Where("id = ?", orderID).Updates(map[string]interface{}{
		"order_status":   newOrderStatus,
		"payment_status": newPaymentStatus,
	}).Error
	if err != nil {
		log.Printf("更新订单 %d 状态失败 (%s/%s): %v", orderID, newOrderStatus, newPaymentStatus, err)
		return err
	}

	switch models.DecideEarningAction(newOrderStatus, newPaymentStatus) {
	case models.EarningActionEnterClearance:
		return MarkEarningsAwaitingClearance(db, orderID)
	case models.EarningActionCancel:
		return CancelEarningsForOrder(db, orderID, newOrderStatus, newPaymentStatus)
	}
	// 其余状态组合不触碰佣金
	return nil
}

// orderHasFinalizedEarnings 判断订单下是否已有清算或已支付的佣金
// 一旦存在，订单状态即不可再修改
func orderHasFinalizedEarnings(db *gorm.DB, orderID uint) (bool, error) {
	var count int64
	err := db.Model(&models.AffiliateEarning{}).
		Where("order_id = ? AND status IN ?", orderID, []models.EarningStatus{
			models.EarningStatusCleared,
			models.EarningStatusPaid,
		}).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// PlaceOrder 用户下单
// 从购物车生成订单，可携带推广码用于佣金归属
func PlaceOrder(c *fiber.Ctx) error {
	userID, err := utils.GetUserIDFromContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "未认证的请求",
		})
	}

	var req PlaceOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "参数解析失败: " + err.Error(),
		})
	}

	// 验证必填字段
	if strings.TrimSpace(req.ShippingAddress) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "收货地址不能为空",
		})
	}
	if strings.TrimSpace(req.PaymentMethod) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "支付方式不能为空",
		})
	}

	order, err := PlaceOrderForUser(database.GetDB(), userID, req)
	if err != nil {
		// 业务性失败返回400，持久化等内部错误返回500
		if errors.Is(err, ErrCartEmpty) || errors.Is(err, ErrInsufficientStock) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "下单失败，请稍后重试",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "下单成功",
		"data":    order,
	})
}

// GetMyOrders 获取当前用户的订单列表
// 支持分页
func GetMyOrders(c *fiber.Ctx) error {
	userID, err := utils.GetUserIDFromContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "未认证的请求",
		})
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "10"))
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 10
	}

	db := database.GetDB().Model(&models.Order{}).Where("user_id = ?", userID)

	var total int64
	if err := db.Count(&total).Error; err != nil {
		log.Printf("统计用户 %d 订单总数失败: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "统计订单总数失败",
		})
	}

	var orders []models.Order
	offset := (page - 1) * pageSize
	if err := db.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&orders).Error; err != nil {
		log.Printf("获取用户 %d 订单列表失败: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取订单列表失败",
		})
	}

	return c.JSON(fiber.Map{
		"data":      orders,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetOrderDetail 获取订单详情（含条目）
// 普通用户只能查看自己的订单，管理员可以查看任意订单
func GetOrderDetail(c *fiber.Ctx) error {
	userID, err := utils.GetUserIDFromContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "未认证的请求",
		})
	}

	orderID, err := strconv.Atoi(c.Params("id"))
	if err != nil || orderID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的订单ID",
		})
	}

	var order models.Order
	if err := database.GetDB().Preload("Items").First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "订单不存在",
			})
		}
		log.Printf("查询订单 %d 失败: %v", orderID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "查询订单失败",
		})
	}

	// 权限校验：本人或管理员
	isAdmin, _ := c.Locals("is_admin").(bool)
	if !isAdmin && (order.UserID == nil || *order.UserID != userID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "无权查看该订单",
		})
	}

	return c.JSON(fiber.Map{
		"data": order,
	})
}

// AdminGetAllOrders 管理员获取所有订单
// 支持按订单状态筛选和分页
func AdminGetAllOrders(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "20"))
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	db := database.GetDB().Model(&models.Order{})
	if statusFilter := c.Query("order_status"); statusFilter != "" {
		status := models.OrderStatus(statusFilter)
		if !status.Valid() {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "无效的订单状态筛选条件",
			})
		}
		db = db.Where("order_status = ?", status)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		log.Printf("统计订单总数失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "统计订单总数失败",
		})
	}

	var orders []models.Order
	offset := (page - 1) * pageSize
	if err := db.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&orders).Error; err != nil {
		log.Printf("获取订单列表失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取订单列表失败",
		})
	}

	return c.JSON(fiber.Map{
		"data":      orders,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// AdminUpdateOrderStatuses 管理员更新订单状态与支付状态
// 两个状态必须同时提交且均为合法枚举值；
// 订单下已有清算或已支付佣金时拒绝修改（终态不可变前置校验）
func AdminUpdateOrderStatuses(c *fiber.Ctx) error {
	orderID, err := strconv.Atoi(c.Params("id"))
	if err != nil || orderID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的订单ID",
		})
	}

	var requestData struct {
		OrderStatus   models.OrderStatus   `json:"order_status"`
		PaymentStatus models.PaymentStatus `json:"payment_status"`
	}
	if err := c.BodyParser(&requestData); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "参数解析失败: " + err.Error(),
		})
	}

	// 状态必须是合法枚举值
	if !requestData.OrderStatus.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的订单状态: " + string(requestData.OrderStatus),
		})
	}
	if !requestData.PaymentStatus.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的支付状态: " + string(requestData.PaymentStatus),
		})
	}

	// 确认订单存在
	var order models.Order
	if err := database.GetDB().First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "订单不存在",
			})
		}
		log.Printf("查询订单 %d 失败: %v", orderID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "查询订单失败",
		})
	}

	// 前置校验：佣金清算后订单状态不可再变更
	finalized, err := orderHasFinalizedEarnings(database.GetDB(), order.ID)
	if err != nil {
		log.Printf("检查订单 %d 佣金清算状态失败: %v", order.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "检查订单佣金状态失败",
		})
	}
	if finalized {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": ErrOrderStatusImmutable.Error(),
		})
	}

	if err := ApplyOrderStatusChange(database.GetDB(), order.ID, requestData.OrderStatus, requestData.PaymentStatus); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "更新订单状态失败",
		})
	}

	return c.JSON(fiber.Map{
		"message": "订单状态更新成功",
	})
}
