package handlers

import (
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"affiliate_mall/database"
	"affiliate_mall/models"
	"affiliate_mall/utils"
)

// 提现相关错误
// ErrWithdrawalInsufficientFunds 与 ErrWithdrawalInsufficientBalance 有意区分：
// 前者发生在审批阶段（受保护扣减影响行数为0，说明提交后余额已经下降），
// 后者发生在提交阶段的普通校验
var (
	ErrWithdrawalInvalidAmount       = errors.New("提现金额必须大于0")
	ErrWithdrawalMissingDetails      = errors.New("收款方式不能为空")
	ErrWithdrawalInsufficientBalance = errors.New("提现金额超过当前可用余额")
	ErrWithdrawalRequestNotFound     = errors.New("提现申请不存在或已被处理")
	ErrWithdrawalInsufficientFunds   = errors.New("用户余额不足，扣减失败")
)

// SubmitWithdrawal 提交提现申请
// 校验顺序：金额为正、收款方式非空、金额不超过提交时刻的余额。
// 余额在提交时只读不锁，也不做冻结——与并发的佣金取消存在竞态，
// 该竞态由审批阶段的受保护扣减兜底
func SubmitWithdrawal(db *gorm.DB, userID uint, amount decimal.Decimal, paymentDetails string) (*models.WithdrawalRequest, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrWithdrawalInvalidAmount
	}
	if strings.TrimSpace(paymentDetails) == "" {
		return nil, ErrWithdrawalMissingDetails
	}

	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		log.Printf("提现申请查询用户 %d 失败: %v", userID, err)
		return nil, err
	}
	if amount.GreaterThan(user.AffiliateBalance) {
		return nil, ErrWithdrawalInsufficientBalance
	}

	request := models.WithdrawalRequest{
		UserID:          userID,
		RequestedAmount: amount,
		PaymentDetails:  paymentDetails,
		Status:          models.WithdrawalStatusPending,
	}
	if err := db.Create(&request).Error; err != nil {
		log.Printf("用户 %d 创建提现申请失败: %v", userID, err)
		return nil, err
	}
	return &request, nil
}

// ProcessWithdrawalRequest 管理员处理提现申请
// 只有 pending 状态的申请可以被处理，重复处理返回 ErrWithdrawalRequestNotFound。
// approve: 在事务内执行受保护的余额扣减
// （UPDATE ... WHERE affiliate_balance >= 申请金额），影响行数为0说明
// 提交后余额已下降，回滚并返回 ErrWithdrawalInsufficientFunds，
// 申请保持 pending 以便人工对账；随后将申请置为 approved。
// reject: 仅更新申请状态，不动余额
func ProcessWithdrawalRequest(db *gorm.DB, requestID uint, action string, adminNotes string) error {
	if action != "approve" && action != "reject" {
		return errors.New("无效的处理动作: " + action)
	}

	// 申请必须存在且处于 pending
	var request models.WithdrawalRequest
	err := db.Where("id = ? AND status = ?", requestID, models.WithdrawalStatusPending).
		First(&request).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrWithdrawalRequestNotFound
		}
		log.Printf("查询提现申请 %d 失败: %v", requestID, err)
		return err
	}

	now := time.Now()

	if action == "reject" {
		err := db.Model(&models.WithdrawalRequest{}).Where("id = ?", request.ID).
			Updates(map[string]interface{}{
				"status":       models.WithdrawalStatusRejected,
				"processed_at": now,
				"admin_notes":  adminNotes,
			}).Error
		if err != nil {
			log.Printf("拒绝提现申请 %d 失败: %v", request.ID, err)
		}
		return err
	}

	tx := db.Begin()
	if tx.Error != nil {
		log.Printf("处理提现申请 %d 时开启事务失败: %v", request.ID, tx.Error)
		return tx.Error
	}

	var txCommitted bool
	defer func() {
		if !txCommitted {
			tx.Rollback()
		}
	}()

	// 受保护的余额扣减
	// 余额条件写进WHERE，由影响行数判断提交时刻以来余额是否仍然足够
	result := tx.Model(&models.User{}).
		Where("id = ? AND affiliate_balance >= ?", request.UserID, request.RequestedAmount).
		Update("affiliate_balance", gorm.Expr("affiliate_balance - ?", request.RequestedAmount))
	if result.Error != nil {
		log.Printf("提现申请 %d 扣减用户 %d 余额失败: %v", request.ID, request.UserID, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		log.Printf("提现申请 %d 扣减失败: 用户 %d 余额不足（申请金额 %s）",
			request.ID, request.UserID, request.RequestedAmount)
		return ErrWithdrawalInsufficientFunds
	}

	// 申请置为已批准
	err = tx.Model(&models.WithdrawalRequest{}).Where("id = ?", request.ID).
		Updates(map[string]interface{}{
			"status":       models.WithdrawalStatusApproved,
			"processed_at": now,
			"admin_notes":  adminNotes,
		}).Error
	if err != nil {
		log.Printf("更新提现申请 %d 状态失败: %v", request.ID, err)
		return err
	}

	if err := tx.Commit().Error; err != nil {
		log.Printf("处理提现申请 %d 时提交事务失败: %v", request.ID, err)
		return err
	}
	txCommitted = true
	return nil
}

// RequestWithdrawal 推广员提交提现申请
func RequestWithdrawal(c *fiber.Ctx) error {
	userID, err := utils.GetUserIDFromContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "未认证的请求",
		})
	}

	var requestData struct {
		Amount         decimal.Decimal `json:"amount"`
		PaymentDetails string          `json:"payment_details"`
	}
	if err := c.BodyParser(&requestData); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "参数解析失败: " + err.Error(),
		})
	}

	request, err := SubmitWithdrawal(database.GetDB(), userID, requestData.Amount, requestData.PaymentDetails)
	if err != nil {
		switch {
		case errors.Is(err, ErrWithdrawalInvalidAmount),
			errors.Is(err, ErrWithdrawalMissingDetails),
			errors.Is(err, ErrWithdrawalInsufficientBalance):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "提交提现申请失败",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "提现申请提交成功，等待管理员处理",
		"data":    request,
	})
}

// GetMyWithdrawals 获取当前用户自己的提现申请列表
func GetMyWithdrawals(c *fiber.Ctx) error {
	userID, err := utils.GetUserIDFromContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "未认证的请求",
		})
	}

	var requests []models.WithdrawalRequest
	err = database.GetDB().Where("user_id = ?", userID).
		Order("requested_at DESC").Find(&requests).Error
	if err != nil {
		log.Printf("获取用户 %d 提现申请列表失败: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取提现申请列表失败",
		})
	}

	return c.JSON(fiber.Map{
		"data": requests,
	})
}

// AdminListWithdrawals 管理员获取提现申请列表
// 支持按状态筛选和分页
func AdminListWithdrawals(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "20"))
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	db := database.GetDB().Model(&models.WithdrawalRequest{})
	if statusFilter := c.Query("status"); statusFilter != "" {
		status := models.WithdrawalStatus(statusFilter)
		if !status.Valid() {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "无效的提现状态筛选条件",
			})
		}
		db = db.Where("status = ?", status)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		log.Printf("统计提现申请总数失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "统计提现申请总数失败",
		})
	}

	var requests []models.WithdrawalRequest
	offset := (page - 1) * pageSize
	err := db.Order("requested_at DESC").Offset(offset).Limit(pageSize).Find(&requests).Error
	if err != nil {
		log.Printf("获取提现申请列表失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取提现申请列表失败",
		})
	}

	return c.JSON(fiber.Map{
		"data":      requests,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// AdminProcessWithdrawal 管理员批准或拒绝提现申请
func AdminProcessWithdrawal(c *fiber.Ctx) error {
	requestID, err := strconv.Atoi(c.Params("id"))
	if err != nil || requestID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的提现申请ID",
		})
	}

	var requestData struct {
		Action     string `json:"action"`
		AdminNotes string `json:"admin_notes"`
	}
	if err := c.BodyParser(&requestData); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "参数解析失败: " + err.Error(),
		})
	}

	if requestData.Action != "approve" && requestData.Action != "reject" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "处理动作必须为 approve 或 reject",
		})
	}

	err = ProcessWithdrawalRequest(database.GetDB(), uint(requestID), requestData.Action, requestData.AdminNotes)
	if err != nil {
		switch {
		case errors.Is(err, ErrWithdrawalRequestNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": err.Error(),
			})
		case errors.Is(err, ErrWithdrawalInsufficientFunds):
			// 与一般性持久化错误区分，前端可以据此提示余额不足
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "处理提现申请失败",
		})
	}

	return c.JSON(fiber.Map{
		"message": "提现申请处理成功",
	})
}
