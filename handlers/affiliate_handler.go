package handlers

import (
	"errors"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"affiliate_mall/database"
	"affiliate_mall/models"
	"affiliate_mall/utils"
)

// ErrEarningNotFinalizable 佣金不存在或不处于待清算状态
// 批量清算时该错误只计入失败数，不中断批次
var ErrEarningNotFinalizable = errors.New("佣金不存在或不处于待清算状态")

// 默认退款等待期（天）
const defaultRefundPeriodDays = 15

// RefundPeriodDays 返回配置的退款等待期天数
// 从环境变量 AFFILIATE_REFUND_PERIOD_DAYS 读取，未配置或非法时使用默认值
func RefundPeriodDays() int {
	value := os.Getenv("AFFILIATE_REFUND_PERIOD_DAYS")
	if value == "" {
		return defaultRefundPeriodDays
	}
	days, err := strconv.Atoi(value)
	if err != nil || days <= 0 {
		log.Printf("AFFILIATE_REFUND_PERIOD_DAYS 配置非法: %q，使用默认值 %d 天", value, defaultRefundPeriodDays)
		return defaultRefundPeriodDays
	}
	return days
}

// MarkEarningsAwaitingClearance 将订单下所有 pending 佣金推进到 awaiting_clearance
// 同时写入支付确认时间。此时不动余额，余额只在清算时入账。
// 幂等：重复调用只影响仍处于 pending 的记录（第二次调用没有匹配行）
func MarkEarningsAwaitingClearance(db *gorm.DB, orderID uint) error {
	err := db.Model(&models.AffiliateEarning{}).
		Where("order_id = ? AND status = ?", orderID, models.EarningStatusPending).
		Updates(map[string]interface{}{
			"status":                     models.EarningStatusAwaitingClearance,
			"order_payment_confirmed_at": time.Now(),
		}).Error
	if err != nil {
		log.Printf("订单 %d 的佣金进入清算等待期失败: %v", orderID, err)
	}
	return err
}

// CancelEarningsForOrder 取消订单关联的佣金
// 对处于 pending / awaiting_clearance / cleared 的每条佣金，在同一事务内：
//   - 状态置为 cancelled，cleared_at 置空，processed_at 写入当前时间
//   - 原状态为 pending 时额外置空 order_payment_confirmed_at（它本来就没有意义）
//   - 原状态为 cleared 时回退推荐人余额，下限为零
//
// 没有可取消的佣金时直接成功返回；事务中任何一步失败都整体回滚，
// 不会留下半取消的佣金或不完整的余额回退，调用方可整体重试
func CancelEarningsForOrder(db *gorm.DB, orderID uint, triggerOrderStatus models.OrderStatus, triggerPaymentStatus models.PaymentStatus) error {
	var earnings []models.AffiliateEarning
	err := db.Where("order_id = ? AND status IN ?", orderID, []models.EarningStatus{
		models.EarningStatusPending,
		models.EarningStatusAwaitingClearance,
		models.EarningStatusCleared,
	}).Find(&earnings).Error
	if err != nil {
		log.Printf("查询订单 %d 的待取消佣金失败: %v", orderID, err)
		return err
	}

	// 没有可取消的佣金
	if len(earnings) == 0 {
		return nil
	}

	tx := db.Begin()
	if tx.Error != nil {
		log.Printf("取消订单 %d 佣金时开启事务失败: %v", orderID, tx.Error)
		return tx.Error
	}

	var txCommitted bool
	defer func() {
		if !txCommitted {
			tx.Rollback()
		}
	}()

	now := time.Now()
	for _, earning := range earnings {
		updates := map[string]interface{}{
			"status":       models.EarningStatusCancelled,
			"cleared_at":   nil,
			"processed_at": now,
		}
		// pending 状态下支付确认时间从未有效写入，一并置空
		if earning.Status == models.EarningStatusPending {
			updates["order_payment_confirmed_at"] = nil
		}

		if err := tx.Model(&models.AffiliateEarning{}).Where("id = ?", earning.ID).Updates(updates).Error; err != nil {
			log.Printf("取消佣金 %d 失败 (订单 %d, 触发状态 %s/%s): %v",
				earning.ID, orderID, triggerOrderStatus, triggerPaymentStatus, err)
			return err
		}

		// 余额已入账的佣金需要回退，回退下限为零
		if earning.Status == models.EarningStatusCleared {
			var user models.User
			if err := tx.First(&user, earning.UserID).Error; err != nil {
				log.Printf("取消佣金 %d 时查询推荐人 %d 失败: %v", earning.ID, earning.UserID, err)
				return err
			}
			newBalance := user.AffiliateBalance.Sub(earning.EarnedAmount)
			if newBalance.IsNegative() {
				newBalance = decimal.Zero
			}
			if err := tx.Model(&models.User{}).Where("id = ?", user.ID).
				Update("affiliate_balance", newBalance).Error; err != nil {
				log.Printf("取消佣金 %d 时回退推荐人 %d 余额失败: %v", earning.ID, earning.UserID, err)
				return err
			}
		}
	}

	if err := tx.Commit().Error; err != nil {
		log.Printf("取消订单 %d 佣金时提交事务失败: %v", orderID, err)
		return err
	}
	txCommitted = true
	return nil
}

// FinalizeEarning 清算单条佣金
// 前置条件：佣金存在且处于 awaiting_clearance，否则返回 ErrEarningNotFinalizable。
// 在同一事务内：状态置为 cleared 并写入 cleared_at，推荐人余额增加 earned_amount
func FinalizeEarning(db *gorm.DB, earningID uint) error {
	var earning models.AffiliateEarning
	err := db.Where("id = ? AND status = ?", earningID, models.EarningStatusAwaitingClearance).
		First(&earning).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("清算佣金 %d 失败: 不存在或不处于待清算状态", earningID)
			return ErrEarningNotFinalizable
		}
		log.Printf("查询待清算佣金 %d 失败: %v", earningID, err)
		return err
	}

	tx := db.Begin()
	if tx.Error != nil {
		log.Printf("清算佣金 %d 时开启事务失败: %v", earningID, tx.Error)
		return tx.Error
	}

	var txCommitted bool
	defer func() {
		if !txCommitted {
			tx.Rollback()
		}
	}()

	// 佣金状态推进到 cleared
	if err := tx.Model(&models.AffiliateEarning{}).Where("id = ?", earning.ID).
		Updates(map[string]interface{}{
			"status":     models.EarningStatusCleared,
			"cleared_at": time.Now(),
		}).Error; err != nil {
		log.Printf("更新佣金 %d 状态失败: %v", earning.ID, err)
		return err
	}

	// 佣金金额计入推荐人余额
	var user models.User
	if err := tx.First(&user, earning.UserID).Error; err != nil {
		log.Printf("清算佣金 %d 时查询推荐人 %d 失败: %v", earning.ID, earning.UserID, err)
		return err
	}
	newBalance := user.AffiliateBalance.Add(earning.EarnedAmount)
	if err := tx.Model(&models.User{}).Where("id = ?", user.ID).
		Update("affiliate_balance", newBalance).Error; err != nil {
		log.Printf("清算佣金 %d 时更新推荐人 %d 余额失败: %v", earning.ID, earning.UserID, err)
		return err
	}

	if err := tx.Commit().Error; err != nil {
		log.Printf("清算佣金 %d 时提交事务失败: %v", earning.ID, err)
		return err
	}
	txCommitted = true
	return nil
}

// FinalizeEligibleEarnings 批量清算已过退款等待期的佣金
// 扫描所有 awaiting_clearance 且支付确认时间早于等待期窗口的佣金，
// 按确认时间从早到晚逐条清算，每条各自一个事务，单条失败不影响其余。
// 返回成功与失败的条数；已清算过的佣金前置条件失败，只计入失败数
func FinalizeEligibleEarnings(db *gorm.DB, refundPeriodDays int) (processed, failed int) {
	cutoff := time.Now().AddDate(0, 0, -refundPeriodDays)

	var ids []uint
	err := db.Model(&models.AffiliateEarning{}).
		Where("status = ? AND order_payment_confirmed_at IS NOT NULL AND order_payment_confirmed_at <= ?",
			models.EarningStatusAwaitingClearance, cutoff).
		Order("order_payment_confirmed_at ASC, id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		log.Printf("查询可清算佣金失败: %v", err)
		return 0, 0
	}

	if len(ids) == 0 {
		log.Printf("没有超过 %d 天退款等待期的可清算佣金", refundPeriodDays)
		return 0, 0
	}

	log.Printf("找到 %d 条可清算佣金", len(ids))
	for _, id := range ids {
		if err := FinalizeEarning(db, id); err != nil {
			failed++
			continue
		}
		processed++
	}
	log.Printf("批量清算完成: 成功 %d 条, 失败 %d 条", processed, failed)
	return processed, failed
}

// generateUniqueUserAffiliateCode 生成未被占用的推广码
// 随机生成并查重，多次冲突后使用时间戳兜底码
func generateUniqueUserAffiliateCode(db *gorm.DB) string {
	const maxAttempts = 10
	for attempt := 0; attempt < maxAttempts; attempt++ {
		code := utils.GenerateAffiliateCode()
		var count int64
		if err := db.Model(&models.User{}).Where("user_affiliate_code = ?", code).Count(&count).Error; err != nil {
			log.Printf("推广码查重失败: %v", err)
			break
		}
		if count == 0 {
			return code
		}
	}
	return utils.FallbackAffiliateCode()
}

// ActivateAffiliateUser 将用户激活为推广员
// 已有推广码的用户保留原码，否则分配一个新的唯一推广码
func ActivateAffiliateUser(db *gorm.DB, userID uint) (string, error) {
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		return "", err
	}

	code := ""
	if user.UserAffiliateCode != nil && *user.UserAffiliateCode != "" {
		code = *user.UserAffiliateCode
	} else {
		code = generateUniqueUserAffiliateCode(db)
	}

	err := db.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"is_affiliate":        true,
		"user_affiliate_code": code,
	}).Error
	if err != nil {
		log.Printf("激活推广员 %d 失败: %v", userID, err)
		return "", err
	}
	return code, nil
}

// DeactivateAffiliateUser 停用推广员身份并清空推广码
// 重新激活时会分配新的推广码
func DeactivateAffiliateUser(db *gorm.DB, userID uint) error {
	err := db.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"is_affiliate":        false,
		"user_affiliate_code": nil,
	}).Error
	if err != nil {
		log.Printf("停用推广员 %d 失败: %v", userID, err)
	}
	return err
}

// GetMyEarnings 获取当前推广员自己的佣金记录
// 支持按状态筛选和分页
func GetMyEarnings(c *fiber.Ctx) error {
	userID, err := utils.GetUserIDFromContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "未认证的请求",
		})
	}

	// 解析查询参数
	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "20"))
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	db := database.GetDB().Model(&models.AffiliateEarning{}).Where("user_id = ?", userID)

	// 应用状态筛选
	if statusFilter := c.Query("status"); statusFilter != "" {
		status := models.EarningStatus(statusFilter)
		if !status.Valid() {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "无效的佣金状态筛选条件",
			})
		}
		db = db.Where("status = ?", status)
	}

	// 计算总数
	var total int64
	if err := db.Count(&total).Error; err != nil {
		log.Printf("统计用户 %d 佣金总数失败: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "统计佣金总数失败",
		})
	}

	// 获取分页数据
	var earnings []models.AffiliateEarning
	offset := (page - 1) * pageSize
	if err := db.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&earnings).Error; err != nil {
		log.Printf("获取用户 %d 佣金列表失败: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取佣金列表失败",
		})
	}

	return c.JSON(fiber.Map{
		"data":      earnings,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetAffiliateDashboard 获取推广员个人看板数据
// 返回当前余额、推广码以及各状态佣金的条数与金额汇总
func GetAffiliateDashboard(c *fiber.Ctx) error {
	userID, err := utils.GetUserIDFromContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "未认证的请求",
		})
	}

	var user models.User
	if err := database.GetDB().First(&user, userID).Error; err != nil {
		log.Printf("获取用户 %d 信息失败: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取用户信息失败",
		})
	}

	// 各状态佣金汇总
	type statusSummary struct {
		Status models.EarningStatus `json:"status"`
		Count  int64                `json:"count"`
		Amount decimal.Decimal      `json:"amount"`
	}
	var summaries []statusSummary
	err = database.GetDB().Model(&models.AffiliateEarning{}).
		Select("status, COUNT(*) as count, COALESCE(SUM(earned_amount), 0) as amount").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&summaries).Error
	if err != nil {
		log.Printf("汇总用户 %d 佣金失败: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "汇总佣金数据失败",
		})
	}

	return c.JSON(fiber.Map{
		"affiliate_balance":   user.AffiliateBalance,
		"user_affiliate_code": user.UserAffiliateCode,
		"earnings_by_status":  summaries,
	})
}

// AdminListAffiliates 管理员获取用户列表
// 支持只看推广员的筛选，用于推广员管理页面
func AdminListAffiliates(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "20"))
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	db := database.GetDB().Model(&models.User{})
	if c.Query("only_affiliates") == "true" {
		db = db.Where("is_affiliate = ?", true)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		log.Printf("统计用户总数失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "统计用户总数失败",
		})
	}

	var users []models.User
	offset := (page - 1) * pageSize
	if err := db.Order("id ASC").Offset(offset).Limit(pageSize).Find(&users).Error; err != nil {
		log.Printf("获取用户列表失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取用户列表失败",
		})
	}

	return c.JSON(fiber.Map{
		"data":      users,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// AdminManageAffiliate 管理员激活/停用推广员
// action 取值 activate 或 deactivate
func AdminManageAffiliate(c *fiber.Ctx) error {
	var requestData struct {
		UserID uint   `json:"user_id"`
		Action string `json:"action"`
	}
	if err := c.BodyParser(&requestData); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "参数解析失败: " + err.Error(),
		})
	}

	if requestData.UserID == 0 || (requestData.Action != "activate" && requestData.Action != "deactivate") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的用户ID或操作类型",
		})
	}

	// 确认用户存在
	var user models.User
	if err := database.GetDB().First(&user, requestData.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "用户不存在",
			})
		}
		log.Printf("查询用户 %d 失败: %v", requestData.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "查询用户失败",
		})
	}

	if requestData.Action == "activate" {
		code, err := ActivateAffiliateUser(database.GetDB(), requestData.UserID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "激活推广员失败",
			})
		}
		return c.JSON(fiber.Map{
			"message":             "推广员激活成功",
			"user_affiliate_code": code,
		})
	}

	if err := DeactivateAffiliateUser(database.GetDB(), requestData.UserID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "停用推广员失败",
		})
	}
	return c.JSON(fiber.Map{
		"message": "推广员已停用",
	})
}

// AdminListAwaitingClearance 管理员查看待清算佣金
// eligible_only=true 时只返回已过退款等待期、可以立即清算的佣金
func AdminListAwaitingClearance(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "20"))
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	db := database.GetDB().Model(&models.AffiliateEarning{}).
		Where("status = ?", models.EarningStatusAwaitingClearance)

	refundDays := RefundPeriodDays()
	if c.Query("eligible_only") == "true" {
		cutoff := time.Now().AddDate(0, 0, -refundDays)
		db = db.Where("order_payment_confirmed_at IS NOT NULL AND order_payment_confirmed_at <= ?", cutoff)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		log.Printf("统计待清算佣金总数失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "统计待清算佣金总数失败",
		})
	}

	var earnings []models.AffiliateEarning
	offset := (page - 1) * pageSize
	err := db.Order("order_payment_confirmed_at ASC, id ASC").
		Offset(offset).Limit(pageSize).Find(&earnings).Error
	if err != nil {
		log.Printf("获取待清算佣金列表失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取待清算佣金列表失败",
		})
	}

	return c.JSON(fiber.Map{
		"data":               earnings,
		"total":              total,
		"page":               page,
		"page_size":          pageSize,
		"refund_period_days": refundDays,
	})
}

// AdminFinalizeEarnings 管理员按ID批量清算佣金
// 逐条清算，单条失败不影响其余，返回成功与失败条数
func AdminFinalizeEarnings(c *fiber.Ctx) error {
	var requestData struct {
		EarningIDs []uint `json:"earning_ids"`
	}
	if err := c.BodyParser(&requestData); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "参数解析失败: " + err.Error(),
		})
	}

	if len(requestData.EarningIDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "未指定要清算的佣金",
		})
	}

	successCount := 0
	failCount := 0
	for _, id := range requestData.EarningIDs {
		if err := FinalizeEarning(database.GetDB(), id); err != nil {
			failCount++
			continue
		}
		successCount++
	}

	return c.JSON(fiber.Map{
		"message":   "批量清算完成",
		"processed": successCount,
		"failed":    failCount,
	})
}

// AdminFinalizeEligibleEarnings 管理员触发整批清算
// 等价于定时任务的入口，清算所有已过退款等待期的佣金
func AdminFinalizeEligibleEarnings(c *fiber.Ctx) error {
	refundDays := RefundPeriodDays()
	processed, failed := FinalizeEligibleEarnings(database.GetDB(), refundDays)
	return c.JSON(fiber.Map{
		"message":            "批量清算完成",
		"processed":          processed,
		"failed":             failed,
		"refund_period_days": refundDays,
	})
}
