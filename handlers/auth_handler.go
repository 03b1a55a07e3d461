package handlers

import (
	"errors"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"affiliate_mall/database"
	"affiliate_mall/models"
	"affiliate_mall/utils"
)

// 邮箱格式校验，注册和登录共用
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// RegisterRequest 注册请求参数
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register 用户注册
// 处理流程:
//  1. 解析并校验注册参数（用户名、邮箱格式、密码长度）
//  2. 检查用户名和邮箱是否已被占用
//  3. 使用bcrypt加密密码后创建用户
func Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "参数解析失败: " + err.Error(),
		})
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	// 基础校验
	if len(req.Username) < 3 || len(req.Username) > 30 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "用户名长度必须在3到30个字符之间",
		})
	}
	if !emailPattern.MatchString(req.Email) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "邮箱格式不正确",
		})
	}
	if len(req.Password) < 6 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "密码长度不能少于6个字符",
		})
	}

	db := database.GetDB()

	// 唯一性预检查
	// 数据库层面也有唯一索引兜底，这里提前检查以便返回友好的错误信息
	var count int64
	if err := db.Model(&models.User{}).Where("username = ?", req.Username).Count(&count).Error; err != nil {
		log.Printf("注册时检查用户名失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "注册失败，请稍后重试",
		})
	}
	if count > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "用户名已被占用",
		})
	}
	if err := db.Model(&models.User{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
		log.Printf("注册时检查邮箱失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "注册失败，请稍后重试",
		})
	}
	if count > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "邮箱已被注册",
		})
	}

	user := models.User{
		Username:   req.Username,
		Email:      req.Email,
		IsVerified: true,
	}
	if err := user.SetPassword(req.Password); err != nil {
		log.Printf("注册时加密密码失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "注册失败，请稍后重试",
		})
	}

	if err := db.Create(&user).Error; err != nil {
		log.Printf("创建用户失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "注册失败，请稍后重试",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "注册成功",
		"user": fiber.Map{
			"id":       user.ID,
			"username": user.Username,
			"email":    user.Email,
		},
	})
}

// LoginRequest 登录请求参数
// GuestCart 为可选字段，携带时在登录成功后合并到用户购物车
type LoginRequest struct {
	Email     string           `json:"email"`
	Password  string           `json:"password"`
	GuestCart models.GuestCart `json:"guest_cart"`
}

// Login 用户登录
// 处理流程:
//  1. 检查该邮箱是否因多次失败被临时锁定
//  2. 校验邮箱和密码，失败时记录失败次数
//  3. 检查账号是否已验证
//  4. 生成24小时有效期的JWT令牌
//  5. 如请求携带游客购物车，合并到用户购物车
func Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "参数解析失败: " + err.Error(),
		})
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "邮箱和密码不能为空",
		})
	}

	// 检查登录限制
	// 多次失败后临时锁定，防止暴力破解
	if locked, _ := utils.DefaultLoginLimiter.IsLocked(req.Email); locked {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": "登录失败次数过多，账号已被临时锁定，请稍后重试",
		})
	}

	db := database.GetDB()

	var user models.User
	if err := db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 与密码错误返回相同提示，避免泄露邮箱是否注册
			utils.DefaultLoginLimiter.RecordFailedLogin(req.Email)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "邮箱或密码错误",
			})
		}
		log.Printf("登录时查询用户失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "登录失败，请稍后重试",
		})
	}

	if !user.CheckPassword(req.Password) {
		utils.DefaultLoginLimiter.RecordFailedLogin(req.Email)
		remaining := utils.DefaultLoginLimiter.GetRemainingAttempts(req.Email)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":              "邮箱或密码错误",
			"remaining_attempts": remaining,
		})
	}

	if !user.IsVerified {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "账号尚未完成验证，请先验证邮箱",
		})
	}

	// 登录成功，清除失败记录
	utils.DefaultLoginLimiter.ResetAttempts(req.Email)

	token, err := utils.GenerateToken(user.ID, user.Username, user.IsAdmin, 24*time.Hour)
	if err != nil {
		log.Printf("生成令牌失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "登录失败，请稍后重试",
		})
	}

	// 合并游客购物车
	// 合并失败不阻断登录，只记录日志
	if len(req.GuestCart.Items) > 0 {
		if err := MergeGuestCartForUser(db, user.ID, req.GuestCart); err != nil {
			log.Printf("用户 %d 登录时合并游客购物车失败: %v", user.ID, err)
		}
	}

	return c.JSON(fiber.Map{
		"message": "登录成功",
		"token":   token,
		"user": fiber.Map{
			"id":           user.ID,
			"username":     user.Username,
			"email":        user.Email,
			"is_admin":     user.IsAdmin,
			"is_affiliate": user.IsAffiliate,
		},
	})
}

// MergeGuestCartForUser 将游客购物车合并到指定用户的购物车
// 在单个事务内完成：读取现有购物车条目，按合并规则计算结果，
// 再逐条更新或创建。合并规则见 models.MergeGuestCart
func MergeGuestCartForUser(db *gorm.DB, userID uint, guest models.GuestCart) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	var txCommitted bool
	defer func() {
		if !txCommitted {
			tx.Rollback()
		}
	}()

	cart, err := getOrCreateCart(tx, userID)
	if err != nil {
		return err
	}

	var existing []models.CartItem
	if err := tx.Where("cart_id = ?", cart.ID).Find(&existing).Error; err != nil {
		return err
	}

	merged := models.MergeGuestCart(existing, guest)

	for i := range merged {
		item := &merged[i]
		if item.ID != 0 {
			err = tx.Model(&models.CartItem{}).Where("id = ?", item.ID).
				Updates(map[string]interface{}{
					"quantity":          item.Quantity,
					"price_at_addition": item.PriceAtAddition,
				}).Error
		} else {
			// 只合并真实存在的商品
			var productCount int64
			if err := tx.Model(&models.Product{}).Where("id = ?", item.ProductID).Count(&productCount).Error; err != nil {
				return err
			}
			if productCount == 0 {
				continue
			}
			item.CartID = cart.ID
			err = tx.Create(item).Error
		}
		if err != nil {
			return err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return err
	}
	txCommitted = true
	return nil
}

// GetProfile 获取当前用户资料
func GetProfile(c *fiber.Ctx) error {
	userID, err := utils.GetUserIDFromContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "未认证的请求",
		})
	}

	var user models.User
	if err := database.GetDB().First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "用户不存在",
			})
		}
		log.Printf("查询用户 %d 资料失败: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取用户资料失败",
		})
	}

	return c.JSON(fiber.Map{
		"user": fiber.Map{
			"id":                  user.ID,
			"username":            user.Username,
			"email":               user.Email,
			"is_admin":            user.IsAdmin,
			"is_affiliate":        user.IsAffiliate,
			"user_affiliate_code": user.UserAffiliateCode,
			"affiliate_balance":   user.AffiliateBalance,
			"created_at":          user.CreatedAt,
		},
	})
}
