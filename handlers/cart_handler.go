package handlers

import (
	"errors"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"affiliate_mall/database"
	"affiliate_mall/models"
	"affiliate_mall/utils"
)

// getOrCreateCart 获取用户的购物车，不存在则创建
// 购物车与用户一对一，user_id 上有唯一索引
func getOrCreateCart(db *gorm.DB, userID uint) (*models.Cart, error) {
	var cart models.Cart
	err := db.Where("user_id = ?", userID).First(&cart).Error
	if err == nil {
		return &cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	cart = models.Cart{UserID: userID}
	if err := db.Create(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// cartItemView 购物车条目的响应结构，附带商品信息
type cartItemView struct {
	ID              uint            `json:"id"`
	ProductID       uint            `json:"product_id"`
	ProductName     string          `json:"product_name"`
	Quantity        int             `json:"quantity"`
	PriceAtAddition decimal.Decimal `json:"price_at_addition"`
	Subtotal        decimal.Decimal `json:"subtotal"`
}

// GetCart 获取当前用户的购物车内容
// 返回条目列表和按价格快照计算的合计金额
func GetCart(c *fiber.Ctx) error {
	userID, err := utils.GetUserIDFromContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "未认证的请求",
		})
	}

	db := database.GetDB()
	cart, err := getOrCreateCart(db, userID)
	if err != nil {
		log.Printf("获取用户 %d 购物车失败: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取购物车失败",
		})
	}

	var items []models.CartItem
	if err := db.Where("cart_id = ?", cart.ID).Order("id ASC").Find(&items).Error; err != nil {
		log.Printf("获取购物车 %d 条目失败: %v", cart.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取购物车失败",
		})
	}

	// 附带商品名称，便于前端展示
	views := make([]cartItemView, 0, len(items))
	total := decimal.Zero
	for _, item := range items {
		var product models.Product
		name := ""
		if err := db.Select("name").First(&product, item.ProductID).Error; err == nil {
			name = product.Name
		}
		subtotal := item.PriceAtAddition.Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(subtotal)
		views = append(views, cartItemView{
			ID:              item.ID,
			ProductID:       item.ProductID,
			ProductName:     name,
			Quantity:        item.Quantity,
			PriceAtAddition: item.PriceAtAddition,
			Subtotal:        subtotal,
		})
	}

	return c.JSON(fiber.Map{
		"items": views,
		"total": total,
	})
}

// AddCartItem 添加商品到购物车
// 处理流程:
//  1. 校验商品存在且库存充足
//  2. 同一商品已在购物车中则数量累加
//  3. 新条目记录当前商品单价作为价格快照
func AddCartItem(c *fiber.Ctx) error {
	userID, err := utils.GetUserIDFromContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "未认证的请求",
		})
	}

	var req struct {
		ProductID uint `json:"product_id"`
		Quantity  int  `json:"quantity"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "参数解析失败: " + err.Error(),
		})
	}
	if req.ProductID == 0 || req.Quantity <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "商品ID和数量必须为正数",
		})
	}

	db := database.GetDB()

	var product models.Product
	if err := db.First(&product, req.ProductID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "商品不存在",
			})
		}
		log.Printf("添加购物车时查询商品 %d 失败: %v", req.ProductID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "添加购物车失败",
		})
	}

	cart, err := getOrCreateCart(db, userID)
	if err != nil {
		log.Printf("获取用户 %d 购物车失败: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "添加购物车失败",
		})
	}

	var item models.CartItem
	err = db.Where("cart_id = ? AND product_id = ?", cart.ID, req.ProductID).First(&item).Error
	switch {
	case err == nil:
		// 已有条目，数量累加
		newQuantity := item.Quantity + req.Quantity
		if newQuantity > product.StockQuantity {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "商品库存不足",
			})
		}
		if err := db.Model(&item).Update("quantity", newQuantity).Error; err != nil {
			log.Printf("更新购物车条目 %d 失败: %v", item.ID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "添加购物车失败",
			})
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		if req.Quantity > product.StockQuantity {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "商品库存不足",
			})
		}
		item = models.CartItem{
			CartID:          cart.ID,
			ProductID:       req.ProductID,
			Quantity:        req.Quantity,
			PriceAtAddition: product.Price,
		}
		if err := db.Create(&item).Error; err != nil {
			log.Printf("创建购物车条目失败: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "添加购物车失败",
			})
		}
	default:
		log.Printf("查询购物车条目失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "添加购物车失败",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "商品已加入购物车",
	})
}

// UpdateCartItem 更新购物车条目数量
// 数量为0视为删除该条目
func UpdateCartItem(c *fiber.Ctx) error {
	userID, err := utils.GetUserIDFromContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "未认证的请求",
		})
	}

	itemID, err := strconv.Atoi(c.Params("id"))
	if err != nil || itemID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的购物车条目ID",
		})
	}

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "参数解析失败: " + err.Error(),
		})
	}
	if req.Quantity < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "数量不能为负数",
		})
	}

	db := database.GetDB()
	cart, err := getOrCreateCart(db, userID)
	if err != nil {
		log.Printf("获取用户 %d 购物车失败: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "更新购物车失败",
		})
	}

	// 条目必须属于当前用户的购物车
	var item models.CartItem
	err = db.Where("id = ? AND cart_id = ?", itemID, cart.ID).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "购物车条目不存在",
			})
		}
		log.Printf("查询购物车条目 %d 失败: %v", itemID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "更新购物车失败",
		})
	}

	if req.Quantity == 0 {
		if err := db.Delete(&item).Error; err != nil {
			log.Printf("删除购物车条目 %d 失败: %v", item.ID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "更新购物车失败",
			})
		}
		return c.JSON(fiber.Map{
			"message": "商品已从购物车移除",
		})
	}

	var product models.Product
	if err := db.First(&product, item.ProductID).Error; err == nil {
		if req.Quantity > product.StockQuantity {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "商品库存不足",
			})
		}
	}

	if err := db.Model(&item).Update("quantity", req.Quantity).Error; err != nil {
		log.Printf("更新购物车条目 %d 失败: %v", item.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "更新购物车失败",
		})
	}

	return c.JSON(fiber.Map{
		"message": "购物车已更新",
	})
}

// RemoveCartItem 从购物车移除条目
func RemoveCartItem(c *fiber.Ctx) error {
	userID, err := utils.GetUserIDFromContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "未认证的请求",
		})
	}

	itemID, err := strconv.Atoi(c.Params("id"))
	if err != nil || itemID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的购物车条目ID",
		})
	}

	db := database.GetDB()
	cart, err := getOrCreateCart(db, userID)
	if err != nil {
		log.Printf("获取用户 %d 购物车失败: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "移除购物车条目失败",
		})
	}

	result := db.Where("id = ? AND cart_id = ?", itemID, cart.ID).Delete(&models.CartItem{})
	if result.Error != nil {
		log.Printf("删除购物车条目 %d 失败: %v", itemID, result.Error)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "移除购物车条目失败",
		})
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "购物车条目不存在",
		})
	}

	return c.JSON(fiber.Map{
		"message": "商品已从购物车移除",
	})
}

// ClearCart 清空当前用户的购物车
func ClearCart(c *fiber.Ctx) error {
	userID, err := utils.GetUserIDFromContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "未认证的请求",
		})
	}

	db := database.GetDB()
	cart, err := getOrCreateCart(db, userID)
	if err != nil {
		log.Printf("获取用户 %d 购物车失败: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "清空购物车失败",
		})
	}

	if err := db.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error; err != nil {
		log.Printf("清空购物车 %d 失败: %v", cart.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "清空购物车失败",
		})
	}

	return c.JSON(fiber.Map{
		"message": "购物车已清空",
	})
}
