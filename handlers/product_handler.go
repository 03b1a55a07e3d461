package handlers

import (
	"errors"
	"log"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"affiliate_mall/database"
	"affiliate_mall/models"
)

// 佣金比例上限，百分数
var maxBonusPercentage = decimal.NewFromInt(100)

// ListProducts 公开商品列表
// 只返回有库存的商品，支持分页和按名称模糊搜索
func ListProducts(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "20"))
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	db := database.GetDB().Model(&models.Product{}).Where("stock_quantity > 0")
	if keyword := strings.TrimSpace(c.Query("q")); keyword != "" {
		db = db.Where("name LIKE ?", "%"+keyword+"%")
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		log.Printf("统计商品总数失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取商品列表失败",
		})
	}

	var products []models.Product
	offset := (page - 1) * pageSize
	if err := db.Order("id DESC").Offset(offset).Limit(pageSize).Find(&products).Error; err != nil {
		log.Printf("获取商品列表失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取商品列表失败",
		})
	}

	return c.JSON(fiber.Map{
		"data":      products,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetProduct 公开商品详情
func GetProduct(c *fiber.Ctx) error {
	productID, err := strconv.Atoi(c.Params("id"))
	if err != nil || productID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的商品ID",
		})
	}

	var product models.Product
	if err := database.GetDB().First(&product, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "商品不存在",
			})
		}
		log.Printf("查询商品 %d 失败: %v", productID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取商品详情失败",
		})
	}

	return c.JSON(fiber.Map{
		"data": product,
	})
}

// ProductRequest 商品创建/更新请求参数
type ProductRequest struct {
	Name                     string          `json:"name"`
	Description              string          `json:"description"`
	Price                    decimal.Decimal `json:"price"`
	StockQuantity            int             `json:"stock_quantity"`
	ImageURL                 *string         `json:"image_url"`
	AffiliateBonusPercentage decimal.Decimal `json:"affiliate_bonus_percentage"`
}

// validateProductRequest 商品参数校验
// 佣金比例限制在0到100之间
func validateProductRequest(req *ProductRequest) string {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return "商品名称不能为空"
	}
	if len(req.Name) > 100 {
		return "商品名称不能超过100个字符"
	}
	if req.Price.LessThanOrEqual(decimal.Zero) {
		return "商品价格必须大于0"
	}
	if req.StockQuantity < 0 {
		return "库存数量不能为负数"
	}
	if req.AffiliateBonusPercentage.IsNegative() || req.AffiliateBonusPercentage.GreaterThan(maxBonusPercentage) {
		return "推广佣金比例必须在0到100之间"
	}
	return ""
}

// AdminListProducts 管理员商品列表
// 与公开列表的区别：包含零库存商品
func AdminListProducts(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "20"))
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	db := database.GetDB().Model(&models.Product{})

	var total int64
	if err := db.Count(&total).Error; err != nil {
		log.Printf("统计商品总数失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取商品列表失败",
		})
	}

	var products []models.Product
	offset := (page - 1) * pageSize
	if err := db.Order("id DESC").Offset(offset).Limit(pageSize).Find(&products).Error; err != nil {
		log.Printf("获取商品列表失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取商品列表失败",
		})
	}

	return c.JSON(fiber.Map{
		"data":      products,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// AdminCreateProduct 管理员创建商品
func AdminCreateProduct(c *fiber.Ctx) error {
	var req ProductRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "参数解析失败: " + err.Error(),
		})
	}
	if msg := validateProductRequest(&req); msg != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": msg,
		})
	}

	product := models.Product{
		Name:                     req.Name,
		Description:              req.Description,
		Price:                    req.Price,
		StockQuantity:            req.StockQuantity,
		ImageURL:                 req.ImageURL,
		AffiliateBonusPercentage: req.AffiliateBonusPercentage,
	}
	if err := database.GetDB().Create(&product).Error; err != nil {
		log.Printf("创建商品失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "创建商品失败",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "商品创建成功",
		"data":    product,
	})
}

// AdminUpdateProduct 管理员更新商品
// 全量更新，佣金比例变更只影响之后产生的佣金记录
func AdminUpdateProduct(c *fiber.Ctx) error {
	productID, err := strconv.Atoi(c.Params("id"))
	if err != nil || productID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的商品ID",
		})
	}

	var req ProductRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "参数解析失败: " + err.Error(),
		})
	}
	if msg := validateProductRequest(&req); msg != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": msg,
		})
	}

	db := database.GetDB()

	var product models.Product
	if err := db.First(&product, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "商品不存在",
			})
		}
		log.Printf("查询商品 %d 失败: %v", productID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "更新商品失败",
		})
	}

	updates := map[string]interface{}{
		"name":                       req.Name,
		"description":                req.Description,
		"price":                      req.Price,
		"stock_quantity":             req.StockQuantity,
		"image_url":                  req.ImageURL,
		"affiliate_bonus_percentage": req.AffiliateBonusPercentage,
	}
	if err := db.Model(&product).Updates(updates).Error; err != nil {
		log.Printf("更新商品 %d 失败: %v", productID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "更新商品失败",
		})
	}

	return c.JSON(fiber.Map{
		"message": "商品更新成功",
	})
}

// AdminDeleteProduct 管理员删除商品
// 已有订单引用的商品记录保留在订单条目快照中，删除不影响历史订单
func AdminDeleteProduct(c *fiber.Ctx) error {
	productID, err := strconv.Atoi(c.Params("id"))
	if err != nil || productID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的商品ID",
		})
	}

	result := database.GetDB().Delete(&models.Product{}, productID)
	if result.Error != nil {
		log.Printf("删除商品 %d 失败: %v", productID, result.Error)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "删除商品失败",
		})
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "商品不存在",
		})
	}

	return c.JSON(fiber.Map{
		"message": "商品删除成功",
	})
}
