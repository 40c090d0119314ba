package service

import (
	"strings"

	"github.com/refmart/refmart/internal/models"
	"github.com/refmart/refmart/internal/repository"

	"github.com/shopspring/decimal"
)

// ProductService 商品业务服务
type ProductService struct {
	repo repository.ProductRepository
}

// NewProductService 创建商品服务
func NewProductService(repo repository.ProductRepository) *ProductService {
	return &ProductService{repo: repo}
}

// ProductSaveInput 商品保存输入
type ProductSaveInput struct {
	Slug              string
	Title             string
	Description       string
	Price             decimal.Decimal
	IsReferralEnabled bool
	IsActive          bool
	SortOrder         int
}

// GetProduct 获取商品
func (s *ProductService) GetProduct(id uint) (*models.Product, error) {
	if s.repo == nil || id == 0 {
		return nil, ErrNotFound
	}
	product, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrNotFound
	}
	return product, nil
}

// GetProductBySlug 按短链标识获取上架商品
func (s *ProductService) GetProductBySlug(slug string) (*models.Product, error) {
	if s.repo == nil {
		return nil, ErrNotFound
	}
	product, err := s.repo.GetBySlug(strings.TrimSpace(slug))
	if err != nil {
		return nil, err
	}
	if product == nil || !product.IsActive {
		return nil, ErrNotFound
	}
	return product, nil
}

// ListProducts 分页查询商品
func (s *ProductService) ListProducts(filter repository.ProductListFilter) ([]models.Product, int64, error) {
	if s.repo == nil {
		return []models.Product{}, 0, nil
	}
	return s.repo.List(filter)
}

// CreateProduct 创建商品
func (s *ProductService) CreateProduct(input ProductSaveInput) (*models.Product, error) {
	if s.repo == nil {
		return nil, ErrNotFound
	}
	slug := strings.TrimSpace(input.Slug)
	title := strings.TrimSpace(input.Title)
	price := input.Price.Round(2)
	if slug == "" || title == "" || price.LessThan(decimal.Zero) {
		return nil, ErrProductUnavailable
	}
	product := &models.Product{
		Slug:              slug,
		Title:             title,
		Description:       strings.TrimSpace(input.Description),
		PriceAmount:       models.NewMoneyFromDecimal(price),
		IsReferralEnabled: input.IsReferralEnabled,
		IsActive:          input.IsActive,
		SortOrder:         input.SortOrder,
	}
	if err := s.repo.Create(product); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrProductUnavailable
		}
		return nil, err
	}
	return s.repo.GetByID(product.ID)
}

// UpdateProduct 更新商品
func (s *ProductService) UpdateProduct(id uint, input ProductSaveInput) (*models.Product, error) {
	product, err := s.GetProduct(id)
	if err != nil {
		return nil, err
	}
	slug := strings.TrimSpace(input.Slug)
	title := strings.TrimSpace(input.Title)
	price := input.Price.Round(2)
	if slug == "" || title == "" || price.LessThan(decimal.Zero) {
		return nil, ErrProductUnavailable
	}
	product.Slug = slug
	product.Title = title
	product.Description = strings.TrimSpace(input.Description)
	product.PriceAmount = models.NewMoneyFromDecimal(price)
	product.IsReferralEnabled = input.IsReferralEnabled
	product.IsActive = input.IsActive
	product.SortOrder = input.SortOrder
	if err := s.repo.Update(product); err != nil {
		return nil, err
	}
	return s.repo.GetByID(id)
}

// DeleteProduct 删除商品
func (s *ProductService) DeleteProduct(id uint) error {
	if s.repo == nil || id == 0 {
		return ErrNotFound
	}
	product, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	if product == nil {
		return ErrNotFound
	}
	return s.repo.Delete(id)
}
