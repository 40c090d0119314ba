package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/refmart/refmart/internal/models"
	"github.com/refmart/refmart/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupProductServiceTest(t *testing.T) (*ProductService, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:product_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return NewProductService(repository.NewProductRepository(db)), db
}

func TestCreateProductValidation(t *testing.T) {
	svc, _ := setupProductServiceTest(t)

	if _, err := svc.CreateProduct(ProductSaveInput{Slug: "", Title: "x", Price: decimal.NewFromInt(1)}); !errors.Is(err, ErrProductUnavailable) {
		t.Fatalf("expected ErrProductUnavailable for empty slug, got %v", err)
	}
	if _, err := svc.CreateProduct(ProductSaveInput{Slug: "x", Title: "x", Price: decimal.NewFromInt(-1)}); !errors.Is(err, ErrProductUnavailable) {
		t.Fatalf("expected ErrProductUnavailable for negative price, got %v", err)
	}

	created, err := svc.CreateProduct(ProductSaveInput{
		Slug:              "earphones",
		Title:             "无线蓝牙耳机",
		Price:             decimal.NewFromFloat(99.99),
		IsReferralEnabled: true,
		IsActive:          true,
	})
	if err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	if !created.PriceAmount.Decimal.Equal(decimal.NewFromFloat(99.99)) {
		t.Fatalf("expected price 99.99, got %s", created.PriceAmount.String())
	}

	if _, err := svc.CreateProduct(ProductSaveInput{
		Slug:  "earphones",
		Title: "重复商品",
		Price: decimal.NewFromInt(1),
	}); !errors.Is(err, ErrProductUnavailable) {
		t.Fatalf("expected ErrProductUnavailable for duplicate slug, got %v", err)
	}
}

func TestGetProductBySlugOnlyActive(t *testing.T) {
	svc, _ := setupProductServiceTest(t)

	if _, err := svc.CreateProduct(ProductSaveInput{
		Slug: "hidden", Title: "下架商品", Price: decimal.NewFromInt(10), IsActive: false,
	}); err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	if _, err := svc.GetProductBySlug("hidden"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for inactive product, got %v", err)
	}

	if _, err := svc.CreateProduct(ProductSaveInput{
		Slug: "visible", Title: "上架商品", Price: decimal.NewFromInt(10), IsActive: true,
	}); err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	got, err := svc.GetProductBySlug(" visible ")
	if err != nil {
		t.Fatalf("get by slug failed: %v", err)
	}
	if got.Slug != "visible" {
		t.Fatalf("expected visible product, got %s", got.Slug)
	}
}

func TestUpdateAndDeleteProduct(t *testing.T) {
	svc, _ := setupProductServiceTest(t)

	created, err := svc.CreateProduct(ProductSaveInput{
		Slug: "watch", Title: "智能手表", Price: decimal.NewFromInt(199), IsActive: true,
	})
	if err != nil {
		t.Fatalf("create product failed: %v", err)
	}

	updated, err := svc.UpdateProduct(created.ID, ProductSaveInput{
		Slug: "watch", Title: "智能手表 Pro", Price: decimal.NewFromInt(299), IsActive: false,
	})
	if err != nil {
		t.Fatalf("update product failed: %v", err)
	}
	if updated.Title != "智能手表 Pro" || updated.IsActive {
		t.Fatalf("unexpected updated product %+v", updated)
	}

	if err := svc.DeleteProduct(created.ID); err != nil {
		t.Fatalf("delete product failed: %v", err)
	}
	if _, err := svc.GetProduct(created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := svc.DeleteProduct(99999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing product, got %v", err)
	}
}
