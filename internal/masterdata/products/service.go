package products

import (
	"context"
	"fmt"
	"strings"
)

// Service wraps product master data operations.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, req ListProductsRequest) ([]Product, int, error) {
	if req.Limit <= 0 {
		req.Limit = 50
	}
	return s.repo.List(ctx, req)
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	return s.repo.Get(ctx, id)
}

// Lookup resolves a product by barcode, the primary till flow.
func (s *Service) Lookup(ctx context.Context, barcode string) (Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return Product{}, fmt.Errorf("products: barcode required")
	}
	return s.repo.GetByBarcode(ctx, barcode)
}

func (s *Service) Create(ctx context.Context, req CreateProductRequest) (Product, error) {
	product := Product{
		Barcode:    strings.TrimSpace(req.Barcode),
		Name:       strings.TrimSpace(req.Name),
		CategoryID: req.CategoryID,
		SupplierID: req.SupplierID,
		MinPrice:   req.MinPrice,
		MaxPrice:   req.MaxPrice,
	}
	return s.repo.Create(ctx, product)
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateProductRequest) (Product, error) {
	product, err := s.repo.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if req.Name != nil {
		product.Name = strings.TrimSpace(*req.Name)
	}
	if req.CategoryID != nil {
		product.CategoryID = *req.CategoryID
	}
	if req.SupplierID != nil {
		product.SupplierID = *req.SupplierID
	}
	if req.MinPrice != nil {
		product.MinPrice = *req.MinPrice
	}
	if req.MaxPrice != nil {
		product.MaxPrice = *req.MaxPrice
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}
	if err := s.repo.Update(ctx, id, product); err != nil {
		return Product{}, err
	}
	return product, nil
}

func (s *Service) Deactivate(ctx context.Context, id int64) error {
	return s.repo.Deactivate(ctx, id)
}
