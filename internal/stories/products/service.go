package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

var ErrProductNotFound = errors.New("product not found")

// Service provides business logic for menu items
type Service struct {
	storage Storage
}

func NewService(storage Storage) *Service {
	return &Service{storage: storage}
}

func (s *Service) CreateProduct(ctx context.Context, product Product) (*Product, error) {
	product.Name = strings.TrimSpace(product.Name)
	if product.Name == "" {
		return nil, fmt.Errorf("product name is required")
	}
	if product.CompanyID == "" {
		return nil, fmt.Errorf("product company is required")
	}
	if product.Price.IsNegative() {
		return nil, fmt.Errorf("product price must not be negative")
	}
	if product.Status == "" {
		product.Status = StatusActive
	}
	return s.storage.CreateProduct(ctx, product)
}

// GetProducts returns the requested products keyed by id. Missing ids are simply absent.
func (s *Service) GetProducts(ctx context.Context, ids []string) (map[string]*Product, error) {
	if len(ids) == 0 {
		return map[string]*Product{}, nil
	}
	list, err := s.storage.ListProducts(ctx, ListCriteria{IDs: lo.Uniq(ids)})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return lo.KeyBy(list, func(p *Product) string { return p.ID }), nil
}

// Menu lists the products a company currently offers.
func (s *Service) Menu(ctx context.Context, companyID string) ([]*Product, error) {
	return s.storage.ListProducts(ctx, ListCriteria{
		CompanyIDs: []string{companyID},
		Statuses:   []Status{StatusActive, StatusLowStock},
	})
}

func (s *Service) SetStatus(ctx context.Context, id string, status Status) (*Product, error) {
	product, err := s.storage.UpdateProduct(ctx, GetCriteria{ID: lo.ToPtr(id)}, UpdateParams{Status: lo.ToPtr(status)})
	if err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	return product, nil
}
