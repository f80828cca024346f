package companies

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

var ErrCompanyNotFound = errors.New("company not found")

// Service provides business logic for establishments
type Service struct {
	storage Storage
}

func NewService(storage Storage) *Service {
	return &Service{storage: storage}
}

func (s *Service) CreateCompany(ctx context.Context, company Company) (*Company, error) {
	company.Name = strings.TrimSpace(company.Name)
	if company.Name == "" {
		return nil, fmt.Errorf("company name is required")
	}
	if company.Location != nil && !company.Location.Valid() {
		return nil, fmt.Errorf("invalid company location")
	}
	return s.storage.CreateCompany(ctx, company)
}

// GetCompany returns ErrCompanyNotFound instead of a nil company.
func (s *Service) GetCompany(ctx context.Context, id string) (*Company, error) {
	company, err := s.storage.GetCompany(ctx, GetCriteria{ID: lo.ToPtr(id)})
	if err != nil {
		return nil, fmt.Errorf("get company: %w", err)
	}
	if company == nil {
		return nil, ErrCompanyNotFound
	}
	return company, nil
}

func (s *Service) ListActiveCompanies(ctx context.Context) ([]*Company, error) {
	return s.storage.ListCompanies(ctx, ListCriteria{
		IsActive: lo.ToPtr(true),
		Limit:    100,
	})
}

// SetAcceptingOrders opens or closes the queue.
func (s *Service) SetAcceptingOrders(ctx context.Context, id string, accepting bool) (*Company, error) {
	company, err := s.storage.UpdateCompany(ctx, GetCriteria{ID: lo.ToPtr(id)}, UpdateParams{
		IsAcceptingOrders: lo.ToPtr(accepting),
	})
	if err != nil {
		return nil, fmt.Errorf("update company: %w", err)
	}
	if company == nil {
		return nil, ErrCompanyNotFound
	}
	return company, nil
}
