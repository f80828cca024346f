package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"queue-bot/internal/stories/companies"
	"queue-bot/internal/stories/presence"
)

const companiesTable = "companies"

var companyRecordFields = fields(CompanyRecord{})

// CompanyRecord is the row shape of companies, also used as change event payload.
type CompanyRecord struct {
	ID                string    `db:"id" json:"id"`
	Name              string    `db:"name" json:"name"`
	IsActive          bool      `db:"is_active" json:"is_active"`
	IsAcceptingOrders bool      `db:"is_accepting_orders" json:"is_accepting_orders"`
	MarketingEnabled  bool      `db:"marketing_enabled" json:"marketing_enabled"`
	Lat               *float64  `db:"lat" json:"lat"`
	Lng               *float64  `db:"lng" json:"lng"`
	AvgPrepMinutes    int       `db:"avg_prep_minutes" json:"avg_prep_minutes"`
	Language          string    `db:"language" json:"language"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

func (c CompanyRecord) ToModel() *companies.Company {
	company := &companies.Company{
		ID:                c.ID,
		Name:              c.Name,
		IsActive:          c.IsActive,
		IsAcceptingOrders: c.IsAcceptingOrders,
		MarketingEnabled:  c.MarketingEnabled,
		AvgPrepMinutes:    c.AvgPrepMinutes,
		Language:          c.Language,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
	if c.Lat != nil && c.Lng != nil {
		company.Location = &presence.Coords{Lat: *c.Lat, Lng: *c.Lng}
	}
	return company
}

func (s *storageImpl) CreateCompany(ctx context.Context, company companies.Company) (*companies.Company, error) {
	if company.ID == "" {
		company.ID = uuid.NewString()
	}
	now := s.now()

	params := map[string]interface{}{
		"id":                  company.ID,
		"name":                company.Name,
		"is_active":           company.IsActive,
		"is_accepting_orders": company.IsAcceptingOrders,
		"marketing_enabled":   company.MarketingEnabled,
		"lat":                 nil,
		"lng":                 nil,
		"avg_prep_minutes":    company.AvgPrepMinutes,
		"language":            company.Language,
		"created_at":          now,
		"updated_at":          now,
	}
	if company.Location != nil {
		params["lat"] = company.Location.Lat
		params["lng"] = company.Location.Lng
	}

	q, args, err := s.stmpBuilder().
		Insert(companiesTable).
		SetMap(params).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return nil, fmt.Errorf("db.ExecContext: %w", err)
	}

	record, err := s.getCompanyRecord(ctx, company.ID)
	if err != nil || record == nil {
		return nil, err
	}
	s.publish(TableCompanies, EventInsert, record.ID, nil, record)
	return record.ToModel(), nil
}

func (s *storageImpl) GetCompany(ctx context.Context, criteria companies.GetCriteria) (*companies.Company, error) {
	query := s.stmpBuilder().
		Select(companyRecordFields).
		From(companiesTable).
		Limit(1)

	if criteria.ID != nil {
		query = query.Where(sq.Eq{"id": *criteria.ID})
	}

	q, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	var record CompanyRecord
	if err := s.db.GetContext(ctx, &record, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db.GetContext: %w", err)
	}

	return record.ToModel(), nil
}

func (s *storageImpl) getCompanyRecord(ctx context.Context, id string) (*CompanyRecord, error) {
	q, args, err := s.stmpBuilder().
		Select(companyRecordFields).
		From(companiesTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	var record CompanyRecord
	if err := s.db.GetContext(ctx, &record, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db.GetContext: %w", err)
	}
	return &record, nil
}

func (s *storageImpl) ListCompanies(ctx context.Context, criteria companies.ListCriteria) ([]*companies.Company, error) {
	query := s.stmpBuilder().
		Select(companyRecordFields).
		From(companiesTable).
		OrderBy("name ASC")

	if criteria.IsActive != nil {
		query = query.Where(sq.Eq{"is_active": *criteria.IsActive})
	}
	if criteria.Limit > 0 {
		query = query.Limit(uint64(criteria.Limit))
	}
	if criteria.Offset > 0 {
		query = query.Offset(uint64(criteria.Offset))
	}

	q, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	var records []CompanyRecord
	if err := s.db.SelectContext(ctx, &records, q, args...); err != nil {
		return nil, fmt.Errorf("db.SelectContext: %w", err)
	}

	result := make([]*companies.Company, 0, len(records))
	for _, r := range records {
		result = append(result, r.ToModel())
	}
	return result, nil
}

func (s *storageImpl) UpdateCompany(ctx context.Context, criteria companies.GetCriteria, params companies.UpdateParams) (*companies.Company, error) {
	if criteria.ID == nil {
		return nil, fmt.Errorf("company id is required")
	}

	old, err := s.getCompanyRecord(ctx, *criteria.ID)
	if err != nil {
		return nil, err
	}
	if old == nil {
		return nil, nil
	}

	query := s.stmpBuilder().
		Update(companiesTable).
		Set("updated_at", s.now()).
		Where(sq.Eq{"id": *criteria.ID})

	if params.Name != nil {
		query = query.Set("name", *params.Name)
	}
	if params.IsActive != nil {
		query = query.Set("is_active", *params.IsActive)
	}
	if params.IsAcceptingOrders != nil {
		query = query.Set("is_accepting_orders", *params.IsAcceptingOrders)
	}
	if params.MarketingEnabled != nil {
		query = query.Set("marketing_enabled", *params.MarketingEnabled)
	}
	if params.Location != nil {
		query = query.Set("lat", params.Location.Lat).Set("lng", params.Location.Lng)
	}
	if params.AvgPrepMinutes != nil {
		query = query.Set("avg_prep_minutes", *params.AvgPrepMinutes)
	}
	if params.Language != nil {
		query = query.Set("language", *params.Language)
	}

	q, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return nil, fmt.Errorf("db.ExecContext: %w", err)
	}

	record, err := s.getCompanyRecord(ctx, *criteria.ID)
	if err != nil || record == nil {
		return nil, err
	}
	s.publish(TableCompanies, EventUpdate, record.ID, old, record)
	return record.ToModel(), nil
}

// DecodeCompany turns a change event payload back into a company.
func DecodeCompany(raw []byte) (*companies.Company, error) {
	var record CompanyRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode company record: %w", err)
	}
	return record.ToModel(), nil
}
