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
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"queue-bot/internal/stories/products"
)

const productsTable = "products"

var productRecordFields = fields(ProductRecord{})

type ProductRecord struct {
	ID        string          `db:"id" json:"id"`
	CompanyID string          `db:"company_id" json:"company_id"`
	Name      string          `db:"name" json:"name"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Category  string          `db:"category" json:"category"`
	Status    string          `db:"status" json:"status"`
	ImageURL  *string         `db:"image_url" json:"image_url"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

func (p ProductRecord) ToModel() (*products.Product, error) {
	status, err := products.ParseStatus(p.Status)
	if err != nil {
		return nil, fmt.Errorf("product %s: %w", p.ID, err)
	}
	return &products.Product{
		ID:        p.ID,
		CompanyID: p.CompanyID,
		Name:      p.Name,
		Price:     p.Price,
		Category:  p.Category,
		Status:    status,
		ImageURL:  p.ImageURL,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}, nil
}

func (s *storageImpl) CreateProduct(ctx context.Context, product products.Product) (*products.Product, error) {
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	now := s.now()

	params := map[string]interface{}{
		"id":         product.ID,
		"company_id": product.CompanyID,
		"name":       product.Name,
		"price":      product.Price,
		"category":   product.Category,
		"status":     string(product.Status),
		"image_url":  product.ImageURL,
		"created_at": now,
		"updated_at": now,
	}

	q, args, err := s.stmpBuilder().
		Insert(productsTable).
		SetMap(params).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return nil, fmt.Errorf("db.ExecContext: %w", err)
	}

	record, err := s.getProductRecord(ctx, product.ID)
	if err != nil || record == nil {
		return nil, err
	}
	s.publish(TableProducts, EventInsert, record.CompanyID, nil, record)
	return record.ToModel()
}

func (s *storageImpl) GetProduct(ctx context.Context, criteria products.GetCriteria) (*products.Product, error) {
	if criteria.ID == nil {
		return nil, fmt.Errorf("product id is required")
	}
	record, err := s.getProductRecord(ctx, *criteria.ID)
	if err != nil || record == nil {
		return nil, err
	}
	return record.ToModel()
}

func (s *storageImpl) getProductRecord(ctx context.Context, id string) (*ProductRecord, error) {
	q, args, err := s.stmpBuilder().
		Select(productRecordFields).
		From(productsTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	var record ProductRecord
	if err := s.db.GetContext(ctx, &record, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db.GetContext: %w", err)
	}
	return &record, nil
}

func (s *storageImpl) ListProducts(ctx context.Context, criteria products.ListCriteria) ([]*products.Product, error) {
	query := s.stmpBuilder().
		Select(productRecordFields).
		From(productsTable).
		OrderBy("category ASC", "name ASC")

	if len(criteria.IDs) > 0 {
		query = query.Where(sq.Eq{"id": criteria.IDs})
	}
	if len(criteria.CompanyIDs) > 0 {
		query = query.Where(sq.Eq{"company_id": criteria.CompanyIDs})
	}
	if len(criteria.Statuses) > 0 {
		query = query.Where(sq.Eq{"status": lo.Map(criteria.Statuses, func(st products.Status, _ int) string { return string(st) })})
	}
	if criteria.Category != nil {
		query = query.Where(sq.Eq{"category": *criteria.Category})
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

	var records []ProductRecord
	if err := s.db.SelectContext(ctx, &records, q, args...); err != nil {
		return nil, fmt.Errorf("db.SelectContext: %w", err)
	}

	result := make([]*products.Product, 0, len(records))
	for _, r := range records {
		p, err := r.ToModel()
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, nil
}

func (s *storageImpl) UpdateProduct(ctx context.Context, criteria products.GetCriteria, params products.UpdateParams) (*products.Product, error) {
	if criteria.ID == nil {
		return nil, fmt.Errorf("product id is required")
	}

	old, err := s.getProductRecord(ctx, *criteria.ID)
	if err != nil || old == nil {
		return nil, err
	}

	query := s.stmpBuilder().
		Update(productsTable).
		Set("updated_at", s.now()).
		Where(sq.Eq{"id": *criteria.ID})

	if params.Name != nil {
		query = query.Set("name", *params.Name)
	}
	if params.Price != nil {
		query = query.Set("price", *params.Price)
	}
	if params.Category != nil {
		query = query.Set("category", *params.Category)
	}
	if params.Status != nil {
		query = query.Set("status", string(*params.Status))
	}
	if params.ImageURL != nil {
		query = query.Set("image_url", *params.ImageURL)
	}

	q, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return nil, fmt.Errorf("db.ExecContext: %w", err)
	}

	record, err := s.getProductRecord(ctx, *criteria.ID)
	if err != nil || record == nil {
		return nil, err
	}
	s.publish(TableProducts, EventUpdate, record.CompanyID, old, record)
	return record.ToModel()
}

// DecodeProduct turns a change event payload back into a validated product.
func DecodeProduct(raw []byte) (*products.Product, error) {
	var record ProductRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode product record: %w", err)
	}
	return record.ToModel()
}
