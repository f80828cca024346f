package products

import "context"

type Storage interface {
	CreateProduct(ctx context.Context, product Product) (*Product, error)
	GetProduct(ctx context.Context, criteria GetCriteria) (*Product, error)
	ListProducts(ctx context.Context, criteria ListCriteria) ([]*Product, error)
	UpdateProduct(ctx context.Context, criteria GetCriteria, params UpdateParams) (*Product, error)
}
