package companies

import "context"

type Storage interface {
	CreateCompany(ctx context.Context, company Company) (*Company, error)
	GetCompany(ctx context.Context, criteria GetCriteria) (*Company, error)
	ListCompanies(ctx context.Context, criteria ListCriteria) ([]*Company, error)
	UpdateCompany(ctx context.Context, criteria GetCriteria, params UpdateParams) (*Company, error)
}
