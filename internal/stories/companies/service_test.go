package companies

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"queue-bot/internal/stories/presence"
)

type fakeStorage struct {
	companies map[string]*Company
	listed    ListCriteria
}

func (f *fakeStorage) CreateCompany(_ context.Context, c Company) (*Company, error) {
	if c.ID == "" {
		c.ID = "generated"
	}
	f.companies[c.ID] = &c
	return &c, nil
}

func (f *fakeStorage) GetCompany(_ context.Context, criteria GetCriteria) (*Company, error) {
	return f.companies[*criteria.ID], nil
}

func (f *fakeStorage) ListCompanies(_ context.Context, criteria ListCriteria) ([]*Company, error) {
	f.listed = criteria
	var result []*Company
	for _, c := range f.companies {
		if criteria.IsActive == nil || c.IsActive == *criteria.IsActive {
			result = append(result, c)
		}
	}
	return result, nil
}

func (f *fakeStorage) UpdateCompany(_ context.Context, criteria GetCriteria, params UpdateParams) (*Company, error) {
	c, ok := f.companies[*criteria.ID]
	if !ok {
		return nil, nil
	}
	if params.IsAcceptingOrders != nil {
		c.IsAcceptingOrders = *params.IsAcceptingOrders
	}
	return c, nil
}

func newFake() *fakeStorage {
	return &fakeStorage{companies: map[string]*Company{
		"open":   {ID: "open", Name: "Open", IsActive: true, IsAcceptingOrders: true},
		"paused": {ID: "paused", Name: "Paused", IsActive: true},
		"gone":   {ID: "gone", Name: "Gone", IsAcceptingOrders: true},
	}}
}

func TestCreateCompany(t *testing.T) {
	svc := NewService(newFake())

	c, err := svc.CreateCompany(context.Background(), Company{Name: "  Burger Point "})
	require.NoError(t, err)
	assert.Equal(t, "Burger Point", c.Name)

	_, err = svc.CreateCompany(context.Background(), Company{Name: " "})
	assert.Error(t, err)

	_, err = svc.CreateCompany(context.Background(), Company{Name: "Lost", Location: &presence.Coords{Lat: 91}})
	assert.Error(t, err)
}

func TestGetCompany(t *testing.T) {
	svc := NewService(newFake())

	c, err := svc.GetCompany(context.Background(), "open")
	require.NoError(t, err)
	assert.Equal(t, "Open", c.Name)

	_, err = svc.GetCompany(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrCompanyNotFound)
}

func TestListActiveCompanies(t *testing.T) {
	storage := newFake()
	svc := NewService(storage)

	list, err := svc.ListActiveCompanies(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 2)
	require.NotNil(t, storage.listed.IsActive)
	assert.True(t, *storage.listed.IsActive)
}

func TestSetAcceptingOrders(t *testing.T) {
	svc := NewService(newFake())

	c, err := svc.SetAcceptingOrders(context.Background(), "paused", true)
	require.NoError(t, err)
	assert.True(t, c.AcceptsOrders())

	_, err = svc.SetAcceptingOrders(context.Background(), "missing", true)
	assert.ErrorIs(t, err, ErrCompanyNotFound)
}

func TestAcceptsOrders(t *testing.T) {
	companies := newFake().companies
	assert.True(t, companies["open"].AcceptsOrders())
	assert.False(t, companies["paused"].AcceptsOrders())
	assert.False(t, companies["gone"].AcceptsOrders())
}
