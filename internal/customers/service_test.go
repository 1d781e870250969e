package customers

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryCustomerRepo struct {
	nextID    int64
	customers map[int64]Customer
}

func newMemoryCustomerRepo() *memoryCustomerRepo {
	return &memoryCustomerRepo{nextID: 1, customers: map[int64]Customer{}}
}

func (m *memoryCustomerRepo) List(ctx context.Context, filter ListFilter) ([]Customer, int, error) {
	var out []Customer
	for _, c := range m.customers {
		out = append(out, c)
	}
	return out, len(out), nil
}

func (m *memoryCustomerRepo) Get(ctx context.Context, id int64) (Customer, error) {
	c, ok := m.customers[id]
	if !ok {
		return Customer{}, ErrNotFound
	}
	return c, nil
}

func (m *memoryCustomerRepo) GetByPhone(ctx context.Context, phone string) (Customer, error) {
	for _, c := range m.customers {
		if c.Phone == phone {
			return c, nil
		}
	}
	return Customer{}, ErrNotFound
}

func (m *memoryCustomerRepo) Create(ctx context.Context, c Customer) (Customer, error) {
	if _, err := m.GetByPhone(ctx, c.Phone); err == nil {
		return Customer{}, ErrDuplicatePhone
	}
	c.ID = m.nextID
	c.IsActive = true
	m.nextID++
	m.customers[c.ID] = c
	return c, nil
}

func (m *memoryCustomerRepo) Update(ctx context.Context, id int64, c Customer) error {
	if _, ok := m.customers[id]; !ok {
		return ErrNotFound
	}
	c.ID = id
	m.customers[id] = c
	return nil
}

func (m *memoryCustomerRepo) AdjustCredit(ctx context.Context, id int64, delta float64) (Customer, error) {
	c, ok := m.customers[id]
	if !ok {
		return Customer{}, ErrNotFound
	}
	c.CreditBalance = math.Max(c.CreditBalance+delta, 0)
	m.customers[id] = c
	return c, nil
}

func (m *memoryCustomerRepo) Deactivate(ctx context.Context, id int64) error {
	c, ok := m.customers[id]
	if !ok {
		return ErrNotFound
	}
	c.IsActive = false
	m.customers[id] = c
	return nil
}

func TestCreateCustomer(t *testing.T) {
	repo := newMemoryCustomerRepo()
	svc := NewService(repo, nil)

	c, err := svc.Create(context.Background(), CreateCustomerInput{
		Name: "  K. Jayawardena ", Phone: " 0771234567 ", Type: TypeLoyalty, ActorID: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "K. Jayawardena", c.Name)
	assert.Equal(t, "0771234567", c.Phone)
	assert.True(t, c.IsActive)

	_, err = svc.Create(context.Background(), CreateCustomerInput{
		Name: "Other", Phone: "0771234567", Type: TypeLoyalty,
	})
	assert.ErrorIs(t, err, ErrDuplicatePhone)
}

func TestCreateCustomerValidation(t *testing.T) {
	svc := NewService(newMemoryCustomerRepo(), nil)

	cases := []struct {
		name  string
		input CreateCustomerInput
	}{
		{"missing phone", CreateCustomerInput{Name: "A", Type: TypeLoyalty}},
		{"missing name", CreateCustomerInput{Phone: "077", Type: TypeLoyalty}},
		{"bad type", CreateCustomerInput{Name: "A", Phone: "077", Type: "vip"}},
		{"negative credit", CreateCustomerInput{Name: "A", Phone: "077", Type: TypeWholesale, CreditBalance: -5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.input)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestAdjustCreditClampsAtZero(t *testing.T) {
	repo := newMemoryCustomerRepo()
	svc := NewService(repo, nil)
	c, err := svc.Create(context.Background(), CreateCustomerInput{
		Name: "City Mart", Phone: "0719876543", Type: TypeWholesale, CreditBalance: 100,
	})
	require.NoError(t, err)

	c, err = svc.AdjustCredit(context.Background(), c.ID, -250, 1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, c.CreditBalance)

	_, err = svc.AdjustCredit(context.Background(), c.ID, 0, 1)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLookupByPhone(t *testing.T) {
	repo := newMemoryCustomerRepo()
	svc := NewService(repo, nil)
	created, err := svc.Create(context.Background(), CreateCustomerInput{
		Name: "K. Jayawardena", Phone: "0771234567", Type: TypeLoyalty,
	})
	require.NoError(t, err)

	found, err := svc.Lookup(context.Background(), " 0771234567 ")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = svc.Lookup(context.Background(), "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Lookup(context.Background(), "0000000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateCustomerTypeChange(t *testing.T) {
	repo := newMemoryCustomerRepo()
	svc := NewService(repo, nil)
	created, err := svc.Create(context.Background(), CreateCustomerInput{
		Name: "K. Jayawardena", Phone: "0771234567", Type: TypeLoyalty,
	})
	require.NoError(t, err)

	wholesale := TypeWholesale
	updated, err := svc.Update(context.Background(), created.ID, UpdateCustomerInput{Type: &wholesale})
	require.NoError(t, err)
	assert.Equal(t, TypeWholesale, updated.Type)
	assert.Equal(t, "K. Jayawardena", updated.Name, "untouched fields survive a partial update")

	bad := Type("guest")
	_, err = svc.Update(context.Background(), created.ID, UpdateCustomerInput{Type: &bad})
	assert.ErrorIs(t, err, ErrValidation)
}
