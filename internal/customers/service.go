package customers

import (
	"context"
	"fmt"
	"strings"

	"github.com/tillpoint/tillpoint/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

type Service struct {
	repo  Repository
	audit AuditPort
}

func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

type CreateCustomerInput struct {
	Name          string
	Phone         string
	Email         string
	Type          Type
	CreditBalance float64
	ActorID       int64
}

func (s *Service) Create(ctx context.Context, input CreateCustomerInput) (Customer, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Phone = strings.TrimSpace(input.Phone)
	if input.Name == "" || input.Phone == "" {
		return Customer{}, fmt.Errorf("%w: name and phone required", ErrValidation)
	}
	if !input.Type.Valid() {
		return Customer{}, fmt.Errorf("%w: unknown customer type %q", ErrValidation, input.Type)
	}
	if input.CreditBalance < 0 {
		return Customer{}, fmt.Errorf("%w: credit balance cannot be negative", ErrValidation)
	}
	customer, err := s.repo.Create(ctx, Customer{
		Name:          input.Name,
		Phone:         input.Phone,
		Email:         strings.TrimSpace(input.Email),
		Type:          input.Type,
		CreditBalance: input.CreditBalance,
	})
	if err != nil {
		return Customer{}, err
	}
	s.recordAudit(ctx, input.ActorID, "CUSTOMER_CREATE", customer.ID, map[string]any{
		"type": string(customer.Type),
	})
	return customer, nil
}

type UpdateCustomerInput struct {
	Name     *string
	Phone    *string
	Email    *string
	Type     *Type
	IsActive *bool
	ActorID  int64
}

func (s *Service) Update(ctx context.Context, id int64, input UpdateCustomerInput) (Customer, error) {
	customer, err := s.repo.Get(ctx, id)
	if err != nil {
		return Customer{}, err
	}
	if input.Name != nil {
		customer.Name = strings.TrimSpace(*input.Name)
	}
	if input.Phone != nil {
		customer.Phone = strings.TrimSpace(*input.Phone)
	}
	if input.Email != nil {
		customer.Email = strings.TrimSpace(*input.Email)
	}
	if input.Type != nil {
		if !input.Type.Valid() {
			return Customer{}, fmt.Errorf("%w: unknown customer type %q", ErrValidation, *input.Type)
		}
		customer.Type = *input.Type
	}
	if input.IsActive != nil {
		customer.IsActive = *input.IsActive
	}
	if customer.Name == "" || customer.Phone == "" {
		return Customer{}, fmt.Errorf("%w: name and phone required", ErrValidation)
	}
	if err := s.repo.Update(ctx, id, customer); err != nil {
		return Customer{}, err
	}
	s.recordAudit(ctx, input.ActorID, "CUSTOMER_UPDATE", id, nil)
	return customer, nil
}

// AdjustCredit tops up or corrects a wholesale customer's store credit.
func (s *Service) AdjustCredit(ctx context.Context, id int64, delta float64, actorID int64) (Customer, error) {
	if delta == 0 {
		return Customer{}, fmt.Errorf("%w: delta must be non-zero", ErrValidation)
	}
	customer, err := s.repo.AdjustCredit(ctx, id, delta)
	if err != nil {
		return Customer{}, err
	}
	s.recordAudit(ctx, actorID, "CUSTOMER_CREDIT_ADJUST", id, map[string]any{
		"delta":   delta,
		"balance": customer.CreditBalance,
	})
	return customer, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Customer, error) {
	return s.repo.Get(ctx, id)
}

// Lookup resolves a customer by phone, the till-side identification flow.
func (s *Service) Lookup(ctx context.Context, phone string) (Customer, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return Customer{}, fmt.Errorf("%w: phone required", ErrValidation)
	}
	return s.repo.GetByPhone(ctx, phone)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Customer, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	return s.repo.List(ctx, filter)
}

func (s *Service) Deactivate(ctx context.Context, id, actorID int64) error {
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "CUSTOMER_DEACTIVATE", id, nil)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "customer",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
}
