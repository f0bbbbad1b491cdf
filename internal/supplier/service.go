package supplier

import (
	"context"
	"fmt"
	"time"

	"github.com/stockroom-hq/stockroom/internal/audit"
	"github.com/stockroom-hq/stockroom/internal/platform/db"
	"github.com/stockroom-hq/stockroom/internal/sequence"
	"github.com/stockroom-hq/stockroom/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, supplierID int64) (Supplier, error)
	List(ctx context.Context, filter ListFilter) ([]Supplier, int, error)
}

// Service manages the supplier registry.
type Service struct {
	repo RepositoryPort
	now  func() time.Time
}

// NewService constructs the registry service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, now: time.Now}
}

// CreateInput describes supplier registration.
type CreateInput struct {
	Name          string
	ContactPerson string
	Email         string
	Phone         string
	Address       string
	TaxID         string
	PaymentTerms  string
	ActorID       int64
}

// Create registers a supplier, drawing its code from the yearly sequence
// inside the registration transaction.
func (s *Service) Create(ctx context.Context, input CreateInput) (Supplier, error) {
	if input.Name == "" {
		return Supplier{}, fmt.Errorf("supplier: name required: %w", shared.ErrValidation)
	}
	if input.ActorID == 0 {
		return Supplier{}, fmt.Errorf("supplier: actor required: %w", shared.ErrValidation)
	}

	now := s.now().UTC()
	created := Supplier{
		Name:          input.Name,
		ContactPerson: input.ContactPerson,
		Email:         input.Email,
		Phone:         input.Phone,
		Address:       input.Address,
		TaxID:         input.TaxID,
		PaymentTerms:  input.PaymentTerms,
		IsActive:      true,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ordinal, err := tx.IncrementCounter(ctx, sequence.EntitySupplier, sequence.YearlyPeriod(now))
		if err != nil {
			return err
		}
		created.Code = sequence.SupplierCode(now, ordinal)

		id, err := tx.InsertSupplier(ctx, created)
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return fmt.Errorf("supplier: code %s or tax id already registered: %w", created.Code, shared.ErrDuplicateIdentifier)
			}
			return err
		}
		created.ID = id
		_, err = tx.InsertAuditEntry(ctx, s.entry(ctx, input.ActorID, ActionCreate, id, "", created.Code,
			fmt.Sprintf("Registered supplier %s (%s)", created.Name, created.Code)))
		return err
	})
	if err != nil {
		if db.IsUnavailable(err) {
			return Supplier{}, fmt.Errorf("supplier: %v: %w", err, shared.ErrStoreUnavailable)
		}
		return Supplier{}, err
	}
	return created, nil
}

// UpdateInput carries the mutable contact fields. Code and rating are managed
// by their own operations.
type UpdateInput struct {
	SupplierID    int64
	Name          string
	ContactPerson string
	Email         string
	Phone         string
	Address       string
	TaxID         string
	PaymentTerms  string
	ActorID       int64
}

// Update rewrites the contact fields of an active supplier.
func (s *Service) Update(ctx context.Context, input UpdateInput) (Supplier, error) {
	if input.Name == "" {
		return Supplier{}, fmt.Errorf("supplier: name required: %w", shared.ErrValidation)
	}
	var updated Supplier
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.SupplierForUpdate(ctx, input.SupplierID)
		if err != nil {
			return err
		}
		current.Name = input.Name
		current.ContactPerson = input.ContactPerson
		current.Email = input.Email
		current.Phone = input.Phone
		current.Address = input.Address
		current.TaxID = input.TaxID
		current.PaymentTerms = input.PaymentTerms
		if err := tx.UpdateSupplier(ctx, current); err != nil {
			return err
		}
		updated = current
		_, err = tx.InsertAuditEntry(ctx, s.entry(ctx, input.ActorID, ActionUpdate, current.ID, "", "",
			fmt.Sprintf("Updated supplier %s", current.Code)))
		return err
	})
	if err != nil {
		return Supplier{}, err
	}
	return updated, nil
}

// Rate sets the supplier rating on the 1..5 scale.
func (s *Service) Rate(ctx context.Context, supplierID int64, rating int, actorID int64) (Supplier, error) {
	if rating < 1 || rating > 5 {
		return Supplier{}, fmt.Errorf("supplier: rating must be 1..5: %w", shared.ErrValidation)
	}
	var updated Supplier
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.SupplierForUpdate(ctx, supplierID)
		if err != nil {
			return err
		}
		old := current.Rating
		if err := tx.SetSupplierRating(ctx, supplierID, rating); err != nil {
			return err
		}
		current.Rating = rating
		updated = current
		_, err = tx.InsertAuditEntry(ctx, s.entry(ctx, actorID, ActionRate, supplierID,
			fmt.Sprintf("%d", old), fmt.Sprintf("%d", rating),
			fmt.Sprintf("Rated supplier %s", current.Code)))
		return err
	})
	if err != nil {
		return Supplier{}, err
	}
	return updated, nil
}

// Deactivate retires a supplier without touching its order history. Retiring
// an already inactive supplier is a no-op.
func (s *Service) Deactivate(ctx context.Context, supplierID, actorID int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.SupplierForUpdate(ctx, supplierID)
		if err != nil {
			return err
		}
		if !current.IsActive {
			return nil
		}
		if err := tx.SetSupplierActive(ctx, supplierID, false); err != nil {
			return err
		}
		_, err = tx.InsertAuditEntry(ctx, s.entry(ctx, actorID, ActionDeactivate, supplierID, "active", "inactive",
			fmt.Sprintf("Deactivated supplier %s", current.Code)))
		return err
	})
}

// Get returns one supplier by id.
func (s *Service) Get(ctx context.Context, supplierID int64) (Supplier, error) {
	return s.repo.Get(ctx, supplierID)
}

// List returns suppliers matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Supplier, int, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) entry(ctx context.Context, actorID int64, action string, supplierID int64, oldValue, newValue, notes string) audit.Entry {
	origin := shared.OriginFromContext(ctx)
	return audit.Entry{
		ActorID:    actorID,
		Action:     action,
		EntityType: audit.EntitySupplier,
		EntityID:   supplierID,
		OldValue:   oldValue,
		NewValue:   newValue,
		Notes:      notes,
		IP:         origin.IP,
		UserAgent:  origin.UserAgent,
		RequestID:  origin.RequestID,
	}
}
