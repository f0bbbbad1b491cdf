package purchaseorder

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockroom-hq/stockroom/internal/audit"
	"github.com/stockroom-hq/stockroom/internal/inventory"
	"github.com/stockroom-hq/stockroom/internal/notification"
	"github.com/stockroom-hq/stockroom/internal/platform/db"
	"github.com/stockroom-hq/stockroom/internal/sequence"
	"github.com/stockroom-hq/stockroom/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, orderID int64) (Order, []Line, error)
	List(ctx context.Context, filter ListFilter) ([]Order, int, error)
	Summary(ctx context.Context) (Summary, error)
}

// InventoryPort is the slice of the inventory ledger delivery composes.
type InventoryPort interface {
	ApplyAdd(ctx context.Context, tx inventory.StockTx, input inventory.StockInput) (inventory.Item, []notification.Intent, error)
}

// NotifierPort delivers alerts after the order transaction has committed.
type NotifierPort interface {
	DispatchAll(ctx context.Context, intents []notification.Intent)
}

// Service owns the purchase order lifecycle. Every transition is one
// transaction covering the status write, its audit entry and, for delivery,
// the cascading stock increments.
type Service struct {
	repo      RepositoryPort
	inventory InventoryPort
	notifier  NotifierPort
	now       func() time.Time
}

// NewService constructs the workflow service.
func NewService(repo RepositoryPort, inv InventoryPort, notifier NotifierPort) *Service {
	return &Service{repo: repo, inventory: inv, notifier: notifier, now: time.Now}
}

// withTx runs fn in one transaction, surfacing transient store failures so
// callers can retry instead of seeing an opaque internal error.
func (s *Service) withTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	err := s.repo.WithTx(ctx, fn)
	if err != nil && db.IsUnavailable(err) {
		return fmt.Errorf("purchaseorder: %v: %w", err, shared.ErrStoreUnavailable)
	}
	return err
}

// LineInput describes one requested line.
type LineInput struct {
	InventoryItemID int64
	Quantity        int64
	UnitPrice       decimal.Decimal
	Notes           string
}

// CreateInput describes order creation.
type CreateInput struct {
	SupplierID      int64
	CreatedBy       int64
	Currency        string
	DeliveryDate    time.Time
	DeliveryAddress string
	Notes           string
	Lines           []LineInput
}

// Create opens a new order in pending. The PO number is drawn from the
// monthly sequence inside the creation transaction, so a committed order
// never leaves a gap and a failed one never burns a visible number.
func (s *Service) Create(ctx context.Context, input CreateInput) (Order, []Line, error) {
	if input.SupplierID == 0 || input.CreatedBy == 0 {
		return Order{}, nil, fmt.Errorf("purchaseorder: supplier and creator required: %w", shared.ErrValidation)
	}
	merged, err := mergeLineInputs(input.Lines)
	if err != nil {
		return Order{}, nil, err
	}

	now := s.now().UTC()
	order := Order{
		SupplierID:      input.SupplierID,
		Status:          StatusPending,
		Currency:        input.Currency,
		DeliveryDate:    input.DeliveryDate,
		DeliveryAddress: input.DeliveryAddress,
		Notes:           input.Notes,
		CreatedBy:       input.CreatedBy,
	}
	if order.Currency == "" {
		order.Currency = shared.DefaultCurrency
	}

	var lines []Line
	err = s.withTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ordinal, err := tx.IncrementCounter(ctx, sequence.EntityPurchaseOrder, sequence.MonthlyPeriod(now))
		if err != nil {
			return err
		}
		order.PONumber = sequence.PONumber(now, ordinal)

		lines = lines[:0]
		for _, in := range merged {
			lines = append(lines, Line{
				InventoryItemID: in.InventoryItemID,
				Quantity:        in.Quantity,
				UnitPrice:       in.UnitPrice,
				Notes:           in.Notes,
			})
		}
		order.TotalAmount = TotalAmount(lines)

		orderID, err := tx.InsertOrder(ctx, order)
		if err != nil {
			return err
		}
		order.ID = orderID
		for i := range lines {
			lines[i].OrderID = orderID
			lineID, err := tx.InsertLine(ctx, lines[i])
			if err != nil {
				return err
			}
			lines[i].ID = lineID
		}
		_, err = tx.InsertAuditEntry(ctx, s.entry(ctx, input.CreatedBy, ActionCreate, order.ID, "", string(StatusPending),
			fmt.Sprintf("Created purchase order %s", order.PONumber)))
		return err
	})
	if err != nil {
		return Order{}, nil, err
	}

	s.dispatch(ctx, []notification.Intent{{
		Target: notification.ToUser(order.CreatedBy),
		Note: notification.Note{
			Title:    "New Purchase Order Created",
			Body:     fmt.Sprintf("Purchase order %s has been created and is pending approval.", order.PONumber),
			Severity: notification.SeverityInfo,
		},
	}})
	return order, lines, nil
}

// AddItemInput describes a line addition.
type AddItemInput struct {
	OrderID         int64
	InventoryItemID int64
	Quantity        int64
	UnitPrice       decimal.Decimal
	Notes           string
	ActorID         int64
}

// AddItem adds a line while the order is pending. An existing line for the
// same item merges quantities instead of duplicating.
func (s *Service) AddItem(ctx context.Context, input AddItemInput) (Order, error) {
	if input.Quantity <= 0 {
		return Order{}, fmt.Errorf("purchaseorder: quantity must be positive: %w", shared.ErrValidation)
	}
	if input.UnitPrice.IsNegative() {
		return Order{}, fmt.Errorf("purchaseorder: unit price must be >= 0: %w", shared.ErrValidation)
	}
	if input.InventoryItemID == 0 || input.ActorID == 0 {
		return Order{}, fmt.Errorf("purchaseorder: item and actor required: %w", shared.ErrValidation)
	}
	var updated Order
	err := s.withTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.OrderForUpdate(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if order.Status != StatusPending {
			return fmt.Errorf("purchaseorder: lines of a %s order are frozen: %w", order.Status, shared.ErrInvalidTransition)
		}
		lines, err := tx.OrderLines(ctx, input.OrderID)
		if err != nil {
			return err
		}
		oldTotal := TotalAmount(lines)

		merged := false
		for i := range lines {
			if lines[i].InventoryItemID == input.InventoryItemID {
				lines[i].Quantity += input.Quantity
				lines[i].UnitPrice = input.UnitPrice
				if input.Notes != "" {
					lines[i].Notes = input.Notes
				}
				if err := tx.UpdateLine(ctx, lines[i]); err != nil {
					return err
				}
				merged = true
				break
			}
		}
		if !merged {
			line := Line{
				OrderID:         input.OrderID,
				InventoryItemID: input.InventoryItemID,
				Quantity:        input.Quantity,
				UnitPrice:       input.UnitPrice,
				Notes:           input.Notes,
			}
			id, err := tx.InsertLine(ctx, line)
			if err != nil {
				return err
			}
			line.ID = id
			lines = append(lines, line)
		}

		order.TotalAmount = TotalAmount(lines)
		if err := tx.SetOrderTotal(ctx, order.ID, order.TotalAmount); err != nil {
			return err
		}
		updated = order
		_, err = tx.InsertAuditEntry(ctx, s.entry(ctx, input.ActorID, ActionAddItem, order.ID,
			oldTotal.StringFixed(2), order.TotalAmount.StringFixed(2),
			fmt.Sprintf("Added item %d x%d to %s", input.InventoryItemID, input.Quantity, order.PONumber)))
		return err
	})
	if err != nil {
		return Order{}, err
	}
	return updated, nil
}

// RemoveItem deletes a line while the order is pending and recomputes the total.
func (s *Service) RemoveItem(ctx context.Context, orderID, lineID, actorID int64) (Order, error) {
	if orderID == 0 || lineID == 0 || actorID == 0 {
		return Order{}, fmt.Errorf("purchaseorder: order, line and actor required: %w", shared.ErrValidation)
	}
	var updated Order
	err := s.withTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != StatusPending {
			return fmt.Errorf("purchaseorder: lines of a %s order are frozen: %w", order.Status, shared.ErrInvalidTransition)
		}
		lines, err := tx.OrderLines(ctx, orderID)
		if err != nil {
			return err
		}
		oldTotal := TotalAmount(lines)

		remaining := lines[:0]
		found := false
		for _, line := range lines {
			if line.ID == lineID {
				found = true
				continue
			}
			remaining = append(remaining, line)
		}
		if !found {
			return fmt.Errorf("purchaseorder: line %d: %w", lineID, shared.ErrNotFound)
		}
		if err := tx.DeleteLine(ctx, lineID); err != nil {
			return err
		}

		order.TotalAmount = TotalAmount(remaining)
		if err := tx.SetOrderTotal(ctx, order.ID, order.TotalAmount); err != nil {
			return err
		}
		updated = order
		_, err = tx.InsertAuditEntry(ctx, s.entry(ctx, actorID, ActionRemoveItem, order.ID,
			oldTotal.StringFixed(2), order.TotalAmount.StringFixed(2),
			fmt.Sprintf("Removed line %d from %s", lineID, order.PONumber)))
		return err
	})
	if err != nil {
		return Order{}, err
	}
	return updated, nil
}

// Approve moves a pending order to approved and stamps the approver.
func (s *Service) Approve(ctx context.Context, orderID, actorID int64, notes string) (Order, error) {
	return s.transition(ctx, orderID, actorID, StatusApproved, ActionApprove, notes, transitionNote{
		Title:    "Purchase Order Approved",
		Body:     "Purchase order %s has been approved.",
		Severity: notification.SeveritySuccess,
	})
}

// Reject moves a pending order to rejected.
func (s *Service) Reject(ctx context.Context, orderID, actorID int64, notes string) (Order, error) {
	return s.transition(ctx, orderID, actorID, StatusRejected, ActionReject, notes, transitionNote{
		Title:    "Purchase Order Rejected",
		Body:     "Purchase order %s has been rejected.",
		Severity: notification.SeverityWarning,
	})
}

// Cancel moves a pending or approved order to cancelled. Its number is not
// reused.
func (s *Service) Cancel(ctx context.Context, orderID, actorID int64, notes string) (Order, error) {
	return s.transition(ctx, orderID, actorID, StatusCancelled, ActionCancel, notes, transitionNote{
		Title:    "Purchase Order Cancelled",
		Body:     "Purchase order %s has been cancelled.",
		Severity: notification.SeverityWarning,
	})
}

type transitionNote struct {
	Title    string
	Body     string
	Severity notification.Severity
}

func (s *Service) transition(ctx context.Context, orderID, actorID int64, next Status, action, notes string, note transitionNote) (Order, error) {
	if orderID == 0 || actorID == 0 {
		return Order{}, fmt.Errorf("purchaseorder: order and actor required: %w", shared.ErrValidation)
	}
	var updated Order
	err := s.withTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.Status.CanTransitionTo(next) {
			return fmt.Errorf("purchaseorder: %s cannot move from %s to %s: %w", order.PONumber, order.Status, next, shared.ErrInvalidTransition)
		}
		previous := order.Status
		order.Status = next
		var approvedBy int64
		var approvedAt time.Time
		if next == StatusApproved {
			approvedBy = actorID
			approvedAt = s.now().UTC()
			order.ApprovedBy = approvedBy
			order.ApprovedAt = approvedAt
		}
		if err := tx.SetOrderStatus(ctx, orderID, next, approvedBy, approvedAt); err != nil {
			return err
		}
		if notes == "" {
			notes = fmt.Sprintf("Purchase order %s %s", order.PONumber, next)
		}
		updated = order
		_, err = tx.InsertAuditEntry(ctx, s.entry(ctx, actorID, action, orderID, string(previous), string(next), notes))
		return err
	})
	if err != nil {
		return Order{}, err
	}

	s.dispatch(ctx, []notification.Intent{{
		Target: notification.ToUser(updated.CreatedBy),
		Note: notification.Note{
			Title:    note.Title,
			Body:     fmt.Sprintf(note.Body, updated.PONumber),
			Severity: note.Severity,
		},
	}})
	return updated, nil
}

// Deliver moves an approved order to delivered and adds every line's quantity
// to inventory. The whole transition is one transaction: if any line fails,
// the order stays approved and no stock moves.
func (s *Service) Deliver(ctx context.Context, orderID, actorID int64, notes string) (Order, error) {
	if orderID == 0 || actorID == 0 {
		return Order{}, fmt.Errorf("purchaseorder: order and actor required: %w", shared.ErrValidation)
	}
	var (
		updated Order
		intents []notification.Intent
	)
	err := s.withTx(ctx, func(ctx context.Context, tx TxRepository) error {
		intents = intents[:0]
		order, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.Status.CanTransitionTo(StatusDelivered) {
			return fmt.Errorf("purchaseorder: %s cannot be delivered from %s: %w", order.PONumber, order.Status, shared.ErrInvalidTransition)
		}
		lines, err := tx.OrderLines(ctx, orderID)
		if err != nil {
			return err
		}
		for _, line := range lines {
			_, lineIntents, err := s.inventory.ApplyAdd(ctx, tx, inventory.StockInput{
				ItemID:   line.InventoryItemID,
				Quantity: line.Quantity,
				ActorID:  actorID,
				Notes:    fmt.Sprintf("Delivery from PO %s", order.PONumber),
			})
			if err != nil {
				return fmt.Errorf("purchaseorder: deliver %s line %d: %w", order.PONumber, line.ID, err)
			}
			intents = append(intents, lineIntents...)
		}
		if err := tx.SetOrderStatus(ctx, orderID, StatusDelivered, 0, time.Time{}); err != nil {
			return err
		}
		order.Status = StatusDelivered
		updated = order
		if notes == "" {
			notes = fmt.Sprintf("Purchase order %s delivered", order.PONumber)
		}
		_, err = tx.InsertAuditEntry(ctx, s.entry(ctx, actorID, ActionDeliver, orderID, string(StatusApproved), string(StatusDelivered), notes))
		return err
	})
	if err != nil {
		return Order{}, err
	}

	intents = append(intents, notification.Intent{
		Target: notification.ToUser(updated.CreatedBy),
		Note: notification.Note{
			Title:    "Purchase Order Delivered",
			Body:     fmt.Sprintf("Purchase order %s (%s) has been delivered and items added to inventory.", updated.PONumber, shared.FormatAmount(updated.TotalAmount, updated.Currency)),
			Severity: notification.SeveritySuccess,
		},
	})
	s.dispatch(ctx, intents)
	return updated, nil
}

// Get returns one order with its lines.
func (s *Service) Get(ctx context.Context, orderID int64) (Order, []Line, error) {
	return s.repo.GetOrder(ctx, orderID)
}

// List returns orders matching the filter, newest-first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Order, int, error) {
	return s.repo.List(ctx, filter)
}

// Summarize aggregates workflow statistics.
func (s *Service) Summarize(ctx context.Context) (Summary, error) {
	return s.repo.Summary(ctx)
}

func mergeLineInputs(inputs []LineInput) ([]LineInput, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("purchaseorder: at least one line required: %w", shared.ErrValidation)
	}
	var merged []LineInput
	index := make(map[int64]int)
	for _, in := range inputs {
		if in.InventoryItemID == 0 || in.Quantity <= 0 {
			return nil, fmt.Errorf("purchaseorder: line requires item and positive quantity: %w", shared.ErrValidation)
		}
		if in.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("purchaseorder: line unit price must be >= 0: %w", shared.ErrValidation)
		}
		if at, ok := index[in.InventoryItemID]; ok {
			merged[at].Quantity += in.Quantity
			merged[at].UnitPrice = in.UnitPrice
			continue
		}
		index[in.InventoryItemID] = len(merged)
		merged = append(merged, in)
	}
	return merged, nil
}

func (s *Service) dispatch(ctx context.Context, intents []notification.Intent) {
	if s.notifier == nil || len(intents) == 0 {
		return
	}
	s.notifier.DispatchAll(ctx, intents)
}

func (s *Service) entry(ctx context.Context, actorID int64, action string, orderID int64, oldValue, newValue, notes string) audit.Entry {
	origin := shared.OriginFromContext(ctx)
	return audit.Entry{
		ActorID:    actorID,
		Action:     action,
		EntityType: audit.EntityPurchaseOrder,
		EntityID:   orderID,
		OldValue:   oldValue,
		NewValue:   newValue,
		Notes:      notes,
		IP:         origin.IP,
		UserAgent:  origin.UserAgent,
		RequestID:  origin.RequestID,
	}
}
