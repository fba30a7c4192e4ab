package procurement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stockpilot/stockpilot/internal/catalog"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Insert(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error)
	Get(ctx context.Context, workspaceID, id string) (PurchaseOrder, error)
	List(ctx context.Context, workspaceID string, status POStatus) ([]PurchaseOrder, error)
	UpdateStatus(ctx context.Context, workspaceID, id string, status POStatus, at time.Time) error
	AddReceived(ctx context.Context, lineID string, qtyBox int) error
}

// StockPort posts inbound stock when goods are received.
type StockPort interface {
	PostInbound(ctx context.Context, workspaceID, productID string, qtyBoxes int, refModule, refID, note string) (catalog.Product, error)
}

// Service coordinates purchase order operations.
type Service struct {
	repo   RepositoryPort
	stock  StockPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, stock StockPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, stock: stock, logger: logger, now: time.Now}
}

// Create stores a draft purchase order.
func (s *Service) Create(ctx context.Context, workspaceID string, input CreateInput) (PurchaseOrder, error) {
	if len(input.Lines) == 0 {
		return PurchaseOrder{}, ErrNoLines
	}
	po := PurchaseOrder{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		Number:      input.Number,
		VendorID:    input.VendorID,
		ShipToID:    input.ShipToID,
		Status:      POStatusDraft,
		Note:        input.Note,
		ExpectedAt:  input.ExpectedAt,
	}
	if po.Number == "" {
		po.Number = fmt.Sprintf("PO-%s", po.ID[:8])
	}
	for _, line := range input.Lines {
		if line.ProductID == "" || line.QtyBoxes <= 0 {
			return PurchaseOrder{}, ErrNoLines
		}
		po.Lines = append(po.Lines, POLine{
			ID:        uuid.NewString(),
			POID:      po.ID,
			ProductID: line.ProductID,
			QtyBoxes:  line.QtyBoxes,
			UnitPrice: line.UnitPrice,
		})
	}
	return s.repo.Insert(ctx, po)
}

// Get fetches one order.
func (s *Service) Get(ctx context.Context, workspaceID, id string) (PurchaseOrder, error) {
	return s.repo.Get(ctx, workspaceID, id)
}

// List lists orders.
func (s *Service) List(ctx context.Context, workspaceID string, status POStatus) ([]PurchaseOrder, error) {
	return s.repo.List(ctx, workspaceID, status)
}

// Transition moves the order along the state machine.
func (s *Service) Transition(ctx context.Context, workspaceID, id string, to POStatus) (PurchaseOrder, error) {
	po, err := s.repo.Get(ctx, workspaceID, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if !CanTransition(po.Status, to) {
		return PurchaseOrder{}, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, po.Status, to)
	}
	if err := s.repo.UpdateStatus(ctx, workspaceID, id, to, s.now()); err != nil {
		return PurchaseOrder{}, err
	}
	s.logger.Info("purchase order transitioned",
		slog.String("po", po.Number),
		slog.String("from", string(po.Status)),
		slog.String("to", string(to)))
	return s.repo.Get(ctx, workspaceID, id)
}

// Receive records a goods receipt. Each received line posts an inbound stock
// movement; the order moves to PARTIALLY_RECEIVED or RECEIVED depending on
// whether every line is now fully received.
func (s *Service) Receive(ctx context.Context, workspaceID, id string, receipt []ReceiptLine) (PurchaseOrder, error) {
	po, err := s.repo.Get(ctx, workspaceID, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if po.Status != POStatusOrdered && po.Status != POStatusPartiallyReceived {
		return PurchaseOrder{}, ErrNotReceivable
	}
	if len(receipt) == 0 {
		return PurchaseOrder{}, ErrNoLines
	}

	byProduct := make(map[string]*POLine, len(po.Lines))
	for i := range po.Lines {
		byProduct[po.Lines[i].ProductID] = &po.Lines[i]
	}
	for _, rl := range receipt {
		line, ok := byProduct[rl.ProductID]
		if !ok {
			return PurchaseOrder{}, fmt.Errorf("procurement: product %s not on order", rl.ProductID)
		}
		if rl.QtyBoxes <= 0 || line.ReceivedBox+rl.QtyBoxes > line.QtyBoxes {
			return PurchaseOrder{}, ErrOverReceipt
		}
	}

	for _, rl := range receipt {
		line := byProduct[rl.ProductID]
		if err := s.repo.AddReceived(ctx, line.ID, rl.QtyBoxes); err != nil {
			return PurchaseOrder{}, err
		}
		line.ReceivedBox += rl.QtyBoxes
		if s.stock != nil {
			note := fmt.Sprintf("Receipt for %s", po.Number)
			if _, err := s.stock.PostInbound(ctx, workspaceID, rl.ProductID, rl.QtyBoxes, "procurement", po.ID, note); err != nil {
				// Receipt bookkeeping succeeded but the stock posting failed;
				// surface the error so the caller can reconcile.
				return PurchaseOrder{}, fmt.Errorf("procurement: post inbound: %w", err)
			}
		}
	}

	complete := true
	for _, line := range po.Lines {
		if line.ReceivedBox < line.QtyBoxes {
			complete = false
			break
		}
	}
	next := POStatusPartiallyReceived
	if complete {
		next = POStatusReceived
	}
	if err := s.repo.UpdateStatus(ctx, workspaceID, id, next, s.now()); err != nil {
		return PurchaseOrder{}, err
	}
	return s.repo.Get(ctx, workspaceID, id)
}
