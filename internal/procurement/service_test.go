package procurement

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stockpilot/stockpilot/internal/catalog"
)

type memoryRepo struct {
	orders map[string]*PurchaseOrder
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{orders: make(map[string]*PurchaseOrder)}
}

func (r *memoryRepo) Insert(_ context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	stored := po
	r.orders[po.ID] = &stored
	return po, nil
}

func (r *memoryRepo) Get(_ context.Context, workspaceID, id string) (PurchaseOrder, error) {
	po, ok := r.orders[id]
	if !ok || po.WorkspaceID != workspaceID {
		return PurchaseOrder{}, ErrOrderNotFound
	}
	copied := *po
	copied.Lines = append([]POLine(nil), po.Lines...)
	return copied, nil
}

func (r *memoryRepo) List(_ context.Context, workspaceID string, status POStatus) ([]PurchaseOrder, error) {
	var out []PurchaseOrder
	for _, po := range r.orders {
		if po.WorkspaceID == workspaceID && (status == "" || po.Status == status) {
			out = append(out, *po)
		}
	}
	return out, nil
}

func (r *memoryRepo) UpdateStatus(_ context.Context, workspaceID, id string, status POStatus, at time.Time) error {
	po, ok := r.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	po.Status = status
	return nil
}

func (r *memoryRepo) AddReceived(_ context.Context, lineID string, qtyBox int) error {
	for _, po := range r.orders {
		for i := range po.Lines {
			if po.Lines[i].ID == lineID {
				po.Lines[i].ReceivedBox += qtyBox
				return nil
			}
		}
	}
	return ErrOrderNotFound
}

type recordingStock struct {
	inbound map[string]int
}

func (s *recordingStock) PostInbound(_ context.Context, _, productID string, qtyBoxes int, _, _, _ string) (catalog.Product, error) {
	if s.inbound == nil {
		s.inbound = make(map[string]int)
	}
	s.inbound[productID] += qtyBoxes
	return catalog.Product{ID: productID}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func createOrdered(t *testing.T, svc *Service) PurchaseOrder {
	t.Helper()
	ctx := context.Background()
	po, err := svc.Create(ctx, "ws1", CreateInput{
		VendorID: "vendor-1",
		Lines: []LineInput{
			{ProductID: "p1", QtyBoxes: 10, UnitPrice: 4},
			{ProductID: "p2", QtyBoxes: 5, UnitPrice: 9},
		},
	})
	require.NoError(t, err)
	for _, status := range []POStatus{POStatusSubmitted, POStatusApproved, POStatusOrdered} {
		po, err = svc.Transition(ctx, "ws1", po.ID, status)
		require.NoError(t, err)
	}
	return po
}

func TestStatusMachine(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, testLogger())
	ctx := context.Background()

	po, err := svc.Create(ctx, "ws1", CreateInput{VendorID: "v", Lines: []LineInput{{ProductID: "p1", QtyBoxes: 1}}})
	require.NoError(t, err)
	require.Equal(t, POStatusDraft, po.Status)

	// Draft cannot jump straight to Ordered.
	_, err = svc.Transition(ctx, "ws1", po.ID, POStatusOrdered)
	require.ErrorIs(t, err, ErrIllegalTransition)

	po, err = svc.Transition(ctx, "ws1", po.ID, POStatusSubmitted)
	require.NoError(t, err)
	require.Equal(t, POStatusSubmitted, po.Status)

	// Cancel allowed from any non-terminal status.
	po, err = svc.Transition(ctx, "ws1", po.ID, POStatusCancelled)
	require.NoError(t, err)
	require.Equal(t, POStatusCancelled, po.Status)

	_, err = svc.Transition(ctx, "ws1", po.ID, POStatusSubmitted)
	require.ErrorIs(t, err, ErrIllegalTransition)
}

func TestPartialThenFullReceipt(t *testing.T) {
	repo := newMemoryRepo()
	stock := &recordingStock{}
	svc := NewService(repo, stock, testLogger())
	ctx := context.Background()

	po := createOrdered(t, svc)

	po, err := svc.Receive(ctx, "ws1", po.ID, []ReceiptLine{{ProductID: "p1", QtyBoxes: 10}})
	require.NoError(t, err)
	require.Equal(t, POStatusPartiallyReceived, po.Status)
	require.Equal(t, 10, stock.inbound["p1"])

	po, err = svc.Receive(ctx, "ws1", po.ID, []ReceiptLine{{ProductID: "p2", QtyBoxes: 5}})
	require.NoError(t, err)
	require.Equal(t, POStatusReceived, po.Status)
	require.Equal(t, 5, stock.inbound["p2"])

	// Terminal: nothing further may be received.
	_, err = svc.Receive(ctx, "ws1", po.ID, []ReceiptLine{{ProductID: "p1", QtyBoxes: 1}})
	require.ErrorIs(t, err, ErrNotReceivable)
}

func TestOverReceiptRejected(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, &recordingStock{}, testLogger())
	po := createOrdered(t, svc)

	_, err := svc.Receive(context.Background(), "ws1", po.ID, []ReceiptLine{{ProductID: "p1", QtyBoxes: 11}})
	require.ErrorIs(t, err, ErrOverReceipt)
}

func TestReceiveUnknownProduct(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, &recordingStock{}, testLogger())
	po := createOrdered(t, svc)

	_, err := svc.Receive(context.Background(), "ws1", po.ID, []ReceiptLine{{ProductID: "ghost", QtyBoxes: 1}})
	require.Error(t, err)
}
