package procurement

import (
	"errors"
	"time"
)

// Purchase order lifecycle statuses.
type POStatus string

const (
	POStatusDraft             POStatus = "DRAFT"
	POStatusSubmitted         POStatus = "SUBMITTED"
	POStatusApproved          POStatus = "APPROVED"
	POStatusOrdered           POStatus = "ORDERED"
	POStatusPartiallyReceived POStatus = "PARTIALLY_RECEIVED"
	POStatusReceived          POStatus = "RECEIVED"
	POStatusCancelled         POStatus = "CANCELLED"
)

// transitions lists the allowed forward moves. Cancelled is reachable from
// any non-terminal status and handled separately.
var transitions = map[POStatus][]POStatus{
	POStatusDraft:             {POStatusSubmitted},
	POStatusSubmitted:         {POStatusApproved},
	POStatusApproved:          {POStatusOrdered},
	POStatusOrdered:           {POStatusPartiallyReceived, POStatusReceived},
	POStatusPartiallyReceived: {POStatusPartiallyReceived, POStatusReceived},
}

// CanTransition reports whether moving from one status to the next is legal.
func CanTransition(from, to POStatus) bool {
	if to == POStatusCancelled {
		return from != POStatusReceived && from != POStatusCancelled
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status accepts no further transitions.
func (s POStatus) Terminal() bool {
	return s == POStatusReceived || s == POStatusCancelled
}

// PurchaseOrder models a vendor order with its date milestones.
type PurchaseOrder struct {
	ID          string
	WorkspaceID string
	Number      string
	VendorID    string
	ShipToID    string
	Status      POStatus
	Note        string
	SubmittedAt time.Time
	ApprovedAt  time.Time
	OrderedAt   time.Time
	ExpectedAt  time.Time
	ReceivedAt  time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Lines       []POLine
}

// POLine is one ordered product.
type POLine struct {
	ID           string
	POID         string
	ProductID    string
	QtyBoxes     int
	ReceivedBox  int
	UnitPrice    float64
}

// ReceiptLine is one received quantity during a goods receipt.
type ReceiptLine struct {
	ProductID string
	QtyBoxes  int
}

// CreateInput describes a new purchase order.
type CreateInput struct {
	Number     string
	VendorID   string
	ShipToID   string
	ExpectedAt time.Time
	Note       string
	Lines      []LineInput
}

// LineInput is one requested line.
type LineInput struct {
	ProductID string
	QtyBoxes  int
	UnitPrice float64
}

var (
	// ErrIllegalTransition indicates a status move outside the state machine.
	ErrIllegalTransition = errors.New("procurement: illegal status transition")
	// ErrOrderNotFound indicates an unknown purchase order.
	ErrOrderNotFound = errors.New("procurement: purchase order not found")
	// ErrNoLines indicates an order without lines.
	ErrNoLines = errors.New("procurement: at least one line required")
	// ErrOverReceipt indicates receiving more than was ordered.
	ErrOverReceipt = errors.New("procurement: received quantity exceeds ordered quantity")
	// ErrNotReceivable indicates a receipt against an order that is not in an
	// ordered state.
	ErrNotReceivable = errors.New("procurement: order not ready to receive")
)
