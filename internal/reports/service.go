package reports

import (
	"context"
	"sort"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/stockpilot/stockpilot/internal/catalog"
)

// ProductSource supplies the product list and movement history.
type ProductSource interface {
	ListProducts(ctx context.Context, workspaceID string, filter catalog.ProductFilter) ([]catalog.Product, error)
	OutboundSince(ctx context.Context, workspaceID string, since time.Time) (map[string][]catalog.DailyOutflow, error)
}

// OnOrderSource reports open purchase order quantity per product.
type OnOrderSource interface {
	OpenOrderQty(ctx context.Context, workspaceID string) (map[string]int, error)
}

// Service derives report rows from the product list. Every report fetches the
// full workspace list first and aggregates in memory.
type Service struct {
	source   ProductSource
	onOrder  OnOrderSource
	cache    *ProductCache
	collator *collate.Collator
	now      func() time.Time
}

// NewService builds Service. cache and onOrder may be nil.
func NewService(source ProductSource, onOrder OnOrderSource, cache *ProductCache) *Service {
	return &Service{
		source:   source,
		onOrder:  onOrder,
		cache:    cache,
		collator: collate.New(language.English, collate.Loose),
		now:      time.Now,
	}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

func (s *Service) products(ctx context.Context, workspaceID string, filters Filters) ([]catalog.Product, error) {
	loader := func(ctx context.Context) ([]catalog.Product, error) {
		return s.source.ListProducts(ctx, workspaceID, catalog.ProductFilter{})
	}
	products, err := s.cache.FetchProducts(ctx, workspaceID, loader)
	if err != nil {
		return nil, err
	}
	if filters.GroupID == "" && filters.CategoryID == "" {
		return products, nil
	}
	filtered := products[:0:0]
	for _, p := range products {
		if filters.GroupID != "" && p.GroupID != filters.GroupID {
			continue
		}
		if filters.CategoryID != "" && p.CategoryID != filters.CategoryID {
			continue
		}
		filtered = append(filtered, p)
	}
	return filtered, nil
}

// StockOnHand lists every product's current stock position.
func (s *Service) StockOnHand(ctx context.Context, workspaceID string, filters Filters) ([]StockOnHandRow, error) {
	products, err := s.products(ctx, workspaceID, filters)
	if err != nil {
		return nil, err
	}
	rows := make([]StockOnHandRow, 0, len(products))
	for _, p := range products {
		rows = append(rows, StockOnHandRow{
			SKU:         p.SKU,
			Name:        p.Name,
			QuantityBox: p.QuantityBox,
			QtyOnHand:   p.QtyOnHand(),
			TotalValue:  p.TotalValue(),
			MinLevelBox: p.MinLevelBox,
			BelowMin:    p.QuantityBox < p.MinLevelBox,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return s.collator.CompareString(rows[i].Name, rows[j].Name) < 0
	})
	return rows, nil
}

// Aging reports days since the last outbound movement. Products with no
// outflow in the window are flagged dead stock.
func (s *Service) Aging(ctx context.Context, workspaceID string, filters Filters) ([]AgingRow, error) {
	products, err := s.products(ctx, workspaceID, filters)
	if err != nil {
		return nil, err
	}
	window := filters.WindowDays
	if window <= 0 {
		window = defaultDemandWindowDays
	}
	now := s.now()
	outflows, err := s.source.OutboundSince(ctx, workspaceID, now.AddDate(0, 0, -window))
	if err != nil {
		return nil, err
	}

	rows := make([]AgingRow, 0, len(products))
	for _, p := range products {
		stats := computeDemand(outflows[p.ID], window)
		row := AgingRow{
			SKU:       p.SKU,
			Name:      p.Name,
			QtyOnHand: p.QtyOnHand(),
		}
		if stats.LastOut.IsZero() {
			row.DaysSinceOutflow = window
			row.DeadStock = p.QuantityBox > 0
		} else {
			row.LastOutboundAt = stats.LastOut
			row.DaysSinceOutflow = int(now.Sub(stats.LastOut).Hours() / 24)
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].DaysSinceOutflow > rows[j].DaysSinceOutflow
	})
	return rows, nil
}

// Replenishment computes reorder points and suggested order quantities from
// movement-derived demand statistics.
func (s *Service) Replenishment(ctx context.Context, workspaceID string, filters Filters) ([]ReplenishmentRow, error) {
	products, err := s.products(ctx, workspaceID, filters)
	if err != nil {
		return nil, err
	}
	window := filters.WindowDays
	if window <= 0 {
		window = defaultDemandWindowDays
	}
	review := filters.ReviewPeriodDays
	if review <= 0 {
		review = defaultReviewPeriodDays
	}
	outflows, err := s.source.OutboundSince(ctx, workspaceID, s.now().AddDate(0, 0, -window))
	if err != nil {
		return nil, err
	}
	var onOrder map[string]int
	if s.onOrder != nil {
		onOrder, err = s.onOrder.OpenOrderQty(ctx, workspaceID)
		if err != nil {
			return nil, err
		}
	}

	rows := make([]ReplenishmentRow, 0, len(products))
	for _, p := range products {
		stats := computeDemand(outflows[p.ID], window)
		safety := safetyStock(stats.StdDev, p.LeadTimeDays, review)
		rop := reorderPoint(safety, stats.AvgDaily, p.LeadTimeDays)
		target := safety + stats.AvgDaily*float64(p.LeadTimeDays+review)
		available := p.QuantityBox
		open := onOrder[p.ID]
		rows = append(rows, ReplenishmentRow{
			SKU:            p.SKU,
			Name:           p.Name,
			AvgDailyDemand: stats.AvgDaily,
			DemandStdDev:   stats.StdDev,
			LeadTimeDays:   p.LeadTimeDays,
			SafetyStock:    safety,
			ReorderPoint:   rop,
			Available:      available,
			OnOrder:        open,
			CasePack:       p.PcsPerBox,
			SuggestedQty:   suggestedOrderQty(target, float64(available), float64(open), p.PcsPerBox),
			DaysOfCover:    daysOfCover(float64(available), stats.AvgDaily),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return s.collator.CompareString(rows[i].SKU, rows[j].SKU) < 0
	})
	return rows, nil
}

// ABC classifies SKUs by revenue contribution using the 80/95 Pareto rule.
// Revenue is window outflow quantity priced at the current box price.
func (s *Service) ABC(ctx context.Context, workspaceID string, filters Filters) ([]ABCRow, error) {
	products, err := s.products(ctx, workspaceID, filters)
	if err != nil {
		return nil, err
	}
	window := filters.WindowDays
	if window <= 0 {
		window = defaultDemandWindowDays
	}
	outflows, err := s.source.OutboundSince(ctx, workspaceID, s.now().AddDate(0, 0, -window))
	if err != nil {
		return nil, err
	}

	rows := make([]ABCRow, 0, len(products))
	var total float64
	for _, p := range products {
		var qty float64
		for _, day := range outflows[p.ID] {
			qty += day.Qty
		}
		revenue := qty * p.PricePerBox
		total += revenue
		rows = append(rows, ABCRow{SKU: p.SKU, Name: p.Name, Revenue: revenue})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Revenue != rows[j].Revenue {
			return rows[i].Revenue > rows[j].Revenue
		}
		return s.collator.CompareString(rows[i].SKU, rows[j].SKU) < 0
	})

	classify(rows, total)
	return rows, nil
}

// classify assigns Pareto classes over revenue-sorted rows: class A while
// cumulative share is within 80%, B within 95%, C beyond.
func classify(rows []ABCRow, total float64) {
	if total <= 0 {
		for i := range rows {
			rows[i].Class = ClassC
		}
		return
	}
	const epsilon = 1e-9
	var cumulative float64
	for i := range rows {
		share := rows[i].Revenue / total * 100
		cumulative += share
		rows[i].RevenueShare = share
		rows[i].CumulativeShare = cumulative
		switch {
		case cumulative <= 80+epsilon:
			rows[i].Class = ClassA
		case cumulative <= 95+epsilon:
			rows[i].Class = ClassB
		default:
			rows[i].Class = ClassC
		}
	}
}

// The following reports require transactional ledger data that is not
// modelled here. They return empty results by contract, never an error.

// Ledger is not implemented; it always returns an empty slice.
func (s *Service) Ledger(ctx context.Context, workspaceID string, _ Filters) ([]LedgerRow, error) {
	return []LedgerRow{}, nil
}

// CycleCount is not implemented; it always returns an empty slice.
func (s *Service) CycleCount(ctx context.Context, workspaceID string, _ Filters) ([]CycleCountRow, error) {
	return []CycleCountRow{}, nil
}

// COGS is not implemented; it always returns an empty slice.
func (s *Service) COGS(ctx context.Context, workspaceID string, _ Filters) ([]COGSRow, error) {
	return []COGSRow{}, nil
}

// Returns is not implemented; it always returns an empty slice.
func (s *Service) Returns(ctx context.Context, workspaceID string, _ Filters) ([]ReturnsRow, error) {
	return []ReturnsRow{}, nil
}
