package reports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stockpilot/stockpilot/internal/catalog"
)

type fakeSource struct {
	products []catalog.Product
	outflows map[string][]catalog.DailyOutflow
}

func (f *fakeSource) ListProducts(_ context.Context, _ string, _ catalog.ProductFilter) ([]catalog.Product, error) {
	return f.products, nil
}

func (f *fakeSource) OutboundSince(_ context.Context, _ string, _ time.Time) (map[string][]catalog.DailyOutflow, error) {
	return f.outflows, nil
}

type fakeOnOrder struct {
	open map[string]int
}

func (f *fakeOnOrder) OpenOrderQty(_ context.Context, _ string) (map[string]int, error) {
	return f.open, nil
}

func day(offset int) time.Time {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, offset)
}

func newTestService(src *fakeSource, onOrder *fakeOnOrder) *Service {
	var oo OnOrderSource
	if onOrder != nil {
		oo = onOrder
	}
	svc := NewService(src, oo, nil)
	svc.WithNow(func() time.Time { return day(30) })
	return svc
}

func TestABCEqualRevenueSplitsAtPareto(t *testing.T) {
	src := &fakeSource{outflows: map[string][]catalog.DailyOutflow{}}
	for _, id := range []string{"p1", "p2", "p3", "p4", "p5"} {
		src.products = append(src.products, catalog.Product{
			ID: id, SKU: "SKU-" + id, Name: "Item " + id, PricePerBox: 10,
		})
		src.outflows[id] = []catalog.DailyOutflow{{Day: day(1), Qty: 10}}
	}
	svc := newTestService(src, nil)

	rows, err := svc.ABC(context.Background(), "ws1", Filters{})
	require.NoError(t, err)
	require.Len(t, rows, 5)

	// Five equal contributors at 20% each: cumulative 80% closes class A,
	// the last row jumps past 95% straight to C.
	for i := 0; i < 4; i++ {
		require.Equal(t, ClassA, rows[i].Class, "row %d", i)
	}
	require.Equal(t, ClassC, rows[4].Class)
	require.InDelta(t, 100, rows[4].CumulativeShare, 1e-6)
}

func TestABCZeroRevenueAllC(t *testing.T) {
	src := &fakeSource{
		products: []catalog.Product{{ID: "p1", SKU: "A"}, {ID: "p2", SKU: "B"}},
		outflows: map[string][]catalog.DailyOutflow{},
	}
	svc := newTestService(src, nil)

	rows, err := svc.ABC(context.Background(), "ws1", Filters{})
	require.NoError(t, err)
	for _, row := range rows {
		require.Equal(t, ClassC, row.Class)
	}
}

func TestReplenishmentReorderPointMonotonic(t *testing.T) {
	src := &fakeSource{
		products: []catalog.Product{
			{ID: "slow", SKU: "SLOW", LeadTimeDays: 7, PcsPerBox: 1},
			{ID: "fast", SKU: "FAST", LeadTimeDays: 7, PcsPerBox: 1},
		},
		outflows: map[string][]catalog.DailyOutflow{},
	}
	for i := 0; i < 10; i++ {
		src.outflows["slow"] = append(src.outflows["slow"], catalog.DailyOutflow{Day: day(i), Qty: 2})
		src.outflows["fast"] = append(src.outflows["fast"], catalog.DailyOutflow{Day: day(i), Qty: 8})
	}
	svc := newTestService(src, nil)

	rows, err := svc.Replenishment(context.Background(), "ws1", Filters{WindowDays: 30})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byID := map[string]ReplenishmentRow{}
	for _, row := range rows {
		byID[row.SKU] = row
	}
	require.Greater(t, byID["FAST"].AvgDailyDemand, byID["SLOW"].AvgDailyDemand)
	require.Greater(t, byID["FAST"].ReorderPoint, byID["SLOW"].ReorderPoint)
	require.GreaterOrEqual(t, byID["FAST"].SuggestedQty, byID["SLOW"].SuggestedQty)
}

func TestReplenishmentReorderPointMonotonicInLeadTime(t *testing.T) {
	src := &fakeSource{
		products: []catalog.Product{
			{ID: "near", SKU: "NEAR", LeadTimeDays: 7, PcsPerBox: 1},
			{ID: "far", SKU: "FAR", LeadTimeDays: 21, PcsPerBox: 1},
		},
		outflows: map[string][]catalog.DailyOutflow{},
	}
	// Identical demand histories, so any reorder point difference
	// comes from lead time alone.
	for i := 0; i < 10; i++ {
		src.outflows["near"] = append(src.outflows["near"], catalog.DailyOutflow{Day: day(i), Qty: 4})
		src.outflows["far"] = append(src.outflows["far"], catalog.DailyOutflow{Day: day(i), Qty: 4})
	}
	svc := newTestService(src, nil)

	rows, err := svc.Replenishment(context.Background(), "ws1", Filters{WindowDays: 30})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byID := map[string]ReplenishmentRow{}
	for _, row := range rows {
		byID[row.SKU] = row
	}
	require.Equal(t, byID["NEAR"].AvgDailyDemand, byID["FAR"].AvgDailyDemand)
	require.GreaterOrEqual(t, byID["FAR"].SafetyStock, byID["NEAR"].SafetyStock)
	require.GreaterOrEqual(t, byID["FAR"].ReorderPoint, byID["NEAR"].ReorderPoint)
}

func TestReplenishmentSuggestedQtyRoundsToCasePack(t *testing.T) {
	src := &fakeSource{
		products: []catalog.Product{
			{ID: "p1", SKU: "CP-12", LeadTimeDays: 10, PcsPerBox: 12, QuantityBox: 1},
		},
		outflows: map[string][]catalog.DailyOutflow{
			"p1": {{Day: day(0), Qty: 30}},
		},
	}
	onOrder := &fakeOnOrder{open: map[string]int{"p1": 2}}
	svc := newTestService(src, onOrder)

	rows, err := svc.Replenishment(context.Background(), "ws1", Filters{WindowDays: 30})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	require.Equal(t, 2, row.OnOrder)
	require.Positive(t, row.SuggestedQty)
	require.Zero(t, row.SuggestedQty%12)
}

func TestReplenishmentDaysOfCoverSentinel(t *testing.T) {
	src := &fakeSource{
		products: []catalog.Product{
			{ID: "idle", SKU: "IDLE", QuantityBox: 5, PcsPerBox: 1},
		},
		outflows: map[string][]catalog.DailyOutflow{},
	}
	svc := newTestService(src, nil)

	rows, err := svc.Replenishment(context.Background(), "ws1", Filters{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, float64(-1), rows[0].DaysOfCover)
	require.Zero(t, rows[0].SuggestedQty)
}

func TestStockOnHandFlagsBelowMin(t *testing.T) {
	src := &fakeSource{
		products: []catalog.Product{
			{ID: "p1", SKU: "B-1", Name: "Bolt", QuantityBox: 1, MinLevelBox: 3, PcsPerBox: 10, PricePerBox: 2.5},
			{ID: "p2", SKU: "A-1", Name: "Anchor", QuantityBox: 9, MinLevelBox: 3, PcsPerBox: 1, PricePerBox: 1},
		},
	}
	svc := newTestService(src, nil)

	rows, err := svc.StockOnHand(context.Background(), "ws1", Filters{})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// Sorted by name.
	require.Equal(t, "Anchor", rows[0].Name)
	require.False(t, rows[0].BelowMin)
	require.True(t, rows[1].BelowMin)
	require.Equal(t, 10, rows[1].QtyOnHand)
	require.InDelta(t, 2.5, rows[1].TotalValue, 1e-9)
}

func TestAgingMarksDeadStock(t *testing.T) {
	src := &fakeSource{
		products: []catalog.Product{
			{ID: "live", SKU: "LIVE", Name: "Live", QuantityBox: 2, PcsPerBox: 1},
			{ID: "dead", SKU: "DEAD", Name: "Dead", QuantityBox: 2, PcsPerBox: 1},
			{ID: "gone", SKU: "GONE", Name: "Gone", QuantityBox: 0, PcsPerBox: 1},
		},
		outflows: map[string][]catalog.DailyOutflow{
			"live": {{Day: day(28), Qty: 1}},
		},
	}
	svc := newTestService(src, nil)

	rows, err := svc.Aging(context.Background(), "ws1", Filters{WindowDays: 30})
	require.NoError(t, err)

	byID := map[string]AgingRow{}
	for _, row := range rows {
		byID[row.SKU] = row
	}
	require.False(t, byID["LIVE"].DeadStock)
	require.Equal(t, 2, byID["LIVE"].DaysSinceOutflow)
	require.True(t, byID["DEAD"].DeadStock)
	// Out of stock with no movement is not dead stock, just empty.
	require.False(t, byID["GONE"].DeadStock)
}

func TestUnmodelledReportsReturnEmpty(t *testing.T) {
	svc := newTestService(&fakeSource{}, nil)
	ctx := context.Background()

	ledger, err := svc.Ledger(ctx, "ws1", Filters{})
	require.NoError(t, err)
	require.NotNil(t, ledger)
	require.Empty(t, ledger)

	counts, err := svc.CycleCount(ctx, "ws1", Filters{})
	require.NoError(t, err)
	require.NotNil(t, counts)
	require.Empty(t, counts)

	cogs, err := svc.COGS(ctx, "ws1", Filters{})
	require.NoError(t, err)
	require.NotNil(t, cogs)
	require.Empty(t, cogs)

	returns, err := svc.Returns(ctx, "ws1", Filters{})
	require.NoError(t, err)
	require.NotNil(t, returns)
	require.Empty(t, returns)
}
