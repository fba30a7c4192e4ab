package reports

import "time"

// Filters narrows report rows. Several reports accept filters but do not use
// them yet; callers should not assume filtering beyond what each report
// documents.
type Filters struct {
	GroupID          string
	CategoryID       string
	WindowDays       int
	ReviewPeriodDays int
	AsOf             time.Time
}

// StockOnHandRow is one product's stock position.
type StockOnHandRow struct {
	SKU         string  `json:"sku"`
	Name        string  `json:"name"`
	QuantityBox int     `json:"quantity_box"`
	QtyOnHand   int     `json:"qty_on_hand"`
	TotalValue  float64 `json:"total_value"`
	MinLevelBox int     `json:"min_level_box"`
	BelowMin    bool    `json:"below_min"`
}

// AgingRow describes how stale a product's stock is.
type AgingRow struct {
	SKU              string    `json:"sku"`
	Name             string    `json:"name"`
	QtyOnHand        int       `json:"qty_on_hand"`
	LastOutboundAt   time.Time `json:"last_outbound_at"`
	DaysSinceOutflow int       `json:"days_since_outflow"`
	DeadStock        bool      `json:"dead_stock"`
}

// ReplenishmentRow carries the reorder arithmetic for one product.
type ReplenishmentRow struct {
	SKU            string  `json:"sku"`
	Name           string  `json:"name"`
	AvgDailyDemand float64 `json:"avg_daily_demand"`
	DemandStdDev   float64 `json:"demand_std_dev"`
	LeadTimeDays   int     `json:"lead_time_days"`
	SafetyStock    float64 `json:"safety_stock"`
	ReorderPoint   float64 `json:"reorder_point"`
	Available      int     `json:"available"`
	OnOrder        int     `json:"on_order"`
	CasePack       int     `json:"case_pack"`
	SuggestedQty   int     `json:"suggested_qty"`
	DaysOfCover    float64 `json:"days_of_cover"`
}

// ABCClass is the Pareto revenue class of a SKU.
type ABCClass string

const (
	ClassA ABCClass = "A"
	ClassB ABCClass = "B"
	ClassC ABCClass = "C"
)

// ABCRow is one product's revenue contribution and class.
type ABCRow struct {
	SKU             string   `json:"sku"`
	Name            string   `json:"name"`
	Revenue         float64  `json:"revenue"`
	RevenueShare    float64  `json:"revenue_share"`
	CumulativeShare float64  `json:"cumulative_share"`
	Class           ABCClass `json:"class"`
}

// LedgerRow, CycleCountRow, COGSRow and ReturnsRow are placeholders for
// reports that need transactional data this service does not model yet. The
// corresponding report calls return empty slices rather than erroring.
type (
	LedgerRow     struct{}
	CycleCountRow struct{}
	COGSRow       struct{}
	ReturnsRow    struct{}
)
