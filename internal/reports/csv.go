package reports

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func writeCSV(w io.Writer, header []string, records [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(records); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// WriteStockOnHandCSV renders the stock-on-hand report as CSV.
func WriteStockOnHandCSV(w io.Writer, rows []StockOnHandRow) error {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			r.SKU,
			r.Name,
			strconv.Itoa(r.QuantityBox),
			strconv.Itoa(r.QtyOnHand),
			formatFloat(r.TotalValue),
			strconv.Itoa(r.MinLevelBox),
			strconv.FormatBool(r.BelowMin),
		})
	}
	return writeCSV(w, []string{"sku", "name", "quantity_box", "qty_on_hand", "total_value", "min_level_box", "below_min"}, records)
}

// WriteAgingCSV renders the stock aging report as CSV.
func WriteAgingCSV(w io.Writer, rows []AgingRow) error {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			r.SKU,
			r.Name,
			strconv.Itoa(r.QtyOnHand),
			formatDate(r.LastOutboundAt),
			strconv.Itoa(r.DaysSinceOutflow),
			strconv.FormatBool(r.DeadStock),
		})
	}
	return writeCSV(w, []string{"sku", "name", "qty_on_hand", "last_outbound_at", "days_since_outflow", "dead_stock"}, records)
}

// WriteReplenishmentCSV renders the replenishment report as CSV.
func WriteReplenishmentCSV(w io.Writer, rows []ReplenishmentRow) error {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			r.SKU,
			r.Name,
			formatFloat(r.AvgDailyDemand),
			formatFloat(r.DemandStdDev),
			strconv.Itoa(r.LeadTimeDays),
			formatFloat(r.SafetyStock),
			formatFloat(r.ReorderPoint),
			strconv.Itoa(r.Available),
			strconv.Itoa(r.OnOrder),
			strconv.Itoa(r.CasePack),
			strconv.Itoa(r.SuggestedQty),
			formatFloat(r.DaysOfCover),
		})
	}
	return writeCSV(w, []string{"sku", "name", "avg_daily_demand", "demand_std_dev", "lead_time_days", "safety_stock", "reorder_point", "available", "on_order", "case_pack", "suggested_qty", "days_of_cover"}, records)
}

// WriteABCCSV renders the ABC revenue classification as CSV.
func WriteABCCSV(w io.Writer, rows []ABCRow) error {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			r.SKU,
			r.Name,
			formatFloat(r.Revenue),
			formatFloat(r.RevenueShare),
			formatFloat(r.CumulativeShare),
			string(r.Class),
		})
	}
	return writeCSV(w, []string{"sku", "name", "revenue", "revenue_share", "cumulative_share", "class"}, records)
}
