package reports

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStockOnHandCSVQuotesSpecialCharacters(t *testing.T) {
	rows := []StockOnHandRow{
		{SKU: "W-1", Name: `Widget, "Pro"`, QuantityBox: 4, QtyOnHand: 48, TotalValue: 120, MinLevelBox: 2},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteStockOnHandCSV(&buf, rows))

	require.Contains(t, buf.String(), `"Widget, ""Pro"""`)

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, `Widget, "Pro"`, records[1][1])
}

func TestReplenishmentCSVHeaderAndRowShape(t *testing.T) {
	rows := []ReplenishmentRow{
		{SKU: "A-1", Name: "Anchor", AvgDailyDemand: 1.5, LeadTimeDays: 7, SuggestedQty: 12, DaysOfCover: -1},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteReplenishmentCSV(&buf, rows))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, len(records[0]), len(records[1]))
	require.Equal(t, "sku", records[0][0])
	require.Equal(t, "-1.00", records[1][len(records[1])-1])
}

func TestABCCSVEmptyReportStillWritesHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteABCCSV(&buf, nil))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
}
