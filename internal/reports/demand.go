package reports

import (
	"math"
	"time"

	"github.com/stockpilot/stockpilot/internal/catalog"
)

// DemandStats summarises daily outbound demand for a product over a trailing
// window.
type DemandStats struct {
	AvgDaily float64
	StdDev   float64
	LastOut  time.Time
}

// computeDemand derives demand statistics from daily outflow rows. Days with
// no movement count as zero-demand days; the window length is the divisor.
func computeDemand(outflows []catalog.DailyOutflow, windowDays int) DemandStats {
	if windowDays <= 0 {
		windowDays = defaultDemandWindowDays
	}
	var stats DemandStats
	var total float64
	for _, day := range outflows {
		total += day.Qty
		if day.Day.After(stats.LastOut) {
			stats.LastOut = day.Day
		}
	}
	n := float64(windowDays)
	stats.AvgDaily = total / n

	var sumSq float64
	for _, day := range outflows {
		diff := day.Qty - stats.AvgDaily
		sumSq += diff * diff
	}
	// Days absent from the outflow rows contribute (0 - avg)^2 each.
	zeroDays := n - float64(len(outflows))
	if zeroDays > 0 {
		sumSq += zeroDays * stats.AvgDaily * stats.AvgDaily
	}
	stats.StdDev = math.Sqrt(sumSq / n)
	return stats
}

// safetyStock approximates a 95% service level assuming normally distributed
// demand over the exposure period.
func safetyStock(stdDev float64, leadTimeDays, reviewPeriodDays int) float64 {
	return serviceLevelZ * stdDev * math.Sqrt(float64(leadTimeDays+reviewPeriodDays))
}

// reorderPoint is the stock level at which replenishment should trigger.
func reorderPoint(safety, avgDaily float64, leadTimeDays int) float64 {
	return safety + avgDaily*float64(leadTimeDays)
}

// suggestedOrderQty rounds the shortfall up to whole case packs, floored at
// zero.
func suggestedOrderQty(target, available, onOrder float64, casePack int) int {
	if casePack <= 0 {
		casePack = 1
	}
	shortfall := target - available - onOrder
	if shortfall <= 0 {
		return 0
	}
	packs := math.Ceil(shortfall / float64(casePack))
	return int(packs) * casePack
}

// daysOfCover reports how long the available stock lasts at the average
// demand rate. Infinite cover is reported as -1.
func daysOfCover(available, avgDaily float64) float64 {
	if avgDaily <= 0 {
		return infiniteCover
	}
	return available / avgDaily
}

const (
	serviceLevelZ           = 1.65
	defaultDemandWindowDays = 90
	defaultReviewPeriodDays = 7
	infiniteCover           = -1
)
