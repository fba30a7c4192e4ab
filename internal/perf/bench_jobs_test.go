package perf

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	jobmetrics "github.com/stockpilot/stockpilot/internal/jobs"
	_ "github.com/stockpilot/stockpilot/internal/testing/guard"
)

func TestSyncJobThroughputAndReliability(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)

	// Simulate inventory pulls that hit the product cache and finish fast.
	for i := 0; i < 60; i++ {
		tracker := metrics.Track("qb.inventory_pull")
		time.Sleep(12 * time.Millisecond)
		if err := tracker.End(nil); err != nil {
			t.Fatalf("unexpected error ending pull tracker: %v", err)
		}
	}

	// Simulate full imports that page through QuickBooks but stay inside the
	// 2s budget.
	for i := 0; i < 15; i++ {
		tracker := metrics.Track("qb.import")
		time.Sleep(40 * time.Millisecond)
		if err := tracker.End(nil); err != nil {
			t.Fatalf("unexpected error ending import tracker: %v", err)
		}
	}

	// Inject a couple of failures to make sure the failure counter moves.
	for i := 0; i < 3; i++ {
		tracker := metrics.Track("qb.inventory_pull")
		time.Sleep(15 * time.Millisecond)
		if err := tracker.End(errors.New("timeout")); err == nil {
			t.Fatal("expected error to propagate")
		}
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	success := metricValue(t, families, "stockpilot_jobs_total", map[string]string{"job": "qb.inventory_pull", "status": "success"})
	failure := metricValue(t, families, "stockpilot_jobs_total", map[string]string{"job": "qb.inventory_pull", "status": "failure"})
	if success+failure == 0 {
		t.Fatal("no pull executions recorded")
	}
	ratio := success / (success + failure)
	if ratio < 0.9 {
		t.Fatalf("inventory pull success ratio too low: %f", ratio)
	}

	importDuration := histogramMean(t, families, "stockpilot_job_duration_seconds", map[string]string{"job": "qb.import"})
	if importDuration > 2.0 {
		t.Fatalf("import duration above budget: %f", importDuration)
	}

	pullDuration := histogramMean(t, families, "stockpilot_job_duration_seconds", map[string]string{"job": "qb.inventory_pull"})
	if pullDuration > 0.5 {
		t.Fatalf("pull duration above budget: %f", pullDuration)
	}
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				if fam.GetType() == dto.MetricType_COUNTER {
					return metric.GetCounter().GetValue()
				}
				if fam.GetType() == dto.MetricType_GAUGE {
					return metric.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func histogramMean(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				hist := metric.GetHistogram()
				if hist == nil || hist.GetSampleCount() == 0 {
					t.Fatalf("histogram %s missing samples", name)
				}
				return hist.GetSampleSum() / float64(hist.GetSampleCount())
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	for _, lp := range metric.GetLabel() {
		if val, ok := labels[lp.GetName()]; ok {
			if lp.GetValue() != val {
				return false
			}
		}
	}
	for key := range labels {
		found := false
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == key {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
