package tasks

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	metricsSummaryMessageConstant      = "run metrics"
	metricsGatherFailedMessageConstant = "unable to gather run metrics"
)

// logMetricsSummary logs one total per collected metric family at debug level. Histograms report
// their sample count.
func logMetricsSummary(logger *zap.Logger, gatherer prometheus.Gatherer) {
	if logger == nil || gatherer == nil || !logger.Core().Enabled(zap.DebugLevel) {
		return
	}
	families, gatherError := gatherer.Gather()
	if gatherError != nil {
		logger.Debug(metricsGatherFailedMessageConstant, zap.Error(gatherError))
		return
	}

	fields := make([]zap.Field, 0, len(families))
	for _, family := range families {
		total := 0.0
		for _, metric := range family.GetMetric() {
			if counter := metric.GetCounter(); counter != nil {
				total += counter.GetValue()
			}
			if histogram := metric.GetHistogram(); histogram != nil {
				total += float64(histogram.GetSampleCount())
			}
		}
		fields = append(fields, zap.Float64(family.GetName(), total))
	}
	logger.Debug(metricsSummaryMessageConstant, fields...)
}
