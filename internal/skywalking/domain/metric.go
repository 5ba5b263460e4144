package domain

import "strconv"

// MetricValue is one point of a series. Value is nil for buckets without data.
type MetricValue struct {
	ID    string
	Value *string
}

// Float parses the point value. ok is false when the point has no data or is not numeric.
func (v MetricValue) Float() (f float64, ok bool) {
	if v.Value == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(*v.Value, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// LabeledSeries is a single series of a metric result. Label is empty for unlabeled results.
type LabeledSeries struct {
	Label  string
	Values []MetricValue
}

// MetricSeries is the result of one metric expression evaluated for one service.
type MetricSeries struct {
	Service string
	Metric  string
	Series  []LabeledSeries
}

// ServiceSummaryMetrics holds the headline metrics of a service. Nil fields had no data.
type ServiceSummaryMetrics struct {
	CPM      *float64
	SLA      *float64
	RespTime *float64
	Apdex    *float64
}

// SummaryBuilder accumulates ServiceSummaryMetrics field by field.
type SummaryBuilder struct {
	m ServiceSummaryMetrics
}

// Set assigns the metric with the given summary name. Unknown names are ignored and reported false.
func (b *SummaryBuilder) Set(metric string, value float64) bool {
	v := value
	switch metric {
	case "cpm":
		b.m.CPM = &v
	case "sla":
		b.m.SLA = &v
	case "resp_time":
		b.m.RespTime = &v
	case "apdex":
		b.m.Apdex = &v
	default:
		return false
	}
	return true
}

// Build returns the accumulated metrics.
func (b *SummaryBuilder) Build() ServiceSummaryMetrics {
	return b.m
}

// ChartSeries is a series aligned to a chart x-axis. A nil value means no data for that point.
type ChartSeries struct {
	Label  string
	Values []*float64
}

// MetricChart is a set of series sharing one x-axis of timestamp ids.
type MetricChart struct {
	Service string
	Metric  string
	XAxis   []string
	Series  []ChartSeries
}

// ServiceSummary pairs a service with its headline metrics.
type ServiceSummary struct {
	Service Service
	Metrics ServiceSummaryMetrics
}
