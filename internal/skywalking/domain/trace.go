package domain

// SpanType is the SkyWalking span classification.
type SpanType string

const (
	SpanTypeEntry SpanType = "Entry"
	SpanTypeExit  SpanType = "Exit"
	SpanTypeLocal SpanType = "Local"
)

// Span layers with a dedicated display name.
const (
	LayerHTTP     = "Http"
	LayerDatabase = "Database"
	LayerMQ       = "MQ"
)

// SpanRef links the first span of a segment to the span that called it in another segment.
type SpanRef struct {
	TraceID         string
	ParentSegmentID string
	ParentSpanID    int
	Type            string
}

// TraceSpan is a span of a trace. Children is only populated by tree reconstruction.
type TraceSpan struct {
	TraceID   string
	SegmentID string
	SpanID    int
	// ParentSpanID is -1 for the first span of a segment.
	ParentSpanID int
	Refs         []SpanRef
	ServiceCode  string
	Endpoint     string
	Peer         string
	Layer        string
	Type         SpanType
	// StartTime and EndTime are epoch milliseconds.
	StartTime int64
	EndTime   int64
	IsError   bool
	Tags      map[string]string
	Children  []*TraceSpan
}

// Duration returns EndTime - StartTime in the units of the input.
func (s *TraceSpan) Duration() int64 {
	return s.EndTime - s.StartTime
}

// SpanRow is a flattened, display-ready span.
type SpanRow struct {
	Prefix   string
	Name     string
	Duration int64
}
