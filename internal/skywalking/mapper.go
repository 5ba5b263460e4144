package skywalking

import (
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/abstracta/skywalking-copilot/internal/skywalking/domain"
)

// require returns the member at path or ErrMalformedResponse when it is absent.
func require(obj gjson.Result, path string) (gjson.Result, error) {
	v := obj.Get(path)
	if !v.Exists() {
		return v, fmt.Errorf("%w: missing %q", ErrMalformedResponse, path)
	}
	return v, nil
}

func requireArray(obj gjson.Result, path string) ([]gjson.Result, error) {
	v, err := require(obj, path)
	if err != nil {
		return nil, err
	}
	if v.Type == gjson.Null {
		return nil, nil
	}
	if !v.IsArray() {
		return nil, fmt.Errorf("%w: %q is not a list", ErrMalformedResponse, path)
	}
	return v.Array(), nil
}

// nullableString returns nil for absent or null members.
func nullableString(v gjson.Result) *string {
	if !v.Exists() || v.Type == gjson.Null {
		return nil
	}
	s := v.String()
	return &s
}

// ParseService maps a Service object.
func ParseService(v gjson.Result) (domain.Service, error) {
	if !v.IsObject() {
		return domain.Service{}, fmt.Errorf("%w: service is not an object", ErrMalformedResponse)
	}
	id, err := require(v, "id")
	if err != nil {
		return domain.Service{}, err
	}
	name, err := require(v, "name")
	if err != nil {
		return domain.Service{}, err
	}
	svc := domain.Service{
		ID:        id.String(),
		Name:      name.String(),
		ShortName: v.Get("shortName").String(),
		Normal:    v.Get("normal").Bool(),
	}
	if svc.ShortName == "" {
		svc.ShortName = svc.Name
	}
	for _, l := range v.Get("layers").Array() {
		svc.Layers = append(svc.Layers, l.String())
	}
	return svc, nil
}

// ParseServices maps the "services" list of a listServices response.
func ParseServices(data gjson.Result) ([]domain.Service, error) {
	items, err := requireArray(data, "services")
	if err != nil {
		return nil, err
	}
	out := make([]domain.Service, 0, len(items))
	for _, item := range items {
		svc, err := ParseService(item)
		if err != nil {
			return nil, err
		}
		out = append(out, svc)
	}
	return out, nil
}

// ParseMetricsBatch maps a batched execExpression response. Each top-level key is an alias
// produced by BuildMetricsQuery; aliases resolves them to (service, metric). Aliases missing from
// the index are split on the first underscore. A sub-result carrying an error is logged and
// skipped; the remaining pairs are still returned, in response order.
func ParseMetricsBatch(data gjson.Result, aliases map[string]MetricAlias, logger *zap.Logger) ([]domain.MetricSeries, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		out      []domain.MetricSeries
		parseErr error
	)
	data.ForEach(func(key, value gjson.Result) bool {
		alias := key.String()
		target, ok := aliases[alias]
		if !ok {
			service, metric, found := strings.Cut(alias, "_")
			if !found {
				parseErr = fmt.Errorf("%w: unexpected alias %q", ErrMalformedResponse, alias)
				return false
			}
			target = MetricAlias{Service: service, Metric: metric}
		}
		if !value.IsObject() {
			parseErr = fmt.Errorf("%w: %q is not an object", ErrMalformedResponse, alias)
			return false
		}
		if e := value.Get("error"); e.Exists() && e.Type != gjson.Null && e.String() != "" {
			logger.Error("metric expression failed",
				zap.String("alias", alias),
				zap.String("service", target.Service),
				zap.String("metric", target.Metric),
				zap.String("error", e.String()))
			return true
		}
		results, err := requireArray(value, "results")
		if err != nil {
			parseErr = fmt.Errorf("%s: %w", alias, err)
			return false
		}
		ms := domain.MetricSeries{Service: target.Service, Metric: target.Metric}
		for _, r := range results {
			ms.Series = append(ms.Series, parseLabeledSeries(r))
		}
		out = append(out, ms)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return out, nil
}

func parseLabeledSeries(r gjson.Result) domain.LabeledSeries {
	labels := r.Get("metric.labels").Array()
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		parts = append(parts, l.Get("key").String()+l.Get("value").String())
	}
	values := r.Get("values").Array()
	s := domain.LabeledSeries{
		Label:  strings.Join(parts, ","),
		Values: make([]domain.MetricValue, 0, len(values)),
	}
	for _, v := range values {
		s.Values = append(s.Values, domain.MetricValue{
			ID:    v.Get("id").String(),
			Value: nullableString(v.Get("value")),
		})
	}
	return s
}

// ParseTopology maps a Topology object. The synthetic USER node is dropped; each remaining node gets
// a display id equal to its name, or {lower(type)}{index} when the name is empty or has non-word
// characters, where index is the position in the unfiltered node list. Calls touching a dropped node are dropped.
func ParseTopology(data gjson.Result) (domain.Topology, error) {
	nodes, err := requireArray(data, "nodes")
	if err != nil {
		return domain.Topology{}, err
	}
	calls, err := requireArray(data, "calls")
	if err != nil {
		return domain.Topology{}, err
	}

	var topo domain.Topology
	displayIDs := make(map[string]string, len(nodes))
	for i, n := range nodes {
		node := domain.TopologyNode{
			ID:   n.Get("id").String(),
			Name: n.Get("name").String(),
			Type: n.Get("type").String(),
		}
		if node.Type == domain.UserNodeType {
			continue
		}
		node.DisplayID = node.Name
		if node.DisplayID == "" || nonWord.MatchString(node.DisplayID) {
			prefix := strings.ToLower(node.Type)
			if prefix == "" {
				prefix = "node"
			}
			node.DisplayID = fmt.Sprintf("%s%d", prefix, i)
		}
		displayIDs[node.ID] = node.DisplayID
		topo.Nodes = append(topo.Nodes, node)
	}
	for _, c := range calls {
		source, ok := displayIDs[c.Get("source").String()]
		if !ok {
			continue
		}
		target, ok := displayIDs[c.Get("target").String()]
		if !ok {
			continue
		}
		topo.Edges = append(topo.Edges, domain.TopologyEdge{Source: source, Target: target})
	}
	return topo, nil
}

// ParseAlarms maps the getAlarm.msgs list.
func ParseAlarms(data gjson.Result) ([]domain.Alarm, error) {
	msgs, err := requireArray(data, "getAlarm.msgs")
	if err != nil {
		return nil, err
	}
	out := make([]domain.Alarm, 0, len(msgs))
	for _, m := range msgs {
		id, err := require(m, "id")
		if err != nil {
			return nil, err
		}
		alarm := domain.Alarm{ID: id.String(), Message: m.Get("message").String()}
		events, err := requireArray(m, "events")
		if err != nil {
			return nil, fmt.Errorf("alarm %s: %w", alarm.ID, err)
		}
		for _, e := range events {
			uuid, err := require(e, "uuid")
			if err != nil {
				return nil, fmt.Errorf("alarm %s: %w", alarm.ID, err)
			}
			service, err := require(e, "source.service")
			if err != nil {
				return nil, fmt.Errorf("alarm %s: %w", alarm.ID, err)
			}
			alarm.Events = append(alarm.Events, domain.AlarmEvent{
				UUID:      uuid.String(),
				AlarmID:   alarm.ID,
				Name:      e.Get("name").String(),
				Service:   service.String(),
				Type:      domain.AlarmType(e.Get("type").String()),
				StartTime: time.UnixMilli(e.Get("startTime").Int()),
				EndTime:   time.UnixMilli(e.Get("endTime").Int()),
				Message:   e.Get("message").String(),
			})
		}
		out = append(out, alarm)
	}
	return out, nil
}

// ParseTraceSpans maps the spans of a queryTrace response. A null trace (not indexed yet) maps to no spans.
func ParseTraceSpans(data gjson.Result) ([]*domain.TraceSpan, error) {
	trace, err := require(data, "trace")
	if err != nil {
		return nil, err
	}
	if trace.Type == gjson.Null {
		return nil, nil
	}
	items, err := requireArray(trace, "spans")
	if err != nil {
		return nil, err
	}
	out := make([]*domain.TraceSpan, 0, len(items))
	for _, s := range items {
		segmentID, err := require(s, "segmentId")
		if err != nil {
			return nil, err
		}
		spanID, err := require(s, "spanId")
		if err != nil {
			return nil, err
		}
		span := &domain.TraceSpan{
			TraceID:      s.Get("traceId").String(),
			SegmentID:    segmentID.String(),
			SpanID:       int(spanID.Int()),
			ParentSpanID: -1,
			ServiceCode:  s.Get("serviceCode").String(),
			Endpoint:     s.Get("endpointName").String(),
			Peer:         s.Get("peer").String(),
			Layer:        s.Get("layer").String(),
			Type:         domain.SpanType(s.Get("type").String()),
			StartTime:    s.Get("startTime").Int(),
			EndTime:      s.Get("endTime").Int(),
			IsError:      s.Get("isError").Bool(),
			Tags:         map[string]string{},
		}
		if p := s.Get("parentSpanId"); p.Exists() && p.Type != gjson.Null {
			span.ParentSpanID = int(p.Int())
		}
		for _, r := range s.Get("refs").Array() {
			span.Refs = append(span.Refs, domain.SpanRef{
				TraceID:         r.Get("traceId").String(),
				ParentSegmentID: r.Get("parentSegmentId").String(),
				ParentSpanID:    int(r.Get("parentSpanId").Int()),
				Type:            r.Get("type").String(),
			})
		}
		for _, t := range s.Get("tags").Array() {
			span.Tags[t.Get("key").String()] = t.Get("value").String()
		}
		out = append(out, span)
	}
	return out, nil
}
