package skywalking

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/abstracta/skywalking-copilot/internal/skywalking/domain"
)

const instrumentationName = "github.com/abstracta/skywalking-copilot/internal/skywalking"

// DefaultServiceLayer is the layer listed when none is configured.
const DefaultServiceLayer = "GENERAL"

// SummaryMetrics are the MQE expressions behind ServiceSummaryMetrics.
var SummaryMetrics = map[string]string{
	"cpm":       "avg(service_cpm)",
	"sla":       "avg(service_sla)/100",
	"resp_time": "avg(service_resp_time)",
	"apdex":     "avg(service_apdex)/10000",
}

type connState int

const (
	stateNew connState = iota
	stateConnected
	stateClosed
)

// Client exposes the SkyWalking operations used by the copilot over a single Transport.
// It is safe for concurrent use once connected.
type Client struct {
	baseURL   string
	layer     string
	transport Transport
	queries   *QueryBuilder
	logger    *zap.Logger
	tracer    trace.Tracer
	requests  metric.Int64Counter

	mu    sync.RWMutex
	state connState

	servicesGroup singleflight.Group
}

// Config configures a Client.
type Config struct {
	// BaseURL is the SkyWalking UI/OAP URL, used for dashboard links.
	BaseURL string
	// Layer restricts listed services; DefaultServiceLayer when empty.
	Layer string
}

// NewClient returns a Client over transport. Connect must be called before issuing queries.
func NewClient(cfg Config, transport Transport, logger *zap.Logger) (*Client, error) {
	if transport == nil {
		return nil, fmt.Errorf("skywalking: transport is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	qb, err := NewQueryBuilder()
	if err != nil {
		return nil, err
	}
	layer := cfg.Layer
	if layer == "" {
		layer = DefaultServiceLayer
	}
	meter := otel.Meter(instrumentationName)
	requests, err := meter.Int64Counter("skywalking.client.requests",
		metric.WithDescription("GraphQL requests issued to SkyWalking"))
	if err != nil {
		return nil, fmt.Errorf("skywalking: create counter: %w", err)
	}
	return &Client{
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		layer:     layer,
		transport: transport,
		queries:   qb,
		logger:    logger.Named("skywalking"),
		tracer:    otel.Tracer(instrumentationName),
		requests:  requests,
	}, nil
}

// Connect probes the backend and marks the client ready. Calling Connect on a closed client fails.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case stateConnected:
		return nil
	case stateClosed:
		return ErrNotConnected
	}
	if _, err := c.transport.Query(ctx, "query probe { __typename }"); err != nil {
		return fmt.Errorf("skywalking: connect: %w", err)
	}
	c.state = stateConnected
	c.logger.Info("connected", zap.String("url", c.baseURL))
	return nil
}

// Close releases the transport. Further operations return ErrNotConnected.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == stateClosed {
		return nil
	}
	c.state = stateClosed
	return c.transport.Close()
}

// Connected reports whether the client is between Connect and Close.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state == stateConnected
}

// query runs document under a span named after op.
func (c *Client) query(ctx context.Context, op, document string) (gjson.Result, error) {
	if !c.Connected() {
		return gjson.Result{}, ErrNotConnected
	}
	ctx, span := c.tracer.Start(ctx, "skywalking."+op)
	defer span.End()

	data, err := c.transport.Query(ctx, document)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	c.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	))
	return data, err
}

func (c *Client) queryNamed(ctx context.Context, op, name string, vars any) (gjson.Result, error) {
	doc, err := c.queries.Build(name, vars)
	if err != nil {
		return gjson.Result{}, err
	}
	return c.query(ctx, op, doc)
}

// FindServices lists the services of the configured layer. Concurrent calls share one request,
// which is not canceled with the context of the caller that started it.
func (c *Client) FindServices(ctx context.Context) ([]domain.Service, error) {
	v, err, _ := c.servicesGroup.Do("services", func() (any, error) {
		data, err := c.queryNamed(context.WithoutCancel(ctx), "list_services", queryListServices, map[string]any{"Layer": c.layer})
		if err != nil {
			return nil, err
		}
		return ParseServices(data)
	})
	if err != nil {
		return nil, fmt.Errorf("skywalking: list services: %w", err)
	}
	services := v.([]domain.Service)
	out := make([]domain.Service, len(services))
	copy(out, services)
	return out, nil
}

// FindServiceByName returns the service with the given name, or nil if the backend does not know it.
func (c *Client) FindServiceByName(ctx context.Context, name string) (*domain.Service, error) {
	data, err := c.queryNamed(ctx, "find_service", queryFindService, map[string]any{"Name": name})
	if err != nil {
		return nil, fmt.Errorf("skywalking: find service %q: %w", name, err)
	}
	v := data.Get("service")
	if !v.Exists() || v.Type == gjson.Null {
		return nil, nil
	}
	svc, err := ParseService(v)
	if err != nil {
		return nil, fmt.Errorf("skywalking: find service %q: %w", name, err)
	}
	return &svc, nil
}

// SearchServices matches query against service names and short names, case-insensitively.
// An exact match is returned alone; otherwise every service containing query is returned.
func (c *Client) SearchServices(ctx context.Context, query string) ([]domain.Service, error) {
	services, err := c.FindServices(ctx)
	if err != nil {
		return nil, err
	}
	return MatchServices(services, query), nil
}

// MatchServices implements the SearchServices matching rules over services.
func MatchServices(services []domain.Service, query string) []domain.Service {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var partial []domain.Service
	for _, s := range services {
		name, short := strings.ToLower(s.Name), strings.ToLower(s.ShortName)
		if name == q || short == q {
			return []domain.Service{s}
		}
		if strings.Contains(name, q) || strings.Contains(short, q) {
			partial = append(partial, s)
		}
	}
	return partial
}

// FindServicesMetrics evaluates every metric expression for every service in one batched request.
// Pairs whose expression fails are omitted from the result.
func (c *Client) FindServicesMetrics(ctx context.Context, services []domain.Service, metrics map[string]string, tr TimeRange) ([]domain.MetricSeries, error) {
	if len(services) == 0 || len(metrics) == 0 {
		return nil, nil
	}
	doc, aliases, err := c.queries.BuildMetricsQuery(services, metrics, tr)
	if err != nil {
		return nil, err
	}
	data, err := c.query(ctx, "services_metrics", doc)
	if err != nil {
		return nil, fmt.Errorf("skywalking: services metrics: %w", err)
	}
	series, err := ParseMetricsBatch(data, aliases, c.logger)
	if err != nil {
		return nil, fmt.Errorf("skywalking: services metrics: %w", err)
	}
	return series, nil
}

// FindServicesSummaryMetrics returns the headline metrics of each service, in services order.
func (c *Client) FindServicesSummaryMetrics(ctx context.Context, services []domain.Service, tr TimeRange) ([]domain.ServiceSummary, error) {
	series, err := c.FindServicesMetrics(ctx, services, SummaryMetrics, tr)
	if err != nil {
		return nil, err
	}
	return SummarizeMetrics(services, series), nil
}

// SummarizeMetrics folds aggregated metric series into one ServiceSummaryMetrics per service.
// Each metric takes the first point with data of its first series.
func SummarizeMetrics(services []domain.Service, series []domain.MetricSeries) []domain.ServiceSummary {
	builders := make(map[string]*domain.SummaryBuilder, len(services))
	for _, ms := range series {
		b, ok := builders[ms.Service]
		if !ok {
			b = &domain.SummaryBuilder{}
			builders[ms.Service] = b
		}
		if len(ms.Series) == 0 {
			continue
		}
		for _, v := range ms.Series[0].Values {
			if f, ok := v.Float(); ok {
				b.Set(ms.Metric, f)
				break
			}
		}
	}
	out := make([]domain.ServiceSummary, 0, len(services))
	for _, s := range services {
		sum := domain.ServiceSummary{Service: s}
		if b, ok := builders[s.ShortName]; ok {
			sum.Metrics = b.Build()
		}
		out = append(out, sum)
	}
	return out
}

// FindServicesTopology returns the call graph between services in the window.
func (c *Client) FindServicesTopology(ctx context.Context, services []domain.Service, tr TimeRange) (domain.Topology, error) {
	ids := make([]string, 0, len(services))
	for _, s := range services {
		ids = append(ids, s.ID)
	}
	data, err := c.queryNamed(ctx, "services_topology", queryServicesTopology, map[string]any{
		"ServiceIDs": ids,
		"Duration":   tr.Literal(),
	})
	if err != nil {
		return domain.Topology{}, fmt.Errorf("skywalking: topology: %w", err)
	}
	topo, err := require(data, "topology")
	if err != nil {
		return domain.Topology{}, fmt.Errorf("skywalking: topology: %w", err)
	}
	t, err := ParseTopology(topo)
	if err != nil {
		return domain.Topology{}, fmt.Errorf("skywalking: topology: %w", err)
	}
	return t, nil
}

// FindAlarms returns up to limit alarms triggered in the window.
func (c *Client) FindAlarms(ctx context.Context, tr TimeRange, limit int) ([]domain.Alarm, error) {
	data, err := c.queryNamed(ctx, "alarms", queryAlarms, map[string]any{
		"Duration": tr.Literal(),
		"Paging": Object{
			{Key: "pageNum", Value: 1},
			{Key: "pageSize", Value: limit},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("skywalking: alarms: %w", err)
	}
	alarms, err := ParseAlarms(data)
	if err != nil {
		return nil, fmt.Errorf("skywalking: alarms: %w", err)
	}
	return alarms, nil
}

// FindTraceSpans returns the call trees of a trace. An empty result means the trace is unknown or
// not indexed yet.
func (c *Client) FindTraceSpans(ctx context.Context, traceID string) ([]*domain.TraceSpan, error) {
	data, err := c.queryNamed(ctx, "trace", queryTrace, map[string]any{"TraceID": traceID})
	if err != nil {
		return nil, fmt.Errorf("skywalking: trace %s: %w", traceID, err)
	}
	spans, err := ParseTraceSpans(data)
	if err != nil {
		return nil, fmt.Errorf("skywalking: trace %s: %w", traceID, err)
	}
	return BuildSpanTree(spans), nil
}

// ServiceURL returns the dashboard URL of the service, or "" for a nil service.
func (c *Client) ServiceURL(s *domain.Service) string {
	if s == nil {
		return ""
	}
	return fmt.Sprintf("%s/dashboard/%s/Service/%s/General-Service", c.baseURL, s.PrimaryLayer(), s.ID)
}
