package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/abstracta/skywalking-copilot/internal/agent/domain"
	"github.com/abstracta/skywalking-copilot/internal/render"
	"github.com/abstracta/skywalking-copilot/internal/skywalking"
	swdomain "github.com/abstracta/skywalking-copilot/internal/skywalking/domain"
)

// Backend is the part of the SkyWalking client the commands use.
type Backend interface {
	FindServices(ctx context.Context) ([]swdomain.Service, error)
	FindServicesSummaryMetrics(ctx context.Context, services []swdomain.Service, tr skywalking.TimeRange) ([]swdomain.ServiceSummary, error)
	FindServicesTopology(ctx context.Context, services []swdomain.Service, tr skywalking.TimeRange) (swdomain.Topology, error)
	FindServicesMetrics(ctx context.Context, services []swdomain.Service, metrics map[string]string, tr skywalking.TimeRange) ([]swdomain.MetricSeries, error)
}

// Toolbox runs commands. Every command returns markdown meant to be shown to the user as is.
// Missing or ambiguous services and unknown metrics are reported in the returned text, not as errors.
type Toolbox struct {
	backend  Backend
	renderer *render.Renderer
	window   time.Duration
	now      func() time.Time
}

// NewToolbox returns a Toolbox whose commands look at the last window of data.
func NewToolbox(backend Backend, renderer *render.Renderer, window time.Duration) *Toolbox {
	return &Toolbox{backend: backend, renderer: renderer, window: window, now: time.Now}
}

// Specs describes the commands to the model.
func (t *Toolbox) Specs() []domain.ToolSpec {
	return Tools(t.window)
}

// Run executes cmd.
func (t *Toolbox) Run(ctx context.Context, cmd Command) (string, error) {
	switch cmd.Kind {
	case CommandServicesMetrics:
		return t.servicesMetrics(ctx)
	case CommandServicesTopology:
		return t.servicesTopology(ctx)
	case CommandMetricChart:
		return t.metricChart(ctx, cmd.MetricChart)
	}
	return "", fmt.Errorf("agent: %w %s", ErrUnknownCommand, cmd.Kind)
}

func (t *Toolbox) timeRange() skywalking.TimeRange {
	end := t.now().UTC()
	return skywalking.TimeRange{Start: end.Add(-t.window), End: end, Step: skywalking.StepMinute}
}

func (t *Toolbox) servicesMetrics(ctx context.Context) (string, error) {
	services, err := t.backend.FindServices(ctx)
	if err != nil {
		return "", err
	}
	summaries, err := t.backend.FindServicesSummaryMetrics(ctx, services, t.timeRange())
	if err != nil {
		return "", err
	}
	return t.renderer.ServicesMetrics(summaries)
}

func (t *Toolbox) servicesTopology(ctx context.Context) (string, error) {
	services, err := t.backend.FindServices(ctx)
	if err != nil {
		return "", err
	}
	topology, err := t.backend.FindServicesTopology(ctx, services, t.timeRange())
	if err != nil {
		return "", err
	}
	return t.renderer.Topology(topology)
}

func (t *Toolbox) metricChart(ctx context.Context, args MetricChartArgs) (string, error) {
	metric, ok := ChartMetrics[strings.ToLower(strings.TrimSpace(args.Metric))]
	if !ok {
		return fmt.Sprintf("I don't know the metric %q. Valid metrics are: %s.",
			args.Metric, strings.Join(ChartMetricIDs(), ", ")), nil
	}
	services, err := t.backend.FindServices(ctx)
	if err != nil {
		return "", err
	}
	matches := skywalking.MatchServices(services, args.Service)
	switch len(matches) {
	case 0:
		if len(services) == 0 {
			return "SkyWalking does not report any service yet.", nil
		}
		return fmt.Sprintf("I could not find a service named %q. Known services are: %s.",
			args.Service, serviceNames(services)), nil
	case 1:
	default:
		return fmt.Sprintf("Several services match %q: %s. Which one do you mean?",
			args.Service, serviceNames(matches)), nil
	}

	svc := matches[0]
	series, err := t.backend.FindServicesMetrics(ctx, matches, map[string]string{metric.ID: metric.Expression}, t.timeRange())
	if err != nil {
		return "", err
	}
	ms := swdomain.MetricSeries{Service: svc.ShortName, Metric: metric.ID}
	for _, s := range series {
		if s.Metric == metric.ID {
			ms = s
			break
		}
	}
	chart := skywalking.BuildChart(ms)
	chart.Service = svc.Name
	return t.renderer.MetricChart(metric.Title, chart)
}

func serviceNames(services []swdomain.Service) string {
	names := make([]string, len(services))
	for i, s := range services {
		names[i] = s.Name
	}
	return strings.Join(names, ", ")
}
