// Package interaction summarizes what happened around a user interaction: the call tree of the
// requests it captured, or the alarms raised since the session last looked.
package interaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/abstracta/skywalking-copilot/internal/render"
	"github.com/abstracta/skywalking-copilot/internal/skywalking"
	"github.com/abstracta/skywalking-copilot/internal/skywalking/domain"
)

// Backend is the part of the SkyWalking client used to build summaries.
type Backend interface {
	FindServices(ctx context.Context) ([]domain.Service, error)
	FindServiceByName(ctx context.Context, name string) (*domain.Service, error)
	FindTraceSpans(ctx context.Context, traceID string) ([]*domain.TraceSpan, error)
	ServiceURL(s *domain.Service) string
}

// AlarmFinder returns the alarm occurrences a session has not seen yet.
type AlarmFinder interface {
	FindNewAlarms(ctx context.Context, sessionID string, tr skywalking.TimeRange, limit int) ([]domain.AlarmEvent, error)
}

// Config configures a Service.
type Config struct {
	// TracePollRetries is the number of extra attempts made while no captured trace is indexed.
	TracePollRetries int
	TracePollDelay   time.Duration
	AlarmWindow      time.Duration
	AlarmLimit       int
}

// Service builds interaction summaries.
type Service struct {
	backend  Backend
	alarms   AlarmFinder
	renderer *render.Renderer
	cfg      Config
	logger   *zap.Logger
	location *time.Location
}

// NewService returns an interaction Service.
func NewService(backend Backend, alarms AlarmFinder, renderer *render.Renderer, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		backend:  backend,
		alarms:   alarms,
		renderer: renderer,
		cfg:      cfg,
		logger:   logger.Named("interaction"),
		location: time.Local,
	}
}

var errTracesNotIndexed = errors.New("traces not indexed yet")

// SummarizeTraces renders the simplified call tree of the given traces. Traces are usually indexed a
// few seconds after the request, so fetching is retried while none is found. It returns "" when
// no trace shows up.
func (s *Service) SummarizeTraces(ctx context.Context, traceIDs []string) (string, error) {
	if len(traceIDs) == 0 {
		return "", nil
	}
	spans, err := backoff.Retry(ctx, func() ([]*domain.TraceSpan, error) {
		spans, err := s.fetchTraces(ctx, traceIDs)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if len(spans) == 0 {
			return nil, errTracesNotIndexed
		}
		return spans, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(s.cfg.TracePollDelay)),
		backoff.WithMaxTries(uint(s.cfg.TracePollRetries+1)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(_ error, next time.Duration) {
			s.logger.Debug("traces not indexed yet, retrying", zap.Strings("trace_ids", traceIDs), zap.Duration("in", next))
		}),
	)
	if errors.Is(err, errTracesNotIndexed) {
		s.logger.Info("traces not found", zap.Strings("trace_ids", traceIDs))
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("interaction: traces: %w", err)
	}

	service, err := s.backend.FindServiceByName(ctx, spans[0].ServiceCode)
	if err != nil {
		return "", fmt.Errorf("interaction: traces: %w", err)
	}
	return s.renderer.Traces(render.TraceSummary{
		ServiceURL: s.backend.ServiceURL(service),
		Rows:       skywalking.FlattenSpans(skywalking.SimplifySpans(spans)),
	})
}

// fetchTraces fetches every trace concurrently and concatenates their roots in request order.
func (s *Service) fetchTraces(ctx context.Context, traceIDs []string) ([]*domain.TraceSpan, error) {
	results := make([][]*domain.TraceSpan, len(traceIDs))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range traceIDs {
		g.Go(func() error {
			spans, err := s.backend.FindTraceSpans(gctx, id)
			if err != nil {
				return err
			}
			results[i] = spans
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var out []*domain.TraceSpan
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// SummarizeNewAlarms renders the alarm occurrences the session has not seen in the alarm window.
// It returns "" when there are none.
func (s *Service) SummarizeNewAlarms(ctx context.Context, sessionID string) (string, error) {
	events, err := s.alarms.FindNewAlarms(ctx, sessionID, skywalking.LastDuration(s.cfg.AlarmWindow), s.cfg.AlarmLimit)
	if err != nil {
		return "", fmt.Errorf("interaction: alarms: %w", err)
	}
	if len(events) == 0 {
		return "", nil
	}
	services, err := s.backend.FindServices(ctx)
	if err != nil {
		return "", fmt.Errorf("interaction: alarms: %w", err)
	}
	byName := make(map[string]*domain.Service, len(services))
	for i := range services {
		byName[services[i].Name] = &services[i]
	}

	rows := make([]render.AlarmRow, 0, len(events))
	for _, e := range events {
		rows = append(rows, render.AlarmRow{
			Start:      e.StartTime.In(s.location).Format("15:04"),
			End:        e.EndTime.In(s.location).Format("15:04"),
			Type:       string(e.Type),
			Service:    e.Service,
			ServiceURL: s.backend.ServiceURL(byName[e.Service]),
			Message:    e.Message,
		})
	}
	return s.renderer.Alarms(rows)
}
