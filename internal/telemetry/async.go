package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/abstracta/skywalking-copilot/internal/telemetry/domain"
)

// emitTimeout is the max time allowed for a single async emit. Used by EmitAsync and by ShutdownDrainDuration.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long to wait after the HTTP server stops before shutting down OTel providers,
// so in-flight async emits have time to complete. Must be >= emitTimeout.
const ShutdownDrainDuration = emitTimeout

// EmitAsync runs Emit in a goroutine with a short timeout so the caller is not blocked.
// Use from request handlers for fire-and-forget, best-effort notifications; errors are logged.
//
// emitter and event may be nil; EmitAsync returns immediately without starting a goroutine.
// The goroutine uses context.WithoutCancel(ctx) with emitTimeout so request cancellation does not abort
// in-flight emit while trace context is kept.
func EmitAsync(emitter EventEmitter, ctx context.Context, event *domain.AlarmNotification) {
	if emitter == nil || event == nil {
		return
	}
	go func() {
		emitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), emitTimeout)
		defer cancel()
		if err := emitter.Emit(emitCtx, event); err != nil {
			zap.L().Named("telemetry").Warn("async emit failed",
				zap.String("alarm_id", event.AlarmID),
				zap.String("service", event.Service),
				zap.Error(err))
		}
	}()
}
