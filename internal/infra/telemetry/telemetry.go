package telemetry

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/linzell/authcore/internal/infra/config"
)

// Provider is the lifecycle handle for the configured telemetry exporters.
// HTTP metrics live in the transport middleware; this owns tracing only.
type Provider struct {
	tracer *TracerProvider
}

// Attach initializes distributed tracing when an OTLP endpoint is configured.
// Without an endpoint it returns an inert provider.
func Attach(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if log == nil {
		log = zap.NewNop()
	}

	p := &Provider{}

	if cfg.Telemetry.OTLPEndpoint != "" {
		tp, err := NewTracerProvider(ctx, cfg.Telemetry, log)
		if err != nil {
			return nil, fmt.Errorf("init tracer provider: %w", err)
		}
		p.tracer = tp
	}

	return p, nil
}

// Tracer exposes the underlying tracer provider, nil when tracing is disabled.
func (p *Provider) Tracer() *TracerProvider {
	if p == nil {
		return nil
	}
	return p.tracer
}

// Shutdown flushes pending spans. Safe on an inert provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tracer == nil {
		return nil
	}
	return p.tracer.Shutdown(ctx)
}
