// Package tracing adapts the observability hooks to OpenTelemetry.
//
// Hooks report an operation once it has finished, so each span is opened
// retroactively at completion time with its start backdated by the reported
// duration.
//
//	p, err := tracing.NewProvider(tracing.Config{Writer: os.Stderr})
//	defer p.Shutdown(ctx)
//	tracing.Install(p.Tracer())
package tracing

import (
	"context"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	cerrors "github.com/matzehuels/compgraph/pkg/errors"
	"github.com/matzehuels/compgraph/pkg/observability"
)

const DefaultServiceName = "compgraph"

// Config configures the span exporter.
type Config struct {
	// Writer receives spans as pretty-printed JSON.
	Writer io.Writer
	// ServiceName defaults to DefaultServiceName.
	ServiceName string
}

// Provider owns the tracer provider behind the hooks.
type Provider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewProvider builds a provider that writes spans synchronously to cfg.Writer.
func NewProvider(cfg Config) (*Provider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(cfg.Writer), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCodeInternal, err, "create stdout exporter")
	}
	name := cfg.ServiceName
	if name == "" {
		name = DefaultServiceName
	}
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", name))),
		sdktrace.WithSyncer(exporter),
	)
	return &Provider{provider: provider, tracer: provider.Tracer(name)}, nil
}

// Tracer returns the provider's tracer.
func (p *Provider) Tracer() trace.Tracer { return p.tracer }

// Shutdown flushes and stops the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.provider.Shutdown(ctx)
}

// Install registers hooks backed by tracer for exchange, store and cache events.
func Install(tracer trace.Tracer) *Hooks {
	h := &Hooks{tracer: tracer, now: time.Now}
	observability.SetExchangeHooks(h)
	observability.SetStoreHooks(h)
	observability.SetCacheHooks(h)
	return h
}

// Hooks turns hook calls into spans and span events.
type Hooks struct {
	tracer trace.Tracer
	now    func() time.Time
}

// NewHooks returns hooks backed by tracer without registering them.
func NewHooks(tracer trace.Tracer) *Hooks {
	return &Hooks{tracer: tracer, now: time.Now}
}

func (h *Hooks) span(ctx context.Context, name string, d time.Duration, err error, attrs ...attribute.KeyValue) {
	end := h.now()
	_, span := h.tracer.Start(ctx, name,
		trace.WithTimestamp(end.Add(-d)),
		trace.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, cerrors.UserMessage(err))
		if code := cerrors.GetCode(err); code != "" {
			span.SetAttributes(attribute.String("compgraph.error_code", string(code)))
		}
	}
	span.End(trace.WithTimestamp(end))
}

func (h *Hooks) OnExportStart(ctx context.Context, roots int) {
	trace.SpanFromContext(ctx).AddEvent("export.start", trace.WithAttributes(attribute.Int("compgraph.roots", roots)))
}

func (h *Hooks) OnExportComplete(ctx context.Context, nodes int, d time.Duration, err error) {
	h.span(ctx, "compgraph.export", d, err, attribute.Int("compgraph.nodes", nodes))
}

func (h *Hooks) OnImportStart(ctx context.Context, files int) {
	trace.SpanFromContext(ctx).AddEvent("import.start", trace.WithAttributes(attribute.Int("compgraph.files", files)))
}

func (h *Hooks) OnImportComplete(ctx context.Context, created, reused int, d time.Duration, err error) {
	h.span(ctx, "compgraph.import", d, err,
		attribute.Int("compgraph.nodes_created", created),
		attribute.Int("compgraph.nodes_reused", reused))
}

func (h *Hooks) OnLoad(ctx context.Context, id string, d time.Duration, err error) {
	h.span(ctx, "compgraph.store.load", d, err, attribute.String("compgraph.node", id))
}

func (h *Hooks) OnCommit(ctx context.Context, id string, version uint32, d time.Duration, err error) {
	h.span(ctx, "compgraph.store.commit", d, err,
		attribute.String("compgraph.node", id),
		attribute.Int64("compgraph.version", int64(version)))
}

func (h *Hooks) OnCacheHit(ctx context.Context, keyType string) {
	trace.SpanFromContext(ctx).AddEvent("cache.hit", trace.WithAttributes(attribute.String("compgraph.key_type", keyType)))
}

func (h *Hooks) OnCacheMiss(ctx context.Context, keyType string) {
	trace.SpanFromContext(ctx).AddEvent("cache.miss", trace.WithAttributes(attribute.String("compgraph.key_type", keyType)))
}

func (h *Hooks) OnCacheSet(ctx context.Context, keyType string, size int) {
	trace.SpanFromContext(ctx).AddEvent("cache.set", trace.WithAttributes(
		attribute.String("compgraph.key_type", keyType),
		attribute.Int("compgraph.size", size)))
}
