package pricing

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/bakery-pos/internal/domain/catalog"
	"github.com/xenking/bakery-pos/internal/domain/discount"
	"github.com/xenking/bakery-pos/internal/domain/fault"
)

const instrumentationName = "github.com/xenking/bakery-pos/internal/domain/pricing"

// Input is a pricing request.
type Input struct {
	Lines     []catalog.LineRequest
	Discounts []discount.Request
}

// Engine runs the full pricing pipeline: lines, then discounts against the
// resulting subtotal, then assembly. It holds no mutable state and is safe
// for concurrent use.
type Engine struct {
	pricer    *catalog.Pricer
	evaluator *discount.Evaluator

	tracer   trace.Tracer
	runs     metric.Int64Counter
	duration metric.Float64Histogram
}

// EngineOptions configures telemetry for an Engine. Nil providers fall back
// to no-op implementations.
type EngineOptions struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// NewEngine creates an Engine.
func NewEngine(pricer *catalog.Pricer, evaluator *discount.Evaluator, opts EngineOptions) (*Engine, error) {
	if opts.TracerProvider == nil {
		opts.TracerProvider = tracenoop.NewTracerProvider()
	}
	if opts.MeterProvider == nil {
		opts.MeterProvider = metricnoop.NewMeterProvider()
	}

	meter := opts.MeterProvider.Meter(instrumentationName)
	runs, err := meter.Int64Counter("pricing.runs",
		metric.WithDescription("Pricing runs by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create runs counter")
	}
	duration, err := meter.Float64Histogram("pricing.duration",
		metric.WithDescription("Pricing run duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create duration histogram")
	}

	return &Engine{
		pricer:    pricer,
		evaluator: evaluator,
		tracer:    opts.TracerProvider.Tracer(instrumentationName),
		runs:      runs,
		duration:  duration,
	}, nil
}

// Price prices in. Request shape is validated before any lookup; the first
// failing line or discount, in input order, aborts the whole run.
func (e *Engine) Price(ctx context.Context, in Input) (_ *Result, rerr error) {
	ctx, span := e.tracer.Start(ctx, "pricing.Price", trace.WithAttributes(
		attribute.Int("pricing.lines", len(in.Lines)),
		attribute.Int("pricing.discounts", len(in.Discounts)),
	))
	start := time.Now()
	defer func() {
		outcome := outcomeOf(rerr)
		attrs := metric.WithAttributes(attribute.String("outcome", outcome))
		e.runs.Add(ctx, 1, attrs)
		e.duration.Record(ctx, time.Since(start).Seconds(), attrs)
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, outcome)
		}
		span.End()
	}()

	if err := Validate(in); err != nil {
		return nil, err
	}

	lines, err := e.pricer.Price(ctx, in.Lines)
	if err != nil {
		return nil, err
	}

	applied, err := e.evaluator.Evaluate(ctx, in.Discounts, Subtotal(lines))
	if err != nil {
		return nil, err
	}

	result := Assemble(lines, applied)
	span.SetAttributes(attribute.String("pricing.final_amount", result.FinalAmount.StringFixed(2)))
	return &result, nil
}

// Validate checks the shape of in without any lookups.
func Validate(in Input) error {
	if err := catalog.ValidateLines(in.Lines); err != nil {
		return err
	}
	for _, req := range in.Discounts {
		if err := req.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, fault.NotFound):
		return "not_found"
	case errors.Is(err, fault.Unprocessable):
		return "unprocessable"
	case errors.Is(err, fault.InvalidInput):
		return "invalid_input"
	default:
		return "error"
	}
}
