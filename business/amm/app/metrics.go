package app

import (
	"context"

	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/prediction-amm/internal/apperror"
	"github.com/fd1az/prediction-amm/internal/asset"
)

const instrumentationName = "github.com/fd1az/prediction-amm/business/amm"

type engineMetrics struct {
	calls      metric.Int64Counter
	rejections metric.Int64Counter
	volume     metric.Float64Counter
	fees       metric.Float64Counter
	priceYes   metric.Float64Gauge
	sinkErrors metric.Int64Counter
}

func newEngineMetrics() *engineMetrics {
	meter := otel.Meter(instrumentationName)

	// instrument creation only fails on invalid names
	calls, _ := meter.Int64Counter("amm.calls",
		metric.WithDescription("Committed engine calls by operation"))
	rejections, _ := meter.Int64Counter("amm.rejections",
		metric.WithDescription("Rejected engine calls by operation and error code"))
	volume, _ := meter.Float64Counter("amm.volume",
		metric.WithDescription("Collateral moved by trades and liquidity calls"),
		metric.WithUnit("{collateral}"))
	fees, _ := meter.Float64Counter("amm.fees",
		metric.WithDescription("Fees charged"),
		metric.WithUnit("{collateral}"))
	priceYes, _ := meter.Float64Gauge("amm.price.yes",
		metric.WithDescription("Latest YES price per market"))
	sinkErrors, _ := meter.Int64Counter("amm.sink.errors",
		metric.WithDescription("Journal, publish and price cache failures after commit"))

	return &engineMetrics{
		calls:      calls,
		rejections: rejections,
		volume:     volume,
		fees:       fees,
		priceYes:   priceYes,
		sinkErrors: sinkErrors,
	}
}

func (m *engineMetrics) record(ctx context.Context, op string, err error) {
	if err == nil {
		m.calls.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
		return
	}
	m.rejections.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("code", string(apperror.GetCode(err))),
	))
}

func (m *engineMetrics) flow(ctx context.Context, op string, collateral, fee *uint256.Int) {
	attrs := metric.WithAttributes(attribute.String("op", op))
	m.volume.Add(ctx, asset.ToDecimal(collateral).InexactFloat64(), attrs)
	if fee != nil && !fee.IsZero() {
		m.fees.Add(ctx, asset.ToDecimal(fee).InexactFloat64(), attrs)
	}
}

func (m *engineMetrics) price(ctx context.Context, marketID uint64, yes *uint256.Int) {
	m.priceYes.Record(ctx, asset.ToDecimal(yes).InexactFloat64(),
		metric.WithAttributes(attribute.Int64("market.id", int64(marketID))))
}

func (m *engineMetrics) sinkError(ctx context.Context, sink string) {
	m.sinkErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("sink", sink)))
}
