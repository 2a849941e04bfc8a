package mcp

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for tool metrics
const meterName = "github.com/asif-nvc/mcp-chat-visualizer/mcp"

// Tool call outcomes recorded on the "outcome" attribute
const (
	OutcomeOK        = "ok"
	OutcomeSoftError = "soft_error"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// UnknownToolMetricName is the "tool" attribute of calls naming no
// registered tool
const UnknownToolMetricName = "unknown"

// toolMetrics holds the instruments recorded for every tools/call
type toolMetrics struct {
	calls    metric.Int64Counter
	duration metric.Float64Histogram
}

func newToolMetrics(mp metric.MeterProvider) (*toolMetrics, error) {
	meter := mp.Meter(meterName)

	calls, err := meter.Int64Counter("mcp.tool.calls",
		metric.WithDescription("Number of tool calls by tool and outcome."),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tool call counter: %w", err)
	}

	duration, err := meter.Float64Histogram("mcp.tool.duration",
		metric.WithDescription("Tool call latency."),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tool duration histogram: %w", err)
	}

	return &toolMetrics{calls: calls, duration: duration}, nil
}

func (m *toolMetrics) record(ctx context.Context, tool, outcome string, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("outcome", outcome),
	)
	m.calls.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
}
