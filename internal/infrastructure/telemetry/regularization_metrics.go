package telemetry

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when a metrics recorder is built without a meter
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// RegularizationMetrics records lifecycle command outcomes, optimistic
// concurrency retries, send batch results and the net balance of each
// calculated regularization.
type RegularizationMetrics struct {
	commandTotal     *Counter
	commandDuration  *Histogram
	concurrencyRetry *Counter
	documentsSent    *Counter
	documentsFailed  *Counter
	totalBalance     *Gauge
}

// NewRegularizationMetrics creates the regularization instruments on meter
func NewRegularizationMetrics(meter metric.Meter) (*RegularizationMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &RegularizationMetrics{}
	var err error
	if m.commandTotal, err = NewCounter(meter,
		"regularization_commands_total", "Lifecycle commands handled", "{command}"); err != nil {
		return nil, err
	}
	if m.commandDuration, err = NewDurationHistogram(meter,
		"regularization_command_duration_seconds", "Duration of lifecycle commands", CommandDurationBuckets); err != nil {
		return nil, err
	}
	if m.concurrencyRetry, err = NewCounter(meter,
		"regularization_concurrency_retries_total", "Saves retried after a concurrent write", "{retry}"); err != nil {
		return nil, err
	}
	if m.documentsSent, err = NewCounter(meter,
		"regularization_documents_sent_total", "Statements delivered to tenants", "{document}"); err != nil {
		return nil, err
	}
	if m.documentsFailed, err = NewCounter(meter,
		"regularization_documents_failed_total", "Statements that could not be delivered", "{document}"); err != nil {
		return nil, err
	}
	if m.totalBalance, err = NewGauge(meter,
		"regularization_total_balance_cents", "Net tenant balance of the last calculation", "{cent}"); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *RegularizationMetrics) RecordCommand(ctx context.Context, command string, changed bool, duration time.Duration) {
	m.commandTotal.Inc(ctx, AttrCommand.String(command), AttrChanged.Bool(changed))
	m.commandDuration.RecordDuration(ctx, duration, AttrCommand.String(command))
}

func (m *RegularizationMetrics) RecordConcurrencyRetry(ctx context.Context, command string) {
	m.concurrencyRetry.Inc(ctx, AttrCommand.String(command))
}

func (m *RegularizationMetrics) RecordSendBatch(ctx context.Context, sent, failed int) {
	if sent > 0 {
		m.documentsSent.Add(ctx, int64(sent))
	}
	if failed > 0 {
		m.documentsFailed.Add(ctx, int64(failed))
	}
}

func (m *RegularizationMetrics) RecordTotalBalance(ctx context.Context, entityID string, fiscalYear int, totalBalanceCents int64) {
	m.totalBalance.Record(ctx, totalBalanceCents,
		AttrEntityID.String(entityID),
		AttrFiscalYear.String(strconv.Itoa(fiscalYear)),
	)
}
