package regularization

import (
	"context"
	"errors"
	"fmt"

	"github.com/rentflow/backend/internal/domain/regularization"
	"github.com/rentflow/backend/internal/domain/shared"
	"github.com/rentflow/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Failure reasons reported per tenant by the send loop
const (
	FailureMissingEmail   = "email manquant"
	FailureTenantNotFound = "locataire introuvable"
	FailureDelivery       = "erreur d'envoi"
)

// ErrSendInProgress is returned when another process is already sending the
// same regularization.
var ErrSendInProgress = shared.NewDomainError("SEND_IN_PROGRESS", "a send batch is already running for this regularization")

// SendResult summarises a send batch
type SendResult struct {
	Sent     int      `json:"sent"`
	Failed   int      `json:"failed"`
	Failures []string `json:"failures"`
}

func (r *SendResult) fail(name, reason string) {
	r.Failed++
	r.Failures = append(r.Failures, fmt.Sprintf("%s (%s)", name, reason))
}

// SendService delivers the regularization statements of a fiscal year to
// each tenant, one at a time, then marks the regularization as sent.
type SendService struct {
	commands *Service
	tenants  TenantFinder
	sender   DocumentSender
	metrics  MetricsRecorder
	locker   BatchLocker
	logger   *zap.Logger
}

// SendOption configures a SendService
type SendOption func(*SendService)

// WithBatchLocker guards each batch with locker
func WithBatchLocker(locker BatchLocker) SendOption {
	return func(s *SendService) {
		s.locker = locker
	}
}

// NewSendService creates a new send service
func NewSendService(
	commands *Service,
	tenants TenantFinder,
	sender DocumentSender,
	metrics MetricsRecorder,
	logger *zap.Logger,
	opts ...SendOption,
) *SendService {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &SendService{
		commands: commands,
		tenants:  tenants,
		sender:   sender,
		metrics:  metrics,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send processes every statement sequentially. Tenant-level problems are
// collected in the result. A tenant lookup error stops the batch and is
// returned together with the partial result. Cancelling ctx also stops the
// batch, but the partial result is returned without error since delivered
// documents stay delivered. MarkAsSent is recorded whenever at least one
// document went out.
func (s *SendService) Send(ctx context.Context, cmd LifecycleCommand) (*SendResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "charge_regularization", "send")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrEntityID, cmd.EntityID,
		telemetry.SpanAttrFiscalYear, cmd.FiscalYear,
	)

	if err := s.commands.validateCommand(cmd); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	agg, err := s.commands.Load(ctx, cmd.EntityID, cmd.FiscalYear)
	if err != nil {
		if !errors.Is(err, regularization.ErrRegularizationNotFound) {
			err = fmt.Errorf("failed to load charge regularization: %w", err)
		}
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !agg.IsCalculated() {
		telemetry.RecordError(span, regularization.ErrNotCalculated)
		return nil, regularization.ErrNotCalculated
	}

	logger := s.logger.With(
		zap.String("entity_id", cmd.EntityID),
		zap.Int("fiscal_year", cmd.FiscalYear),
	)

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, "send:"+agg.GetID())
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("failed to release send lock", zap.Error(err))
			}
		}()
	}

	result := &SendResult{Failures: []string{}}
	var batchErr error
	for _, stmt := range agg.Statements() {
		if ctx.Err() != nil {
			logger.Warn("send batch interrupted",
				zap.Int("sent", result.Sent),
				zap.Int("failed", result.Failed),
				zap.Error(ctx.Err()),
			)
			break
		}

		tenant, err := s.tenants.FindContact(ctx, stmt.TenantID)
		if err != nil {
			batchErr = fmt.Errorf("failed to find tenant %s: %w", stmt.TenantID, err)
			break
		}
		if tenant == nil {
			result.fail(stmt.TenantName, FailureTenantNotFound)
			continue
		}
		if !tenant.HasEmail() {
			result.fail(stmt.TenantName, FailureMissingEmail)
			continue
		}

		err = s.sender.Send(ctx, DeliveryRequest{
			EntityID:   cmd.EntityID,
			FiscalYear: cmd.FiscalYear,
			Tenant:     *tenant,
			Statement:  stmt,
		})
		if err != nil {
			logger.Warn("failed to deliver regularization statement",
				zap.String("lease_id", stmt.LeaseID),
				zap.String("tenant_id", stmt.TenantID),
				zap.Error(err),
			)
			result.fail(stmt.TenantName, FailureDelivery)
			continue
		}
		result.Sent++
	}

	if result.Sent > 0 {
		// delivered documents are not undone, so record them even when the
		// caller has given up waiting
		if _, err := s.commands.MarkAsSent(context.WithoutCancel(ctx), cmd, result.Sent); err != nil {
			batchErr = errors.Join(batchErr, fmt.Errorf("failed to mark regularization as sent: %w", err))
		}
	}

	s.metrics.RecordSendBatch(ctx, result.Sent, result.Failed)
	logger.Info("regularization send batch finished",
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
	)
	telemetry.SetAttributes(span, "sent", result.Sent, "failed", result.Failed)

	if batchErr != nil {
		telemetry.RecordError(span, batchErr)
		return result, batchErr
	}
	telemetry.SetOK(span)
	return result, nil
}
