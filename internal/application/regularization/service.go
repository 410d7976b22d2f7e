package regularization

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rentflow/backend/internal/domain/regularization"
	"github.com/rentflow/backend/internal/domain/shared"
	"github.com/rentflow/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const (
	CommandCalculate = "calculate"
	CommandApply     = "apply"
	CommandMarkSent  = "mark_sent"
	CommandSettle    = "settle"
	CommandRepost    = "repost"

	defaultSaveRetries = 3
)

// ErrPublishFailed is returned when events were appended to the stream but
// at least one subscriber failed to handle them. The command itself took
// effect; Repost delivers the stream again.
var ErrPublishFailed = errors.New("charge regularization events recorded but not published")

// LifecycleCommand addresses the regularization of one entity's fiscal year
type LifecycleCommand struct {
	EntityID   string `validate:"required"`
	UserID     string `validate:"required"`
	FiscalYear int    `validate:"required,gt=0"`
}

// CalculateResult is the outcome of a calculate command
type CalculateResult struct {
	Statements        []regularization.Statement `json:"statements"`
	TotalBalanceCents int64                      `json:"totalBalanceCents"`
	Changed           bool                       `json:"changed"`
}

// ServiceDeps holds the collaborators of Service
type ServiceDeps struct {
	Repository   regularization.ChargeRegularizationRepository
	Charges      AnnualChargesFinder
	Leases       LeaseFinder
	BillingLines BillingLineFinder
	Water        WaterDistributionFinder
	Calculator   *regularization.Calculator
	Publisher    shared.EventPublisher
	Metrics      MetricsRecorder
	Logger       *zap.Logger
}

// ServiceOptions tunes Service behaviour
type ServiceOptions struct {
	// FiscalYearPolicy is checked before any data is fetched
	FiscalYearPolicy regularization.FiscalYearPolicy
	// SaveRetries bounds load-decide-save attempts on concurrency conflicts
	SaveRetries int
	// AggregateOptions are applied to aggregates created for new streams
	AggregateOptions []regularization.Option
}

// Service handles the charge regularization commands. Each command loads
// the aggregate, runs one lifecycle operation and appends the resulting
// event, reloading and retrying from scratch when the stream moved on.
type Service struct {
	repo       regularization.ChargeRegularizationRepository
	charges    AnnualChargesFinder
	leases     LeaseFinder
	lines      BillingLineFinder
	water      WaterDistributionFinder
	calculator *regularization.Calculator
	publisher  shared.EventPublisher
	metrics    MetricsRecorder
	logger     *zap.Logger
	validate   *validator.Validate

	policy      regularization.FiscalYearPolicy
	saveRetries int
	aggOpts     []regularization.Option
}

// NewService creates a new charge regularization service
func NewService(deps ServiceDeps, opts ServiceOptions) *Service {
	if deps.Calculator == nil {
		deps.Calculator = regularization.NewCalculator()
	}
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if opts.SaveRetries <= 0 {
		opts.SaveRetries = defaultSaveRetries
	}
	if opts.FiscalYearPolicy == (regularization.FiscalYearPolicy{}) {
		opts.FiscalYearPolicy = regularization.DefaultFiscalYearPolicy()
	}
	aggOpts := append([]regularization.Option{
		regularization.WithFiscalYearPolicy(opts.FiscalYearPolicy),
	}, opts.AggregateOptions...)

	return &Service{
		repo:        deps.Repository,
		charges:     deps.Charges,
		leases:      deps.Leases,
		lines:       deps.BillingLines,
		water:       deps.Water,
		calculator:  deps.Calculator,
		publisher:   deps.Publisher,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		validate:    validator.New(),
		policy:      opts.FiscalYearPolicy,
		saveRetries: opts.SaveRetries,
		aggOpts:     aggOpts,
	}
}

// Calculate computes the statements of a fiscal year and records them
// unless they match the ones already recorded.
func (s *Service) Calculate(ctx context.Context, cmd LifecycleCommand) (*CalculateResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "charge_regularization", CommandCalculate)
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrEntityID, cmd.EntityID,
		telemetry.SpanAttrFiscalYear, cmd.FiscalYear,
	)

	if err := s.validateCommand(cmd); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.policy.Check(cmd.FiscalYear); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	input, err := s.gatherInput(ctx, cmd)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	statements, err := s.calculator.Calculate(input)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	agg, changed, err := s.execute(ctx, cmd, CommandCalculate, func(r *regularization.ChargeRegularization) (bool, error) {
		return r.Calculate(cmd.EntityID, cmd.UserID, cmd.FiscalYear, statements)
	})
	if err != nil && !errors.Is(err, ErrPublishFailed) {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.metrics.RecordTotalBalance(ctx, cmd.EntityID, cmd.FiscalYear, agg.TotalBalanceCents())
	telemetry.SetAttributes(span,
		"statements_count", len(statements),
		"changed", changed,
	)
	result := &CalculateResult{
		Statements:        agg.Statements(),
		TotalBalanceCents: agg.TotalBalanceCents(),
		Changed:           changed,
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return result, err
	}
	telemetry.SetOK(span)
	return result, nil
}

// Apply posts the calculated statements to tenant ledgers. When the ledger
// projection fails the applied event is still recorded: Apply returns true
// with ErrPublishFailed and the postings are made by Repost.
func (s *Service) Apply(ctx context.Context, cmd LifecycleCommand) (bool, error) {
	return s.transition(ctx, cmd, CommandApply, func(r *regularization.ChargeRegularization) (bool, error) {
		return r.ApplyRegularization(cmd.EntityID, cmd.UserID, cmd.FiscalYear)
	})
}

// MarkAsSent records that sentCount documents were delivered
func (s *Service) MarkAsSent(ctx context.Context, cmd LifecycleCommand, sentCount int) (bool, error) {
	if sentCount <= 0 {
		return false, shared.ErrInvalidInput.Withf("sent count must be positive, got %d", sentCount)
	}
	return s.transition(ctx, cmd, CommandMarkSent, func(r *regularization.ChargeRegularization) (bool, error) {
		return r.MarkAsSent(cmd.EntityID, cmd.UserID, cmd.FiscalYear, sentCount)
	})
}

// Settle closes the regularization cycle
func (s *Service) Settle(ctx context.Context, cmd LifecycleCommand) (bool, error) {
	return s.transition(ctx, cmd, CommandSettle, func(r *regularization.ChargeRegularization) (bool, error) {
		return r.MarkAsSettled(cmd.EntityID, cmd.UserID, cmd.FiscalYear)
	})
}

// Load returns the current regularization of a fiscal year
func (s *Service) Load(ctx context.Context, entityID string, fiscalYear int) (*regularization.ChargeRegularization, error) {
	return s.repo.Load(ctx, entityID, fiscalYear)
}

// Repost publishes every recorded event of a fiscal year again, in stream
// order, and returns how many were published. Subscribers deduplicate by
// event id and the ledger ignores entries it already holds, so reposting a
// healthy stream changes nothing.
func (s *Service) Repost(ctx context.Context, cmd LifecycleCommand) (int, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "charge_regularization", CommandRepost)
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrEntityID, cmd.EntityID,
		telemetry.SpanAttrFiscalYear, cmd.FiscalYear,
	)

	if err := s.validateCommand(cmd); err != nil {
		telemetry.RecordError(span, err)
		return 0, err
	}

	history, err := s.repo.History(ctx, cmd.EntityID, cmd.FiscalYear)
	if err != nil {
		err = fmt.Errorf("failed to load charge regularization history: %w", err)
		telemetry.RecordError(span, err)
		return 0, err
	}
	if len(history) == 0 {
		telemetry.RecordError(span, regularization.ErrRegularizationNotFound)
		return 0, regularization.ErrRegularizationNotFound
	}

	if err := s.publish(ctx, history); err != nil {
		telemetry.RecordError(span, err)
		return 0, err
	}

	s.logger.Info("charge regularization events reposted",
		zap.String("entity_id", cmd.EntityID),
		zap.Int("fiscal_year", cmd.FiscalYear),
		zap.String("user_id", cmd.UserID),
		zap.Int("events", len(history)),
	)
	telemetry.SetAttribute(span, "events", len(history))
	telemetry.SetOK(span)
	return len(history), nil
}

func (s *Service) transition(ctx context.Context, cmd LifecycleCommand, command string, decide func(*regularization.ChargeRegularization) (bool, error)) (bool, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "charge_regularization", command)
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrEntityID, cmd.EntityID,
		telemetry.SpanAttrFiscalYear, cmd.FiscalYear,
	)

	if err := s.validateCommand(cmd); err != nil {
		telemetry.RecordError(span, err)
		return false, err
	}

	_, changed, err := s.execute(ctx, cmd, command, decide)
	if err != nil {
		telemetry.RecordError(span, err)
		return changed, err
	}
	telemetry.SetAttribute(span, "changed", changed)
	telemetry.SetOK(span)
	return changed, nil
}

// execute runs load, decide and save, retrying on concurrency conflicts.
// A missing stream starts from a fresh aggregate, so transitions on a
// regularization that was never calculated are no-ops. A publish failure
// after a successful save returns the saved aggregate, changed and an
// ErrPublishFailed error.
func (s *Service) execute(ctx context.Context, cmd LifecycleCommand, command string, decide func(*regularization.ChargeRegularization) (bool, error)) (*regularization.ChargeRegularization, bool, error) {
	start := time.Now()
	logger := s.logger.With(
		zap.String("command", command),
		zap.String("entity_id", cmd.EntityID),
		zap.Int("fiscal_year", cmd.FiscalYear),
		zap.String("user_id", cmd.UserID),
	)

	for attempt := 1; ; attempt++ {
		agg, err := s.repo.Load(ctx, cmd.EntityID, cmd.FiscalYear)
		if errors.Is(err, regularization.ErrRegularizationNotFound) {
			agg = regularization.NewChargeRegularization(cmd.EntityID, cmd.FiscalYear, s.aggOpts...)
		} else if err != nil {
			return nil, false, fmt.Errorf("failed to load charge regularization: %w", err)
		}

		changed, err := decide(agg)
		if err != nil {
			return nil, false, err
		}
		if !changed {
			logger.Debug("charge regularization unchanged")
			s.metrics.RecordCommand(ctx, command, false, time.Since(start))
			return agg, false, nil
		}

		events := append([]shared.DomainEvent(nil), agg.GetDomainEvents()...)
		err = s.repo.Save(ctx, agg)
		if errors.Is(err, shared.ErrConcurrencyConflict) && attempt < s.saveRetries && ctx.Err() == nil {
			logger.Warn("concurrent update of charge regularization, retrying",
				zap.Int("attempt", attempt),
			)
			s.metrics.RecordConcurrencyRetry(ctx, command)
			continue
		}
		if err != nil {
			return nil, false, fmt.Errorf("failed to save charge regularization: %w", err)
		}

		s.metrics.RecordCommand(ctx, command, true, time.Since(start))
		logger.Info("charge regularization updated",
			zap.String("event_type", events[0].EventType()),
			zap.Int("version", agg.GetVersion()),
		)
		if err := s.publish(ctx, events); err != nil {
			logger.Error("charge regularization events not published, repost them",
				zap.String("event_type", events[0].EventType()),
				zap.Error(err),
			)
			return agg, true, err
		}
		return agg, true, nil
	}
}

// publish hands committed events to subscribers
func (s *Service) publish(ctx context.Context, events []shared.DomainEvent) error {
	if s.publisher == nil || len(events) == 0 {
		return nil
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

func (s *Service) gatherInput(ctx context.Context, cmd LifecycleCommand) (regularization.CalculationInput, error) {
	input := regularization.CalculationInput{
		EntityID:   cmd.EntityID,
		UserID:     cmd.UserID,
		FiscalYear: cmd.FiscalYear,
	}

	charges, err := s.charges.FindByEntityAndYear(ctx, cmd.EntityID, cmd.FiscalYear)
	if err != nil {
		return input, fmt.Errorf("failed to find annual charges: %w", err)
	}
	if charges == nil {
		return input, regularization.ErrNoChargesRecorded
	}
	input.Charges = charges

	leases, err := s.leases.FindOverlappingYear(ctx, cmd.EntityID, cmd.FiscalYear)
	if err != nil {
		return input, fmt.Errorf("failed to find leases: %w", err)
	}
	if len(leases) == 0 {
		return input, regularization.ErrNoLeasesFound
	}
	input.Leases = leases

	leaseIDs := make([]string, len(leases))
	for i, l := range leases {
		leaseIDs[i] = l.ID
	}
	lines, err := s.lines.FindByLeases(ctx, leaseIDs)
	if err != nil {
		return input, fmt.Errorf("failed to find billing lines: %w", err)
	}
	input.BillingLines = lines

	if s.water != nil {
		water, err := s.water.FindByEntityAndYear(ctx, cmd.EntityID, cmd.FiscalYear)
		if err != nil {
			return input, fmt.Errorf("failed to find water distribution: %w", err)
		}
		input.Water = water
	}

	return input, nil
}

func (s *Service) validateCommand(cmd LifecycleCommand) error {
	if err := s.validate.Struct(cmd); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return shared.ErrInvalidInput.Withf("invalid command: field %s failed on %s", verrs[0].Field(), verrs[0].Tag())
		}
		return shared.ErrInvalidInput.Withf("invalid command: %v", err)
	}
	return nil
}
