// Package payments owns the payment request lifecycle:
// pending -> approved|rejected, approved -> paid.
package payments

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/joseph-ayodele/buildhub-payments/internal/common"
	"github.com/joseph-ayodele/buildhub-payments/internal/entity"
	"github.com/joseph-ayodele/buildhub-payments/internal/gateway"
	"github.com/joseph-ayodele/buildhub-payments/internal/repository"
	"github.com/joseph-ayodele/buildhub-payments/internal/telemetry"
)

const scopeName = "github.com/joseph-ayodele/buildhub-payments/payments"

// ProjectResolver maps an opaque project reference to the canonical project.
type ProjectResolver interface {
	Resolve(ctx context.Context, ref int64) (*entity.Project, error)
}

// Notifier receives notifications after their transition has committed.
type Notifier interface {
	Notify(ctx context.Context, event *entity.NotificationEvent)
}

type Option func(*Service)

// WithMaxSinglePayment caps a single gateway initiation. Zero disables the cap.
func WithMaxSinglePayment(limit float64) Option {
	return func(s *Service) { s.maxSinglePayment = limit }
}

// WithStageShareGuard rejects stage requests above 1.5x the stage's typical share
// of a non-zero budget ceiling.
func WithStageShareGuard(enabled bool) Option {
	return func(s *Service) { s.enforceStageShare = enabled }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

type Service struct {
	store    repository.RequestStore
	resolver ProjectResolver
	gateway  gateway.Gateway
	notifier Notifier
	logger   *slog.Logger

	maxSinglePayment  float64
	enforceStageShare bool
	now               func() time.Time

	tracer      trace.Tracer
	transitions metric.Int64Counter
	failures    metric.Int64Counter
}

func NewService(store repository.RequestStore, resolver ProjectResolver, gw gateway.Gateway, notifier Notifier, logger *slog.Logger, opts ...Option) *Service {
	m := telemetry.Meter(scopeName)
	transitions, _ := m.Int64Counter("payments.transitions",
		metric.WithDescription("Payment request transitions committed"),
	)
	failures, _ := m.Int64Counter("payments.transition.errors",
		metric.WithDescription("Payment request transitions refused or failed"),
	)

	s := &Service{
		store:             store,
		resolver:          resolver,
		gateway:           gw,
		notifier:          notifier,
		logger:            logger,
		maxSinglePayment:  2000000,
		enforceStageShare: true,
		now:               func() time.Time { return time.Now().UTC() },
		tracer:            telemetry.Tracer(scopeName),
		transitions:       transitions,
		failures:          failures,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Get returns one request by id.
func (s *Service) Get(ctx context.Context, id int64) (*entity.PaymentRequest, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) start(ctx context.Context, op string, actor entity.Actor, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{
		attribute.String("payments.operation", op),
		attribute.String("payments.actor_role", string(actor.Role)),
	}, attrs...)
	return s.tracer.Start(ctx, "payments."+op, trace.WithAttributes(all...))
}

func (s *Service) finish(ctx context.Context, span trace.Span, op string, err error) {
	attrs := metric.WithAttributes(attribute.String("payments.operation", op))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.failures.Add(ctx, 1, metric.WithAttributes(
			attribute.String("payments.operation", op),
			attribute.String("payments.error_code", common.ErrorCode(err)),
		))
	} else {
		s.transitions.Add(ctx, 1, attrs)
	}
	span.End()
}

// effects collects the audit trail of one transition so the hook can write it
// in the same transaction and the caller can dispatch after commit.
type effects struct {
	log    *entity.VerificationLogEntry
	events []*entity.NotificationEvent
}

func (e *effects) hook(ctx context.Context, tx *repository.Tx, req *entity.PaymentRequest) error {
	if e.log != nil {
		e.log.RequestID = req.ID
		if err := tx.AppendLog(ctx, e.log); err != nil {
			return err
		}
	}
	for _, ev := range e.events {
		ev.RequestID = req.ID
		if err := tx.InsertNotification(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) dispatch(ctx context.Context, e *effects) {
	if s.notifier == nil {
		return
	}
	for _, ev := range e.events {
		s.notifier.Notify(ctx, ev)
	}
}
