// Package webhook verifies Stripe deliveries and routes them to reconciliation exactly once.
package webhook

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/happyinline/internal/clock"
	obscontext "github.com/smallbiznis/happyinline/internal/observability/context"
	"github.com/smallbiznis/happyinline/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/happyinline/internal/observability/metrics"
	"github.com/smallbiznis/happyinline/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/happyinline/internal/payment/domain"
	"github.com/smallbiznis/happyinline/pkg/telemetry/correlation"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	outcomeProcessed = "processed"
	outcomeDuplicate = "duplicate"
	outcomeIgnored   = "ignored"
	outcomeRejected  = "rejected"
	outcomeFailed    = "failed"
)

// Result describes what happened to one delivery.
type Result struct {
	EventID   string
	EventType string
	Handled   bool
	Duplicate bool
}

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       paymentdomain.Repository
	Verifier   paymentdomain.EventVerifier
	Handler    paymentdomain.EventHandler
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       paymentdomain.Repository
	verifier   paymentdomain.EventVerifier
	handler    paymentdomain.EventHandler
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.webhook"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		verifier:   p.Verifier,
		handler:    p.Handler,
		obsMetrics: p.ObsMetrics,
	}
}

// IngestWebhook verifies the raw delivery, records it in the event ledger and
// dispatches it to its handler unless an earlier delivery already completed.
// A handler error leaves the delivery unprocessed so the processor retries it.
func (s *Service) IngestWebhook(ctx context.Context, payload []byte, signatureHeader string) (Result, error) {
	ctx, _ = correlation.EnsureCorrelationID(ctx)
	ctx, span := otel.Tracer("happyinline/payment").Start(ctx, "payment.webhook.ingest")
	defer span.End()

	event, err := s.verifier.VerifyAndParse(payload, signatureHeader)
	if err != nil {
		span.SetStatus(codes.Error, "verification_failed")
		span.RecordError(tracing.SafeError(err))
		s.log.Warn("webhook rejected", zap.Error(tracing.SafeError(err)))
		s.obsMetrics.RecordWebhookEvent(ctx, "unknown", outcomeRejected)
		return Result{}, err
	}

	result := Result{EventID: event.EventID(), EventType: event.EventType()}
	ctx = obscontext.WithEventID(ctx, result.EventID)
	log := logger.WithContext(ctx, s.log).With(zap.String("event_type", result.EventType))
	span.SetAttributes(tracing.SafeAttributes(
		attribute.String("stripe.event_id", result.EventID),
		attribute.String("stripe.event_type", result.EventType),
	)...)

	if _, ok := event.(paymentdomain.Unhandled); ok {
		log.Info("webhook event type not handled")
		s.obsMetrics.RecordWebhookEvent(ctx, result.EventType, outcomeIgnored)
		return result, nil
	}

	now := s.clock.Now().UTC()
	received := paymentdomain.EventRecord{
		ID:              s.genID.Generate(),
		Provider:        paymentdomain.ProviderStripe,
		ProviderEventID: result.EventID,
		EventType:       result.EventType,
		Payload:         datatypes.JSON(payload),
		ReceivedAt:      now,
	}
	inserted, err := s.repo.InsertEvent(ctx, s.db, &received)
	if err != nil {
		return result, err
	}
	stored := &received
	if !inserted {
		stored, err = s.repo.FindEvent(ctx, s.db, paymentdomain.ProviderStripe, result.EventID)
		if err != nil {
			return result, err
		}
		if stored == nil {
			return result, paymentdomain.ErrInvalidEvent
		}
		if stored.ProcessedAt != nil {
			log.Info("webhook event already processed")
			s.obsMetrics.RecordWebhookEvent(ctx, result.EventType, outcomeDuplicate)
			result.Duplicate = true
			return result, nil
		}
	}

	if err := s.handler.Handle(ctx, event); err != nil {
		span.SetStatus(codes.Error, "handler_failed")
		span.RecordError(tracing.SafeError(err))
		log.Error("webhook handler failed", zap.Error(err))
		s.obsMetrics.RecordWebhookEvent(ctx, result.EventType, outcomeFailed)
		return result, err
	}

	if err := s.repo.MarkProcessed(ctx, s.db, stored.ID, s.clock.Now().UTC()); err != nil {
		return result, err
	}

	result.Handled = true
	log.Info("webhook event processed")
	s.obsMetrics.RecordWebhookEvent(ctx, result.EventType, outcomeProcessed)
	return result, nil
}

// IsSignatureError reports whether err should be answered with 400 rather than retried.
func IsSignatureError(err error) bool {
	return errors.Is(err, paymentdomain.ErrMissingSignature) ||
		errors.Is(err, paymentdomain.ErrWebhookSecretMissing) ||
		errors.Is(err, paymentdomain.ErrInvalidSignature) ||
		errors.Is(err, paymentdomain.ErrInvalidPayload) ||
		errors.Is(err, paymentdomain.ErrInvalidEvent)
}
