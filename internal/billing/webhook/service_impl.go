// Package webhook routes verified payment-platform deliveries through the
// idempotency ledger to the handler for their event kind.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/checklanehq/checklane/internal/billing/adapters"
	"github.com/checklanehq/checklane/internal/billing/domain"
	"github.com/checklanehq/checklane/internal/billing/service"
	"github.com/checklanehq/checklane/internal/clock"
	referraldomain "github.com/checklanehq/checklane/internal/referral/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type serviceImpl struct {
	log         *zap.Logger
	clock       clock.Clock
	registry    *adapters.Registry
	records     domain.EventRecordRepository
	setupTokens *service.SetupTokenService
	referrals   referraldomain.Service
	node        *snowflake.Node
}

type Params struct {
	fx.In

	Logger      *zap.Logger
	Clock       clock.Clock
	Registry    *adapters.Registry
	Records     domain.EventRecordRepository
	SetupTokens *service.SetupTokenService
	Referrals   referraldomain.Service
	Node        *snowflake.Node
}

func NewService(p Params) domain.Service {
	return &serviceImpl{
		log:         p.Logger.Named("billing.webhook"),
		clock:       p.Clock,
		registry:    p.Registry,
		records:     p.Records,
		setupTokens: p.SetupTokens,
		referrals:   p.Referrals,
		node:        p.Node,
	}
}

// IngestWebhook verifies a raw delivery against the provider's signature
// scheme, parses it, and processes the resulting event exactly once.
// Verification always runs over the raw payload bytes before any decoding.
func (s *serviceImpl) IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error {
	adapter, ok := s.registry.Get(provider)
	if !ok {
		return domain.ErrProviderNotFound
	}

	if err := adapter.Verify(ctx, payload, headers); err != nil {
		eventsRejected.WithLabelValues(adapter.Provider()).Inc()
		s.log.Warn("webhook signature rejected",
			zap.String("provider", adapter.Provider()),
			zap.Error(err))
		return err
	}

	event, err := adapter.Parse(ctx, payload)
	if err != nil {
		if errors.Is(err, domain.ErrEventIgnored) {
			eventsIgnored.WithLabelValues(adapter.Provider()).Inc()
			return nil
		}
		eventsRejected.WithLabelValues(adapter.Provider()).Inc()
		return err
	}

	return s.processEvent(ctx, event)
}

// processEvent runs the read-handle-insert idempotency protocol. The handler
// only runs when no ledger record exists for the event's key; the unique index
// on the ledger closes the race window between concurrent deliveries, and the
// loser of that race reports success without re-running the handler.
func (s *serviceImpl) processEvent(ctx context.Context, event *domain.Event) error {
	key := event.IdempotencyKey()

	existing, err := s.records.FindByProviderEventID(ctx, nil, key)
	if err != nil {
		return fmt.Errorf("ledger lookup for %s: %w", key, err)
	}
	if existing != nil {
		eventsDuplicate.WithLabelValues(event.Provider, string(event.Kind)).Inc()
		s.log.Info("duplicate delivery settled from ledger",
			zap.String("idempotency_key", key))
		return nil
	}

	switch event.Kind {
	case domain.EventKindCheckoutCompleted:
		if event.CheckoutSession == nil {
			return domain.ErrInvalidEvent
		}
		err = s.setupTokens.IssueFromCheckout(ctx, event.CheckoutSession)
	case domain.EventKindInvoicePaid:
		if event.Invoice == nil {
			return domain.ErrInvalidEvent
		}
		err = s.referrals.HandleInvoicePaid(ctx, event.Invoice)
	default:
		return domain.ErrInvalidEvent
	}
	if err != nil {
		eventsFailed.WithLabelValues(event.Provider, string(event.Kind)).Inc()
		return fmt.Errorf("handle %s: %w", key, err)
	}

	record := &domain.EventRecord{
		ID:              s.node.Generate(),
		ProviderEventID: key,
		Kind:            event.Kind,
		Payload:         datatypes.JSON(event.RawPayload),
		ProcessedAt:     s.clock.Now(ctx),
	}
	if err := s.records.Insert(ctx, nil, record); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// A concurrent delivery committed its record first. Its handler
			// ran; report success so the platform stops retrying.
			eventsDuplicate.WithLabelValues(event.Provider, string(event.Kind)).Inc()
			return nil
		}
		return fmt.Errorf("record %s in ledger: %w", key, err)
	}

	eventsProcessed.WithLabelValues(event.Provider, string(event.Kind)).Inc()
	s.log.Info("webhook event processed",
		zap.String("idempotency_key", key),
		zap.String("kind", string(event.Kind)))
	return nil
}
