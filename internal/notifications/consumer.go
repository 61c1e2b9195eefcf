package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/monkelabs/monke-backend/pkg/db/models"
	"github.com/monkelabs/monke-backend/pkg/enums"
	"github.com/monkelabs/monke-backend/pkg/logger"
	"github.com/monkelabs/monke-backend/pkg/outbox"
	"github.com/monkelabs/monke-backend/pkg/outbox/idempotency"
	"github.com/monkelabs/monke-backend/pkg/outbox/payloads"
	"github.com/monkelabs/monke-backend/pkg/outbox/registry"
)

const merchantNotificationConsumer = "merchant-notifications"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

type merchantWalletResolver interface {
	MerchantWalletForDeal(ctx context.Context, dealID uuid.UUID) (string, error)
}

// Consumer watches domain events and notifies merchants when one of their
// deals locks a group. Member-facing notifications are written inside the lock
// transaction; this path covers the merchant side, fire-and-forget.
type Consumer struct {
	repo         repository
	merchants    merchantWalletResolver
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	decoders     *registry.DecoderRegistry
	logg         *logger.Logger
}

// NewConsumer builds a merchant notification consumer.
func NewConsumer(repo repository, merchants merchantWalletResolver, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if merchants == nil {
		return nil, fmt.Errorf("merchant resolver required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}

	decoders := registry.NewDecoderRegistry()
	decoders.Register(enums.EventGroupLocked, 1, func(payload json.RawMessage) (interface{}, error) {
		var event payloads.GroupLockedEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, err
		}
		return event, nil
	})

	return &Consumer{
		repo:         repo,
		merchants:    merchants,
		subscription: subscription,
		idempotency:  manager,
		decoders:     decoders,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	fields := map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	}
	logCtx := c.logg.WithFields(ctx, fields)

	if eventType != string(enums.EventGroupLocked) {
		c.logg.Info(logCtx, "skipping non-lock event")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, merchantNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	decoded, err := c.decoders.Decode(enums.EventGroupLocked, envelope.Version, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.idempotency.Delete(ctx, merchantNotificationConsumer, eventID)
		return processResult{nack: true}
	}
	payload, ok := decoded.(payloads.GroupLockedEvent)
	if !ok {
		c.logg.Error(logCtx, "unexpected payload type", fmt.Errorf("%T", decoded))
		_ = c.idempotency.Delete(ctx, merchantNotificationConsumer, eventID)
		return processResult{nack: true}
	}

	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"group_id": payload.GroupID.String(),
		"deal_id":  payload.DealID.String(),
	})

	if err := c.notifyMerchant(ctx, payload, logCtx); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Delete(ctx, merchantNotificationConsumer, eventID)
		return processResult{nack: true}
	}

	return processResult{ack: true}
}

func (c *Consumer) notifyMerchant(ctx context.Context, payload payloads.GroupLockedEvent, logCtx context.Context) error {
	wallet, err := c.merchants.MerchantWalletForDeal(ctx, payload.DealID)
	if err != nil {
		return err
	}
	if wallet == "" {
		return fmt.Errorf("no merchant wallet for deal %s", payload.DealID)
	}

	link := fmt.Sprintf("/groups/%s", payload.GroupID)
	notification := &models.Notification{
		Wallet:  wallet,
		Type:    enums.NotificationTypeGroupLocked,
		Title:   "Group locked on your deal",
		Message: fmt.Sprintf("A group of %d locked at %s%% off.", payload.ParticipantsCount, payload.FinalDiscountPercent.String()),
		Link:    stringPtr(link),
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "merchant notified of locked group")
	return nil
}

func stringPtr(value string) *string {
	return &value
}
