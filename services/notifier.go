package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/courseloom/marketplace/config/kafka"
	"github.com/courseloom/marketplace/models"
	"github.com/courseloom/marketplace/utils"
)

const (
	NotificationUserCreated      = "user.created"
	NotificationPurchaseRecorded = "purchase.recorded"
)

type notification struct {
	Type       string            `json:"type"`
	OccurredAt time.Time         `json:"occurred_at"`
	Payload    map[string]string `json:"payload"`
}

// Notifier publishes marketplace events for downstream consumers (the mailer
// picks up welcome and purchase-confirmation emails from this topic). It is
// never on the request critical path: a missing producer disables emission
// and produce failures are logged and captured, not surfaced.
type Notifier struct {
	producer kafka.MessageProducer
	logger   *slog.Logger
}

func NewNotifier(producer kafka.MessageProducer, logger *slog.Logger) *Notifier {
	return &Notifier{
		producer: producer,
		logger:   logger,
	}
}

func (n *Notifier) UserCreated(ctx context.Context, user *models.User) {
	n.produce(ctx, user.ID, &notification{
		Type:       NotificationUserCreated,
		OccurredAt: time.Now().UTC(),
		Payload: map[string]string{
			"user_id": user.ID,
			"email":   user.Email,
			"name":    user.Name,
		},
	})
}

func (n *Notifier) PurchaseRecorded(ctx context.Context, purchase *models.Purchase) {
	n.produce(ctx, purchase.UserID, &notification{
		Type:       NotificationPurchaseRecorded,
		OccurredAt: time.Now().UTC(),
		Payload: map[string]string{
			"user_id":            purchase.UserID,
			"course_id":          purchase.CourseID,
			"amount_cents":       strconv.FormatInt(purchase.Amount, 10),
			"stripe_purchase_id": purchase.StripePurchaseID,
		},
	})
}

func (n *Notifier) produce(ctx context.Context, key string, event *notification) {
	if n.producer == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		n.logger.Error("error while marshaling notification", slog.String("error", err.Error()))
		utils.CaptureError(err)
		return
	}

	produced := n.producer.Produce(ctx, &kafka.ProducerMessage{
		Key:   []byte(key),
		Value: payload,
	})
	if !produced {
		n.logger.Error("failed to produce notification", slog.String("type", event.Type))
	}
}
