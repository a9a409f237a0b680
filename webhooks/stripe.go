package webhooks

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	stripesdk "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/courseloom/marketplace/models"
	"github.com/courseloom/marketplace/services"
	"github.com/courseloom/marketplace/utils"
)

type EntitlementRecorder interface {
	RecordCheckoutCompleted(ctx context.Context, completion *services.CheckoutCompletion) utils.Result[bool]
}

type SubscriptionSyncer interface {
	Apply(event *services.SubscriptionEvent) utils.Result[*models.Subscription]
	Terminate(stripeSubscriptionID string) utils.Result[*models.Subscription]
}

// StripeHandler verifies and dispatches payment provider events. Payment and
// invoice lifecycle noise is acknowledged without processing, only checkout
// completion and subscription lifecycle events change state.
type StripeHandler struct {
	entitlements  EntitlementRecorder
	subscriptions SubscriptionSyncer
	secret        string
	logger        *slog.Logger
}

func NewStripeHandler(entitlements EntitlementRecorder, subscriptions SubscriptionSyncer, secret string, logger *slog.Logger) *StripeHandler {
	return &StripeHandler{
		entitlements:  entitlements,
		subscriptions: subscriptions,
		secret:        secret,
		logger:        logger.With(slog.String("handler", "stripe_webhook")),
	}
}

func (h *StripeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	payload, ok := readBody(w, r)
	if !ok {
		return
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), h.secret)
	if err != nil {
		h.logger.Warn("webhook signature verification failed", slog.String("error", err.Error()))
		respond(w, http.StatusBadRequest, "Webhook signature verification failed")
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		h.handleCheckoutCompleted(w, r, event)
	case "customer.subscription.created", "customer.subscription.updated":
		h.handleSubscriptionChanged(w, event)
	case "customer.subscription.deleted":
		h.handleSubscriptionDeleted(w, event)
	case "charge.succeeded", "charge.updated",
		"payment_intent.created", "payment_intent.succeeded",
		"payment_intent.payment_failed", "payment_intent.canceled",
		"payment_intent.requires_action",
		"invoice.payment_succeeded", "invoice.payment_failed",
		"customer.created", "customer.updated", "customer.deleted":
		respond(w, http.StatusOK, "OK")
	default:
		h.logger.Info("unhandled event type", slog.String("type", string(event.Type)))
		respond(w, http.StatusOK, "Event not handled")
	}
}

func (h *StripeHandler) handleCheckoutCompleted(w http.ResponseWriter, r *http.Request, event stripesdk.Event) {
	var session stripesdk.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		h.logger.Error("error unmarshaling checkout session", slog.String("error", err.Error()))
		respond(w, http.StatusBadRequest, "Malformed event payload")
		return
	}

	completion := &services.CheckoutCompletion{
		SessionID:   session.ID,
		CourseID:    session.Metadata["courseId"],
		UserID:      session.Metadata["userId"],
		AmountTotal: session.AmountTotal,
	}
	if session.Customer != nil {
		completion.CustomerID = session.Customer.ID
	}

	result := h.entitlements.RecordCheckoutCompleted(r.Context(), completion)
	if result.Failure() {
		h.fail(w, event, result)
		return
	}

	respond(w, http.StatusOK, "OK")
}

func (h *StripeHandler) handleSubscriptionChanged(w http.ResponseWriter, event stripesdk.Event) {
	var subscription stripesdk.Subscription
	if err := json.Unmarshal(event.Data.Raw, &subscription); err != nil {
		h.logger.Error("error unmarshaling subscription", slog.String("error", err.Error()))
		respond(w, http.StatusBadRequest, "Malformed event payload")
		return
	}

	syncEvent := &services.SubscriptionEvent{
		StripeSubscriptionID: subscription.ID,
		Status:               string(subscription.Status),
		CancelAtPeriodEnd:    subscription.CancelAtPeriodEnd,
	}
	if subscription.Customer != nil {
		syncEvent.CustomerID = subscription.Customer.ID
	}
	if subscription.Items != nil && len(subscription.Items.Data) > 0 {
		item := subscription.Items.Data[0]
		syncEvent.CurrentPeriodStart = time.Unix(item.CurrentPeriodStart, 0).UTC()
		syncEvent.CurrentPeriodEnd = time.Unix(item.CurrentPeriodEnd, 0).UTC()
		if item.Price != nil && item.Price.Recurring != nil {
			syncEvent.PlanInterval = string(item.Price.Recurring.Interval)
		}
	}

	result := h.subscriptions.Apply(syncEvent)
	if result.Failure() {
		h.fail(w, event, result)
		return
	}

	respond(w, http.StatusOK, "OK")
}

func (h *StripeHandler) handleSubscriptionDeleted(w http.ResponseWriter, event stripesdk.Event) {
	var subscription stripesdk.Subscription
	if err := json.Unmarshal(event.Data.Raw, &subscription); err != nil {
		h.logger.Error("error unmarshaling subscription", slog.String("error", err.Error()))
		respond(w, http.StatusBadRequest, "Malformed event payload")
		return
	}

	result := h.subscriptions.Terminate(subscription.ID)
	if result.Failure() {
		// Deletion of a subscription this service never saw is already the
		// desired end state.
		if result.ErrorCode() == services.ErrCodeSubscriptionNotFound {
			respond(w, http.StatusOK, "OK")
			return
		}
		h.fail(w, event, result)
		return
	}

	respond(w, http.StatusOK, "OK")
}

func (h *StripeHandler) fail(w http.ResponseWriter, event stripesdk.Event, result utils.AnyResult) {
	h.logger.Error("error processing webhook",
		slog.String("type", string(event.Type)),
		slog.String("event_id", event.ID),
		slog.String("error", result.Error().Error()),
	)
	if result.IsCapturable() {
		utils.CaptureErrorResultWithExtra(result, "webhook_event_id", event.ID)
	}

	respond(w, http.StatusInternalServerError, "Error processing webhook")
}
