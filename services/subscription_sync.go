package services

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/courseloom/marketplace/models"
	"github.com/courseloom/marketplace/utils"
)

// SubscriptionEvent is the reconciliation payload extracted from a verified
// customer.subscription.* event.
type SubscriptionEvent struct {
	StripeSubscriptionID string
	CustomerID           string
	Status               string
	PlanInterval         string
	CurrentPeriodStart   time.Time
	CurrentPeriodEnd     time.Time
	CancelAtPeriodEnd    bool
}

// SubscriptionSyncService reconciles provider subscription lifecycle events
// into the store.
type SubscriptionSyncService struct {
	store  *models.Store
	logger *slog.Logger
}

func NewSubscriptionSyncService(store *models.Store, logger *slog.Logger) *SubscriptionSyncService {
	return &SubscriptionSyncService{
		store:  store,
		logger: logger,
	}
}

// Apply upserts the subscription named by the event and points the owning
// user at it. Created and updated events share this path, redelivery and
// out-of-order pairs collapse on the provider subscription id.
func (s *SubscriptionSyncService) Apply(event *SubscriptionEvent) utils.Result[*models.Subscription] {
	if event.StripeSubscriptionID == "" || event.CustomerID == "" {
		return utils.FailedResult[*models.Subscription](fmt.Errorf("subscription event is missing subscription or customer id")).
			NonRetryable().
			AddErrorDetails(ErrCodeIntegrityFault, "subscription event carries no subscription or customer reference")
	}

	userResult := s.store.FetchUserByStripeCustomerID(event.CustomerID)
	if userResult.Failure() {
		result := failedResult[*models.Subscription](userResult, ErrCodeUpstreamFailure, "Error resolving subscribing customer")
		// The lifecycle event may outrun the signup webhook, redelivery
		// resolves the race once the user row lands.
		result.Retryable = true
		return result
	}

	upsertResult := s.store.UpsertSubscription(&models.SubscriptionAttrs{
		UserID:               userResult.Value().ID,
		PlanType:             event.PlanInterval,
		CurrentPeriodStart:   event.CurrentPeriodStart,
		CurrentPeriodEnd:     event.CurrentPeriodEnd,
		StripeSubscriptionID: event.StripeSubscriptionID,
		Status:               event.Status,
		CancelAtPeriodEnd:    event.CancelAtPeriodEnd,
	})
	if upsertResult.Failure() {
		return failedResult[*models.Subscription](upsertResult, ErrCodeUpstreamFailure, "Error upserting subscription")
	}

	s.logger.Info("subscription reconciled",
		slog.String("stripe_subscription_id", event.StripeSubscriptionID),
		slog.String("status", event.Status),
	)

	return upsertResult
}

// Terminate marks a deleted provider subscription as canceled and clears the
// owning user's pointer so no dangling access grant survives.
func (s *SubscriptionSyncService) Terminate(stripeSubscriptionID string) utils.Result[*models.Subscription] {
	if stripeSubscriptionID == "" {
		return utils.FailedResult[*models.Subscription](fmt.Errorf("subscription event is missing subscription id")).
			NonRetryable().
			AddErrorDetails(ErrCodeIntegrityFault, "subscription event carries no subscription reference")
	}

	result := s.store.TerminateSubscription(stripeSubscriptionID, models.SubscriptionStatusCanceled)
	if result.Failure() {
		return failedResult[*models.Subscription](result, ErrCodeUpstreamFailure, "Error terminating subscription")
	}

	s.logger.Info("subscription terminated",
		slog.String("stripe_subscription_id", stripeSubscriptionID),
	)

	return result
}
