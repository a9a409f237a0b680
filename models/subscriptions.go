package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/courseloom/marketplace/utils"
)

const (
	PlanTypeMonth = "month"
	PlanTypeYear  = "year"

	SubscriptionStatusActive   = "active"
	SubscriptionStatusCanceled = "canceled"
)

// Subscription mirrors the provider's subscription object. Status is the
// provider-defined string and PlanType matches the provider's price interval,
// so lifecycle events can be applied without translation.
type Subscription struct {
	ID                   string `gorm:"primaryKey"`
	UserID               string `gorm:"index"`
	PlanType             string
	CurrentPeriodStart   time.Time
	CurrentPeriodEnd     time.Time
	StripeSubscriptionID string `gorm:"uniqueIndex"`
	Status               string
	CancelAtPeriodEnd    bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type SubscriptionAttrs struct {
	UserID               string
	PlanType             string
	CurrentPeriodStart   time.Time
	CurrentPeriodEnd     time.Time
	StripeSubscriptionID string
	Status               string
	CancelAtPeriodEnd    bool
}

func (store *Store) FetchSubscription(id string) utils.Result[*Subscription] {
	var subscription Subscription

	result := store.db.Connection.
		Table("subscriptions").
		Where("id = ?", id).
		Limit(1).
		Find(&subscription)

	if result.Error != nil {
		return failedSubscriptionResult(result.Error)
	}
	if subscription.ID == "" {
		return failedSubscriptionResult(gorm.ErrRecordNotFound)
	}

	return utils.SuccessResult(&subscription)
}

const upsertSubscriptionSQL = `
	INSERT INTO subscriptions (id, user_id, plan_type, current_period_start, current_period_end, stripe_subscription_id, status, cancel_at_period_end, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (stripe_subscription_id) DO UPDATE SET
		plan_type = EXCLUDED.plan_type,
		current_period_start = EXCLUDED.current_period_start,
		current_period_end = EXCLUDED.current_period_end,
		status = EXCLUDED.status,
		cancel_at_period_end = EXCLUDED.cancel_at_period_end,
		updated_at = EXCLUDED.updated_at`

const pointUserSubscriptionSQL = `
	UPDATE users
	SET current_subscription_id = ?, updated_at = ?
	WHERE id = ?`

// UpsertSubscription reconciles a provider subscription event into the store
// and points the owning user at the row, all in one transaction. Events are
// keyed by the provider subscription id, so redelivery and out-of-order
// create/update pairs collapse into a single row.
func (store *Store) UpsertSubscription(attrs *SubscriptionAttrs) utils.Result[*Subscription] {
	var subscription Subscription
	now := time.Now().UTC()

	err := store.db.Connection.Transaction(func(tx *gorm.DB) error {
		result := tx.Exec(upsertSubscriptionSQL,
			uuid.NewString(), attrs.UserID, attrs.PlanType, attrs.CurrentPeriodStart, attrs.CurrentPeriodEnd,
			attrs.StripeSubscriptionID, attrs.Status, attrs.CancelAtPeriodEnd, now, now)
		if result.Error != nil {
			return result.Error
		}

		result = tx.Table("subscriptions").
			Where("stripe_subscription_id = ?", attrs.StripeSubscriptionID).
			Limit(1).
			Find(&subscription)
		if result.Error != nil {
			return result.Error
		}
		if subscription.ID == "" {
			return gorm.ErrRecordNotFound
		}

		return tx.Exec(pointUserSubscriptionSQL, subscription.ID, now, attrs.UserID).Error
	})

	if err != nil {
		return failedSubscriptionResult(err)
	}

	return utils.SuccessResult(&subscription)
}

const terminateSubscriptionSQL = `
	UPDATE subscriptions
	SET status = ?, updated_at = ?
	WHERE stripe_subscription_id = ?`

const clearUserSubscriptionSQL = `
	UPDATE users
	SET current_subscription_id = NULL, updated_at = ?
	WHERE id = ? AND current_subscription_id = ?`

// TerminateSubscription marks a deleted provider subscription and clears the
// owning user's pointer so no dangling access grant survives. The pointer is
// only cleared when it still references this subscription.
func (store *Store) TerminateSubscription(stripeSubscriptionID string, status string) utils.Result[*Subscription] {
	var subscription Subscription
	now := time.Now().UTC()

	err := store.db.Connection.Transaction(func(tx *gorm.DB) error {
		result := tx.Table("subscriptions").
			Where("stripe_subscription_id = ?", stripeSubscriptionID).
			Limit(1).
			Find(&subscription)
		if result.Error != nil {
			return result.Error
		}
		if subscription.ID == "" {
			return gorm.ErrRecordNotFound
		}

		if err := tx.Exec(terminateSubscriptionSQL, status, now, stripeSubscriptionID).Error; err != nil {
			return err
		}
		subscription.Status = status

		return tx.Exec(clearUserSubscriptionSQL, now, subscription.UserID, subscription.ID).Error
	})

	if err != nil {
		return failedSubscriptionResult(err)
	}

	return utils.SuccessResult(&subscription)
}

func failedSubscriptionResult(err error) utils.Result[*Subscription] {
	result := utils.FailedResult[*Subscription](err)

	if err.Error() == gorm.ErrRecordNotFound.Error() {
		result = result.
			NonRetryable().
			NonCapturable().
			AddErrorDetails("subscription_not_found", ERROR_NOT_FOUND)
	}

	return result
}
