package services

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/courseloom/marketplace/models"
)

func TestApply(t *testing.T) {
	now := time.Now()
	event := &SubscriptionEvent{
		StripeSubscriptionID: "sub_stripe_1",
		CustomerID:           "cus_1",
		Status:               models.SubscriptionStatusActive,
		PlanInterval:         models.PlanTypeMonth,
		CurrentPeriodStart:   now,
		CurrentPeriodEnd:     now.Add(30 * 24 * time.Hour),
	}

	t.Run("should upsert the subscription and point the user at it", func(t *testing.T) {
		store, mock, cleanup := setupStore(t)
		defer cleanup()

		mock.ExpectQuery(fetchUserByStripeQuery).
			WithArgs("cus_1", 1).
			WillReturnRows(sqlmock.NewRows(userColumns).
				AddRow("user123", "ada@example.com", "Ada Lovelace", "clerk_1", "cus_1", nil, now, now))

		mock.ExpectBegin()
		mock.ExpectExec(upsertSubscriptionExec).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(fetchSubByStripeQuery).
			WithArgs("sub_stripe_1", 1).
			WillReturnRows(sqlmock.NewRows(subscriptionColumns).
				AddRow("sub123", "user123", models.PlanTypeMonth, now, now, "sub_stripe_1", models.SubscriptionStatusActive, false, now, now))
		mock.ExpectExec(pointUserSubscriptionExec).
			WithArgs("sub123", sqlmock.AnyArg(), "user123").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		result := NewSubscriptionSyncService(store, discardLogger()).Apply(event)

		assert.True(t, result.Success())
		assert.Equal(t, "sub123", result.Value().ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("should reject an event without a subscription reference", func(t *testing.T) {
		store, _, cleanup := setupStore(t)
		defer cleanup()

		result := NewSubscriptionSyncService(store, discardLogger()).Apply(&SubscriptionEvent{CustomerID: "cus_1"})

		assert.True(t, result.Failure())
		assert.Equal(t, ErrCodeIntegrityFault, result.ErrorCode())
		assert.False(t, result.IsRetryable())
	})

	t.Run("should return user_not_found for an unknown customer", func(t *testing.T) {
		store, mock, cleanup := setupStore(t)
		defer cleanup()

		mock.ExpectQuery(fetchUserByStripeQuery).
			WithArgs("cus_unknown", 1).
			WillReturnRows(sqlmock.NewRows(userColumns))

		result := NewSubscriptionSyncService(store, discardLogger()).Apply(&SubscriptionEvent{
			StripeSubscriptionID: "sub_stripe_1",
			CustomerID:           "cus_unknown",
		})

		assert.True(t, result.Failure())
		assert.Equal(t, ErrCodeUserNotFound, result.ErrorCode())
		assert.True(t, result.IsRetryable())
	})
}

func TestTerminate(t *testing.T) {
	now := time.Now()

	t.Run("should cancel the subscription and clear the user's pointer", func(t *testing.T) {
		store, mock, cleanup := setupStore(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectQuery(fetchSubByStripeQuery).
			WithArgs("sub_stripe_1", 1).
			WillReturnRows(sqlmock.NewRows(subscriptionColumns).
				AddRow("sub123", "user123", models.PlanTypeMonth, now, now, "sub_stripe_1", models.SubscriptionStatusActive, false, now, now))
		mock.ExpectExec(terminateSubscriptionExec).
			WithArgs(models.SubscriptionStatusCanceled, sqlmock.AnyArg(), "sub_stripe_1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(clearUserSubscriptionExec).
			WithArgs(sqlmock.AnyArg(), "user123", "sub123").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		result := NewSubscriptionSyncService(store, discardLogger()).Terminate("sub_stripe_1")

		assert.True(t, result.Success())
		assert.Equal(t, models.SubscriptionStatusCanceled, result.Value().Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("should return subscription_not_found for an unknown subscription", func(t *testing.T) {
		store, mock, cleanup := setupStore(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectQuery(fetchSubByStripeQuery).
			WithArgs("sub_unknown", 1).
			WillReturnRows(sqlmock.NewRows(subscriptionColumns))
		mock.ExpectRollback()

		result := NewSubscriptionSyncService(store, discardLogger()).Terminate("sub_unknown")

		assert.True(t, result.Failure())
		assert.Equal(t, ErrCodeSubscriptionNotFound, result.ErrorCode())
		assert.False(t, result.IsRetryable())
	})
}
