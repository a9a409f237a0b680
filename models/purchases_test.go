package models_test

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

var recordPurchaseExec = regexp.QuoteMeta(`
	INSERT INTO purchases (id, user_id, course_id, amount, purchase_date, stripe_purchase_id, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (stripe_purchase_id) DO NOTHING`)

var purchaseColumns = []string{"id", "user_id", "course_id", "amount", "purchase_date", "stripe_purchase_id", "created_at"}

func TestRecordPurchase(t *testing.T) {
	t.Run("should insert one purchase row", func(t *testing.T) {
		store, mock, cleanup := setupStore(t)
		defer cleanup()

		mock.ExpectExec(recordPurchaseExec).
			WithArgs(sqlmock.AnyArg(), "user123", "course1", int64(4999), sqlmock.AnyArg(), "cs_test_1", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		result := store.RecordPurchase("user123", "course1", 4999, "cs_test_1")

		assert.True(t, result.Success())
		assert.True(t, result.Value())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("should skip insertion for a duplicate transaction id", func(t *testing.T) {
		store, mock, cleanup := setupStore(t)
		defer cleanup()

		mock.ExpectExec(recordPurchaseExec).
			WithArgs(sqlmock.AnyArg(), "user123", "course1", int64(4999), sqlmock.AnyArg(), "cs_test_1", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 0))

		result := store.RecordPurchase("user123", "course1", 4999, "cs_test_1")

		assert.True(t, result.Success())
		assert.False(t, result.Value())
	})

	t.Run("should fail on database error", func(t *testing.T) {
		store, mock, cleanup := setupStore(t)
		defer cleanup()

		mock.ExpectExec(recordPurchaseExec).
			WillReturnError(errors.New("connection refused"))

		result := store.RecordPurchase("user123", "course1", 4999, "cs_test_1")

		assert.True(t, result.Failure())
		assert.True(t, result.IsRetryable())
	})
}

func TestFetchPurchase(t *testing.T) {
	t.Run("should return the purchase for a user and course", func(t *testing.T) {
		store, mock, cleanup := setupStore(t)
		defer cleanup()

		now := time.Now()
		rows := sqlmock.NewRows(purchaseColumns).
			AddRow("purchase1", "user123", "course1", int64(4999), now, "cs_test_1", now)
		mock.ExpectQuery(`SELECT (.+) FROM "purchases" WHERE user_id = \$1 AND course_id = \$2 (.*)LIMIT \$3`).
			WithArgs("user123", "course1", 1).
			WillReturnRows(rows)

		result := store.FetchPurchase("user123", "course1")

		assert.True(t, result.Success())
		assert.Equal(t, int64(4999), result.Value().Amount)
		assert.Equal(t, "cs_test_1", result.Value().StripePurchaseID)
	})

	t.Run("should return purchase_not_found when no row exists", func(t *testing.T) {
		store, mock, cleanup := setupStore(t)
		defer cleanup()

		mock.ExpectQuery(`SELECT (.+) FROM "purchases" WHERE user_id = \$1 AND course_id = \$2 (.*)LIMIT \$3`).
			WithArgs("user123", "course2", 1).
			WillReturnRows(sqlmock.NewRows(purchaseColumns))

		result := store.FetchPurchase("user123", "course2")

		assert.True(t, result.Failure())
		assert.Equal(t, "purchase_not_found", result.ErrorCode())
		assert.False(t, result.IsRetryable())
		assert.False(t, result.IsCapturable())
	})
}
