package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/courseloom/marketplace/utils"
)

// Purchase records a completed one-time checkout. Amount is in cents as
// captured at transaction time, which stays authoritative even when the
// course price changes later. StripePurchaseID is the natural dedup key for
// at-least-once webhook delivery.
type Purchase struct {
	ID               string `gorm:"primaryKey"`
	UserID           string `gorm:"index:idx_purchases_user_course"`
	CourseID         string `gorm:"index:idx_purchases_user_course"`
	Amount           int64
	PurchaseDate     time.Time
	StripePurchaseID string `gorm:"uniqueIndex"`
	CreatedAt        time.Time
}

const recordPurchaseSQL = `
	INSERT INTO purchases (id, user_id, course_id, amount, purchase_date, stripe_purchase_id, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (stripe_purchase_id) DO NOTHING`

// RecordPurchase writes one purchase row per provider transaction id. The
// returned value reports whether a row was inserted, a redelivered completion
// event returns false without touching the store.
func (store *Store) RecordPurchase(userID string, courseID string, amount int64, stripePurchaseID string) utils.Result[bool] {
	now := time.Now().UTC()
	result := store.db.Connection.Exec(recordPurchaseSQL, uuid.NewString(), userID, courseID, amount, now, stripePurchaseID, now)
	if result.Error != nil {
		return utils.FailedBoolResult(result.Error)
	}

	return utils.SuccessResult(result.RowsAffected == 1)
}

func (store *Store) FetchPurchase(userID string, courseID string) utils.Result[*Purchase] {
	var purchase Purchase

	result := store.db.Connection.
		Table("purchases").
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Limit(1).
		Find(&purchase)

	if result.Error != nil {
		return failedPurchaseResult(result.Error)
	}
	if purchase.ID == "" {
		return failedPurchaseResult(gorm.ErrRecordNotFound)
	}

	return utils.SuccessResult(&purchase)
}

func failedPurchaseResult(err error) utils.Result[*Purchase] {
	result := utils.FailedResult[*Purchase](err)

	if err.Error() == gorm.ErrRecordNotFound.Error() {
		result = result.
			NonRetryable().
			NonCapturable().
			AddErrorDetails("purchase_not_found", ERROR_NOT_FOUND)
	}

	return result
}
