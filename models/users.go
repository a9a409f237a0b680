package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/courseloom/marketplace/utils"
)

type User struct {
	ID                    string `gorm:"primaryKey"`
	Email                 string
	Name                  string
	ClerkID               string         `gorm:"uniqueIndex"`
	StripeCustomerID      sql.NullString `gorm:"uniqueIndex"`
	CurrentSubscriptionID sql.NullString
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// UserUpsert reports the row an upsert converged on and whether this call
// inserted it.
type UserUpsert struct {
	User    *User
	Created bool
}

const upsertUserSQL = `
	INSERT INTO users (id, clerk_id, email, name, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT (clerk_id) DO NOTHING`

// UpsertUser inserts a user for a clerk id never seen before and returns the
// existing row otherwise, first-write-wins. The insert relies on the unique
// index on clerk_id, so concurrent calls for the same clerk id converge on a
// single row.
func (store *Store) UpsertUser(clerkID string, email string, name string) utils.Result[*UserUpsert] {
	now := time.Now().UTC()
	result := store.db.Connection.Exec(upsertUserSQL, uuid.NewString(), clerkID, email, name, now, now)
	if result.Error != nil {
		return utils.FailedResult[*UserUpsert](result.Error)
	}

	userResult := store.FetchUserByClerkID(clerkID)
	if userResult.Failure() {
		failed := utils.FailedResult[*UserUpsert](userResult.Error())
		failed.Retryable = userResult.IsRetryable()
		failed.Capture = userResult.IsCapturable()
		return failed
	}

	return utils.SuccessResult(&UserUpsert{
		User:    userResult.Value(),
		Created: result.RowsAffected == 1,
	})
}

func (store *Store) FetchUser(id string) utils.Result[*User] {
	var user User

	result := store.db.Connection.
		Table("users").
		Where("id = ?", id).
		Limit(1).
		Find(&user)

	if result.Error != nil {
		return failedUserResult(result.Error)
	}
	if user.ID == "" {
		return failedUserResult(gorm.ErrRecordNotFound)
	}

	return utils.SuccessResult(&user)
}

func (store *Store) FetchUserByClerkID(clerkID string) utils.Result[*User] {
	var user User

	result := store.db.Connection.
		Table("users").
		Where("clerk_id = ?", clerkID).
		Limit(1).
		Find(&user)

	if result.Error != nil {
		return failedUserResult(result.Error)
	}
	if user.ID == "" {
		return failedUserResult(gorm.ErrRecordNotFound)
	}

	return utils.SuccessResult(&user)
}

func (store *Store) FetchUserByStripeCustomerID(customerID string) utils.Result[*User] {
	var user User

	result := store.db.Connection.
		Table("users").
		Where("stripe_customer_id = ?", customerID).
		Limit(1).
		Find(&user)

	if result.Error != nil {
		return failedUserResult(result.Error)
	}
	if user.ID == "" {
		return failedUserResult(gorm.ErrRecordNotFound)
	}

	return utils.SuccessResult(&user)
}

const assignStripeCustomerSQL = `
	UPDATE users
	SET stripe_customer_id = ?, updated_at = ?
	WHERE id = ? AND stripe_customer_id IS NULL`

// AssignStripeCustomer records the payment-provider customer id created for a
// user at first checkout. An already assigned id is never overwritten.
func (store *Store) AssignStripeCustomer(userID string, customerID string) utils.Result[bool] {
	result := store.db.Connection.Exec(assignStripeCustomerSQL, customerID, time.Now().UTC(), userID)
	if result.Error != nil {
		return utils.FailedBoolResult(result.Error)
	}

	return utils.SuccessResult(result.RowsAffected == 1)
}

func failedUserResult(err error) utils.Result[*User] {
	result := utils.FailedResult[*User](err)

	if err.Error() == gorm.ErrRecordNotFound.Error() {
		result = result.
			NonRetryable().
			NonCapturable().
			AddErrorDetails("user_not_found", ERROR_NOT_FOUND)
	}

	return result
}
