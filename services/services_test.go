package services

import (
	"io"
	"log/slog"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/courseloom/marketplace/models"
	"github.com/courseloom/marketplace/tests"
)

func setupStore(t *testing.T) (*models.Store, sqlmock.Sqlmock, func()) {
	db, mock, cleanup := tests.SetupMockStore(t)
	return models.NewStore(db), mock, cleanup
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

var (
	fetchUserQuery         = `SELECT (.+) FROM "users" WHERE id = \$1 (.*)LIMIT \$2`
	fetchUserByClerkQuery  = `SELECT (.+) FROM "users" WHERE clerk_id = \$1 (.*)LIMIT \$2`
	fetchUserByStripeQuery = `SELECT (.+) FROM "users" WHERE stripe_customer_id = \$1 (.*)LIMIT \$2`
	fetchCourseQuery       = `SELECT (.+) FROM "courses" WHERE id = \$1 (.*)LIMIT \$2`
	fetchPurchaseQuery     = `SELECT (.+) FROM "purchases" WHERE user_id = \$1 AND course_id = \$2 (.*)LIMIT \$3`
	fetchSubscriptionQuery = `SELECT (.+) FROM "subscriptions" WHERE id = \$1 (.*)LIMIT \$2`
	fetchSubByStripeQuery  = `SELECT (.+) FROM "subscriptions" WHERE stripe_subscription_id = \$1 (.*)LIMIT \$2`

	upsertUserExec = regexp.QuoteMeta(`
	INSERT INTO users (id, clerk_id, email, name, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (clerk_id) DO NOTHING`)

	recordPurchaseExec = regexp.QuoteMeta(`
	INSERT INTO purchases (id, user_id, course_id, amount, purchase_date, stripe_purchase_id, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (stripe_purchase_id) DO NOTHING`)

	assignStripeCustomerExec = regexp.QuoteMeta(`
	UPDATE users
	SET stripe_customer_id = $1, updated_at = $2
	WHERE id = $3 AND stripe_customer_id IS NULL`)

	upsertSubscriptionExec = regexp.QuoteMeta(`
	INSERT INTO subscriptions (id, user_id, plan_type, current_period_start, current_period_end, stripe_subscription_id, status, cancel_at_period_end, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (stripe_subscription_id) DO UPDATE SET`)

	pointUserSubscriptionExec = regexp.QuoteMeta(`
	UPDATE users
	SET current_subscription_id = $1, updated_at = $2
	WHERE id = $3`)

	terminateSubscriptionExec = regexp.QuoteMeta(`
	UPDATE subscriptions
	SET status = $1, updated_at = $2
	WHERE stripe_subscription_id = $3`)

	clearUserSubscriptionExec = regexp.QuoteMeta(`
	UPDATE users
	SET current_subscription_id = NULL, updated_at = $1
	WHERE id = $2 AND current_subscription_id = $3`)
)

var (
	userColumns         = []string{"id", "email", "name", "clerk_id", "stripe_customer_id", "current_subscription_id", "created_at", "updated_at"}
	courseColumns       = []string{"id", "title", "description", "image_url", "price", "created_at", "updated_at"}
	purchaseColumns     = []string{"id", "user_id", "course_id", "amount", "purchase_date", "stripe_purchase_id", "created_at"}
	subscriptionColumns = []string{"id", "user_id", "plan_type", "current_period_start", "current_period_end", "stripe_subscription_id", "status", "cancel_at_period_end", "created_at", "updated_at"}
)
