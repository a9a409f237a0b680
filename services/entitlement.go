package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/courseloom/marketplace/models"
	"github.com/courseloom/marketplace/utils"
)

// CheckoutCompletion is the reconciliation payload extracted from a verified
// checkout.session.completed event.
type CheckoutCompletion struct {
	SessionID   string
	CustomerID  string
	CourseID    string
	UserID      string
	AmountTotal int64
}

// EntitlementService turns verified checkout completions into purchase rows.
type EntitlementService struct {
	store    *models.Store
	notifier *Notifier
	logger   *slog.Logger
}

func NewEntitlementService(store *models.Store, notifier *Notifier, logger *slog.Logger) *EntitlementService {
	return &EntitlementService{
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

// RecordCheckoutCompleted writes one purchase for the completed session. The
// provider session id is the dedup key: redelivered events return success
// without a second row. The returned value reports whether a row was written.
func (s *EntitlementService) RecordCheckoutCompleted(ctx context.Context, completion *CheckoutCompletion) utils.Result[bool] {
	if completion.CourseID == "" || completion.CustomerID == "" {
		// The session was created without proper metadata or the provider
		// payload changed shape.
		return utils.FailedBoolResult(fmt.Errorf("completion event is missing courseId or customer")).
			NonRetryable().
			AddErrorDetails(ErrCodeIntegrityFault, "checkout session carries no course or customer reference")
	}

	userResult := s.store.FetchUserByStripeCustomerID(completion.CustomerID)
	if userResult.Failure() {
		result := failedResult[bool](userResult, ErrCodeUpstreamFailure, "Error resolving paying customer")
		// The completion may outrun the signup webhook, redelivery resolves
		// the race once the user row lands.
		result.Retryable = true
		return result
	}
	user := userResult.Value()

	if completion.UserID != "" && completion.UserID != user.ID {
		return utils.FailedBoolResult(fmt.Errorf("session metadata user does not match paying customer")).
			NonRetryable().
			AddErrorDetails(ErrCodeIntegrityFault, "session metadata user does not match paying customer")
	}

	insertResult := s.store.RecordPurchase(user.ID, completion.CourseID, completion.AmountTotal, completion.SessionID)
	if insertResult.Failure() {
		return failedResult[bool](insertResult, ErrCodeUpstreamFailure, "Error recording purchase")
	}

	if !insertResult.Value() {
		s.logger.Info("duplicate completion event ignored",
			slog.String("stripe_purchase_id", completion.SessionID),
		)
		return utils.SuccessResult(false)
	}

	s.logger.Info("purchase recorded",
		slog.String("user_id", user.ID),
		slog.String("course_id", completion.CourseID),
		slog.Int64("amount", completion.AmountTotal),
	)

	s.notifier.PurchaseRecorded(ctx, &models.Purchase{
		UserID:           user.ID,
		CourseID:         completion.CourseID,
		Amount:           completion.AmountTotal,
		PurchaseDate:     time.Now().UTC(),
		StripePurchaseID: completion.SessionID,
	})

	return utils.SuccessResult(true)
}
