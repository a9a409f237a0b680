package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/courseloom/marketplace/config/stripe"
	"github.com/courseloom/marketplace/models"
	"github.com/courseloom/marketplace/utils"
)

// CheckoutService opens provider-hosted checkout sessions for one-time course
// purchases.
type CheckoutService struct {
	store   *models.Store
	gateway stripe.Gateway
	limiter models.Limiter
	baseURL string
	logger  *slog.Logger
}

func NewCheckoutService(store *models.Store, gateway stripe.Gateway, limiter models.Limiter, baseURL string, logger *slog.Logger) *CheckoutService {
	return &CheckoutService{
		store:   store,
		gateway: gateway,
		limiter: limiter,
		baseURL: baseURL,
		logger:  logger,
	}
}

// CreateCheckoutSession returns the provider-hosted checkout URL for a course.
// The session embeds {courseId, userId} metadata so the completion webhook can
// be reconciled without a second lookup, and the price is converted to cents
// with round(price * 100) at this boundary only.
func (s *CheckoutService) CreateCheckoutSession(ctx context.Context, identity *Identity, courseID string) utils.Result[string] {
	if identity == nil || identity.ClerkID == "" {
		return unauthorizedResult[string]()
	}

	userResult := s.store.FetchUserByClerkID(identity.ClerkID)
	if userResult.Failure() {
		return failedResult[string](userResult, ErrCodeUpstreamFailure, "Error fetching user")
	}
	user := userResult.Value()

	courseResult := s.store.FetchCourse(courseID)
	if courseResult.Failure() {
		return failedResult[string](courseResult, ErrCodeUpstreamFailure, "Error fetching course")
	}
	course := courseResult.Value()

	decision, err := s.limiter.Allow(fmt.Sprintf("checkout:%s", user.ID))
	if err != nil {
		return utils.FailedResultWithCode[string](err, ErrCodeUpstreamFailure, "Error checking rate limit")
	}
	if !decision.Allowed {
		return utils.FailedResult[string](&RateLimitError{RetryAfter: decision.RetryAfter}).
			NonRetryable().
			NonCapturable().
			AddErrorDetails(ErrCodeRateLimitExceeded, "Rate limit exceeded")
	}

	customerResult := s.ensureStripeCustomer(ctx, user)
	if customerResult.Failure() {
		return failedResult[string](customerResult, ErrCodeUpstreamFailure, "Error creating payment customer")
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, &stripe.CheckoutParams{
		CustomerID:  customerResult.Value(),
		CourseID:    course.ID,
		UserID:      user.ID,
		Title:       course.Title,
		Description: course.Description,
		ImageURL:    course.ImageURL,
		UnitAmount:  utils.DollarsToCents(course.Price),
		SuccessURL:  fmt.Sprintf("%s/courses/%s/success?session_id={CHECKOUT_SESSION_ID}", s.baseURL, course.ID),
		CancelURL:   fmt.Sprintf("%s/courses/%s", s.baseURL, course.ID),
	})
	if err != nil {
		return utils.FailedResultWithCode[string](err, ErrCodeUpstreamFailure, "Error creating checkout session")
	}
	if session == nil || session.URL == "" {
		// The provider accepted the call but produced no hosted page, the
		// caller must treat this as a failure.
		return utils.FailedResultWithCode[string](
			fmt.Errorf("provider returned no checkout URL"),
			ErrCodeUpstreamFailure, "Checkout session has no URL")
	}

	s.logger.Info("checkout session created",
		slog.String("user_id", user.ID),
		slog.String("course_id", course.ID),
		slog.String("session_id", session.ID),
	)

	return utils.SuccessResult(session.URL)
}

// ensureStripeCustomer returns the user's payment-provider customer id,
// creating one at first checkout. When a concurrent checkout wins the assign
// race the winner's id is used.
func (s *CheckoutService) ensureStripeCustomer(ctx context.Context, user *models.User) utils.Result[string] {
	if user.StripeCustomerID.Valid && user.StripeCustomerID.String != "" {
		return utils.SuccessResult(user.StripeCustomerID.String)
	}

	customerID, err := s.gateway.CreateCustomer(ctx, user.Email, user.Name)
	if err != nil {
		return utils.FailedResultWithCode[string](err, ErrCodeUpstreamFailure, "Error creating payment customer")
	}

	assignResult := s.store.AssignStripeCustomer(user.ID, customerID)
	if assignResult.Failure() {
		return failedResult[string](assignResult, ErrCodeUpstreamFailure, "Error assigning payment customer")
	}
	if assignResult.Value() {
		return utils.SuccessResult(customerID)
	}

	refetched := s.store.FetchUser(user.ID)
	if refetched.Failure() {
		return failedResult[string](refetched, ErrCodeUpstreamFailure, "Error fetching user")
	}

	return utils.SuccessResult(refetched.Value().StripeCustomerID.String)
}
