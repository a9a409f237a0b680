package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/courseloom/marketplace/utils"
)

// Stable error codes carried on failed results. The API layer maps them to
// HTTP statuses, webhook handlers map them to ack/retry responses.
const (
	ErrCodeUnauthorized                = "unauthorized"
	ErrCodeUserNotFound                = "user_not_found"
	ErrCodeCourseNotFound              = "course_not_found"
	ErrCodeSubscriptionNotFound        = "subscription_not_found"
	ErrCodePurchaseNotFound            = "purchase_not_found"
	ErrCodeRateLimitExceeded           = "rate_limit_exceeded"
	ErrCodeSignatureVerificationFailed = "signature_verification_failed"
	ErrCodeIntegrityFault              = "integrity_fault"
	ErrCodeUpstreamFailure             = "upstream_failure"
)

var ErrUnauthorized = errors.New("missing or invalid caller identity")

// Identity is the authenticated caller, resolved by the transport layer and
// passed explicitly into every operation that needs authorization. A nil
// identity always fails the precondition, there is no ambient fallback.
type Identity struct {
	ClerkID string
}

// RateLimitError carries how long the caller must wait before retrying.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("Rate limit exceeded, retry in %s", e.RetryAfter)
}

func unauthorizedResult[T any]() utils.Result[T] {
	return utils.FailedResult[T](ErrUnauthorized).
		NonRetryable().
		NonCapturable().
		AddErrorDetails(ErrCodeUnauthorized, "caller identity is required")
}

// failedResult forwards a failure from a collaborator, keeping its error code
// when it already carries one.
func failedResult[T any](r utils.AnyResult, code string, message string) utils.Result[T] {
	result := utils.FailedResult[T](r.Error())
	result.Retryable = r.IsRetryable()
	result.Capture = r.IsCapturable()

	if r.ErrorCode() != "" {
		return result.AddErrorDetails(r.ErrorCode(), r.ErrorMessage())
	}
	return result.AddErrorDetails(code, message)
}
