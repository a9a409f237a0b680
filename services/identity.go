package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/courseloom/marketplace/models"
	"github.com/courseloom/marketplace/utils"
)

// IdentityService maps identity-provider subjects to internal user records.
type IdentityService struct {
	store    *models.Store
	notifier *Notifier
}

func NewIdentityService(store *models.Store, notifier *Notifier) *IdentityService {
	return &IdentityService{
		store:    store,
		notifier: notifier,
	}
}

// UpsertUser creates an internal user for an identity-provider subject on
// first sight and returns the existing record unchanged on every later call.
// Redelivered user.created webhooks hit the second path.
func (s *IdentityService) UpsertUser(ctx context.Context, clerkID string, email string, name string) utils.Result[*models.User] {
	if strings.TrimSpace(clerkID) == "" {
		return utils.FailedResult[*models.User](fmt.Errorf("missing external identity id")).
			NonRetryable().
			AddErrorDetails(ErrCodeIntegrityFault, "user event carries no external identity id")
	}

	upsertResult := s.store.UpsertUser(clerkID, email, name)
	if upsertResult.Failure() {
		return failedResult[*models.User](upsertResult, ErrCodeUpstreamFailure, "Error upserting user")
	}

	upsert := upsertResult.Value()
	if upsert.Created {
		s.notifier.UserCreated(ctx, upsert.User)
	}

	return utils.SuccessResult(upsert.User)
}
