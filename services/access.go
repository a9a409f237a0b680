package services

import (
	"github.com/courseloom/marketplace/models"
	"github.com/courseloom/marketplace/utils"
)

const (
	AccessTypeSubscription = "subscription"
	AccessTypePurchase     = "purchase"
)

// AccessDecision is always definite: HasAccess is never left unresolved.
type AccessDecision struct {
	HasAccess  bool
	AccessType string
}

// AccessService decides whether a user may open a course. An active
// subscription grants access to every course, a purchase grants access to the
// purchased course only.
type AccessService struct {
	store *models.Store
}

func NewAccessService(store *models.Store) *AccessService {
	return &AccessService{
		store: store,
	}
}

func (s *AccessService) Evaluate(identity *Identity, userID string, courseID string) utils.Result[*AccessDecision] {
	if identity == nil || identity.ClerkID == "" {
		return unauthorizedResult[*AccessDecision]()
	}

	userResult := s.store.FetchUser(userID)
	if userResult.Failure() {
		return failedResult[*AccessDecision](userResult, ErrCodeUpstreamFailure, "Error fetching user")
	}
	user := userResult.Value()

	if user.CurrentSubscriptionID.Valid && user.CurrentSubscriptionID.String != "" {
		subscriptionResult := s.store.FetchSubscription(user.CurrentSubscriptionID.String)
		switch {
		case subscriptionResult.Success():
			if subscriptionResult.Value().Status == models.SubscriptionStatusActive {
				return utils.SuccessResult(&AccessDecision{HasAccess: true, AccessType: AccessTypeSubscription})
			}
		case subscriptionResult.ErrorCode() == ErrCodeSubscriptionNotFound:
			// Dangling pointer, fall through to the purchase check.
		default:
			return failedResult[*AccessDecision](subscriptionResult, ErrCodeUpstreamFailure, "Error fetching subscription")
		}
	}

	purchaseResult := s.store.FetchPurchase(userID, courseID)
	switch {
	case purchaseResult.Success():
		return utils.SuccessResult(&AccessDecision{HasAccess: true, AccessType: AccessTypePurchase})
	case purchaseResult.ErrorCode() == ErrCodePurchaseNotFound:
		return utils.SuccessResult(&AccessDecision{HasAccess: false})
	default:
		return failedResult[*AccessDecision](purchaseResult, ErrCodeUpstreamFailure, "Error fetching purchase")
	}
}
