package webhooks

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	svix "github.com/svix/svix-webhooks/go"

	"github.com/courseloom/marketplace/models"
	"github.com/courseloom/marketplace/utils"
)

type IdentityUpserter interface {
	UpsertUser(ctx context.Context, clerkID string, email string, name string) utils.Result[*models.User]
}

type clerkEvent struct {
	Type string `json:"type"`
	Data struct {
		ID             string `json:"id"`
		FirstName      string `json:"first_name"`
		LastName       string `json:"last_name"`
		EmailAddresses []struct {
			EmailAddress string `json:"email_address"`
		} `json:"email_addresses"`
	} `json:"data"`
}

// ClerkHandler verifies identity provider events and creates internal users
// for new signups. Every other event type is acknowledged untouched.
type ClerkHandler struct {
	identities IdentityUpserter
	secret     string
	logger     *slog.Logger
}

func NewClerkHandler(identities IdentityUpserter, secret string, logger *slog.Logger) *ClerkHandler {
	return &ClerkHandler{
		identities: identities,
		secret:     secret,
		logger:     logger.With(slog.String("handler", "clerk_webhook")),
	}
}

func (h *ClerkHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	for _, header := range []string{"svix-id", "svix-timestamp", "svix-signature"} {
		if r.Header.Get(header) == "" {
			respond(w, http.StatusBadRequest, "Missing svix headers")
			return
		}
	}

	payload, ok := readBody(w, r)
	if !ok {
		return
	}

	wh, err := svix.NewWebhook(h.secret)
	if err != nil {
		h.logger.Error("invalid webhook secret", slog.String("error", err.Error()))
		respond(w, http.StatusInternalServerError, "Error processing webhook")
		return
	}

	if err := wh.Verify(payload, r.Header); err != nil {
		h.logger.Warn("webhook verification failed", slog.String("error", err.Error()))
		respond(w, http.StatusBadRequest, "Webhook verification failed")
		return
	}

	var event clerkEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.Error("error unmarshaling event", slog.String("error", err.Error()))
		respond(w, http.StatusBadRequest, "Malformed event payload")
		return
	}

	if event.Type != "user.created" {
		respond(w, http.StatusOK, "Webhook processed successfully")
		return
	}

	email := ""
	if len(event.Data.EmailAddresses) > 0 {
		email = event.Data.EmailAddresses[0].EmailAddress
	}
	name := strings.TrimSpace(event.Data.FirstName + " " + event.Data.LastName)

	result := h.identities.UpsertUser(r.Context(), event.Data.ID, email, name)
	if result.Failure() {
		h.logger.Error("failed to create user",
			slog.String("clerk_id", event.Data.ID),
			slog.String("error", result.Error().Error()),
		)
		if result.IsCapturable() {
			utils.CaptureErrorResult(result)
		}
		respond(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	respond(w, http.StatusOK, "Webhook processed successfully")
}
