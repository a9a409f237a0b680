package stripe

import (
	"context"
	"log/slog"

	stripesdk "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

type GatewayConfig struct {
	APIKey string
}

// CheckoutParams carries everything needed to open a provider-hosted checkout
// page. CourseID and UserID are attached as session metadata so the
// asynchronous completion webhook can be reconciled without a second lookup.
type CheckoutParams struct {
	CustomerID  string
	CourseID    string
	UserID      string
	Title       string
	Description string
	ImageURL    string
	UnitAmount  int64
	SuccessURL  string
	CancelURL   string
}

type CheckoutSession struct {
	ID  string
	URL string
}

type Gateway interface {
	CreateCustomer(ctx context.Context, email string, name string) (string, error)
	CreateCheckoutSession(ctx context.Context, params *CheckoutParams) (*CheckoutSession, error)
}

type Client struct {
	api    *client.API
	logger *slog.Logger
}

func NewClient(cfg GatewayConfig) *Client {
	logger := slog.Default()
	logger = logger.With("component", "stripe")

	api := &client.API{}
	api.Init(cfg.APIKey, nil)

	return &Client{
		api:    api,
		logger: logger,
	}
}

func (c *Client) CreateCustomer(ctx context.Context, email string, name string) (string, error) {
	params := &stripesdk.CustomerParams{
		Email: stripesdk.String(email),
		Name:  stripesdk.String(name),
	}
	params.Context = ctx

	customer, err := c.api.Customers.New(params)
	if err != nil {
		return "", err
	}

	return customer.ID, nil
}

func (c *Client) CreateCheckoutSession(ctx context.Context, checkout *CheckoutParams) (*CheckoutSession, error) {
	productData := &stripesdk.CheckoutSessionLineItemPriceDataProductDataParams{
		Name: stripesdk.String(checkout.Title),
	}
	if checkout.Description != "" {
		productData.Description = stripesdk.String(checkout.Description)
	}
	if checkout.ImageURL != "" {
		productData.Images = stripesdk.StringSlice([]string{checkout.ImageURL})
	}

	params := &stripesdk.CheckoutSessionParams{
		Customer: stripesdk.String(checkout.CustomerID),
		Mode:     stripesdk.String(string(stripesdk.CheckoutSessionModePayment)),
		LineItems: []*stripesdk.CheckoutSessionLineItemParams{
			{
				PriceData: &stripesdk.CheckoutSessionLineItemPriceDataParams{
					Currency:    stripesdk.String(string(stripesdk.CurrencyUSD)),
					UnitAmount:  stripesdk.Int64(checkout.UnitAmount),
					ProductData: productData,
				},
				Quantity: stripesdk.Int64(1),
			},
		},
		SuccessURL: stripesdk.String(checkout.SuccessURL),
		CancelURL:  stripesdk.String(checkout.CancelURL),
	}
	params.Context = ctx
	params.AddMetadata("courseId", checkout.CourseID)
	params.AddMetadata("userId", checkout.UserID)

	session, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, err
	}

	return &CheckoutSession{ID: session.ID, URL: session.URL}, nil
}
