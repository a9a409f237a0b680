package tests

import (
	"context"
	"time"

	"github.com/courseloom/marketplace/config/kafka"
	"github.com/courseloom/marketplace/config/stripe"
	"github.com/courseloom/marketplace/models"
)

type MockLimiter struct {
	Key            string
	ExecutionCount int
	Denied         bool
	RetryAfter     time.Duration
	ReturnedError  error
}

func (ml *MockLimiter) Allow(key string) (models.RateLimitDecision, error) {
	ml.ExecutionCount++
	ml.Key = key

	if ml.ReturnedError != nil {
		return models.RateLimitDecision{}, ml.ReturnedError
	}
	if ml.Denied {
		return models.RateLimitDecision{Allowed: false, RetryAfter: ml.RetryAfter}, nil
	}

	return models.RateLimitDecision{Allowed: true}, nil
}

type MockGateway struct {
	CustomerID       string
	CustomerErr      error
	CustomerCalls    int
	Session          *stripe.CheckoutSession
	SessionErr       error
	SessionCalls     int
	LastCheckout     *stripe.CheckoutParams
	LastCustomerName string
}

func (mg *MockGateway) CreateCustomer(ctx context.Context, email string, name string) (string, error) {
	mg.CustomerCalls++
	mg.LastCustomerName = name

	if mg.CustomerErr != nil {
		return "", mg.CustomerErr
	}

	return mg.CustomerID, nil
}

func (mg *MockGateway) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutParams) (*stripe.CheckoutSession, error) {
	mg.SessionCalls++
	mg.LastCheckout = params

	if mg.SessionErr != nil {
		return nil, mg.SessionErr
	}

	return mg.Session, nil
}

type MockMessageProducer struct {
	Key            []byte
	Value          []byte
	ExecutionCount int
}

func (mp *MockMessageProducer) Produce(ctx context.Context, msg *kafka.ProducerMessage) bool {
	mp.Key = msg.Key
	mp.Value = msg.Value
	mp.ExecutionCount++

	return true
}

func (mp *MockMessageProducer) GetTopic() string {
	return "mocked_topic"
}
