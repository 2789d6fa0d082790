// Package payments talks to the mobile-money gateway.
package payments

import (
	"context"

	"github.com/joshua-takyi/rondpoint/internal/models"
)

type Method struct {
	ID          models.PaymentMethod `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Supported   bool                 `json:"supported"`
}

// DefaultMethods are the mobile-money networks accepted in Cameroon.
var DefaultMethods = []Method{
	{ID: models.MethodMTN, Name: "MTN Mobile Money", Description: "Pay with MTN Mobile Money", Supported: true},
	{ID: models.MethodOrange, Name: "Orange Money", Description: "Pay with Orange Money", Supported: true},
}

type ChargeRequest struct {
	Reference   string
	Amount      int64
	Currency    string
	Method      models.PaymentMethod
	PhoneNumber string
	Description string
}

// Receipt is the gateway's view of a payment.
type Receipt struct {
	Reference  string
	GatewayRef string
	Status     models.PaymentStatus
	Message    string
}

// Gateway charges a phone number and reports on the result.
type Gateway interface {
	// Charge asks the network to collect the amount. Most networks answer
	// pending and confirm later through Verify or the webhook.
	Charge(ctx context.Context, req ChargeRequest) (*Receipt, error)
	// Verify returns the current status of a reference. Unknown references
	// yield models.ErrNotFound.
	Verify(ctx context.Context, reference string) (*Receipt, error)
	Methods() []Method
}
