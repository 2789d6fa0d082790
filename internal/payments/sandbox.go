package payments

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/joshua-takyi/rondpoint/internal/models"
)

// Sandbox is an in-process gateway for development and tests. Every charge
// settles with the configured outcome; a pending charge completes on the
// first Verify, the way a customer confirming on their phone would.
type Sandbox struct {
	outcome models.PaymentStatus

	mu      sync.Mutex
	charges map[string]*Receipt
}

func NewSandbox(outcome models.PaymentStatus) *Sandbox {
	if outcome == "" {
		outcome = models.PaymentCompleted
	}
	return &Sandbox{outcome: outcome, charges: make(map[string]*Receipt)}
}

func (s *Sandbox) Charge(ctx context.Context, req ChargeRequest) (*Receipt, error) {
	if req.Amount <= 0 {
		return nil, models.NewFieldError("amount", "must be greater than 0")
	}
	r := &Receipt{
		Reference:  req.Reference,
		GatewayRef: "SBX-" + req.Reference,
		Status:     s.outcome,
		Message: fmt.Sprintf("Payment initiated. Please check your %s for payment request.",
			strings.ToUpper(string(req.Method))),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.charges[req.Reference]; dup {
		return nil, fmt.Errorf("reference %s already charged: %w", req.Reference, models.ErrConflict)
	}
	s.charges[req.Reference] = r
	copied := *r
	return &copied, nil
}

func (s *Sandbox) Verify(ctx context.Context, reference string) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.charges[reference]
	if !ok {
		return nil, fmt.Errorf("reference %s: %w", reference, models.ErrNotFound)
	}
	if r.Status == models.PaymentPending {
		r.Status = models.PaymentCompleted
		r.Message = "Payment confirmed"
	}
	copied := *r
	return &copied, nil
}

func (s *Sandbox) Methods() []Method {
	return DefaultMethods
}
