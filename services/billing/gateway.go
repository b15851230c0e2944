package billing

import "context"

const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"

	// SignatureHeader is the request header carrying the webhook signature.
	SignatureHeader = "Stripe-Signature"
)

// Gateway is the slice of the payment provider the billing service talks to.
type Gateway interface {
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
	ParseWebhook(payload []byte, signature, secret string) (*Event, error)
}

type CheckoutRequest struct {
	OrgID      int64
	PriceID    string
	SuccessURL string
	CancelURL  string
}

type CheckoutSession struct {
	ClientReferenceID string
	Metadata          map[string]string
	CustomerID        string
	SubscriptionID    string
}

type Subscription struct {
	ID               string
	CustomerID       string
	Status           string
	PriceID          string
	CurrentPeriodEnd int64
}

// Event is a verified webhook delivery. Checkout or Subscription is set depending on Type.
type Event struct {
	ID           string
	Type         string
	Checkout     *CheckoutSession
	Subscription *Subscription
}
