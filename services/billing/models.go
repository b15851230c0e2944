package billing

import "time"

// OrgBilling is the billing state of one organisation. Nil columns mean Stripe has
// not told us the value yet.
type OrgBilling struct {
	OrgID                int64      `gorm:"primaryKey;autoIncrement:false" json:"org_id"`
	StripeCustomerID     *string    `gorm:"uniqueIndex" json:"-"`
	StripeSubscriptionID *string    `json:"-"`
	Plan                 *string    `json:"plan"`
	SubscriptionStatus   *string    `json:"subscription_status"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

func (OrgBilling) TableName() string {
	return "org_billing"
}

// ProcessedEvent records a Stripe event id once it has been handled.
type ProcessedEvent struct {
	EventID     string    `gorm:"primaryKey;size:255"`
	ProcessedAt time.Time `gorm:"not null"`
}

func (ProcessedEvent) TableName() string {
	return "stripe_events"
}

// Update carries the fields a webhook learned. Nil fields keep the stored value.
type Update struct {
	StripeCustomerID     *string
	StripeSubscriptionID *string
	Plan                 *string
	SubscriptionStatus   *string
	CurrentPeriodEnd     *time.Time
}

func (u Update) applyTo(row *OrgBilling) {
	if u.StripeCustomerID != nil {
		row.StripeCustomerID = u.StripeCustomerID
	}
	if u.StripeSubscriptionID != nil {
		row.StripeSubscriptionID = u.StripeSubscriptionID
	}
	if u.Plan != nil {
		row.Plan = u.Plan
	}
	if u.SubscriptionStatus != nil {
		row.SubscriptionStatus = u.SubscriptionStatus
	}
	if u.CurrentPeriodEnd != nil {
		row.CurrentPeriodEnd = u.CurrentPeriodEnd
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
