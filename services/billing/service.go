package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tech-arch1tect/rollcall/config"
	"github.com/tech-arch1tect/rollcall/services/logging"
	"github.com/tech-arch1tect/rollcall/services/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultPlan    = "free"
	defaultStatus  = "inactive"
	fallbackAppURL = "http://localhost:3000"
)

var (
	ErrCustomerNotFound     = errors.New("stripe customer not found")
	ErrInvalidPrice         = errors.New("invalid price id")
	ErrWebhookSecretMissing = errors.New("missing stripe webhook secret")
	ErrInvalidSignature     = errors.New("webhook signature verification failed")
)

type Status struct {
	Plan               string     `json:"plan"`
	SubscriptionStatus string     `json:"subscription_status"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end"`
	CanManageBilling   bool       `json:"can_manage_billing"`
}

type WebhookResult struct {
	Received bool `json:"received"`
	Ignored  bool `json:"ignored,omitempty"`
}

type Service struct {
	config  *config.BillingConfig
	appURL  string
	db      *gorm.DB
	gateway Gateway
	metrics *metrics.Service
	logger  *logging.Service
	now     func() time.Time
}

func NewService(cfg *config.BillingConfig, appURL string, db *gorm.DB, gateway Gateway, m *metrics.Service, logger *logging.Service) *Service {
	return &Service{
		config:  cfg,
		appURL:  strings.TrimRight(appURL, "/"),
		db:      db,
		gateway: gateway,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *Service) find(ctx context.Context, orgID int64) (*OrgBilling, error) {
	var row OrgBilling
	err := s.db.WithContext(ctx).Where("org_id = ?", orgID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load billing for org %d: %w", orgID, err)
	}
	return &row, nil
}

func (s *Service) GetStatus(ctx context.Context, orgID int64, canManage bool) (*Status, error) {
	row, err := s.find(ctx, orgID)
	if err != nil {
		return nil, err
	}

	status := &Status{
		Plan:               defaultPlan,
		SubscriptionStatus: defaultStatus,
		CanManageBilling:   canManage,
	}
	if row == nil {
		return status, nil
	}

	if row.Plan != nil && *row.Plan != "" {
		status.Plan = *row.Plan
	}
	if row.SubscriptionStatus != nil && *row.SubscriptionStatus != "" {
		status.SubscriptionStatus = *row.SubscriptionStatus
	}
	status.CurrentPeriodEnd = row.CurrentPeriodEnd

	return status, nil
}

func (s *Service) CreatePortalSession(ctx context.Context, orgID int64, returnURL string) (string, error) {
	row, err := s.find(ctx, orgID)
	if err != nil {
		return "", err
	}
	if row == nil || row.StripeCustomerID == nil || *row.StripeCustomerID == "" {
		return "", ErrCustomerNotFound
	}

	url, err := s.gateway.CreatePortalSession(ctx, *row.StripeCustomerID, s.safeReturnURL(returnURL))
	if err != nil {
		s.logger.Error("billing portal session failed", zap.Int64("org_id", orgID), zap.Error(err))
		return "", err
	}
	return url, nil
}

// safeReturnURL only lets callers return inside the application.
func (s *Service) safeReturnURL(returnURL string) string {
	if returnURL != "" && s.appURL != "" && strings.HasPrefix(returnURL, s.appURL) {
		return returnURL
	}
	if s.appURL != "" {
		return s.appURL
	}
	return fallbackAppURL
}

func (s *Service) baseURL() string {
	if s.appURL != "" {
		return s.appURL
	}
	return fallbackAppURL
}

func (s *Service) CreateCheckoutSession(ctx context.Context, orgID int64, priceID string) (string, error) {
	if _, ok := s.config.PricePlans[priceID]; !ok || priceID == "" {
		return "", ErrInvalidPrice
	}

	url, err := s.gateway.CreateCheckoutSession(ctx, CheckoutRequest{
		OrgID:      orgID,
		PriceID:    priceID,
		SuccessURL: s.baseURL() + "/billing/success",
		CancelURL:  s.baseURL() + "/billing/cancel",
	})
	if err != nil {
		s.logger.Error("billing checkout session failed", zap.Int64("org_id", orgID), zap.Error(err))
		return "", err
	}
	return url, nil
}

func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	if s.config.WebhookSecret == "" {
		s.metrics.BillingWebhook("error")
		return nil, ErrWebhookSecretMissing
	}

	event, err := s.gateway.ParseWebhook(payload, signature, s.config.WebhookSecret)
	if err != nil {
		s.metrics.BillingWebhook("invalid_signature")
		s.logger.Warn("rejected stripe webhook", zap.Error(err))
		return nil, err
	}

	processed, err := s.isProcessed(ctx, event.ID)
	if err != nil {
		s.metrics.BillingWebhook("error")
		return nil, err
	}
	if processed {
		s.metrics.BillingWebhook("ignored")
		s.logger.Debug("stripe event already processed", zap.String("event_id", event.ID))
		return &WebhookResult{Received: true, Ignored: true}, nil
	}

	switch event.Type {
	case EventCheckoutCompleted:
		err = s.handleCheckoutCompleted(ctx, event.Checkout)
	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		err = s.handleSubscriptionChange(ctx, event.Subscription)
	}
	if err != nil {
		s.metrics.BillingWebhook("error")
		s.logger.Error("stripe event handling failed",
			zap.String("event_id", event.ID),
			zap.String("type", event.Type),
			zap.Error(err))
		return nil, err
	}

	if err := s.markProcessed(ctx, event.ID); err != nil {
		s.metrics.BillingWebhook("error")
		return nil, err
	}

	s.metrics.BillingWebhook("processed")
	s.logger.Info("stripe event processed", zap.String("event_id", event.ID), zap.String("type", event.Type))
	return &WebhookResult{Received: true}, nil
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, session *CheckoutSession) error {
	if session == nil {
		return nil
	}

	ref := session.Metadata["org_id"]
	if ref == "" {
		ref = session.ClientReferenceID
	}
	orgID, err := strconv.ParseInt(ref, 10, 64)
	if err != nil || orgID <= 0 {
		s.logger.Warn("checkout session without usable org reference", zap.String("reference", ref))
		return nil
	}

	update := Update{
		StripeCustomerID:     optional(session.CustomerID),
		StripeSubscriptionID: optional(session.SubscriptionID),
	}

	if session.SubscriptionID != "" {
		sub, err := s.gateway.GetSubscription(ctx, session.SubscriptionID)
		if err != nil {
			return err
		}
		s.applySubscription(&update, sub)
	}

	return s.Upsert(ctx, orgID, update)
}

func (s *Service) handleSubscriptionChange(ctx context.Context, sub *Subscription) error {
	if sub == nil || sub.CustomerID == "" {
		return nil
	}

	var row OrgBilling
	err := s.db.WithContext(ctx).Where("stripe_customer_id = ?", sub.CustomerID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Warn("subscription change for unknown customer", zap.String("customer_id", sub.CustomerID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up org by customer: %w", err)
	}

	update := Update{
		StripeCustomerID:     optional(sub.CustomerID),
		StripeSubscriptionID: optional(sub.ID),
	}
	s.applySubscription(&update, sub)

	return s.Upsert(ctx, row.OrgID, update)
}

func (s *Service) applySubscription(update *Update, sub *Subscription) {
	update.Plan = optional(s.config.PricePlans[sub.PriceID])
	update.SubscriptionStatus = optional(sub.Status)
	if sub.CurrentPeriodEnd > 0 {
		end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		update.CurrentPeriodEnd = &end
	}
}

// Upsert creates or updates an org's billing row, leaving stored values in place
// wherever the update is nil.
func (s *Service) Upsert(ctx context.Context, orgID int64, update Update) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row OrgBilling
		err := tx.Where("org_id = ?", orgID).Take(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row = OrgBilling{OrgID: orgID}
			update.applyTo(&row)
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("failed to create billing for org %d: %w", orgID, err)
			}
			return nil
		case err != nil:
			return fmt.Errorf("failed to load billing for org %d: %w", orgID, err)
		}

		update.applyTo(&row)
		if err := tx.Save(&row).Error; err != nil {
			return fmt.Errorf("failed to update billing for org %d: %w", orgID, err)
		}
		return nil
	})
}

func (s *Service) isProcessed(ctx context.Context, eventID string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&ProcessedEvent{}).Where("event_id = ?", eventID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check stripe event: %w", err)
	}
	return count > 0, nil
}

func (s *Service) markProcessed(ctx context.Context, eventID string) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&ProcessedEvent{EventID: eventID, ProcessedAt: s.now().UTC()}).Error
	if err != nil {
		return fmt.Errorf("failed to record stripe event: %w", err)
	}
	return nil
}
