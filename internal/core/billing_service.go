package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/customer"
	"github.com/stripe/stripe-go/v76/subscription"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"

	"stagevision-backend-go/internal/db"
	"stagevision-backend-go/internal/models"
)

// Errors for billing operations.
var (
	ErrPlanNotFound        = errors.New("plan or price ID not found")
	ErrStripeClient        = errors.New("stripe client operation failed")
	ErrWebhookProcessing   = errors.New("stripe webhook processing failed")
	ErrWebhookSignature    = errors.New("stripe webhook signature verification failed")
	ErrUserStripeNotLinked = errors.New("user does not have a Stripe customer ID")
)

// BillingConfig carries the Stripe settings the billing service needs.
type BillingConfig struct {
	SecretKey     string
	WebhookSecret string
	BasicPriceID  string
	ProPriceID    string
	// ClientURL is the frontend origin used for default success/cancel URLs.
	ClientURL string
}

// stripeGateway abstracts the Stripe API calls so webhook processing can be
// tested without network access.
type stripeGateway interface {
	CreateCustomer(params *stripe.CustomerParams) (*stripe.Customer, error)
	CreateCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	GetSubscription(id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
}

type liveStripeGateway struct{}

func (liveStripeGateway) CreateCustomer(params *stripe.CustomerParams) (*stripe.Customer, error) {
	return customer.New(params)
}

func (liveStripeGateway) CreateCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return session.New(params)
}

func (liveStripeGateway) GetSubscription(id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	return subscription.Get(id, params)
}

// billingService implements BillingService against the Stripe API, mirroring
// subscription state into Firestore as webhook events arrive.
type billingService struct {
	userRepo db.UserRepository
	subRepo  db.SubscriptionRepository
	audit    AuditService
	gateway  stripeGateway
	cfg      BillingConfig
	logger   *zap.Logger
}

// NewBillingService creates a new BillingService instance and binds the
// Stripe SDK to the configured secret key.
func NewBillingService(userRepo db.UserRepository, subRepo db.SubscriptionRepository, audit AuditService, cfg BillingConfig, logger *zap.Logger) BillingService {
	stripe.Key = cfg.SecretKey
	return &billingService{
		userRepo: userRepo,
		subRepo:  subRepo,
		audit:    audit,
		gateway:  liveStripeGateway{},
		cfg:      cfg,
		logger:   logger,
	}
}

// priceIDForPlan resolves a tier to its configured Stripe price.
func (s *billingService) priceIDForPlan(tier models.PlanTier) string {
	switch tier {
	case models.TierBasic:
		return s.cfg.BasicPriceID
	case models.TierPro:
		return s.cfg.ProPriceID
	default:
		return ""
	}
}

// planForAmount maps a whole-dollar charge to a tier. This is the fallback
// for payment-link checkouts that carry no metadata: $15 is basic, $30 is
// pro. Amounts are Stripe cents.
func planForAmount(amountCents int64) models.PlanTier {
	switch amountCents / 100 {
	case 15:
		return models.TierBasic
	case 30:
		return models.TierPro
	default:
		return ""
	}
}

// CreateCheckoutSession creates a subscription-mode Stripe Checkout session
// for the requested plan. The user and plan ride along as metadata on both
// the session and the subscription it creates, so every later webhook event
// identifies the user without guessing.
func (s *billingService) CreateCheckoutSession(ctx context.Context, req models.CreateCheckoutSessionRequest) (string, string, error) {
	tier := models.ParsePlanTier(req.PlanType)
	if tier == models.TierFree {
		return "", "", fmt.Errorf("%w: cannot purchase plan '%s'", ErrPlanNotFound, req.PlanType)
	}
	priceID := req.PriceID
	if priceID == "" {
		priceID = s.priceIDForPlan(tier)
	}
	if priceID == "" {
		return "", "", fmt.Errorf("%w: no price configured for plan '%s'", ErrPlanNotFound, req.PlanType)
	}

	user, err := s.userRepo.GetByID(ctx, req.UserID)
	if err != nil {
		return "", "", fmt.Errorf("failed to load user '%s' for checkout: %w", req.UserID, err)
	}

	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return "", "", err
	}

	successURL := req.SuccessURL
	if successURL == "" {
		successURL = s.cfg.ClientURL + "/dashboard?checkout=success"
	}
	cancelURL := req.CancelURL
	if cancelURL == "" {
		cancelURL = s.cfg.ClientURL + "/pricing?checkout=cancelled"
	}

	metadata := map[string]string{
		"userId":   req.UserID,
		"planType": string(tier),
	}
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:   stripe.String(customerID),
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(priceID), Quantity: stripe.Int64(1)},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	sess, err := s.gateway.CreateCheckoutSession(params)
	if err != nil {
		return "", "", fmt.Errorf("%w: checkout session creation for user '%s': %v", ErrStripeClient, req.UserID, err)
	}
	s.logger.Info("created checkout session",
		zap.String("userId", req.UserID), zap.String("plan", string(tier)), zap.String("sessionId", sess.ID))
	return sess.ID, sess.URL, nil
}

// ensureCustomer returns the user's Stripe customer ID, creating and
// persisting one on first purchase.
func (s *billingService) ensureCustomer(ctx context.Context, user *models.User) (string, error) {
	if user.StripeCustomerID != "" {
		return user.StripeCustomerID, nil
	}
	if existing, err := s.subRepo.GetCustomer(ctx, user.ID); err == nil && existing != nil && existing.CustomerID != "" {
		return existing.CustomerID, nil
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(user.Email),
	}
	if user.DisplayName != "" {
		params.Name = stripe.String(user.DisplayName)
	}
	params.AddMetadata("userId", user.ID)

	cust, err := s.gateway.CreateCustomer(params)
	if err != nil {
		return "", fmt.Errorf("%w: customer creation for user '%s': %v", ErrStripeClient, user.ID, err)
	}

	if err := s.subRepo.SaveCustomer(ctx, &models.Customer{
		UserID:     user.ID,
		CustomerID: cust.ID,
		Email:      user.Email,
		Name:       user.DisplayName,
	}); err != nil {
		s.logger.Error("failed to persist customer link", zap.String("userId", user.ID), zap.Error(err))
	}
	user.StripeCustomerID = cust.ID
	if err := s.userRepo.Update(ctx, user); err != nil {
		s.logger.Error("failed to store customer ID on user", zap.String("userId", user.ID), zap.Error(err))
	}
	return cust.ID, nil
}

// HandleStripeWebhook verifies the event signature and dispatches it.
func (s *billingService) HandleStripeWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEvent(payload, signature, s.cfg.WebhookSecret)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWebhookSignature, err)
	}
	return s.processEvent(ctx, event)
}

// processEvent applies one verified Stripe event to local state.
func (s *billingService) processEvent(ctx context.Context, event stripe.Event) error {
	switch string(event.Type) {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return fmt.Errorf("%w: unmarshalling checkout session: %v", ErrWebhookProcessing, err)
		}
		return s.handleCheckoutCompleted(ctx, &sess)

	case "customer.subscription.created", "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("%w: unmarshalling subscription: %v", ErrWebhookProcessing, err)
		}
		return s.handleSubscriptionChanged(ctx, &sub)

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("%w: unmarshalling subscription: %v", ErrWebhookProcessing, err)
		}
		return s.handleSubscriptionDeleted(ctx, &sub)

	case "invoice.payment_succeeded":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return fmt.Errorf("%w: unmarshalling invoice: %v", ErrWebhookProcessing, err)
		}
		return s.handlePaymentSucceeded(ctx, &inv)

	case "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return fmt.Errorf("%w: unmarshalling invoice: %v", ErrWebhookProcessing, err)
		}
		return s.handlePaymentFailed(ctx, &inv)

	default:
		s.logger.Debug("ignoring stripe event", zap.String("type", string(event.Type)))
		return nil
	}
}

// handleCheckoutCompleted upgrades the user named by the session. Sessions
// created by this service carry userId/planType metadata; payment-link
// sessions carry neither, so the charge amount and customer email stand in.
func (s *billingService) handleCheckoutCompleted(ctx context.Context, sess *stripe.CheckoutSession) error {
	userID := sess.Metadata["userId"]
	plan := models.ParsePlanTier(sess.Metadata["planType"])

	if sess.Metadata["planType"] == "" {
		if inferred := planForAmount(sess.AmountTotal); inferred != "" {
			plan = inferred
		} else {
			return fmt.Errorf("%w: checkout %s has no plan metadata and unrecognized amount %d",
				ErrWebhookProcessing, sess.ID, sess.AmountTotal)
		}
	}
	if userID == "" {
		email := ""
		if sess.CustomerDetails != nil {
			email = sess.CustomerDetails.Email
		}
		if email == "" {
			return fmt.Errorf("%w: checkout %s has no user metadata and no customer email", ErrWebhookProcessing, sess.ID)
		}
		user, err := s.userRepo.FindByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("%w: resolving checkout %s by email: %v", ErrWebhookProcessing, sess.ID, err)
		}
		userID = user.ID
	}

	if err := s.userRepo.UpdatePlan(ctx, userID, string(plan), "active"); err != nil {
		return fmt.Errorf("%w: updating plan for user '%s': %v", ErrWebhookProcessing, userID, err)
	}

	customerID := ""
	if sess.Customer != nil {
		customerID = sess.Customer.ID
	}
	if customerID != "" {
		email := ""
		if sess.CustomerDetails != nil {
			email = sess.CustomerDetails.Email
		}
		if err := s.subRepo.SaveCustomer(ctx, &models.Customer{
			UserID:     userID,
			CustomerID: customerID,
			Email:      email,
		}); err != nil {
			s.logger.Error("failed to mirror customer from checkout", zap.String("userId", userID), zap.Error(err))
		}
	}
	if sess.Subscription != nil && sess.Subscription.ID != "" {
		s.mirrorSubscriptionByID(ctx, sess.Subscription.ID, userID, plan)
	}

	s.writeAudit(ctx, models.AuditLog{
		UserID: userID,
		Action: "PLAN_UPDATED",
		Details: map[string]interface{}{
			"plan":   string(plan),
			"source": "checkout.session.completed",
		},
	})
	s.logger.Info("checkout completed",
		zap.String("userId", userID), zap.String("plan", string(plan)), zap.String("sessionId", sess.ID))
	return nil
}

// handleSubscriptionChanged mirrors subscription state and keeps the user's
// plan in step with it.
func (s *billingService) handleSubscriptionChanged(ctx context.Context, sub *stripe.Subscription) error {
	userID := sub.Metadata["userId"]
	plan := models.ParsePlanTier(sub.Metadata["planType"])
	if sub.Metadata["planType"] == "" {
		plan = s.planFromItems(sub)
	}

	if userID == "" {
		if existing, err := s.subRepo.GetSubscription(ctx, sub.ID); err == nil && existing != nil {
			userID = existing.UserID
		}
	}
	if userID == "" {
		// Nothing on the event links it to a user; keep the mirror anyway so a
		// later event can resolve it.
		s.logger.Warn("subscription event without user linkage", zap.String("subscriptionId", sub.ID))
	}

	record := &models.Subscription{
		ID:                sub.ID,
		UserID:            userID,
		Plan:              string(plan),
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		record.CustomerID = sub.Customer.ID
	}
	if sub.CurrentPeriodStart > 0 {
		record.CurrentPeriodStart = time.Unix(sub.CurrentPeriodStart, 0).UTC()
	}
	if sub.CurrentPeriodEnd > 0 {
		record.CurrentPeriodEnd = time.Unix(sub.CurrentPeriodEnd, 0).UTC()
	}
	if err := s.subRepo.SaveSubscription(ctx, record); err != nil {
		return fmt.Errorf("%w: mirroring subscription '%s': %v", ErrWebhookProcessing, sub.ID, err)
	}

	if userID == "" || plan == "" {
		return nil
	}
	effective := plan
	status := string(sub.Status)
	if sub.Status != stripe.SubscriptionStatusActive && sub.Status != stripe.SubscriptionStatusTrialing {
		effective = models.TierFree
	}
	if err := s.userRepo.UpdatePlan(ctx, userID, string(effective), status); err != nil {
		return fmt.Errorf("%w: updating plan for user '%s': %v", ErrWebhookProcessing, userID, err)
	}
	return nil
}

// handleSubscriptionDeleted downgrades the user back to the free tier.
func (s *billingService) handleSubscriptionDeleted(ctx context.Context, sub *stripe.Subscription) error {
	userID := sub.Metadata["userId"]
	if userID == "" {
		if existing, err := s.subRepo.GetSubscription(ctx, sub.ID); err == nil && existing != nil {
			userID = existing.UserID
		}
	}

	if err := s.subRepo.UpdateSubscription(ctx, sub.ID, map[string]interface{}{
		"status": "canceled",
	}); err != nil && !errors.Is(err, db.ErrNotFound) {
		s.logger.Error("failed to mark subscription canceled", zap.String("subscriptionId", sub.ID), zap.Error(err))
	}

	if userID == "" {
		return fmt.Errorf("%w: deleted subscription '%s' is not linked to a user", ErrWebhookProcessing, sub.ID)
	}
	if err := s.userRepo.UpdatePlan(ctx, userID, string(models.TierFree), "canceled"); err != nil {
		return fmt.Errorf("%w: downgrading user '%s': %v", ErrWebhookProcessing, userID, err)
	}
	s.writeAudit(ctx, models.AuditLog{
		UserID: userID,
		Action: "PLAN_UPDATED",
		Details: map[string]interface{}{
			"plan":   string(models.TierFree),
			"source": "customer.subscription.deleted",
		},
	})
	return nil
}

// handlePaymentSucceeded clears a past_due mirror back to active on renewal.
// Payment-link invoices reference no known subscription, so the paid amount
// and the billing email identify the plan and the user instead.
func (s *billingService) handlePaymentSucceeded(ctx context.Context, inv *stripe.Invoice) error {
	if inv.Subscription != nil && inv.Subscription.ID != "" {
		if existing, err := s.subRepo.GetSubscription(ctx, inv.Subscription.ID); err == nil && existing != nil {
			if err := s.subRepo.UpdateSubscription(ctx, inv.Subscription.ID, map[string]interface{}{
				"status": "active",
			}); err != nil && !errors.Is(err, db.ErrNotFound) {
				return fmt.Errorf("%w: marking subscription '%s' active: %v", ErrWebhookProcessing, inv.Subscription.ID, err)
			}
			if existing.UserID != "" && existing.Plan != "" {
				if err := s.userRepo.UpdatePlan(ctx, existing.UserID, existing.Plan, "active"); err != nil {
					return fmt.Errorf("%w: restoring plan for user '%s': %v", ErrWebhookProcessing, existing.UserID, err)
				}
			}
			return nil
		}
	}

	plan := planForAmount(inv.AmountPaid)
	if plan == "" || inv.CustomerEmail == "" {
		s.logger.Debug("payment_succeeded without usable linkage", zap.String("invoiceId", inv.ID))
		return nil
	}
	user, err := s.userRepo.FindByEmail(ctx, inv.CustomerEmail)
	if err != nil {
		return fmt.Errorf("%w: resolving invoice %s by email: %v", ErrWebhookProcessing, inv.ID, err)
	}
	if err := s.userRepo.UpdatePlan(ctx, user.ID, string(plan), "active"); err != nil {
		return fmt.Errorf("%w: updating plan for user '%s': %v", ErrWebhookProcessing, user.ID, err)
	}
	s.writeAudit(ctx, models.AuditLog{
		UserID: user.ID,
		Action: "PLAN_UPDATED",
		Details: map[string]interface{}{
			"plan":   string(plan),
			"source": "invoice.payment_succeeded",
		},
	})
	return nil
}

// handlePaymentFailed marks the mirrored subscription past_due. The plan
// itself is only downgraded when Stripe eventually cancels the subscription.
func (s *billingService) handlePaymentFailed(ctx context.Context, inv *stripe.Invoice) error {
	if inv.Subscription == nil || inv.Subscription.ID == "" {
		return nil
	}
	err := s.subRepo.UpdateSubscription(ctx, inv.Subscription.ID, map[string]interface{}{
		"status": "past_due",
	})
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("%w: marking subscription '%s' past_due: %v", ErrWebhookProcessing, inv.Subscription.ID, err)
	}
	return nil
}

// mirrorSubscriptionByID fetches the full subscription after checkout so the
// mirror has period bounds from the start. Best effort.
func (s *billingService) mirrorSubscriptionByID(ctx context.Context, subID, userID string, plan models.PlanTier) {
	sub, err := s.gateway.GetSubscription(subID, nil)
	if err != nil {
		s.logger.Error("failed to fetch subscription after checkout",
			zap.String("subscriptionId", subID), zap.Error(err))
		return
	}
	record := &models.Subscription{
		ID:                sub.ID,
		UserID:            userID,
		Plan:              string(plan),
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		record.CustomerID = sub.Customer.ID
	}
	if sub.CurrentPeriodStart > 0 {
		record.CurrentPeriodStart = time.Unix(sub.CurrentPeriodStart, 0).UTC()
	}
	if sub.CurrentPeriodEnd > 0 {
		record.CurrentPeriodEnd = time.Unix(sub.CurrentPeriodEnd, 0).UTC()
	}
	if err := s.subRepo.SaveSubscription(ctx, record); err != nil {
		s.logger.Error("failed to mirror subscription", zap.String("subscriptionId", sub.ID), zap.Error(err))
	}
}

// planFromItems infers the tier from the subscription's price when metadata
// is absent.
func (s *billingService) planFromItems(sub *stripe.Subscription) models.PlanTier {
	if sub.Items == nil {
		return ""
	}
	for _, item := range sub.Items.Data {
		if item.Price == nil {
			continue
		}
		switch item.Price.ID {
		case s.cfg.BasicPriceID:
			return models.TierBasic
		case s.cfg.ProPriceID:
			return models.TierPro
		}
		if p := planForAmount(item.Price.UnitAmount); p != "" {
			return p
		}
	}
	return ""
}

func (s *billingService) writeAudit(ctx context.Context, entry models.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", entry.Action), zap.Error(err))
	}
}
