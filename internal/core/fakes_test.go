package core

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"

	"stagevision-backend-go/internal/db"
	"stagevision-backend-go/internal/imagegen"
	"stagevision-backend-go/internal/models"
	"stagevision-backend-go/internal/queue"
)

// planUpdate records one UpdatePlan call.
type planUpdate struct {
	UserID string
	Plan   string
	Status string
}

type fakeUserRepo struct {
	users       map[string]*models.User
	getErr      error
	planUpdates []planUpdate
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[string]*models.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) GetByID(_ context.Context, userID string) (*models.User, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	u, ok := r.users[userID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *models.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, db.ErrNotFound
}

func (r *fakeUserRepo) UpdatePlan(_ context.Context, userID, plan, subscriptionStatus string) error {
	r.planUpdates = append(r.planUpdates, planUpdate{UserID: userID, Plan: plan, Status: subscriptionStatus})
	if u, ok := r.users[userID]; ok {
		u.Plan = plan
		u.SubscriptionStatus = subscriptionStatus
	}
	return nil
}

type fakeUploadRepo struct {
	records     []models.UploadRecord
	listErr     error
	reserveErr  error
	completeErr error

	reserveCalls  []models.QuotaWindow
	completeCalls int
	failCalls     int
	initialized   []string
}

func (r *fakeUploadRepo) EnsureInitialized(_ context.Context, userID string) error {
	r.initialized = append(r.initialized, userID)
	return nil
}

func (r *fakeUploadRepo) ListCompletedSince(_ context.Context, _ string, since time.Time) ([]models.UploadRecord, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []models.UploadRecord
	for _, rec := range r.records {
		if rec.CountsTowardQuota(since) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakeUploadRepo) ListAll(_ context.Context, _ string) ([]models.UploadRecord, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.records, nil
}

func (r *fakeUploadRepo) Reserve(_ context.Context, _ string, windows []models.QuotaWindow, _ *models.UploadRecord) (string, error) {
	r.reserveCalls = append(r.reserveCalls, windows...)
	if r.reserveErr != nil {
		return "", r.reserveErr
	}
	return "rec-1", nil
}

func (r *fakeUploadRepo) Complete(_ context.Context, _, _, _, _ string) error {
	r.completeCalls++
	return r.completeErr
}

func (r *fakeUploadRepo) Fail(_ context.Context, _, _ string) error {
	r.failCalls++
	return nil
}

type fakeGuestRepo struct {
	count    int
	countErr error
	saveErr  error
	saved    []*models.GuestUpload
}

func (r *fakeGuestRepo) CountByIP(_ context.Context, _ string) (int, error) {
	if r.countErr != nil {
		return 0, r.countErr
	}
	return r.count, nil
}

func (r *fakeGuestRepo) SaveIfFirst(_ context.Context, record *models.GuestUpload) (string, error) {
	if r.saveErr != nil {
		return "", r.saveErr
	}
	r.saved = append(r.saved, record)
	return "guest-1", nil
}

type fakeSubRepo struct {
	customers map[string]*models.Customer
	subs      map[string]*models.Subscription
	updates   map[string]map[string]interface{}
}

func newFakeSubRepo() *fakeSubRepo {
	return &fakeSubRepo{
		customers: make(map[string]*models.Customer),
		subs:      make(map[string]*models.Subscription),
		updates:   make(map[string]map[string]interface{}),
	}
}

func (r *fakeSubRepo) GetCustomer(_ context.Context, userID string) (*models.Customer, error) {
	c, ok := r.customers[userID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return c, nil
}

func (r *fakeSubRepo) SaveCustomer(_ context.Context, customer *models.Customer) error {
	r.customers[customer.UserID] = customer
	return nil
}

func (r *fakeSubRepo) GetSubscription(_ context.Context, subscriptionID string) (*models.Subscription, error) {
	s, ok := r.subs[subscriptionID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return s, nil
}

func (r *fakeSubRepo) SaveSubscription(_ context.Context, subscription *models.Subscription) error {
	r.subs[subscription.ID] = subscription
	return nil
}

func (r *fakeSubRepo) UpdateSubscription(_ context.Context, subscriptionID string, updates map[string]interface{}) error {
	if _, ok := r.subs[subscriptionID]; !ok {
		return db.ErrNotFound
	}
	r.updates[subscriptionID] = updates
	return nil
}

type fakeAuditRepo struct {
	entries []models.AuditLog
}

func (r *fakeAuditRepo) Create(_ context.Context, logEntry models.AuditLog) error {
	r.entries = append(r.entries, logEntry)
	return nil
}

type fakeGenerator struct {
	result   *imagegen.Result
	err      error
	requests []imagegen.Request
}

func (g *fakeGenerator) StageImage(_ context.Context, req imagegen.Request) (*imagegen.Result, error) {
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	return g.result, nil
}

type fakeStore struct {
	urls  []string
	calls int
}

func (s *fakeStore) Save(_ context.Context, prefix, extension, _ string, _ []byte) (string, error) {
	s.calls++
	url := fmt.Sprintf("https://storage.example.com/%s/%d.%s", prefix, s.calls, extension)
	s.urls = append(s.urls, url)
	return url, nil
}

type fakeQueue struct {
	payloads []queue.PersistUploadPayload
	err      error
}

func (q *fakeQueue) EnqueuePersist(_ context.Context, payload queue.PersistUploadPayload) error {
	if q.err != nil {
		return q.err
	}
	q.payloads = append(q.payloads, payload)
	return nil
}

type fakeGateway struct {
	customer        *stripe.Customer
	customerErr     error
	session         *stripe.CheckoutSession
	sessionErr      error
	subscription    *stripe.Subscription
	subscriptionErr error

	customerParams *stripe.CustomerParams
	sessionParams  *stripe.CheckoutSessionParams
}

func (g *fakeGateway) CreateCustomer(params *stripe.CustomerParams) (*stripe.Customer, error) {
	g.customerParams = params
	if g.customerErr != nil {
		return nil, g.customerErr
	}
	return g.customer, nil
}

func (g *fakeGateway) CreateCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	g.sessionParams = params
	if g.sessionErr != nil {
		return nil, g.sessionErr
	}
	return g.session, nil
}

func (g *fakeGateway) GetSubscription(_ string, _ *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	if g.subscriptionErr != nil {
		return nil, g.subscriptionErr
	}
	return g.subscription, nil
}
