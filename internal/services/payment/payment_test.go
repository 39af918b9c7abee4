package payment

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/magabrotheeeer/video-downloader/internal/config"
	"github.com/magabrotheeeer/video-downloader/internal/models"
	"github.com/magabrotheeeer/video-downloader/internal/paymentprovider"
)

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

// memRepository хранит пользователей и подписки в памяти.
type memRepository struct {
	mu    sync.Mutex
	users map[string]*models.User
	subs  map[string]*models.Subscription // по user_uid
	fail  error
}

func newMemRepository(users ...*models.User) *memRepository {
	r := &memRepository{users: map[string]*models.User{}, subs: map[string]*models.Subscription{}}
	for _, u := range users {
		r.users[u.UUID] = u
	}
	return r
}

func (r *memRepository) GetUser(_ context.Context, userUID string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userUID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memRepository) GetUserByStripeCustomer(_ context.Context, customerID string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.StripeCustomerID == customerID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *memRepository) SetStripeCustomerID(_ context.Context, userUID, customerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userUID]
	if !ok {
		return models.ErrNotFound
	}
	u.StripeCustomerID = customerID
	return nil
}

func (r *memRepository) SetTier(_ context.Context, userUID string, tier models.Tier) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userUID]
	if !ok {
		return models.ErrNotFound
	}
	u.Tier = tier
	return nil
}

func (r *memRepository) ActivateSubscription(_ context.Context, sub models.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	u, ok := r.users[sub.UserUID]
	if !ok {
		return models.ErrNotFound
	}
	r.subs[sub.UserUID] = &sub
	u.Tier = models.TierPremium
	return nil
}

func (r *memRepository) GetSubscriptionByUser(_ context.Context, userUID string) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[userUID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memRepository) byStripeID(id string) *models.Subscription {
	for _, s := range r.subs {
		if s.StripeSubscriptionID == id {
			return s
		}
	}
	return nil
}

func (r *memRepository) GetSubscriptionByStripeID(_ context.Context, id string) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.byStripeID(id)
	if s == nil {
		return nil, models.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memRepository) UpdateSubscriptionStatus(_ context.Context, id string, status models.SubscriptionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.byStripeID(id)
	if s == nil {
		return models.ErrNotFound
	}
	s.Status = status
	return nil
}

func (r *memRepository) UpdateSubscriptionPeriod(_ context.Context, id string, status models.SubscriptionStatus,
	start, end time.Time, cancelAtPeriodEnd bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.byStripeID(id)
	if s == nil {
		return models.ErrNotFound
	}
	s.Status = status
	s.CurrentPeriodStart = start
	s.CurrentPeriodEnd = end
	s.CancelAtPeriodEnd = cancelAtPeriodEnd
	return nil
}

func (r *memRepository) SetCancelAtPeriodEnd(_ context.Context, id string, cancel bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.byStripeID(id)
	if s == nil {
		return models.ErrNotFound
	}
	s.CancelAtPeriodEnd = cancel
	return nil
}

func (r *memRepository) DeactivateSubscription(_ context.Context, id string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.byStripeID(id)
	if s == nil {
		return "", models.ErrNotFound
	}
	s.Status = models.SubscriptionCanceled
	r.users[s.UserUID].Tier = models.TierFree
	return s.UserUID, nil
}

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) CreateCustomer(ctx context.Context, email, name, userUID string) (string, error) {
	args := m.Called(ctx, email, name, userUID)
	return args.String(0), args.Error(1)
}

func (m *MockProvider) CreateCheckoutSession(ctx context.Context, p paymentprovider.CheckoutParams) (*models.CheckoutSession, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CheckoutSession), args.Error(1)
}

func (m *MockProvider) GetSubscription(ctx context.Context, id string) (*paymentprovider.SubscriptionInfo, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.SubscriptionInfo), args.Error(1)
}

func (m *MockProvider) SetCancelAtPeriodEnd(ctx context.Context, id string, cancel bool) (*paymentprovider.SubscriptionInfo, error) {
	args := m.Called(ctx, id, cancel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.SubscriptionInfo), args.Error(1)
}

func (m *MockProvider) ConstructEvent(payload []byte, signature string) (*paymentprovider.Event, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.Event), args.Error(1)
}

func event(t *testing.T, typ string, obj any) *paymentprovider.Event {
	t.Helper()
	raw, err := json.Marshal(obj)
	require.NoError(t, err)
	return &paymentprovider.Event{ID: "evt_" + typ, Type: typ, Raw: raw}
}

var (
	periodStart = time.Unix(1700000000, 0).UTC()
	periodEnd   = time.Unix(1702592000, 0).UTC()
)

func activeSub() *paymentprovider.SubscriptionInfo {
	return &paymentprovider.SubscriptionInfo{
		ID:          "sub_1",
		CustomerID:  "cus_1",
		PriceID:     "price_1",
		Status:      models.SubscriptionActive,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	}
}

func TestPaymentService_CheckoutThenDeleted(t *testing.T) {
	repo := newMemRepository(&models.User{UUID: "user-1", Tier: models.TierFree, StripeCustomerID: "cus_1"})
	provider := new(MockProvider)
	svc := New(repo, provider, newNoopLogger())
	ctx := context.Background()

	provider.On("GetSubscription", mock.Anything, "sub_1").Return(activeSub(), nil).Once()

	err := svc.HandleEvent(ctx, event(t, paymentprovider.EventCheckoutSessionCompleted, map[string]any{
		"id":           "cs_1",
		"customer":     "cus_1",
		"subscription": "sub_1",
		"metadata":     map[string]string{"userId": "user-1"},
	}))
	require.NoError(t, err)

	user, _ := repo.GetUser(ctx, "user-1")
	assert.Equal(t, models.TierPremium, user.Tier)
	sub, err := repo.GetSubscriptionByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionActive, sub.Status)
	assert.Equal(t, "price_1", sub.StripePriceID)
	assert.Equal(t, periodEnd, sub.CurrentPeriodEnd)
	assert.Equal(t, models.PlanPremium, sub.Plan)

	err = svc.HandleEvent(ctx, event(t, paymentprovider.EventSubscriptionDeleted, map[string]any{
		"id":     "sub_1",
		"status": "canceled",
	}))
	require.NoError(t, err)

	user, _ = repo.GetUser(ctx, "user-1")
	assert.Equal(t, models.TierFree, user.Tier)
	sub, _ = repo.GetSubscriptionByUser(ctx, "user-1")
	assert.Equal(t, models.SubscriptionCanceled, sub.Status)
	provider.AssertExpectations(t)
}

func TestPaymentService_CheckoutFallsBackToCustomer(t *testing.T) {
	repo := newMemRepository(&models.User{UUID: "user-1", Tier: models.TierFree, StripeCustomerID: "cus_1"})
	provider := new(MockProvider)
	svc := New(repo, provider, newNoopLogger())

	provider.On("GetSubscription", mock.Anything, "sub_1").Return(activeSub(), nil).Once()

	err := svc.HandleEvent(context.Background(), event(t, paymentprovider.EventCheckoutSessionCompleted, map[string]any{
		"id": "cs_1", "customer": "cus_1", "subscription": "sub_1",
	}))
	require.NoError(t, err)
	user, _ := repo.GetUser(context.Background(), "user-1")
	assert.Equal(t, models.TierPremium, user.Tier)
}

func TestPaymentService_InvoiceEvents(t *testing.T) {
	ctx := context.Background()

	t.Run("paid renews period and restores premium", func(t *testing.T) {
		repo := newMemRepository(&models.User{UUID: "user-1", Tier: models.TierFree})
		repo.subs["user-1"] = &models.Subscription{UserUID: "user-1", StripeSubscriptionID: "sub_1", Status: models.SubscriptionPastDue}
		provider := new(MockProvider)
		provider.On("GetSubscription", mock.Anything, "sub_1").Return(activeSub(), nil).Once()
		svc := New(repo, provider, newNoopLogger())

		require.NoError(t, svc.HandleEvent(ctx, event(t, paymentprovider.EventInvoicePaid, map[string]any{
			"id": "in_1", "subscription": "sub_1", "customer": "cus_1",
		})))

		sub, _ := repo.GetSubscriptionByUser(ctx, "user-1")
		assert.Equal(t, models.SubscriptionActive, sub.Status)
		assert.Equal(t, periodStart, sub.CurrentPeriodStart)
		user, _ := repo.GetUser(ctx, "user-1")
		assert.Equal(t, models.TierPremium, user.Tier)
	})

	t.Run("paid before checkout creates record", func(t *testing.T) {
		repo := newMemRepository(&models.User{UUID: "user-1", Tier: models.TierFree})
		info := activeSub()
		info.UserUID = "user-1"
		provider := new(MockProvider)
		provider.On("GetSubscription", mock.Anything, "sub_1").Return(info, nil).Once()
		svc := New(repo, provider, newNoopLogger())

		require.NoError(t, svc.HandleEvent(ctx, event(t, paymentprovider.EventInvoicePaid, map[string]any{
			"id": "in_1", "subscription": "sub_1",
		})))
		sub, err := repo.GetSubscriptionByUser(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, "sub_1", sub.StripeSubscriptionID)
	})

	t.Run("payment failed updates status only", func(t *testing.T) {
		repo := newMemRepository(&models.User{UUID: "user-1", Tier: models.TierPremium})
		repo.subs["user-1"] = &models.Subscription{UserUID: "user-1", StripeSubscriptionID: "sub_1", Status: models.SubscriptionActive}
		info := activeSub()
		info.Status = models.SubscriptionPastDue
		provider := new(MockProvider)
		provider.On("GetSubscription", mock.Anything, "sub_1").Return(info, nil).Once()
		svc := New(repo, provider, newNoopLogger())

		require.NoError(t, svc.HandleEvent(ctx, event(t, paymentprovider.EventInvoicePaymentFailed, map[string]any{
			"id": "in_1", "subscription": "sub_1",
		})))
		sub, _ := repo.GetSubscriptionByUser(ctx, "user-1")
		assert.Equal(t, models.SubscriptionPastDue, sub.Status)
		assert.True(t, sub.CurrentPeriodEnd.IsZero())
		user, _ := repo.GetUser(ctx, "user-1")
		assert.Equal(t, models.TierPremium, user.Tier)
	})

	t.Run("provider failure is returned for retry", func(t *testing.T) {
		repo := newMemRepository()
		provider := new(MockProvider)
		provider.On("GetSubscription", mock.Anything, "sub_1").Return(nil, errors.New("stripe unavailable")).Once()
		svc := New(repo, provider, newNoopLogger())

		err := svc.HandleEvent(ctx, event(t, paymentprovider.EventInvoicePaid, map[string]any{
			"id": "in_1", "subscription": "sub_1",
		}))
		assert.Error(t, err)
	})
}

func TestPaymentService_SubscriptionUpdated(t *testing.T) {
	repo := newMemRepository(&models.User{UUID: "user-1", Tier: models.TierPremium})
	repo.subs["user-1"] = &models.Subscription{UserUID: "user-1", StripeSubscriptionID: "sub_1", Status: models.SubscriptionActive}
	svc := New(repo, new(MockProvider), newNoopLogger())

	err := svc.HandleEvent(context.Background(), event(t, paymentprovider.EventSubscriptionUpdated, map[string]any{
		"id":                   "sub_1",
		"status":               "active",
		"cancel_at_period_end": true,
		"current_period_start": periodStart.Unix(),
		"current_period_end":   periodEnd.Unix(),
	}))
	require.NoError(t, err)

	sub, _ := repo.GetSubscriptionByUser(context.Background(), "user-1")
	assert.True(t, sub.CancelAtPeriodEnd)
	assert.Equal(t, periodEnd, sub.CurrentPeriodEnd)
}

func TestPaymentService_UnknownAndOrphanEvents(t *testing.T) {
	repo := newMemRepository()
	svc := New(repo, new(MockProvider), newNoopLogger())
	ctx := context.Background()

	assert.NoError(t, svc.HandleEvent(ctx, &paymentprovider.Event{ID: "evt_1", Type: "customer.created", Raw: json.RawMessage(`{}`)}))
	assert.NoError(t, svc.HandleEvent(ctx, event(t, paymentprovider.EventSubscriptionDeleted, map[string]any{"id": "sub_unknown"})))
	assert.NoError(t, svc.HandleEvent(ctx, event(t, paymentprovider.EventSubscriptionUpdated, map[string]any{"id": "sub_unknown"})))
}

func TestPaymentService_DatabaseFailureIsReturned(t *testing.T) {
	repo := newMemRepository(&models.User{UUID: "user-1"})
	repo.fail = errors.New("db down")
	provider := new(MockProvider)
	provider.On("GetSubscription", mock.Anything, "sub_1").Return(activeSub(), nil).Once()
	svc := New(repo, provider, newNoopLogger())

	err := svc.HandleEvent(context.Background(), event(t, paymentprovider.EventCheckoutSessionCompleted, map[string]any{
		"id": "cs_1", "subscription": "sub_1", "metadata": map[string]string{"userId": "user-1"},
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestPaymentService_CreateCheckoutSession(t *testing.T) {
	tests := []struct {
		name       string
		user       *models.User
		setupMocks func(p *MockProvider)
		wantErr    error
		wantCustID string
	}{
		{
			name: "creates customer first",
			user: &models.User{UUID: "user-1", Email: "a@example.com", Name: "Alice", Tier: models.TierFree},
			setupMocks: func(p *MockProvider) {
				p.On("CreateCustomer", mock.Anything, "a@example.com", "Alice", "user-1").Return("cus_new", nil).Once()
				p.On("CreateCheckoutSession", mock.Anything, paymentprovider.CheckoutParams{CustomerID: "cus_new", UserUID: "user-1"}).
					Return(&models.CheckoutSession{SessionID: "cs_1", URL: "https://checkout"}, nil).Once()
			},
			wantCustID: "cus_new",
		},
		{
			name: "reuses customer",
			user: &models.User{UUID: "user-1", Tier: models.TierFree, StripeCustomerID: "cus_old"},
			setupMocks: func(p *MockProvider) {
				p.On("CreateCheckoutSession", mock.Anything, paymentprovider.CheckoutParams{CustomerID: "cus_old", UserUID: "user-1"}).
					Return(&models.CheckoutSession{SessionID: "cs_1", URL: "https://checkout"}, nil).Once()
			},
			wantCustID: "cus_old",
		},
		{
			name:       "already premium",
			user:       &models.User{UUID: "user-1", Tier: models.TierPremium},
			setupMocks: func(_ *MockProvider) {},
			wantErr:    models.ErrAlreadyPremium,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemRepository(tt.user)
			provider := new(MockProvider)
			tt.setupMocks(provider)
			svc := New(repo, provider, newNoopLogger())

			session, err := svc.CreateCheckoutSession(context.Background(), "user-1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "cs_1", session.SessionID)
			user, _ := repo.GetUser(context.Background(), "user-1")
			assert.Equal(t, tt.wantCustID, user.StripeCustomerID)
			provider.AssertExpectations(t)
		})
	}
}

func TestPaymentService_CancelSubscription(t *testing.T) {
	ctx := context.Background()

	t.Run("no subscription", func(t *testing.T) {
		svc := New(newMemRepository(&models.User{UUID: "user-1"}), new(MockProvider), newNoopLogger())
		_, err := svc.CancelSubscription(ctx, "user-1")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("cancel at period end", func(t *testing.T) {
		repo := newMemRepository(&models.User{UUID: "user-1", Tier: models.TierPremium})
		repo.subs["user-1"] = &models.Subscription{UserUID: "user-1", StripeSubscriptionID: "sub_1", Status: models.SubscriptionActive}
		provider := new(MockProvider)
		provider.On("SetCancelAtPeriodEnd", mock.Anything, "sub_1", true).Return(activeSub(), nil).Once()
		svc := New(repo, provider, newNoopLogger())

		sub, err := svc.CancelSubscription(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, sub.CancelAtPeriodEnd)
		stored, _ := repo.GetSubscriptionByUser(ctx, "user-1")
		assert.True(t, stored.CancelAtPeriodEnd)
		provider.AssertExpectations(t)
	})
}

func TestPaymentService_HandleWebhookSignature(t *testing.T) {
	client := paymentprovider.NewClient(config.Stripe{SecretKey: "sk_test", WebhookSecret: "whsec_test"}, nil)
	svc := New(newMemRepository(), client, newNoopLogger())
	payload := []byte(`{"id":"evt_1","object":"event","type":"customer.created","data":{"object":{}}}`)

	err := svc.HandleWebhook(context.Background(), payload, "t=1,v1=deadbeef")
	assert.ErrorIs(t, err, models.ErrSignature)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    "whsec_test",
		Timestamp: time.Now(),
	})
	assert.NoError(t, svc.HandleWebhook(context.Background(), payload, signed.Header))
}
