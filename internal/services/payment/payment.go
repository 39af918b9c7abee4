// Package payment оформление premium-подписки через Stripe и синхронизация
// её состояния по событиям вебхука.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/video-downloader/internal/lib/sl"
	"github.com/magabrotheeeer/video-downloader/internal/models"
	"github.com/magabrotheeeer/video-downloader/internal/paymentprovider"
)

// Repository пользователи и подписки.
type Repository interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	GetUserByStripeCustomer(ctx context.Context, customerID string) (*models.User, error)
	SetStripeCustomerID(ctx context.Context, userUID, customerID string) error
	SetTier(ctx context.Context, userUID string, tier models.Tier) error
	ActivateSubscription(ctx context.Context, sub models.Subscription) error
	GetSubscriptionByUser(ctx context.Context, userUID string) (*models.Subscription, error)
	GetSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error)
	UpdateSubscriptionStatus(ctx context.Context, stripeSubscriptionID string, status models.SubscriptionStatus) error
	UpdateSubscriptionPeriod(ctx context.Context, stripeSubscriptionID string,
		status models.SubscriptionStatus, start, end time.Time, cancelAtPeriodEnd bool) error
	SetCancelAtPeriodEnd(ctx context.Context, stripeSubscriptionID string, cancel bool) error
	DeactivateSubscription(ctx context.Context, stripeSubscriptionID string) (string, error)
}

// Provider биллинг-провайдер.
type Provider interface {
	CreateCustomer(ctx context.Context, email, name, userUID string) (string, error)
	CreateCheckoutSession(ctx context.Context, p paymentprovider.CheckoutParams) (*models.CheckoutSession, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*paymentprovider.SubscriptionInfo, error)
	SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) (*paymentprovider.SubscriptionInfo, error)
	ConstructEvent(payload []byte, signature string) (*paymentprovider.Event, error)
}

// PaymentService оформление и синхронизация подписок.
type PaymentService struct {
	repo     Repository
	provider Provider
	log      *slog.Logger
}

// New создает новый экземпляр PaymentService.
func New(repo Repository, provider Provider, log *slog.Logger) *PaymentService {
	return &PaymentService{
		repo:     repo,
		provider: provider,
		log:      log,
	}
}

// CreateCheckoutSession создаёт сессию оплаты, при необходимости заводя клиента Stripe.
func (s *PaymentService) CreateCheckoutSession(ctx context.Context, userUID string) (*models.CheckoutSession, error) {
	const op = "payment.CreateCheckoutSession"
	user, err := s.repo.GetUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if user.Tier == models.TierPremium {
		return nil, fmt.Errorf("%s: %w", op, models.ErrAlreadyPremium)
	}

	customerID := user.StripeCustomerID
	if customerID == "" {
		customerID, err = s.provider.CreateCustomer(ctx, user.Email, user.Name, user.UUID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err = s.repo.SetStripeCustomerID(ctx, user.UUID, customerID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	session, err := s.provider.CreateCheckoutSession(ctx, paymentprovider.CheckoutParams{
		CustomerID: customerID,
		UserUID:    user.UUID,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("checkout session created", slog.String("user_uid", user.UUID), slog.String("session_id", session.SessionID))
	return session, nil
}

// GetSubscription подписка пользователя.
func (s *PaymentService) GetSubscription(ctx context.Context, userUID string) (*models.Subscription, error) {
	const op = "payment.GetSubscription"
	sub, err := s.repo.GetSubscriptionByUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// CancelSubscription отменяет подписку в конце оплаченного периода.
func (s *PaymentService) CancelSubscription(ctx context.Context, userUID string) (*models.Subscription, error) {
	const op = "payment.CancelSubscription"
	sub, err := s.repo.GetSubscriptionByUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if sub.Status == models.SubscriptionCanceled {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	if _, err = s.provider.SetCancelAtPeriodEnd(ctx, sub.StripeSubscriptionID, true); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = s.repo.SetCancelAtPeriodEnd(ctx, sub.StripeSubscriptionID, true); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sub.CancelAtPeriodEnd = true
	s.log.Info("subscription set to cancel at period end", slog.String("user_uid", userUID))
	return sub, nil
}

// HandleWebhook проверяет подпись и применяет событие.
// Ошибка подписи оборачивает models.ErrSignature, прочие ошибки означают,
// что провайдер должен повторить доставку.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	const op = "payment.HandleWebhook"
	event, err := s.provider.ConstructEvent(payload, signature)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err = s.HandleEvent(ctx, event); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ignoreNotFound подавляет ErrNotFound для событий о неизвестных подписках.
func (s *PaymentService) ignoreNotFound(log *slog.Logger, err error) error {
	if errors.Is(err, models.ErrNotFound) {
		log.Warn("no local record for event, skipping", sl.Err(err))
		return nil
	}
	return err
}
