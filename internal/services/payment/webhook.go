package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/video-downloader/internal/metrics"
	"github.com/magabrotheeeer/video-downloader/internal/models"
	"github.com/magabrotheeeer/video-downloader/internal/paymentprovider"
)

// HandleEvent применяет проверенное событие. Неизвестные типы подтверждаются без действий.
func (s *PaymentService) HandleEvent(ctx context.Context, event *paymentprovider.Event) error {
	const op = "payment.HandleEvent"
	log := s.log.With(slog.String("op", op), slog.String("event_id", event.ID), slog.String("event_type", event.Type))

	var err error
	switch event.Type {
	case paymentprovider.EventCheckoutSessionCompleted:
		err = s.onCheckoutCompleted(ctx, log, event)
	case paymentprovider.EventInvoicePaid:
		err = s.onInvoice(ctx, log, event, true)
	case paymentprovider.EventInvoicePaymentFailed:
		err = s.onInvoice(ctx, log, event, false)
	case paymentprovider.EventSubscriptionUpdated:
		err = s.onSubscriptionUpdated(ctx, log, event)
	case paymentprovider.EventSubscriptionDeleted:
		err = s.onSubscriptionDeleted(ctx, log, event)
	default:
		log.Debug("unhandled event type")
		metrics.WebhookEvents.WithLabelValues("other", "ignored").Inc()
		return nil
	}

	if err != nil {
		metrics.WebhookEvents.WithLabelValues(event.Type, "error").Inc()
		return fmt.Errorf("%s: %s: %w", op, event.Type, err)
	}
	metrics.WebhookEvents.WithLabelValues(event.Type, "ok").Inc()
	log.Info("event processed")
	return nil
}

func subscriptionRecord(userUID string, info *paymentprovider.SubscriptionInfo) models.Subscription {
	return models.Subscription{
		UserUID:              userUID,
		StripeSubscriptionID: info.ID,
		StripePriceID:        info.PriceID,
		StripeCustomerID:     info.CustomerID,
		Status:               info.Status,
		Plan:                 models.PlanPremium,
		CurrentPeriodStart:   info.PeriodStart,
		CurrentPeriodEnd:     info.PeriodEnd,
		CancelAtPeriodEnd:    info.CancelAtPeriodEnd,
	}
}

// resolveUser владелец по метаданным, затем по клиенту Stripe.
func (s *PaymentService) resolveUser(ctx context.Context, userUID, customerID string) (string, error) {
	if userUID != "" {
		return userUID, nil
	}
	if customerID == "" {
		return "", models.ErrNotFound
	}
	user, err := s.repo.GetUserByStripeCustomer(ctx, customerID)
	if err != nil {
		return "", err
	}
	return user.UUID, nil
}

func (s *PaymentService) onCheckoutCompleted(ctx context.Context, log *slog.Logger, event *paymentprovider.Event) error {
	session, err := paymentprovider.ParseCheckoutSession(event.Raw)
	if err != nil {
		return err
	}
	if session.SubscriptionID == "" {
		log.Warn("checkout session without subscription, skipping")
		return nil
	}

	userUID, err := s.resolveUser(ctx, session.UserUID, session.CustomerID)
	if err != nil {
		return s.ignoreNotFound(log, err)
	}

	info, err := s.provider.GetSubscription(ctx, session.SubscriptionID)
	if err != nil {
		return err
	}
	if err = s.repo.ActivateSubscription(ctx, subscriptionRecord(userUID, info)); err != nil {
		return s.ignoreNotFound(log, err)
	}
	log.Info("subscription activated", slog.String("user_uid", userUID))
	return nil
}

func (s *PaymentService) onInvoice(ctx context.Context, log *slog.Logger, event *paymentprovider.Event, paid bool) error {
	invoice, err := paymentprovider.ParseInvoice(event.Raw)
	if err != nil {
		return err
	}
	if invoice.SubscriptionID == "" {
		log.Debug("invoice without subscription, skipping")
		return nil
	}

	info, err := s.provider.GetSubscription(ctx, invoice.SubscriptionID)
	if err != nil {
		return err
	}

	if !paid {
		return s.ignoreNotFound(log, s.repo.UpdateSubscriptionStatus(ctx, info.ID, info.Status))
	}

	local, err := s.repo.GetSubscriptionByStripeID(ctx, info.ID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		// счёт пришёл раньше checkout.session.completed
		userUID, resolveErr := s.resolveUser(ctx, info.UserUID, info.CustomerID)
		if resolveErr != nil {
			return s.ignoreNotFound(log, resolveErr)
		}
		return s.ignoreNotFound(log, s.repo.ActivateSubscription(ctx, subscriptionRecord(userUID, info)))
	case err != nil:
		return err
	}

	if err = s.repo.UpdateSubscriptionPeriod(ctx, info.ID, info.Status, info.PeriodStart, info.PeriodEnd,
		info.CancelAtPeriodEnd); err != nil {
		return err
	}
	return s.repo.SetTier(ctx, local.UserUID, models.TierPremium)
}

func (s *PaymentService) onSubscriptionUpdated(ctx context.Context, log *slog.Logger, event *paymentprovider.Event) error {
	info, err := paymentprovider.ParseSubscription(event.Raw)
	if err != nil {
		return err
	}
	return s.ignoreNotFound(log, s.repo.UpdateSubscriptionPeriod(ctx, info.ID, info.Status, info.PeriodStart,
		info.PeriodEnd, info.CancelAtPeriodEnd))
}

func (s *PaymentService) onSubscriptionDeleted(ctx context.Context, log *slog.Logger, event *paymentprovider.Event) error {
	info, err := paymentprovider.ParseSubscription(event.Raw)
	if err != nil {
		return err
	}
	userUID, err := s.repo.DeactivateSubscription(ctx, info.ID)
	if err != nil {
		return s.ignoreNotFound(log, err)
	}
	log.Info("subscription canceled, user downgraded", slog.String("user_uid", userUID))
	return nil
}
