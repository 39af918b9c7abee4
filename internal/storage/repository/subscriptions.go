package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/magabrotheeeer/video-downloader/internal/models"
)

const subscriptionColumns = `id, user_uid, stripe_subscription_id, stripe_price_id, stripe_customer_id, status, plan,
	current_period_start, current_period_end, cancel_at_period_end, created_at, updated_at`

func scanSubscription(row rowScanner) (*models.Subscription, error) {
	var (
		sub    models.Subscription
		status string
	)
	if err := row.Scan(&sub.ID, &sub.UserUID, &sub.StripeSubscriptionID, &sub.StripePriceID, &sub.StripeCustomerID,
		&status, &sub.Plan, &sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.CancelAtPeriodEnd,
		&sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return nil, err
	}
	sub.Status = models.SubscriptionStatus(status)
	return &sub, nil
}

// ActivateSubscription сохраняет подписку пользователя и переводит его на premium в одной транзакции.
// У пользователя одна запись подписки, новая подписка заменяет данные прежней.
func (s *Storage) ActivateSubscription(ctx context.Context, sub models.Subscription) error {
	const op = "storage.ActivateSubscription"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer rollback(tx)

	query := `INSERT INTO subscriptions (user_uid, stripe_subscription_id, stripe_price_id, stripe_customer_id,
			      status, plan, current_period_start, current_period_end, cancel_at_period_end)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			  ON CONFLICT (user_uid) DO UPDATE SET
			      stripe_subscription_id = EXCLUDED.stripe_subscription_id,
			      stripe_price_id = EXCLUDED.stripe_price_id,
			      stripe_customer_id = EXCLUDED.stripe_customer_id,
			      status = EXCLUDED.status,
			      plan = EXCLUDED.plan,
			      current_period_start = EXCLUDED.current_period_start,
			      current_period_end = EXCLUDED.current_period_end,
			      cancel_at_period_end = EXCLUDED.cancel_at_period_end,
			      updated_at = NOW()`
	if _, err = tx.ExecContext(ctx, query, sub.UserUID, sub.StripeSubscriptionID, sub.StripePriceID,
		sub.StripeCustomerID, string(sub.Status), sub.Plan, sub.CurrentPeriodStart, sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	res, err := tx.ExecContext(ctx, `UPDATE users SET tier = 'premium' WHERE uid = $1`, sub.UserUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetSubscriptionByUser возвращает подписку пользователя.
func (s *Storage) GetSubscriptionByUser(ctx context.Context, userUID string) (*models.Subscription, error) {
	const op = "storage.GetSubscriptionByUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_uid = $1`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, userUID))
	if err != nil {
		return nil, notFound(op, err)
	}
	return sub, nil
}

// GetSubscriptionByStripeID возвращает подписку по идентификатору Stripe.
func (s *Storage) GetSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error) {
	const op = "storage.GetSubscriptionByStripeID"

	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE stripe_subscription_id = $1`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, stripeSubscriptionID))
	if err != nil {
		return nil, notFound(op, err)
	}
	return sub, nil
}

// UpdateSubscriptionStatus меняет только статус.
func (s *Storage) UpdateSubscriptionStatus(ctx context.Context, stripeSubscriptionID string,
	status models.SubscriptionStatus) error {
	const op = "storage.UpdateSubscriptionStatus"
	return s.execOne(ctx, op, `UPDATE subscriptions SET status = $2, updated_at = NOW()
			  WHERE stripe_subscription_id = $1`, stripeSubscriptionID, string(status))
}

// UpdateSubscriptionPeriod меняет статус, границы периода и флаг отмены.
func (s *Storage) UpdateSubscriptionPeriod(ctx context.Context, stripeSubscriptionID string,
	status models.SubscriptionStatus, start, end time.Time, cancelAtPeriodEnd bool) error {
	const op = "storage.UpdateSubscriptionPeriod"
	return s.execOne(ctx, op, `UPDATE subscriptions
			  SET status = $2, current_period_start = $3, current_period_end = $4,
			      cancel_at_period_end = $5, updated_at = NOW()
			  WHERE stripe_subscription_id = $1`,
		stripeSubscriptionID, string(status), start, end, cancelAtPeriodEnd)
}

// SetCancelAtPeriodEnd меняет флаг отмены в конце периода.
func (s *Storage) SetCancelAtPeriodEnd(ctx context.Context, stripeSubscriptionID string, cancel bool) error {
	const op = "storage.SetCancelAtPeriodEnd"
	return s.execOne(ctx, op, `UPDATE subscriptions SET cancel_at_period_end = $2, updated_at = NOW()
			  WHERE stripe_subscription_id = $1`, stripeSubscriptionID, cancel)
}

// DeactivateSubscription отмечает подписку отменённой и возвращает владельца на free.
// Возвращает UID владельца.
func (s *Storage) DeactivateSubscription(ctx context.Context, stripeSubscriptionID string) (string, error) {
	const op = "storage.DeactivateSubscription"

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer rollback(tx)

	var userUID string
	if err = tx.QueryRowContext(ctx, `UPDATE subscriptions
			  SET status = 'canceled', updated_at = NOW()
			  WHERE stripe_subscription_id = $1
			  RETURNING user_uid`, stripeSubscriptionID).Scan(&userUID); err != nil {
		return "", notFound(op, err)
	}
	if _, err = tx.ExecContext(ctx, `UPDATE users SET tier = 'free' WHERE uid = $1`, userUID); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return userUID, nil
}
