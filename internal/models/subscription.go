package models

import "time"

// SubscriptionStatus статус подписки в биллинге.
type SubscriptionStatus string

const (
	SubscriptionActive            SubscriptionStatus = "active"
	SubscriptionCanceled          SubscriptionStatus = "canceled"
	SubscriptionPastDue           SubscriptionStatus = "past_due"
	SubscriptionUnpaid            SubscriptionStatus = "unpaid"
	SubscriptionIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionIncompleteExpired SubscriptionStatus = "incomplete_expired"
)

// PlanPremium единственный платный план.
const PlanPremium = "premium"

// Subscription локальная копия подписки биллинга. Не удаляется физически.
type Subscription struct {
	ID                   int64              `json:"id"`
	UserUID              string             `json:"user_id"`
	StripeSubscriptionID string             `json:"stripe_subscription_id"`
	StripePriceID        string             `json:"stripe_price_id"`
	StripeCustomerID     string             `json:"stripe_customer_id"`
	Status               SubscriptionStatus `json:"status"`
	Plan                 string             `json:"plan"`
	CurrentPeriodStart   time.Time          `json:"current_period_start"`
	CurrentPeriodEnd     time.Time          `json:"current_period_end"`
	CancelAtPeriodEnd    bool               `json:"cancel_at_period_end"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// CheckoutSession результат создания сессии оплаты.
type CheckoutSession struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}
