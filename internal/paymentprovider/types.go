package paymentprovider

import (
	"encoding/json"
	"time"

	"github.com/magabrotheeeer/video-downloader/internal/models"
)

// Типы событий Stripe, на которые реагирует сервис.
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventInvoicePaid              = "invoice.paid"
	EventInvoicePaymentFailed     = "invoice.payment_failed"
	EventSubscriptionUpdated      = "customer.subscription.updated"
	EventSubscriptionDeleted      = "customer.subscription.deleted"
)

// MetadataUserID ключ метаданных с идентификатором пользователя.
const MetadataUserID = "userId"

// Event проверенное событие вебхука.
type Event struct {
	ID   string
	Type string
	Raw  json.RawMessage
}

// SubscriptionInfo состояние подписки у провайдера.
type SubscriptionInfo struct {
	ID                string
	CustomerID        string
	PriceID           string
	UserUID           string
	Status            models.SubscriptionStatus
	PeriodStart       time.Time
	PeriodEnd         time.Time
	CancelAtPeriodEnd bool
}

// CheckoutCompleted данные завершённой сессии оплаты.
type CheckoutCompleted struct {
	SessionID      string
	CustomerID     string
	SubscriptionID string
	UserUID        string
}

// InvoiceEvent данные счёта.
type InvoiceEvent struct {
	InvoiceID      string
	SubscriptionID string
	CustomerID     string
}

// CheckoutParams параметры новой сессии оплаты.
type CheckoutParams struct {
	CustomerID string
	UserUID    string
}
