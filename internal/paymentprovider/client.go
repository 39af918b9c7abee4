// Package paymentprovider клиент Stripe: клиенты, сессии оплаты, подписки и вебхуки.
package paymentprovider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/magabrotheeeer/video-downloader/internal/config"
	"github.com/magabrotheeeer/video-downloader/internal/models"
)

const webhookTolerance = 5 * time.Minute

// Client обёртка над stripe-go.
type Client struct {
	sc            *client.API
	webhookSecret string
	priceID       string
	unitAmount    int64
	currency      string
	frontendURL   string
}

// NewClient создаёт клиент. backends nil означает боевой API Stripe.
func NewClient(cfg config.Stripe, backends *stripe.Backends) *Client {
	currency := cfg.Currency
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	unitAmount := cfg.UnitAmount
	if unitAmount <= 0 {
		unitAmount = 999
	}
	return &Client{
		sc:            client.New(cfg.SecretKey, backends),
		webhookSecret: cfg.WebhookSecret,
		priceID:       cfg.PriceID,
		unitAmount:    unitAmount,
		currency:      currency,
		frontendURL:   strings.TrimRight(cfg.FrontendURL, "/"),
	}
}

// CreateCustomer создаёт клиента Stripe и возвращает его id.
func (c *Client) CreateCustomer(ctx context.Context, email, name, userUID string) (string, error) {
	const op = "paymentprovider.CreateCustomer"
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	params.AddMetadata(MetadataUserID, userUID)

	cus, err := c.sc.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return cus.ID, nil
}

// CreateCheckoutSession создаёт сессию оплаты в режиме подписки.
func (c *Client) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*models.CheckoutSession, error) {
	const op = "paymentprovider.CreateCheckoutSession"

	lineItem := &stripe.CheckoutSessionLineItemParams{Quantity: stripe.Int64(1)}
	if c.priceID != "" {
		lineItem.Price = stripe.String(c.priceID)
	} else {
		lineItem.PriceData = &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(c.currency),
			UnitAmount: stripe.Int64(c.unitAmount),
			Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
				Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
			},
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String("Premium"),
			},
		}
	}

	params := &stripe.CheckoutSessionParams{
		Customer:          stripe.String(p.CustomerID),
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		ClientReferenceID: stripe.String(p.UserUID),
		SuccessURL:        stripe.String(c.frontendURL + "/payment/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(c.frontendURL + "/payment/cancel"),
		LineItems:         []*stripe.CheckoutSessionLineItemParams{lineItem},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{MetadataUserID: p.UserUID},
		},
	}
	params.Context = ctx
	params.AddMetadata(MetadataUserID, p.UserUID)

	s, err := c.sc.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &models.CheckoutSession{SessionID: s.ID, URL: s.URL}, nil
}

// GetSubscription читает подписку у провайдера.
func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*SubscriptionInfo, error) {
	const op = "paymentprovider.GetSubscription"
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := c.sc.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return subscriptionInfo(sub), nil
}

// SetCancelAtPeriodEnd включает или снимает отмену подписки в конце периода.
func (c *Client) SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) (*SubscriptionInfo, error) {
	const op = "paymentprovider.SetCancelAtPeriodEnd"
	params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(cancel)}
	params.Context = ctx
	sub, err := c.sc.Subscriptions.Update(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return subscriptionInfo(sub), nil
}

// ConstructEvent проверяет подпись вебхука. Ошибка проверки оборачивает models.ErrSignature.
func (c *Client) ConstructEvent(payload []byte, signature string) (*Event, error) {
	const op = "paymentprovider.ConstructEvent"
	if c.webhookSecret == "" {
		return nil, fmt.Errorf("%s: %w", op, errors.Join(models.ErrSignature, errors.New("webhook secret is not configured")))
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                webhookTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, errors.Join(models.ErrSignature, err))
	}
	out := &Event{ID: event.ID, Type: string(event.Type)}
	if event.Data != nil {
		out.Raw = event.Data.Raw
	}
	return out, nil
}

// ParseCheckoutSession разбирает объект события checkout.session.completed.
func ParseCheckoutSession(raw json.RawMessage) (*CheckoutCompleted, error) {
	const op = "paymentprovider.ParseCheckoutSession"
	var s stripe.CheckoutSession
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out := &CheckoutCompleted{SessionID: s.ID, UserUID: s.Metadata[MetadataUserID]}
	if out.UserUID == "" {
		out.UserUID = s.ClientReferenceID
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.Subscription != nil {
		out.SubscriptionID = s.Subscription.ID
	}
	return out, nil
}

// ParseSubscription разбирает объект события customer.subscription.*.
func ParseSubscription(raw json.RawMessage) (*SubscriptionInfo, error) {
	const op = "paymentprovider.ParseSubscription"
	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if sub.ID == "" {
		return nil, fmt.Errorf("%s: subscription id is empty", op)
	}
	return subscriptionInfo(&sub), nil
}

// ParseInvoice разбирает объект события invoice.*.
func ParseInvoice(raw json.RawMessage) (*InvoiceEvent, error) {
	const op = "paymentprovider.ParseInvoice"
	var inv stripe.Invoice
	if err := json.Unmarshal(raw, &inv); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out := &InvoiceEvent{InvoiceID: inv.ID}
	if inv.Subscription != nil {
		out.SubscriptionID = inv.Subscription.ID
	}
	if inv.Customer != nil {
		out.CustomerID = inv.Customer.ID
	}
	return out, nil
}

func subscriptionInfo(sub *stripe.Subscription) *SubscriptionInfo {
	info := &SubscriptionInfo{
		ID:                sub.ID,
		Status:            models.SubscriptionStatus(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		UserUID:           sub.Metadata[MetadataUserID],
	}
	if sub.CurrentPeriodStart > 0 {
		info.PeriodStart = time.Unix(sub.CurrentPeriodStart, 0).UTC()
	}
	if sub.CurrentPeriodEnd > 0 {
		info.PeriodEnd = time.Unix(sub.CurrentPeriodEnd, 0).UTC()
	}
	if sub.Customer != nil {
		info.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		info.PriceID = sub.Items.Data[0].Price.ID
	}
	return info
}
