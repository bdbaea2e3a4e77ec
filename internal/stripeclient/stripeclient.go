package stripeclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"giftsync/entity"
	"giftsync/internal/config"
	"giftsync/lib/sl"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// ErrSignature marks every failure to turn a request into a trusted event.
var ErrSignature = errors.New("invalid webhook")

type StripeClient struct {
	sc            *client.API
	webhookSecret string
	tolerance     time.Duration
	log           *slog.Logger
}

// New creates the client; backends may be nil to use the Stripe API.
func New(conf config.StripeConfig, backends *stripe.Backends, logger *slog.Logger) *StripeClient {
	sc := &client.API{}
	sc.Init(conf.APIKey, backends)
	tolerance := conf.Tolerance
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	log := logger.With(sl.Module("stripe"))
	log.With(
		sl.Secret("api_key", conf.APIKey),
		sl.Secret("webhook_secret", conf.WebhookSecret),
		slog.Duration("tolerance", tolerance),
	).Debug("stripe client initialized")
	return &StripeClient{
		sc:            sc,
		webhookSecret: conf.WebhookSecret,
		tolerance:     tolerance,
		log:           log,
	}
}

// VerifyEvent checks the Stripe-Signature header against the raw body and
// decodes the event.
func (s *StripeClient) VerifyEvent(payload []byte, header string) (*stripe.Event, error) {
	if s.webhookSecret == "" {
		return nil, fmt.Errorf("%w: webhook secret is not configured", ErrSignature)
	}
	if header == "" {
		return nil, fmt.Errorf("%w: missing signature header", ErrSignature)
	}
	evt, err := webhook.ConstructEventWithOptions(payload, header, s.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                s.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignature, err)
	}
	return &evt, nil
}

// Session decodes the checkout session carried by a checkout event.
func (s *StripeClient) Session(evt *stripe.Event) (*entity.CheckoutSession, error) {
	if evt == nil || evt.Data == nil || len(evt.Data.Raw) == 0 {
		return nil, fmt.Errorf("event has no data object")
	}
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(evt.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	var presence struct {
		AmountTotal *int64 `json:"amount_total"`
	}
	if err := json.Unmarshal(evt.Data.Raw, &presence); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	return entity.NewFromCheckoutSession(&sess, presence.AmountTotal != nil), nil
}

// LineItems lists the session's line items with price.product expanded.
func (s *StripeClient) LineItems(ctx context.Context, sessionID string) ([]entity.LineItem, error) {
	log := s.log.With(slog.String("session_id", sessionID))
	t1 := time.Now()

	params := &stripe.CheckoutSessionListLineItemsParams{
		Session: stripe.String(sessionID),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(100)
	params.AddExpand("data.price.product")

	var items []entity.LineItem
	iter := s.sc.CheckoutSessions.ListLineItems(params)
	for iter.Next() {
		items = append(items, entity.NewLineItem(iter.LineItem()))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list line items: %w", parseErr(err))
	}

	log.With(
		slog.Int("count", len(items)),
		slog.String("duration", fmt.Sprintf("%.3fms", float64(time.Since(t1))/float64(time.Millisecond))),
	).Debug("line items fetched")
	return items, nil
}

// Product retrieves a product referenced by ID only.
func (s *StripeClient) Product(ctx context.Context, id string) (*entity.Product, error) {
	params := &stripe.ProductParams{}
	params.Context = ctx
	p, err := s.sc.Products.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", parseErr(err))
	}
	product := entity.NewProduct(p)
	product.Resolved = true
	return product, nil
}

// CustomerName looks up the display name of a Stripe customer.
func (s *StripeClient) CustomerName(ctx context.Context, id string) (string, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	c, err := s.sc.Customers.Get(id, params)
	if err != nil {
		return "", fmt.Errorf("get customer: %w", parseErr(err))
	}
	return c.Name, nil
}
