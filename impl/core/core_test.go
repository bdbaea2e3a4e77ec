package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"giftsync/entity"
	"giftsync/internal/mailchimp"
	"giftsync/internal/stripeclient"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

const goodSignature = "t=1,v1=good"

type fakeStripe struct {
	event      *stripe.Event
	session    *entity.CheckoutSession
	items      []entity.LineItem
	products   map[string]*entity.Product
	customers  map[string]string
	itemsErr   error
	panicOnSes bool
}

func (f *fakeStripe) VerifyEvent(_ []byte, header string) (*stripe.Event, error) {
	if header != goodSignature {
		return nil, fmt.Errorf("%w: bad signature", stripeclient.ErrSignature)
	}
	return f.event, nil
}

func (f *fakeStripe) Session(_ *stripe.Event) (*entity.CheckoutSession, error) {
	if f.panicOnSes {
		panic("broken session")
	}
	if f.session == nil {
		return nil, errors.New("no session")
	}
	return f.session, nil
}

func (f *fakeStripe) LineItems(_ context.Context, _ string) ([]entity.LineItem, error) {
	return f.items, f.itemsErr
}

func (f *fakeStripe) Product(_ context.Context, id string) (*entity.Product, error) {
	if p, ok := f.products[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("no such product: %s", id)
}

func (f *fakeStripe) CustomerName(_ context.Context, id string) (string, error) {
	if name, ok := f.customers[id]; ok {
		return name, nil
	}
	return "", fmt.Errorf("no such customer: %s", id)
}

type upsert struct {
	Email  string
	Fields map[string]string
}

type fakeCRM struct {
	mu      sync.Mutex
	upserts []upsert
	tags    map[string][]string
	fail    map[string]error
	// onUpsert runs before every upsert
	onUpsert func()
}

func newFakeCRM() *fakeCRM {
	return &fakeCRM{tags: make(map[string][]string), fail: make(map[string]error)}
}

func (f *fakeCRM) UpsertContact(_ context.Context, email string, fields map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.onUpsert != nil {
		f.onUpsert()
	}
	if err := f.fail[email]; err != nil {
		return err
	}
	f.upserts = append(f.upserts, upsert{Email: email, Fields: fields})
	return nil
}

func (f *fakeCRM) TagContact(_ context.Context, email, tag string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tags[email] = append(f.tags[email], tag)
	return nil
}

func (f *fakeCRM) upserted(email string) (map[string]string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.upserts {
		if u.Email == email {
			return u.Fields, true
		}
	}
	return nil, false
}

type fakeJournal struct {
	mu      sync.Mutex
	events  map[string]*entity.GiftEvent
	saveErr error
	saveDL  bool
}

func newFakeJournal() *fakeJournal {
	return &fakeJournal{events: make(map[string]*entity.GiftEvent)}
}

func (f *fakeJournal) SaveGiftEvent(ctx context.Context, event *entity.GiftEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		f.saveErr = err
		return err
	}
	_, f.saveDL = ctx.Deadline()
	f.events[event.EventID] = event
	return nil
}

func (f *fakeJournal) GetGiftEvent(_ context.Context, id string) (*entity.GiftEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[id], nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func amount(v int64) *int64 {
	return &v
}

func checkoutEvent(id string) *stripe.Event {
	return &stripe.Event{ID: id, Type: stripe.EventTypeCheckoutSessionCompleted}
}

func giftSession() *entity.CheckoutSession {
	return &entity.CheckoutSession{
		ID:          "cs_test_1",
		AmountTotal: amount(2500),
		Currency:    "eur",
		CustomerDetails: &entity.CustomerDetails{
			Email:   "buyer@example.com",
			Name:    "Luis",
			Country: "ES",
		},
		CustomFields: []entity.CustomField{
			{Key: "nombre", Label: "Nombre del cumpleañero", Text: "Ana"},
			{Key: "email", Label: "Email del cumpleañero", Text: "ana@example.com"},
			{Key: "mensaje", Label: "Mensaje para el cumpleañero", Text: "Feliz cumple"},
		},
	}
}

func giftItems() []entity.LineItem {
	return []entity.LineItem{{
		ID:          "li_1",
		Description: "Tarjeta",
		Quantity:    1,
		Price: &entity.Price{
			ID:      "price_1",
			Product: &entity.Product{ID: "prod_1", Name: "Tarjeta", Metadata: map[string]string{"gift_card": "true"}, Resolved: true},
		},
	}}
}

func newTestCore(st *fakeStripe, crm *fakeCRM) *Core {
	return New(st, crm, testLogger())
}

func TestStripeEventProcessed(t *testing.T) {
	st := &fakeStripe{event: checkoutEvent("evt_1"), session: giftSession(), items: giftItems()}
	crm := newFakeCRM()
	journal := newFakeJournal()
	c := newTestCore(st, crm)
	c.SetJournal(journal)

	result, err := c.StripeEvent(context.Background(), []byte("{}"), goodSignature)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Received)
	assert.Equal(t, entity.OutcomeProcessed, result.Outcome)
	assert.True(t, result.GiftCard)
	assert.Equal(t, "Tarjeta", result.Item)
	assert.Equal(t, "buyer@example.com", result.BuyerEmail)
	assert.Equal(t, "ana@example.com", result.RecipientEmail)
	assert.Empty(t, result.Diagnostics)

	buyer, ok := crm.upserted("buyer@example.com")
	require.True(t, ok)
	assert.Equal(t, "Luis", buyer["SENDER"])
	assert.Equal(t, "Spain", buyer["COUNTRY"])
	assert.Regexp(t, `^BESP-[0-9A-F]{4}-[0-9A-F]{4}$`, buyer["GIFTCODE"])

	recipient, ok := crm.upserted("ana@example.com")
	require.True(t, ok)
	assert.Equal(t, "Ana", recipient["RECIPIENT"])
	assert.Equal(t, "Feliz cumple", recipient["GFTMSG"])
	assert.Equal(t, "25.00 EUR", recipient["AMOUNT"])
	assert.Equal(t, buyer["GIFTCODE"], recipient["GIFTCODE"])

	assert.ElementsMatch(t, []string{"gift_buyer", "tarjeta_regalo"}, crm.tags["buyer@example.com"])
	assert.ElementsMatch(t, []string{"gift_recipient", "tarjeta_regalo"}, crm.tags["ana@example.com"])

	event := journal.events["evt_1"]
	require.NotNil(t, event)
	assert.Equal(t, entity.OutcomeProcessed, event.Outcome)
	assert.Equal(t, "cs_test_1", event.SessionID)
	assert.Equal(t, entity.StageItemMetadata, event.Stage)
	assert.Equal(t, mailchimp.SubscriberHash("buyer@example.com"), event.BuyerHash)
	assert.Equal(t, mailchimp.SubscriberHash("ana@example.com"), event.RecipientHash)
	assert.Equal(t, buyer["GIFTCODE"], event.GiftCode)
}

func TestStripeEventBadSignature(t *testing.T) {
	crm := newFakeCRM()
	c := newTestCore(&fakeStripe{event: checkoutEvent("evt_1")}, crm)

	result, err := c.StripeEvent(context.Background(), []byte("{}"), "t=1,v1=forged")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, stripeclient.ErrSignature)
	assert.Empty(t, crm.upserts)
}

func TestStripeEventUnhandled(t *testing.T) {
	crm := newFakeCRM()
	st := &fakeStripe{event: &stripe.Event{ID: "evt_2", Type: "payment_intent.succeeded"}}
	c := newTestCore(st, crm)

	result, err := c.StripeEvent(context.Background(), nil, goodSignature)
	require.NoError(t, err)
	assert.Equal(t, entity.OutcomeUnhandled, result.Outcome)
	assert.Equal(t, "payment_intent.succeeded", result.EventType)
	assert.True(t, result.Received)
	assert.Empty(t, crm.upserts)
}

func TestStripeEventIgnored(t *testing.T) {
	crm := newFakeCRM()
	st := &fakeStripe{
		event:   checkoutEvent("evt_3"),
		session: &entity.CheckoutSession{ID: "cs_2", CustomerEmail: "buyer@example.com"},
		items:   []entity.LineItem{{Description: "Cena para dos"}},
	}
	c := newTestCore(st, crm)

	result, err := c.StripeEvent(context.Background(), nil, goodSignature)
	require.NoError(t, err)
	assert.Equal(t, entity.OutcomeIgnored, result.Outcome)
	assert.False(t, result.GiftCard)
	assert.Empty(t, crm.upserts)
}

func TestStripeEventDuplicate(t *testing.T) {
	crm := newFakeCRM()
	journal := newFakeJournal()
	journal.events["evt_1"] = &entity.GiftEvent{EventID: "evt_1", Outcome: entity.OutcomeProcessed}
	c := newTestCore(&fakeStripe{event: checkoutEvent("evt_1"), session: giftSession(), items: giftItems()}, crm)
	c.SetJournal(journal)

	result, err := c.StripeEvent(context.Background(), nil, goodSignature)
	require.NoError(t, err)
	assert.Equal(t, entity.OutcomeDuplicate, result.Outcome)
	assert.Empty(t, crm.upserts)
}

func TestStripeEventRetriesPartial(t *testing.T) {
	crm := newFakeCRM()
	journal := newFakeJournal()
	journal.events["evt_1"] = &entity.GiftEvent{EventID: "evt_1", Outcome: entity.OutcomePartial}
	c := newTestCore(&fakeStripe{event: checkoutEvent("evt_1"), session: giftSession(), items: giftItems()}, crm)
	c.SetJournal(journal)

	result, err := c.StripeEvent(context.Background(), nil, goodSignature)
	require.NoError(t, err)
	assert.Equal(t, entity.OutcomeProcessed, result.Outcome)
	assert.Len(t, crm.upserts, 2)
	assert.Equal(t, entity.OutcomeProcessed, journal.events["evt_1"].Outcome)
}

func TestStripeEventPartial(t *testing.T) {
	crm := newFakeCRM()
	crm.fail["ana@example.com"] = errors.New("mailchimp 400 Bad Request: invalid")
	c := newTestCore(&fakeStripe{event: checkoutEvent("evt_1"), session: giftSession(), items: giftItems()}, crm)

	result, err := c.StripeEvent(context.Background(), nil, goodSignature)
	require.NoError(t, err)
	assert.Equal(t, entity.OutcomePartial, result.Outcome)
	require.Len(t, result.Diagnostics, 1)
	assert.Contains(t, result.Diagnostics[0], "recipient upsert")

	_, ok := crm.upserted("buyer@example.com")
	assert.True(t, ok)
	assert.Len(t, crm.tags["buyer@example.com"], 2)
	assert.Empty(t, crm.tags["ana@example.com"])
}

func TestStripeEventInvalidRecipientEmail(t *testing.T) {
	sess := giftSession()
	sess.CustomFields[1].Text = "ana at example"
	crm := newFakeCRM()
	c := newTestCore(&fakeStripe{event: checkoutEvent("evt_1"), session: sess, items: giftItems()}, crm)

	result, err := c.StripeEvent(context.Background(), nil, goodSignature)
	require.NoError(t, err)
	assert.Equal(t, entity.OutcomePartial, result.Outcome)
	require.Len(t, result.Diagnostics, 1)
	assert.Contains(t, result.Diagnostics[0], "recipient validate")
	assert.Len(t, crm.upserts, 1)
}

func TestStripeEventWithoutRecipient(t *testing.T) {
	sess := giftSession()
	sess.CustomFields = nil
	crm := newFakeCRM()
	c := newTestCore(&fakeStripe{event: checkoutEvent("evt_1"), session: sess, items: giftItems()}, crm)

	result, err := c.StripeEvent(context.Background(), nil, goodSignature)
	require.NoError(t, err)
	assert.Equal(t, entity.OutcomeProcessed, result.Outcome)
	assert.Empty(t, result.RecipientEmail)
	require.Len(t, crm.upserts, 1)
	assert.Equal(t, "buyer@example.com", crm.upserts[0].Email)
}

func TestStripeEventSenderFromCustomer(t *testing.T) {
	sess := &entity.CheckoutSession{
		ID:         "cs_3",
		CustomerID: "cus_1",
		Metadata:   map[string]string{"gift_card": "true", "recipient_email": "ana@example.com"},
	}
	crm := newFakeCRM()
	st := &fakeStripe{
		event:     checkoutEvent("evt_4"),
		session:   sess,
		customers: map[string]string{"cus_1": " Marta "},
	}
	c := newTestCore(st, crm)

	result, err := c.StripeEvent(context.Background(), nil, goodSignature)
	require.NoError(t, err)
	assert.Equal(t, entity.OutcomeProcessed, result.Outcome)
	fields, ok := crm.upserted("ana@example.com")
	require.True(t, ok)
	assert.Equal(t, "Marta", fields["SENDER"])
}

func TestStripeEventSoftError(t *testing.T) {
	tests := []struct {
		name   string
		stripe *fakeStripe
		diag   string
	}{
		{
			name:   "line items",
			stripe: &fakeStripe{event: checkoutEvent("evt_5"), session: giftSession(), itemsErr: errors.New("stripe down")},
			diag:   "line items: stripe down",
		},
		{
			name:   "session",
			stripe: &fakeStripe{event: checkoutEvent("evt_5")},
			diag:   "decode session",
		},
		{
			name:   "panic",
			stripe: &fakeStripe{event: checkoutEvent("evt_5"), panicOnSes: true},
			diag:   "internal error: broken session",
		},
		{
			name: "product lookup",
			stripe: &fakeStripe{
				event:   checkoutEvent("evt_5"),
				session: &entity.CheckoutSession{ID: "cs_4"},
				items:   []entity.LineItem{{Description: "Regalo", Price: &entity.Price{Product: &entity.Product{ID: "prod_missing"}}}},
			},
			diag: "classify",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crm := newFakeCRM()
			journal := newFakeJournal()
			c := newTestCore(tt.stripe, crm)
			c.SetJournal(journal)

			result, err := c.StripeEvent(context.Background(), nil, goodSignature)
			require.NoError(t, err)
			assert.Equal(t, entity.OutcomeSoftError, result.Outcome)
			require.NotEmpty(t, result.Diagnostics)
			assert.Contains(t, result.Diagnostics[0], tt.diag)
			assert.Empty(t, crm.upserts)
			require.NotNil(t, journal.events["evt_5"])
			assert.Equal(t, entity.OutcomeSoftError, journal.events["evt_5"].Outcome)
		})
	}
}

func TestStripeEventCustomTags(t *testing.T) {
	crm := newFakeCRM()
	c := newTestCore(&fakeStripe{event: checkoutEvent("evt_1"), session: giftSession(), items: giftItems()}, crm)
	c.SetTags(mailchimp.Tags{Buyer: "comprador", Recipient: "receptor", Gift: "regalo"})
	c.SetCodePrefix("GIFT")

	result, err := c.StripeEvent(context.Background(), nil, goodSignature)
	require.NoError(t, err)
	assert.Equal(t, entity.OutcomeProcessed, result.Outcome)
	assert.ElementsMatch(t, []string{"comprador", "regalo"}, crm.tags["buyer@example.com"])
	assert.ElementsMatch(t, []string{"receptor", "regalo"}, crm.tags["ana@example.com"])
	fields, _ := crm.upserted("ana@example.com")
	assert.Regexp(t, `^GIFT-`, fields["GIFTCODE"])
}

func TestStripeEventJournalOutlivesRequest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	crm := newFakeCRM()
	crm.onUpsert = cancel
	journal := newFakeJournal()
	c := newTestCore(&fakeStripe{event: checkoutEvent("evt_1"), session: giftSession(), items: giftItems()}, crm)
	c.SetJournal(journal)

	result, err := c.StripeEvent(ctx, nil, goodSignature)
	require.NoError(t, err)
	assert.Equal(t, entity.OutcomeProcessed, result.Outcome)
	require.Error(t, ctx.Err())

	assert.NoError(t, journal.saveErr)
	assert.True(t, journal.saveDL)
	require.NotNil(t, journal.events["evt_1"])
	assert.Equal(t, entity.OutcomeProcessed, journal.events["evt_1"].Outcome)
}
