package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"giftsync/entity"
	"giftsync/internal/giftcard"
	"giftsync/internal/mailchimp"
	"giftsync/lib/sl"

	"github.com/stripe/stripe-go/v76"
)

const journalTimeout = 5 * time.Second

// StripeAPI is the payment provider side: verification, session data and
// the product and customer directories.
type StripeAPI interface {
	VerifyEvent(payload []byte, header string) (*stripe.Event, error)
	Session(evt *stripe.Event) (*entity.CheckoutSession, error)
	LineItems(ctx context.Context, sessionID string) ([]entity.LineItem, error)
	Product(ctx context.Context, id string) (*entity.Product, error)
	CustomerName(ctx context.Context, id string) (string, error)
}

type CRM interface {
	UpsertContact(ctx context.Context, email string, mergeFields map[string]string) error
	TagContact(ctx context.Context, email, tagName string) error
}

type Journal interface {
	SaveGiftEvent(ctx context.Context, event *entity.GiftEvent) error
	GetGiftEvent(ctx context.Context, eventID string) (*entity.GiftEvent, error)
}

type Core struct {
	stripe     StripeAPI
	crm        CRM
	journal    Journal
	classifier *giftcard.Classifier
	tags       mailchimp.Tags
	codePrefix string
	log        *slog.Logger
}

func New(st StripeAPI, crm CRM, log *slog.Logger) *Core {
	if st == nil {
		panic("stripe client is nil")
	}
	if crm == nil {
		panic("crm client is nil")
	}
	return &Core{
		stripe:     st,
		crm:        crm,
		classifier: giftcard.NewClassifier(st, log),
		tags:       mailchimp.DefaultTags(),
		codePrefix: giftcard.DefaultCodePrefix,
		log:        log.With(sl.Module("core")),
	}
}

func (c *Core) SetJournal(journal Journal) {
	c.journal = journal
}

func (c *Core) SetTags(tags mailchimp.Tags) {
	c.tags = tags
}

func (c *Core) SetCodePrefix(prefix string) {
	if prefix != "" {
		c.codePrefix = prefix
	}
}

// StripeEvent handles one webhook delivery. The only error returned is a
// verification failure; everything after that is reported in the result.
func (c *Core) StripeEvent(ctx context.Context, payload []byte, signature string) (*entity.WebhookResult, error) {
	evt, err := c.stripe.VerifyEvent(payload, signature)
	if err != nil {
		c.log.With(sl.Err(err)).Warn("webhook rejected")
		return nil, err
	}
	log := c.log.With(
		slog.String("event_id", evt.ID),
		slog.String("type", string(evt.Type)),
	)

	if evt.Type != stripe.EventTypeCheckoutSessionCompleted {
		log.Debug("event not handled")
		return entity.NewWebhookResult(evt.ID, string(evt.Type), entity.OutcomeUnhandled), nil
	}

	if c.processedBefore(ctx, evt.ID, log) {
		log.Info("duplicate event")
		return entity.NewWebhookResult(evt.ID, string(evt.Type), entity.OutcomeDuplicate), nil
	}

	result, event := c.checkout(ctx, evt, log)
	c.saveEvent(ctx, event, log)

	log.With(
		slog.String("outcome", string(result.Outcome)),
		slog.Int("diagnostics", len(result.Diagnostics)),
	).Info("checkout event handled")
	return result, nil
}

func (c *Core) processedBefore(ctx context.Context, eventID string, log *slog.Logger) bool {
	if c.journal == nil || eventID == "" {
		return false
	}
	event, err := c.journal.GetGiftEvent(ctx, eventID)
	if err != nil {
		log.With(sl.Err(err)).Warn("journal lookup")
		return false
	}
	return event != nil && event.Outcome == entity.OutcomeProcessed
}

// saveEvent outlives the request context: a lost entry would let the next
// delivery sync the contacts again.
func (c *Core) saveEvent(ctx context.Context, event *entity.GiftEvent, log *slog.Logger) {
	if c.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()
	if err := c.journal.SaveGiftEvent(ctx, event); err != nil {
		log.With(sl.Err(err)).Warn("journal save")
	}
}

// checkout classifies the session and syncs both contacts. Panics are turned
// into a soft error so the delivery is still acknowledged.
func (c *Core) checkout(ctx context.Context, evt *stripe.Event, log *slog.Logger) (result *entity.WebhookResult, event *entity.GiftEvent) {
	result = entity.NewWebhookResult(evt.ID, string(evt.Type), entity.OutcomeSoftError)
	event = &entity.GiftEvent{
		EventID:   evt.ID,
		EventType: string(evt.Type),
		Created:   time.Now().UTC(),
	}
	defer func() {
		if r := recover(); r != nil {
			log.With(slog.Any("panic", r)).Error("checkout handling")
			result.Outcome = entity.OutcomeSoftError
			result.AddDiagnostic(fmt.Sprintf("internal error: %v", r))
		}
		event.Outcome = result.Outcome
		event.Diagnostics = result.Diagnostics
	}()

	sess, err := c.stripe.Session(evt)
	if err != nil {
		return softError(result, log, "decode session", err), event
	}
	event.SessionID = sess.ID
	log = log.With(slog.String("session_id", sess.ID))

	items, err := c.stripe.LineItems(ctx, sess.ID)
	if err != nil {
		return softError(result, log, "line items", err), event
	}

	cls, err := c.classifier.Classify(ctx, sess, items)
	if err != nil {
		return softError(result, log, "classify", err), event
	}
	if !cls.IsGiftCard {
		log.Debug("not a gift card checkout")
		result.Outcome = entity.OutcomeIgnored
		return result, event
	}
	result.GiftCard = true
	result.Item = cls.ItemDescription()
	event.Stage = cls.Stage

	rec := giftcard.Extract(sess, c.classifier.Lookup())
	if rec.SenderName == "" && sess.CustomerID != "" {
		name, err := c.stripe.CustomerName(ctx, sess.CustomerID)
		if err != nil {
			log.With(sl.Err(err)).Warn("customer lookup")
			result.AddDiagnostic(fmt.Sprintf("customer lookup: %v", err))
		}
		rec.SenderName = strings.TrimSpace(name)
	}
	rec.GiftCode = giftcard.GiftCode(c.codePrefix, sess.ID)

	result.BuyerEmail = rec.Buyer()
	result.RecipientEmail = rec.Recipient()
	event.FormattedAmount = rec.FormattedAmount
	event.GiftCode = rec.GiftCode
	if email := rec.Buyer(); email != "" {
		event.BuyerHash = mailchimp.SubscriberHash(email)
	}
	if email := rec.Recipient(); email != "" {
		event.RecipientHash = mailchimp.SubscriberHash(email)
	}

	log.With(
		slog.String("stage", string(cls.Stage)),
		sl.Email("buyer", rec.Buyer()),
		sl.Email("recipient", rec.Recipient()),
		slog.String("amount", rec.FormattedAmount),
	).Info("gift card checkout")

	if c.syncContacts(ctx, rec, result, log) {
		result.Outcome = entity.OutcomePartial
	} else {
		result.Outcome = entity.OutcomeProcessed
	}
	return result, event
}

func softError(result *entity.WebhookResult, log *slog.Logger, step string, err error) *entity.WebhookResult {
	log.With(sl.Err(err)).Error(step)
	result.Outcome = entity.OutcomeSoftError
	result.AddDiagnostic(fmt.Sprintf("%s: %v", step, err))
	return result
}

// syncContacts runs buyer and recipient independently and reports whether
// any step failed.
func (c *Core) syncContacts(ctx context.Context, rec entity.GiftRecord, result *entity.WebhookResult, log *slog.Logger) bool {
	contacts := []entity.Contact{
		mailchimp.BuyerContact(rec, c.tags),
		mailchimp.RecipientContact(rec, c.tags),
	}
	diagnostics := make([][]string, len(contacts))

	var wg sync.WaitGroup
	for i, contact := range contacts {
		if contact.Email == "" {
			log.With(slog.String("role", string(contact.Role))).Debug("no email, contact skipped")
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			diagnostics[i] = c.syncContact(ctx, contact, log)
		}()
	}
	wg.Wait()

	failed := false
	for _, list := range diagnostics {
		for _, d := range list {
			result.AddDiagnostic(d)
			failed = true
		}
	}
	return failed
}

// syncContact upserts the member, then applies its tags. Tags are skipped
// when the upsert failed.
func (c *Core) syncContact(ctx context.Context, contact entity.Contact, log *slog.Logger) (diagnostics []string) {
	log = log.With(
		slog.String("role", string(contact.Role)),
		sl.Email("email", contact.Email),
	)
	fail := func(step string, err error) {
		log.With(sl.Err(err)).Error(step)
		diagnostics = append(diagnostics, fmt.Sprintf("%s %s: %v", contact.Role, step, err))
	}
	defer func() {
		if r := recover(); r != nil {
			fail("sync", fmt.Errorf("panic: %v", r))
		}
	}()

	if err := contact.Validate(); err != nil {
		fail("validate", err)
		return diagnostics
	}
	if err := c.crm.UpsertContact(ctx, contact.Email, contact.MergeFields); err != nil {
		fail("upsert", err)
		return diagnostics
	}
	for _, tag := range contact.Tags {
		if err := c.crm.TagContact(ctx, contact.Email, tag); err != nil {
			fail("tag "+tag, err)
		}
	}
	log.Debug("contact synced")
	return diagnostics
}
