package giftcard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"giftsync/entity"
	"giftsync/lib/sl"

	"golang.org/x/sync/errgroup"
)

const defaultLookupLimit = 4

// Metadata keys that mark a gift card on price, product or session.
var FlagKeys = []string{"gift_card", "gift-card", "giftcard", "is_gift_card", "tarjeta_regalo"}

// Keywords searched in line item descriptions and product names.
var Keywords = []string{
	"gift card", "gift-card", "giftcard",
	"tarjeta regalo", "tarjeta-regalo", "bono regalo",
	"donación regalo", "donacion regalo", "donacion-regalo",
}

// ProductResolver loads a product that was referenced by ID only.
type ProductResolver interface {
	Product(ctx context.Context, id string) (*entity.Product, error)
}

type Classifier struct {
	resolver ProductResolver
	lookup   CustomFieldLookup
	limit    int
	log      *slog.Logger
}

func NewClassifier(resolver ProductResolver, logger *slog.Logger) *Classifier {
	return &Classifier{
		resolver: resolver,
		lookup:   LookupCustomField,
		limit:    defaultLookupLimit,
		log:      logger.With(sl.Module("giftcard")),
	}
}

func (c *Classifier) SetLookup(lookup CustomFieldLookup) {
	if lookup != nil {
		c.lookup = lookup
	}
}

func (c *Classifier) Lookup() CustomFieldLookup {
	return c.lookup
}

// input is the normalized view every stage works on.
type input struct {
	session  *entity.CheckoutSession
	items    []entity.LineItem
	products map[string]*entity.Product
	lookup   CustomFieldLookup
}

// product returns the item's product if its data is known.
func (in *input) product(item *entity.LineItem) *entity.Product {
	if item.Price == nil || item.Price.Product == nil {
		return nil
	}
	p := item.Price.Product
	if p.Resolved {
		return p
	}
	return in.products[p.ID]
}

func (in *input) pending(item *entity.LineItem) bool {
	id := item.ProductID()
	return id != "" && in.product(item) == nil
}

type stage struct {
	name  entity.Stage
	match func(in *input) (entity.GiftClassification, bool)
}

// stages run in this order; the first match wins.
var stages = []stage{
	{name: entity.StageItemMetadata, match: matchItemMetadata},
	{name: entity.StageSessionMetadata, match: matchSessionMetadata},
	{name: entity.StageKeyword, match: matchKeyword},
	{name: entity.StageCustomField, match: matchCustomField},
}

// Classify decides whether the checkout bought a gift card. A failed product
// lookup does not stop the remaining stages, but a negative result after
// such a failure is returned together with the error.
func (c *Classifier) Classify(ctx context.Context, sess *entity.CheckoutSession, items []entity.LineItem) (entity.GiftClassification, error) {
	if sess == nil {
		sess = &entity.CheckoutSession{}
	}
	in := &input{
		session:  sess,
		items:    items,
		products: make(map[string]*entity.Product),
		lookup:   c.lookup,
	}

	// no lookups needed when an already known item carries the flag
	if cls, ok := flaggedItem(in, true); ok {
		return cls, nil
	}

	lookupErr := c.resolve(ctx, in)

	for _, st := range stages {
		if cls, ok := st.match(in); ok {
			c.log.With(
				slog.String("session_id", sess.ID),
				slog.String("stage", string(st.name)),
			).Debug("gift card detected")
			return cls, nil
		}
	}
	if lookupErr != nil {
		return entity.GiftClassification{}, fmt.Errorf("resolve products: %w", lookupErr)
	}
	return entity.GiftClassification{}, nil
}

// resolve fetches unresolved products concurrently, each ID once. A product
// carrying the gift flag cancels the lookups still in flight.
func (c *Classifier) resolve(ctx context.Context, in *input) error {
	byProduct := make(map[string][]*entity.LineItem)
	var ids []string
	for i := range in.items {
		item := &in.items[i]
		if !in.pending(item) {
			continue
		}
		id := item.ProductID()
		if _, ok := byProduct[id]; !ok {
			ids = append(ids, id)
		}
		byProduct[id] = append(byProduct[id], item)
	}
	if len(ids) == 0 {
		return nil
	}
	if c.resolver == nil {
		return fmt.Errorf("no product resolver for %d products", len(ids))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu   sync.Mutex
		hit  atomic.Bool
		errs []error
		g    errgroup.Group
	)
	g.SetLimit(c.limit)
	for _, id := range ids {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				// a skip without a hit could hide a gift card
				if !hit.Load() {
					mu.Lock()
					errs = append(errs, fmt.Errorf("product %s: %w", id, err))
					mu.Unlock()
				}
				return nil
			}
			p, err := c.resolver.Product(ctx, id)
			if err != nil {
				if hit.Load() {
					return nil
				}
				c.log.With(
					slog.String("product_id", id),
					sl.Err(err),
				).Warn("product lookup")
				mu.Lock()
				errs = append(errs, fmt.Errorf("product %s: %w", id, err))
				mu.Unlock()
				return nil
			}
			if p == nil {
				return nil
			}
			resolved := *p
			resolved.Resolved = true
			p = &resolved
			mu.Lock()
			in.products[id] = p
			mu.Unlock()
			for _, item := range byProduct[id] {
				if hasFlag(mergeMetadata(item.Price.Metadata, p.Metadata)) {
					hit.Store(true)
					cancel()
					break
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	if hit.Load() {
		return nil
	}
	return errors.Join(errs...)
}

func matchItemMetadata(in *input) (entity.GiftClassification, bool) {
	return flaggedItem(in, false)
}

// flaggedItem checks merged price and product metadata per item. With
// skipPending, items whose product still needs a lookup are left out.
func flaggedItem(in *input, skipPending bool) (entity.GiftClassification, bool) {
	for i := range in.items {
		item := &in.items[i]
		if skipPending && in.pending(item) {
			continue
		}
		product := in.product(item)
		var priceMeta, productMeta map[string]string
		if item.Price != nil {
			priceMeta = item.Price.Metadata
		}
		if product != nil {
			productMeta = product.Metadata
		}
		if hasFlag(mergeMetadata(priceMeta, productMeta)) {
			return positive(entity.StageItemMetadata, item, product), true
		}
	}
	return entity.GiftClassification{}, false
}

func matchSessionMetadata(in *input) (entity.GiftClassification, bool) {
	if hasFlag(in.session.Metadata) {
		return positive(entity.StageSessionMetadata, nil, nil), true
	}
	return entity.GiftClassification{}, false
}

func matchKeyword(in *input) (entity.GiftClassification, bool) {
	for i := range in.items {
		item := &in.items[i]
		desc := item.Description
		if desc == "" && item.Price != nil {
			desc = item.Price.Nickname
		}
		product := in.product(item)
		name := ""
		if product != nil {
			name = product.Name
		}
		if containsKeyword(desc) || containsKeyword(name) {
			return positive(entity.StageKeyword, item, product), true
		}
	}
	return entity.GiftClassification{}, false
}

func matchCustomField(in *input) (entity.GiftClassification, bool) {
	for _, fields := range [][]string{RecipientEmailFields, RecipientNameFields, MessageFields} {
		if in.lookup(in.session, fields...) != "" {
			return positive(entity.StageCustomField, nil, nil), true
		}
	}
	return entity.GiftClassification{}, false
}

func positive(st entity.Stage, item *entity.LineItem, product *entity.Product) entity.GiftClassification {
	return entity.GiftClassification{
		IsGiftCard: true,
		Stage:      st,
		Item:       item,
		Product:    product,
	}
}

// mergeMetadata overlays product metadata on price metadata.
func mergeMetadata(price, product map[string]string) map[string]string {
	merged := make(map[string]string, len(price)+len(product))
	for k, v := range price {
		merged[k] = v
	}
	for k, v := range product {
		merged[k] = v
	}
	return merged
}

func hasFlag(md map[string]string) bool {
	for _, k := range FlagKeys {
		if v, ok := md[k]; ok && isTrue(v) {
			return true
		}
	}
	return false
}

// isTrue accepts only "true" and "1"; other spellings were never seen in
// real checkout data.
func isTrue(v string) bool {
	s := strings.ToLower(strings.TrimSpace(v))
	return s == "true" || s == "1"
}

func containsKeyword(text string) bool {
	if text == "" {
		return false
	}
	t := strings.ToLower(text)
	for _, k := range Keywords {
		if strings.Contains(t, k) {
			return true
		}
	}
	return false
}
