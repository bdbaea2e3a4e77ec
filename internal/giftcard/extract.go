package giftcard

import (
	"strings"

	"giftsync/entity"
)

// Custom field candidates, matched by key or by visible checkout label.
var (
	RecipientNameFields  = []string{"recipient_name", "Nombre del cumpleañero"}
	RecipientEmailFields = []string{"recipient_email", "Email del cumpleañero"}
	MessageFields        = []string{"message", "Mensaje para el cumpleañero"}
	SenderNameFields     = []string{"Tu nombre", "Remitente", "Quien envia", "Sender"}
)

// Extract builds the gift record from session data only. Every field falls
// back to the next source when empty.
func Extract(sess *entity.CheckoutSession, lookup CustomFieldLookup) entity.GiftRecord {
	if sess == nil {
		sess = &entity.CheckoutSession{}
	}
	if lookup == nil {
		lookup = LookupCustomField
	}

	var detailsEmail, detailsName, country string
	if sess.CustomerDetails != nil {
		detailsEmail = sess.CustomerDetails.Email
		detailsName = sess.CustomerDetails.Name
		country = sess.CustomerDetails.Country
	}

	buyer := firstNonEmpty(detailsEmail, sess.CustomerEmail, sess.Meta("buyer_email"))

	return entity.GiftRecord{
		BuyerEmail:     optional(buyer),
		RecipientName:  firstNonEmpty(sess.Meta("recipient_name"), lookup(sess, RecipientNameFields...)),
		RecipientEmail: optional(firstNonEmpty(sess.Meta("recipient_email"), lookup(sess, RecipientEmailFields...))),
		Message:        firstNonEmpty(sess.Meta("message"), lookup(sess, MessageFields...)),
		SenderName: firstNonEmpty(
			sess.Meta("sender_name"),
			lookup(sess, SenderNameFields...),
			detailsName,
			localPart(buyer),
		),
		FormattedAmount: FormatAmount(sess.AmountTotal, sess.Currency),
		BuyerCountry:    strings.ToUpper(strings.TrimSpace(country)),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func localPart(email string) string {
	name, _, _ := strings.Cut(email, "@")
	return strings.TrimSpace(name)
}
