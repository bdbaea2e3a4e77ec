package entity

import (
	"strings"

	"github.com/stripe/stripe-go/v76"
)

// CustomField is a single custom checkout field as entered by the buyer.
type CustomField struct {
	Key   string `json:"key" bson:"key"`
	Label string `json:"label,omitempty" bson:"label,omitempty"`
	Text  string `json:"text,omitempty" bson:"text,omitempty"`
}

type CustomerDetails struct {
	Email   string `json:"email,omitempty" bson:"email,omitempty"`
	Name    string `json:"name,omitempty" bson:"name,omitempty"`
	Country string `json:"country,omitempty" bson:"country,omitempty"`
}

// CheckoutSession is the read-only view of a completed checkout used by the
// gift card engine. AmountTotal is nil when the session carries no amount.
type CheckoutSession struct {
	ID              string            `json:"id" bson:"id"`
	AmountTotal     *int64            `json:"amount_total,omitempty" bson:"amount_total,omitempty"`
	Currency        string            `json:"currency,omitempty" bson:"currency,omitempty"`
	CustomerDetails *CustomerDetails  `json:"customer_details,omitempty" bson:"customer_details,omitempty"`
	CustomerEmail   string            `json:"customer_email,omitempty" bson:"customer_email,omitempty"`
	CustomerID      string            `json:"customer_id,omitempty" bson:"customer_id,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CustomFields    []CustomField     `json:"custom_fields,omitempty" bson:"custom_fields,omitempty"`
}

// Meta returns the trimmed session metadata value for key.
func (s *CheckoutSession) Meta(key string) string {
	if s == nil || s.Metadata == nil {
		return ""
	}
	return strings.TrimSpace(s.Metadata[key])
}

// NewFromCheckoutSession converts a stripe session. hasAmount tells whether
// amount_total was present in the payload, stripe-go decodes null as zero.
func NewFromCheckoutSession(sess *stripe.CheckoutSession, hasAmount bool) *CheckoutSession {
	if sess == nil {
		return &CheckoutSession{}
	}
	cs := &CheckoutSession{
		ID:            sess.ID,
		Currency:      string(sess.Currency),
		CustomerEmail: sess.CustomerEmail,
		Metadata:      sess.Metadata,
	}
	if hasAmount {
		amount := sess.AmountTotal
		cs.AmountTotal = &amount
	}
	if sess.Customer != nil {
		cs.CustomerID = sess.Customer.ID
		if cs.CustomerEmail == "" {
			cs.CustomerEmail = sess.Customer.Email
		}
	}
	if sess.CustomerDetails != nil {
		details := &CustomerDetails{
			Email: sess.CustomerDetails.Email,
			Name:  sess.CustomerDetails.Name,
		}
		if sess.CustomerDetails.Address != nil {
			details.Country = sess.CustomerDetails.Address.Country
		}
		cs.CustomerDetails = details
	}
	for _, f := range sess.CustomFields {
		if f == nil {
			continue
		}
		field := CustomField{Key: f.Key}
		if f.Label != nil {
			field.Label = f.Label.Custom
		}
		if f.Text != nil {
			field.Text = f.Text.Value
		}
		cs.CustomFields = append(cs.CustomFields, field)
	}
	return cs
}
