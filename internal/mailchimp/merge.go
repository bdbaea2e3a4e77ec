package mailchimp

import (
	"giftsync/entity"

	"github.com/biter777/countries"
)

// Tags are the audience tags applied per role.
type Tags struct {
	Buyer     string
	Recipient string
	Gift      string
}

func DefaultTags() Tags {
	return Tags{Buyer: "gift_buyer", Recipient: "gift_recipient", Gift: "tarjeta_regalo"}
}

func (t Tags) withDefaults() Tags {
	d := DefaultTags()
	if t.Buyer == "" {
		t.Buyer = d.Buyer
	}
	if t.Recipient == "" {
		t.Recipient = d.Recipient
	}
	if t.Gift == "" {
		t.Gift = d.Gift
	}
	return t
}

// BuyerContact builds the purchaser's audience entry. Both English and
// Spanish merge tags are filled, the audience keeps whichever it declares.
func BuyerContact(rec entity.GiftRecord, tags Tags) entity.Contact {
	tags = tags.withDefaults()
	fields := map[string]string{
		"SENDER":    rec.SenderName,
		"AMOUNT":    rec.FormattedAmount,
		"IMPORTE":   rec.FormattedAmount,
		"RECIPIENT": rec.RecipientName,
		"RECEPTOR":  rec.RecipientName,
		"GIFTCODE":  rec.GiftCode,
	}
	if name := CountryName(rec.BuyerCountry); name != "" {
		fields["COUNTRY"] = name
	}
	return entity.Contact{
		Role:        entity.RoleBuyer,
		Email:       rec.Buyer(),
		MergeFields: compact(fields),
		Tags:        []string{tags.Buyer, tags.Gift},
	}
}

func RecipientContact(rec entity.GiftRecord, tags Tags) entity.Contact {
	tags = tags.withDefaults()
	fields := map[string]string{
		"RECIPIENT": rec.RecipientName,
		"RECEPTOR":  rec.RecipientName,
		"GFTMSG":    rec.Message,
		"MENSAJE":   rec.Message,
		"SENDER":    rec.SenderName,
		"AMOUNT":    rec.FormattedAmount,
		"IMPORTE":   rec.FormattedAmount,
		"GIFTCODE":  rec.GiftCode,
	}
	return entity.Contact{
		Role:        entity.RoleRecipient,
		Email:       rec.Recipient(),
		MergeFields: compact(fields),
		Tags:        []string{tags.Recipient, tags.Gift},
	}
}

// CountryName maps an ISO alpha-2 code to its English name.
func CountryName(code string) string {
	if code == "" {
		return ""
	}
	country := countries.ByName(code)
	if country == countries.Unknown {
		return ""
	}
	return country.String()
}

// compact drops empty values so an update never blanks a field set earlier.
func compact(fields map[string]string) map[string]string {
	for k, v := range fields {
		if v == "" {
			delete(fields, k)
		}
	}
	return fields
}
