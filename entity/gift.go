package entity

// Stage names the classifier rule that produced a positive result.
type Stage string

const (
	StageNone            Stage = ""
	StageItemMetadata    Stage = "item_metadata"
	StageSessionMetadata Stage = "session_metadata"
	StageKeyword         Stage = "keyword"
	StageCustomField     Stage = "custom_field"
)

type GiftClassification struct {
	IsGiftCard bool      `json:"is_gift_card"`
	Stage      Stage     `json:"stage,omitempty"`
	Item       *LineItem `json:"item,omitempty"`
	Product    *Product  `json:"product,omitempty"`
}

// ItemDescription is the description of the matched line item, if any.
func (c GiftClassification) ItemDescription() string {
	if c.Item == nil {
		return ""
	}
	return c.Item.Description
}

// GiftRecord holds the normalized gift data forwarded to the CRM.
type GiftRecord struct {
	BuyerEmail      *string `json:"buyer_email"`
	RecipientName   string  `json:"recipient_name"`
	RecipientEmail  *string `json:"recipient_email"`
	SenderName      string  `json:"sender_name"`
	Message         string  `json:"message"`
	FormattedAmount string  `json:"formatted_amount"`
	GiftCode        string  `json:"gift_code,omitempty"`
	BuyerCountry    string  `json:"buyer_country,omitempty"`
}

func (r GiftRecord) Buyer() string {
	if r.BuyerEmail == nil {
		return ""
	}
	return *r.BuyerEmail
}

func (r GiftRecord) Recipient() string {
	if r.RecipientEmail == nil {
		return ""
	}
	return *r.RecipientEmail
}
