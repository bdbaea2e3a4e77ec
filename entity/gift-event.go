package entity

import "time"

// GiftEvent is the journal entry written for every checkout event.
type GiftEvent struct {
	EventID         string    `json:"event_id" bson:"event_id"`
	EventType       string    `json:"event_type" bson:"event_type"`
	SessionID       string    `json:"session_id,omitempty" bson:"session_id,omitempty"`
	Outcome         Outcome   `json:"outcome" bson:"outcome"`
	Stage           Stage     `json:"stage,omitempty" bson:"stage,omitempty"`
	BuyerHash       string    `json:"buyer_hash,omitempty" bson:"buyer_hash,omitempty"`
	RecipientHash   string    `json:"recipient_hash,omitempty" bson:"recipient_hash,omitempty"`
	FormattedAmount string    `json:"formatted_amount,omitempty" bson:"formatted_amount,omitempty"`
	GiftCode        string    `json:"gift_code,omitempty" bson:"gift_code,omitempty"`
	Diagnostics     []string  `json:"diagnostics,omitempty" bson:"diagnostics,omitempty"`
	Created         time.Time `json:"created" bson:"created"`
}
