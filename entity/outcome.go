package entity

// Outcome is how a webhook event was handled. Every outcome is acknowledged
// to Stripe with 200.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomePartial   Outcome = "partial"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeUnhandled Outcome = "unhandled"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeSoftError Outcome = "soft_error"
)

type WebhookResult struct {
	Received       bool     `json:"received"`
	Outcome        Outcome  `json:"outcome"`
	EventID        string   `json:"event_id,omitempty"`
	EventType      string   `json:"event_type,omitempty"`
	GiftCard       bool     `json:"giftcard"`
	BuyerEmail     string   `json:"buyer_email,omitempty"`
	RecipientEmail string   `json:"recipient_email,omitempty"`
	Item           string   `json:"item,omitempty"`
	Diagnostics    []string `json:"diagnostics,omitempty"`
}

func NewWebhookResult(eventID, eventType string, outcome Outcome) *WebhookResult {
	return &WebhookResult{
		Received:  true,
		Outcome:   outcome,
		EventID:   eventID,
		EventType: eventType,
	}
}

func (r *WebhookResult) AddDiagnostic(msg string) {
	r.Diagnostics = append(r.Diagnostics, msg)
}
