package response

import (
	"giftsync/entity"
	"giftsync/lib/clock"
)

// Response is the envelope of every JSON answer. Data carries the webhook
// result on acknowledged deliveries and is omitted on errors.
type Response struct {
	Data          *entity.WebhookResult `json:"data,omitempty"`
	Success       bool                  `json:"success"`
	StatusMessage string                `json:"status_message"`
	Timestamp     string                `json:"timestamp"`
}

var outcomeMessages = map[entity.Outcome]string{
	entity.OutcomeProcessed: "Gift card synced",
	entity.OutcomePartial:   "Gift card partially synced",
	entity.OutcomeIgnored:   "Not a gift card",
	entity.OutcomeUnhandled: "Event type not handled",
	entity.OutcomeDuplicate: "Event already processed",
	entity.OutcomeSoftError: "Event acknowledged with errors",
}

// Webhook acknowledges a verified delivery. Every outcome is a success for
// the sender, the message tells them apart.
func Webhook(result *entity.WebhookResult) Response {
	msg := "Event received"
	if result != nil {
		if m, ok := outcomeMessages[result.Outcome]; ok {
			msg = m
		}
	}
	return Response{
		Data:          result,
		Success:       true,
		StatusMessage: msg,
		Timestamp:     clock.Now(),
	}
}

func Error(message string) Response {
	return Response{
		Success:       false,
		StatusMessage: message,
		Timestamp:     clock.Now(),
	}
}
