package stripeclient

import (
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
)

// parseErr shortens a Stripe API error to its status and message.
func parseErr(err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return err
	}
	if se.Msg == "" {
		return fmt.Errorf("status %d: %s", se.HTTPStatusCode, se.Type)
	}
	return fmt.Errorf("status %d: %s", se.HTTPStatusCode, se.Msg)
}
