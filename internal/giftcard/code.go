package giftcard

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const DefaultCodePrefix = "BESP"

var codeNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("giftsync:gift-code"))

// GiftCode derives a stable redeem code from the checkout session ID, so a
// redelivered event produces the same code.
func GiftCode(prefix, sessionID string) string {
	if sessionID == "" {
		return ""
	}
	if prefix == "" {
		prefix = DefaultCodePrefix
	}
	id := uuid.NewSHA1(codeNamespace, []byte(sessionID))
	digits := strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))
	return fmt.Sprintf("%s-%s-%s", prefix, digits[:4], digits[4:8])
}
