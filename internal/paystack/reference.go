package paystack

import (
	"strings"

	"github.com/google/uuid"
)

const referencePrefix = "ord_"

// GenerateReference returns a random transaction reference. Uniqueness rests
// on the 122 random bits of a v4 UUID; nothing is checked server-side.
func GenerateReference() string {
	return referencePrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}
