package domain

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// NewTransactionID mints a public transaction identifier for a sales
// transaction. The customer address is salted with a fresh random UUID so a
// retried submission never reuses an identifier.
func NewTransactionID(customerAddress string) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s-%s", customerAddress, uuid.NewString())))
	return hex.EncodeToString(sum[:])
}
