package utils

import (
    "crypto/sha256"
    "encoding/hex"
    "fmt"
)

// AccountKeyBytes is the entropy of an account key; hex encoded it is 64 chars.
const AccountKeyBytes = 32

// NewAccountKey mints the per-account secret stored at registration.
func NewAccountKey() (string, error) {
    return randomHex(AccountKeyBytes)
}

// NewTicketKey derives a ticket key from an account key and a fresh purchase
// nonce: hex(sha256(accountKey || nonce)).  The nonce is discarded, so the
// result cannot be predicted from the account key and differs for every
// purchase.  The key is stored for uniqueness and auditing only.
func NewTicketKey(accountKey string) (string, error) {
    nonce, err := randomHex(32)
    if err != nil {
        return "", fmt.Errorf("purchase nonce: %w", err)
    }
    return deriveTicketKey(accountKey, nonce), nil
}

func deriveTicketKey(accountKey, nonce string) string {
    sum := sha256.Sum256([]byte(accountKey + nonce))
    return hex.EncodeToString(sum[:])
}
