package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const referenceAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateOrderNumber returns a human-readable unique order number.
func GenerateOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%d", now.UnixNano())
}

// GeneratePaymentReference returns an opaque reference handed to the
// payment task when no gateway reference exists yet.
func GeneratePaymentReference() string {
	buf := make([]byte, 10)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(referenceAlphabet))))
		if err != nil {
			// crypto/rand failing means the platform is broken; fall back
			// to a timestamp so checkout still works.
			return fmt.Sprintf("PAY-%d", time.Now().UnixNano())
		}
		buf[i] = referenceAlphabet[n.Int64()]
	}
	return "PAY-" + string(buf)
}
