package midtrans

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
)

// ErrSignature marks a notification whose signature_key does not match.
var ErrSignature = errors.New("invalid notification signature")

// ComputeSignature builds the notification signature the gateway sends:
// hex(sha512(order_id + status_code + gross_amount + server_key)). The
// gross amount is the literal string from the payload, decimals included.
func ComputeSignature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// VerifySignature checks a notification's signature_key in constant time.
func VerifySignature(orderID, statusCode, grossAmount, serverKey, signatureKey string) error {
	want := ComputeSignature(orderID, statusCode, grossAmount, serverKey)
	if subtle.ConstantTimeCompare([]byte(want), []byte(signatureKey)) != 1 {
		return ErrSignature
	}
	return nil
}
