package midtrans

import (
	"errors"
	"testing"
)

func TestVerifySignature(t *testing.T) {
	const (
		orderID     = "BF-20250131-0042-1738300000"
		statusCode  = "200"
		grossAmount = "55000.00"
		serverKey   = "SB-Mid-server-testkey"
	)
	sig := ComputeSignature(orderID, statusCode, grossAmount, serverKey)

	if err := VerifySignature(orderID, statusCode, grossAmount, serverKey, sig); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}

	mutations := []struct {
		name                                string
		orderID, statusCode, amount, sigKey string
	}{
		{"wrong order id", "BF-20250131-0001-1", statusCode, grossAmount, sig},
		{"wrong status code", orderID, "201", grossAmount, sig},
		{"wrong amount", orderID, statusCode, "1.00", grossAmount},
		{"tampered signature", orderID, statusCode, grossAmount, sig + "00"},
		{"empty signature", orderID, statusCode, grossAmount, ""},
	}
	for _, m := range mutations {
		err := VerifySignature(m.orderID, m.statusCode, m.amount, serverKey, m.sigKey)
		if !errors.Is(err, ErrSignature) {
			t.Errorf("%s: got %v, want ErrSignature", m.name, err)
		}
	}
}
