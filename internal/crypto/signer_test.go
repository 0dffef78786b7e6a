package crypto

import (
	"strings"
	"testing"
)

// Throwaway key used only for signature-shape assertions.
const testKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestNewSigner(t *testing.T) {
	s, err := NewSigner(testKeyHex, 137)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	// Well-known address for this well-known test key.
	if got := s.Address().Hex(); got != "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266" {
		t.Errorf("Address = %s", got)
	}

	// 0x prefix is tolerated.
	if _, err := NewSigner("0x"+testKeyHex, 137); err != nil {
		t.Errorf("NewSigner with 0x prefix: %v", err)
	}

	if _, err := NewSigner("not-a-key", 137); err == nil {
		t.Error("garbage key must be rejected")
	}
}

func TestSignAuthMessage(t *testing.T) {
	s, err := NewSigner(testKeyHex, 137)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	sig, err := s.SignAuthMessage(s.Address().Hex(), 1700000000, 0)
	if err != nil {
		t.Fatalf("SignAuthMessage: %v", err)
	}
	if !strings.HasPrefix(sig, "0x") || len(sig) != 2+65*2 {
		t.Errorf("signature = %q, want 65 hex bytes with 0x prefix", sig)
	}

	// Deterministic for fixed inputs.
	again, _ := s.SignAuthMessage(s.Address().Hex(), 1700000000, 0)
	if sig != again {
		t.Error("same auth message must sign identically")
	}

	other, _ := s.SignAuthMessage(s.Address().Hex(), 1700000001, 0)
	if sig == other {
		t.Error("different timestamp must change the signature")
	}
}

func TestSignOrder(t *testing.T) {
	s, err := NewSigner(testKeyHex, 137)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	order := OrderPayload{
		Salt:          "123456789",
		Maker:         s.Address().Hex(),
		Signer:        s.Address().Hex(),
		Taker:         "0x0000000000000000000000000000000000000000",
		TokenID:       "71321045679252212594626385532706912750332728571942532289631379312455583992563",
		MakerAmount:   "10000000",
		TakerAmount:   "22222222",
		Expiration:    "0",
		Nonce:         "0",
		FeeRateBps:    "0",
		Side:          0,
		SignatureType: 2,
	}

	sig, err := s.SignOrder(order)
	if err != nil {
		t.Fatalf("SignOrder: %v", err)
	}
	if !strings.HasPrefix(sig, "0x") || len(sig) != 2+65*2 {
		t.Errorf("signature = %q, want 65 hex bytes with 0x prefix", sig)
	}

	// The recovery byte is normalized into {27, 28}.
	v := sig[len(sig)-2:]
	if v != "1b" && v != "1c" {
		t.Errorf("v byte = %q, want 1b or 1c", v)
	}

	flipped := order
	flipped.Side = 1
	other, err := s.SignOrder(flipped)
	if err != nil {
		t.Fatalf("SignOrder flipped: %v", err)
	}
	if sig == other {
		t.Error("changing the side must change the signature")
	}
}

func TestSignOrder_RejectsBadNumerics(t *testing.T) {
	s, err := NewSigner(testKeyHex, 137)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	order := OrderPayload{
		Salt:        "not-a-number",
		TokenID:     "1",
		MakerAmount: "1",
		TakerAmount: "1",
		Expiration:  "0",
		Nonce:       "0",
		FeeRateBps:  "0",
	}
	if _, err := s.SignOrder(order); err == nil {
		t.Error("non-numeric salt must be rejected")
	}
}
