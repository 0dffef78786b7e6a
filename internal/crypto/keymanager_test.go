package crypto

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "hunter2")
	if err != nil {
		t.Fatalf("EncryptKey: %v", err)
	}
	if strings.Contains(string(blob), testKeyHex) {
		t.Fatal("encrypted blob contains the plaintext key")
	}

	got, err := DecryptKey(blob, "hunter2")
	if err != nil {
		t.Fatalf("DecryptKey: %v", err)
	}
	if got != testKeyHex {
		t.Errorf("DecryptKey = %s, want %s", got, testKeyHex)
	}
}

func TestDecryptKey_WrongPassword(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "hunter2")
	if err != nil {
		t.Fatalf("EncryptKey: %v", err)
	}
	if _, err := DecryptKey(blob, "wrong"); err == nil {
		t.Error("wrong password must fail decryption")
	}
}

func TestEncryptKey_Validation(t *testing.T) {
	if _, err := EncryptKey(testKeyHex, ""); err == nil {
		t.Error("empty password must be rejected")
	}
	if _, err := EncryptKey("not-hex", "pw"); err == nil {
		t.Error("non-hex key must be rejected")
	}
	if _, err := EncryptKey("abcd", "pw"); err == nil {
		t.Error("short key must be rejected")
	}
	// 0x prefix is tolerated.
	if _, err := EncryptKey("0x"+testKeyHex, "pw"); err != nil {
		t.Errorf("prefixed key rejected: %v", err)
	}
}

func TestLoadKey_RawTakesPrecedence(t *testing.T) {
	got, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + testKeyHex, EncryptedKeyPath: "/nonexistent"})
	if err != nil {
		t.Fatalf("LoadKey: %v", err)
	}
	if got != testKeyHex {
		t.Errorf("LoadKey = %s, want %s", got, testKeyHex)
	}
}

func TestLoadKey_EncryptedFile(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "hunter2")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "key.json")
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "hunter2"})
	if err != nil {
		t.Fatalf("LoadKey: %v", err)
	}
	if got != testKeyHex {
		t.Errorf("LoadKey = %s, want %s", got, testKeyHex)
	}
}

func TestLoadKey_NoSource(t *testing.T) {
	if _, err := LoadKey(KeyConfig{}); err == nil {
		t.Error("empty config must return an error")
	}
}

func TestKeyFile_RecordsKDFParameters(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "hunter2")
	if err != nil {
		t.Fatal(err)
	}

	var stored struct {
		KDF        string `json:"kdf"`
		Iterations int    `json:"iterations"`
	}
	if err := json.Unmarshal(blob, &stored); err != nil {
		t.Fatalf("key file is not JSON: %v", err)
	}
	if stored.KDF != "pbkdf2-sha256" {
		t.Errorf("kdf = %q, want pbkdf2-sha256", stored.KDF)
	}
	if stored.Iterations < 600_000 {
		t.Errorf("iterations = %d, below the recorded floor", stored.Iterations)
	}

	// Files claiming another scheme are refused rather than misread.
	bad := bytes.Replace(blob, []byte("pbkdf2-sha256"), []byte("scrypt"), 1)
	if _, err := DecryptKey(bad, "hunter2"); err == nil {
		t.Error("unknown kdf must be rejected")
	}
}
