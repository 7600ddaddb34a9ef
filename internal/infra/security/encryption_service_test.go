package security

import "testing"

func TestEncryptionService_RoundTrip(t *testing.T) {
	svc, err := NewEncryptionService("0123456789abcdef")
	if err != nil {
		t.Fatal(err)
	}
	a, err := svc.Encrypt("secret chat")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := svc.Encrypt("secret chat")
	if a == b {
		t.Fatalf("nonce reuse: identical ciphertexts")
	}
	pt, err := svc.Decrypt(a)
	if err != nil || pt != "secret chat" {
		t.Fatalf("decrypt = %q, %v", pt, err)
	}
}

func TestEncryptionService_BadInput(t *testing.T) {
	if _, err := NewEncryptionService("short"); err == nil {
		t.Fatalf("expected key length error")
	}
	svc, _ := NewEncryptionService("0123456789abcdef")
	other, _ := NewEncryptionService("fedcba9876543210")
	sealed, _ := svc.Encrypt("x")
	if _, err := other.Decrypt(sealed); err == nil {
		t.Fatalf("wrong key must fail")
	}
	if _, err := svc.Decrypt("!!!"); err == nil {
		t.Fatalf("bad base64 must fail")
	}
	if _, err := svc.Decrypt("AAAA"); err == nil {
		t.Fatalf("short ciphertext must fail")
	}
}
