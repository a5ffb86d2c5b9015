package secrets

import "testing"

func testBox(t *testing.T) *Box {
	t.Helper()
	key := []byte("0123456789abcdef0123456789abcdef")
	b, err := NewBox(key[:32])
	if err != nil {
		t.Fatalf("NewBox: %v", err)
	}
	return b
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	b := testBox(t)
	ciphertext, err := b.Encrypt("sk-ant-super-secret-value")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if !IsEncrypted(ciphertext) {
		t.Fatalf("IsEncrypted(%q) = false, want true", ciphertext)
	}

	plaintext, err := b.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if plaintext != "sk-ant-super-secret-value" {
		t.Fatalf("plaintext = %q, want original", plaintext)
	}
}

func TestEncryptProducesDifferentCiphertextEachCall(t *testing.T) {
	b := testBox(t)
	c1, _ := b.Encrypt("same-value")
	c2, _ := b.Encrypt("same-value")
	if c1 == c2 {
		t.Fatal("Encrypt produced identical ciphertext twice, want random nonce to vary output")
	}
}

func TestDecryptRejectsUnprefixedValue(t *testing.T) {
	b := testBox(t)
	if _, err := b.Decrypt("not-our-ciphertext"); err != ErrNotEncrypted {
		t.Fatalf("err = %v, want ErrNotEncrypted", err)
	}
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	b1 := testBox(t)
	other, err := NewBox([]byte("fedcba9876543210fedcba9876543210"))
	if err != nil {
		t.Fatalf("NewBox: %v", err)
	}
	ciphertext, _ := b1.Encrypt("secret")
	if _, err := other.Decrypt(ciphertext); err == nil {
		t.Fatal("Decrypt succeeded with the wrong key, want an error")
	}
}

func TestMaskSecretPreservesKnownPrefix(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"sk-ant-abcdefgh1234", "sk-ant-...1234"},
		{"sk-abcdefgh1234", "sk-...1234"},
		{"", ""},
		{"ab", "**"},
	}
	for _, c := range cases {
		if got := MaskSecret(c.in, 4); got != c.want {
			t.Errorf("MaskSecret(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestIsEncryptedRejectsPlainValue(t *testing.T) {
	if IsEncrypted("sk-ant-plaintext-key") {
		t.Fatal("IsEncrypted(plaintext) = true, want false")
	}
}
