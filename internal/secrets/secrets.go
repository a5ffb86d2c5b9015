// Package secrets implements at-rest encryption for sensitive
// SystemSetting values (API keys, webhook secrets) the way
// "secret-encryption key: process-singleton, cached after first load."
//
// The original encrypts with Fernet (a Python-ecosystem construct); this
// package uses AES-256-GCM with a random nonce per call, its idiomatic Go
// equivalent, keeping the same three-tier key sourcing (explicit key,
// persisted key file, generate-and-persist).
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	keyLen = 32 // AES-256
	// prefix marks a value as ours; IsEncrypted checks for it rather than
	// guessing from ciphertext shape the way the original's Fernet-prefix
	// heuristic does, since a raw base64 blob has no equivalent tell.
	prefix = "sibylenc1:"
)

// ErrNotEncrypted is returned by Decrypt when given a value IsEncrypted
// would reject.
var ErrNotEncrypted = errors.New("secrets: value is not a sibylenc1 ciphertext")

// Box encrypts and decrypts values with a single AES-256-GCM key.
type Box struct {
	gcm cipher.AEAD
}

// NewBox builds a Box from a raw 32-byte key.
func NewBox(key []byte) (*Box, error) {
	if len(key) != keyLen {
		return nil, fmt.Errorf("secrets: key must be %d bytes, got %d", keyLen, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("secrets: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secrets: new gcm: %w", err)
	}
	return &Box{gcm: gcm}, nil
}

// Encrypt returns a "sibylenc1:"-prefixed, base64-encoded ciphertext for
// plaintext, with a fresh random nonce prepended to the sealed output.
func (b *Box) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, b.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("secrets: read nonce: %w", err)
	}
	sealed := b.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return prefix + base64.URLEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Returns ErrNotEncrypted if ciphertext doesn't
// carry the expected prefix.
func (b *Box) Decrypt(ciphertext string) (string, error) {
	raw, ok := strings.CutPrefix(ciphertext, prefix)
	if !ok {
		return "", ErrNotEncrypted
	}
	sealed, err := base64.URLEncoding.DecodeString(raw)
	if err != nil {
		return "", fmt.Errorf("secrets: decode: %w", err)
	}
	nonceSize := b.gcm.NonceSize()
	if len(sealed) < nonceSize {
		return "", fmt.Errorf("secrets: ciphertext too short")
	}
	nonce, body := sealed[:nonceSize], sealed[nonceSize:]
	plain, err := b.gcm.Open(nil, nonce, body, nil)
	if err != nil {
		return "", fmt.Errorf("secrets: decrypt: %w", err)
	}
	return string(plain), nil
}

// IsEncrypted reports whether value looks like Box-produced ciphertext.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, prefix)
}

// MaskSecret masks value for display, showing only the last visibleChars
// characters, preserving a recognizable "sk-"/"sk-ant-" prefix if present.
func MaskSecret(value string, visibleChars int) string {
	if value == "" {
		return ""
	}
	if len(value) <= visibleChars {
		return strings.Repeat("*", len(value))
	}
	rest, prefixShown := value, ""
	switch {
	case strings.HasPrefix(value, "sk-ant-"):
		prefixShown, rest = "sk-ant-", value[len("sk-ant-"):]
	case strings.HasPrefix(value, "sk-"):
		prefixShown, rest = "sk-", value[len("sk-"):]
	}
	if len(rest) < visibleChars {
		return prefixShown + "..." + rest
	}
	return prefixShown + "..." + rest[len(rest)-visibleChars:]
}

var (
	singletonOnce sync.Once
	singleton     *Box
	singletonErr  error
)

// Singleton returns the process-wide Box, deriving its key on first call
// from explicitKey if non-empty, else a persisted key file under
// keyFileDir (default: the key is generated and persisted there),
// caching the result for every subsequent call regardless of the
// arguments passed: a process-singleton, cached after first load.
func Singleton(explicitKey, keyFileDir string) (*Box, error) {
	singletonOnce.Do(func() {
		key, err := loadOrCreateKey(explicitKey, keyFileDir)
		if err != nil {
			singletonErr = err
			return
		}
		singleton, singletonErr = NewBox(key)
	})
	return singleton, singletonErr
}

func loadOrCreateKey(explicitKey, keyFileDir string) ([]byte, error) {
	if k := strings.TrimSpace(explicitKey); k != "" {
		return decodeExplicitKey(k), nil
	}

	if keyFileDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			keyFileDir = filepath.Join(home, ".sibyl")
		} else {
			keyFileDir = "."
		}
	}
	keyFile := filepath.Join(keyFileDir, "settings.key")

	if data, err := os.ReadFile(keyFile); err == nil {
		if key, decodeErr := base64.URLEncoding.DecodeString(strings.TrimSpace(string(data))); decodeErr == nil && len(key) == keyLen {
			return key, nil
		}
	}

	key := make([]byte, keyLen)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("secrets: generate key: %w", err)
	}
	if err := os.MkdirAll(keyFileDir, 0o700); err == nil {
		_ = os.WriteFile(keyFile, []byte(base64.URLEncoding.EncodeToString(key)), 0o600)
	}
	return key, nil
}

// decodeExplicitKey accepts a base64-encoded 32-byte key, a hex-encoded
// 32-byte key, a literal 32-byte string, or anything else, hashed down
// to 32 bytes with SHA-256 for a permissive key-parsing policy.
func decodeExplicitKey(k string) []byte {
	if decoded, err := base64.URLEncoding.DecodeString(k); err == nil && len(decoded) == keyLen {
		return decoded
	}
	if decoded, err := hex.DecodeString(k); err == nil && len(decoded) == keyLen {
		return decoded
	}
	if len(k) == keyLen {
		return []byte(k)
	}
	sum := sha256.Sum256([]byte(k))
	return sum[:]
}
