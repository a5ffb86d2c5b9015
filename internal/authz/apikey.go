package authz

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2Iterations is the fixed work factor for API key hashing, matching
// the Python original's pbkdf2_hmac("sha256", ..., 210_000, dklen=32).
const PBKDF2Iterations = 210_000

const pbkdf2KeyLen = 32

var ErrEmptyKey = errors.New("api key is empty")

// GenerateApiKey returns a new raw key in the sk_<live|test>_<32 random
// bytes, url-safe base64> form. The prefix (first 16 chars) is stored
// unhashed for O(1) lookup; the rest is never stored in the clear.
func GenerateApiKey(live bool) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	env := "test"
	if live {
		env = "live"
	}
	return "sk_" + env + "_" + base64.RawURLEncoding.EncodeToString(buf), nil
}

// ApiKeyPrefix returns the fast-lookup prefix stored alongside the hash.
func ApiKeyPrefix(key string) string {
	const n = 16
	if len(key) < n {
		return key
	}
	return key[:n]
}

// HashApiKey derives a PBKDF2-HMAC-SHA256 hash of key under a fresh random
// salt, returning both as hex strings for storage.
func HashApiKey(key string) (saltHex, hashHex string, err error) {
	if key == "" {
		return "", "", ErrEmptyKey
	}
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", "", err
	}
	dk := pbkdf2.Key([]byte(key), salt, PBKDF2Iterations, pbkdf2KeyLen, sha256.New)
	return hex.EncodeToString(salt), hex.EncodeToString(dk), nil
}

// VerifyApiKey recomputes the PBKDF2 hash of key under saltHex and
// compares it to hashHex in constant time.
func VerifyApiKey(key, saltHex, hashHex string) bool {
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false
	}
	expected, err := hex.DecodeString(hashHex)
	if err != nil {
		return false
	}
	dk := pbkdf2.Key([]byte(key), salt, PBKDF2Iterations, len(expected), sha256.New)
	return hmac.Equal(dk, expected)
}

// IsApiKey reports whether a bearer credential looks like an API key
// rather than a JWT, per the "sk_"-prefix convention.
func IsApiKey(credential string) bool {
	return strings.HasPrefix(credential, "sk_")
}

// REST scope enforcement: safe HTTP methods only need read access, every
// mutating method needs write access (§4.4 / §6 API key scopes).
var safeHTTPMethods = map[string]bool{"GET": true, "HEAD": true, "OPTIONS": true}

const (
	scopeApiRead  = "api:read"
	scopeApiWrite = "api:write"
)

// ApiKeyAllowsREST reports whether scopes permit method against a REST
// endpoint: safe methods need api:read or api:write, mutating methods need
// api:write.
func ApiKeyAllowsREST(scopes []string, method string) bool {
	set := map[string]bool{}
	for _, s := range scopes {
		set[strings.TrimSpace(s)] = true
	}
	if safeHTTPMethods[strings.ToUpper(method)] {
		return set[scopeApiRead] || set[scopeApiWrite]
	}
	return set[scopeApiWrite]
}
