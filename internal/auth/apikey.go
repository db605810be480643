package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
)

const (
	// apiKeySize is the entropy of a generated API key (256 bits).
	apiKeySize = 32

	// CompoundSeparator joins the API key and the per-user secret into the
	// single bearer credential programmatic clients send.
	CompoundSeparator = "~~~"
)

// NewAPIKey generates a random API key. The plaintext is shown to the user
// once; only its Argon2id hash is stored.
func NewAPIKey() (string, error) {
	b := make([]byte, apiKeySize)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return "uk_" + base64.RawURLEncoding.EncodeToString(b), nil
}

// NewAPISecret generates the per-user secret half of the compound credential.
func NewAPISecret() (string, error) {
	b := make([]byte, apiKeySize)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate api secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// SplitCompoundCredential splits an "apiKey~~~secret" bearer credential.
// Returns false when the credential is not in compound form.
func SplitCompoundCredential(credential string) (key, secret string, ok bool) {
	key, secret, ok = strings.Cut(credential, CompoundSeparator)
	if !ok || key == "" || secret == "" {
		return "", "", false
	}
	return key, secret, true
}
