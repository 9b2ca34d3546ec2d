package session

import (
	"crypto/rand"
	"encoding/base64"

	"sole/cmd/security/token"
)

func newOpaqueToken(nBytes int) (plain string, hashHex string, err error) {
	b := make([]byte, nBytes)
	if _, err = rand.Read(b); err != nil {
		return "", "", err
	}

	// URL-safe, no padding.
	plain = base64.RawURLEncoding.EncodeToString(b)

	hashHex = token.HashSessionTokenHex(plain) // 64 hex chars

	return plain, hashHex, nil
}

func hashSessionTokenHex(s string) string {
	return token.HashSessionTokenHex(s)
}
