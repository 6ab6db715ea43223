// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"io"

	"github.com/samber/oops"
)

// Opaque token sizes in bytes of entropy.
const (
	RefreshTokenBytes = 64 // 512 bits
	ActionTokenBytes  = 32 // 256 bits
)

// minTokenBytes is the smallest accepted entropy for an opaque token.
const minTokenBytes = 32

// randReader is swapped in tests to simulate entropy failures.
var randReader io.Reader = rand.Reader

// HashToken returns the storage fingerprint of a raw token: SHA-256 encoded
// as unpadded base64url. The result is always 43 characters.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// VerifyTokenHash reports whether raw fingerprints to hash, in constant time.
func VerifyTokenHash(raw, hash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashToken(raw)), []byte(hash)) == 1
}

// GenerateOpaqueToken returns a new random token of n bytes of entropy as
// unpadded base64url, together with its fingerprint.
func GenerateOpaqueToken(n int) (raw, hash string, err error) {
	if n < minTokenBytes {
		return "", "", oops.Code("TOKEN_SIZE_INVALID").
			With("bytes", n).
			Errorf("token must carry at least %d bytes of entropy", minTokenBytes)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(randReader, buf); err != nil {
		return "", "", oops.Code("TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			Wrap(err)
	}
	raw = base64.RawURLEncoding.EncodeToString(buf)
	return raw, HashToken(raw), nil
}
