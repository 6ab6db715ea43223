// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package bearer

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rsa"
	"encoding/base64"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// MinSecretBytes is the smallest accepted HS256 secret.
const MinSecretBytes = 32

// Keys is the immutable key material of a Codec. Build it once at startup
// with one of the constructors and share it.
type Keys struct {
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
}

// NewHMACKeys builds HS256 keys from a shared secret. The secret is used
// base64-decoded when it decodes to at least MinSecretBytes, and as raw
// bytes otherwise.
func NewHMACKeys(secret string) (*Keys, error) {
	key := decodeSecret(strings.TrimSpace(secret))
	if len(key) < MinSecretBytes {
		return nil, oops.Code("BEARER_KEY_INVALID").
			With("min_bytes", MinSecretBytes).
			Errorf("HMAC secret must be at least %d bytes", MinSecretBytes)
	}
	return &Keys{method: jwt.SigningMethodHS256, signKey: key, verifyKey: key}, nil
}

func decodeSecret(secret string) []byte {
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if decoded, err := enc.DecodeString(secret); err == nil && len(decoded) >= MinSecretBytes {
			return decoded
		}
	}
	return []byte(secret)
}

// NewAsymmetricKeys builds signing keys from a PEM private key (RSA or
// Ed25519). The public key is derived from the private key when publicPEM
// is empty.
func NewAsymmetricKeys(privatePEM, publicPEM []byte) (*Keys, error) {
	if len(privatePEM) == 0 {
		return nil, oops.Code("BEARER_KEY_INVALID").Errorf("private key is required")
	}

	var (
		k   *Keys
		pub crypto.PublicKey
	)
	if rsaKey, err := jwt.ParseRSAPrivateKeyFromPEM(privatePEM); err == nil {
		k = &Keys{method: jwt.SigningMethodRS256, signKey: rsaKey}
		pub = &rsaKey.PublicKey
	} else if edKey, edErr := jwt.ParseEdPrivateKeyFromPEM(privatePEM); edErr == nil {
		signer, ok := edKey.(ed25519.PrivateKey)
		if !ok {
			return nil, oops.Code("BEARER_KEY_INVALID").Errorf("unsupported EdDSA private key type %T", edKey)
		}
		k = &Keys{method: jwt.SigningMethodEdDSA, signKey: signer}
		pub = signer.Public()
	} else {
		return nil, oops.Code("BEARER_KEY_INVALID").
			With("rsa_error", err.Error()).
			Wrap(edErr)
	}

	if len(publicPEM) == 0 {
		k.verifyKey = pub
		return k, nil
	}
	vk, err := NewVerificationKeys(publicPEM)
	if err != nil {
		return nil, err
	}
	if vk.method.Alg() != k.method.Alg() {
		return nil, oops.Code("BEARER_KEY_MISMATCH").
			With("private_alg", k.method.Alg()).
			With("public_alg", vk.method.Alg()).
			Errorf("public key does not match private key algorithm")
	}
	if !publicKeysEqual(pub, vk.verifyKey) {
		return nil, oops.Code("BEARER_KEY_MISMATCH").Errorf("public key does not belong to private key")
	}
	k.verifyKey = vk.verifyKey
	return k, nil
}

// NewVerificationKeys builds verify-only keys from a PEM public key (RSA or
// Ed25519). Collaborating services use these to check tokens they cannot
// mint.
func NewVerificationKeys(publicPEM []byte) (*Keys, error) {
	if len(publicPEM) == 0 {
		return nil, oops.Code("BEARER_KEY_INVALID").Errorf("public key is required")
	}
	if rsaKey, err := jwt.ParseRSAPublicKeyFromPEM(publicPEM); err == nil {
		return &Keys{method: jwt.SigningMethodRS256, verifyKey: rsaKey}, nil
	}
	edKey, err := jwt.ParseEdPublicKeyFromPEM(publicPEM)
	if err != nil {
		return nil, oops.Code("BEARER_KEY_INVALID").Wrap(err)
	}
	verifier, ok := edKey.(ed25519.PublicKey)
	if !ok {
		return nil, oops.Code("BEARER_KEY_INVALID").Errorf("unsupported EdDSA public key type %T", edKey)
	}
	return &Keys{method: jwt.SigningMethodEdDSA, verifyKey: verifier}, nil
}

// Algorithm returns the JWS algorithm name, e.g. "HS256".
func (k *Keys) Algorithm() string {
	return k.method.Alg()
}

// CanSign reports whether the keys include signing material.
func (k *Keys) CanSign() bool {
	return k.signKey != nil
}

func publicKeysEqual(a, b crypto.PublicKey) bool {
	switch ak := a.(type) {
	case *rsa.PublicKey:
		return ak.Equal(b)
	case ed25519.PublicKey:
		return ak.Equal(b)
	default:
		return false
	}
}
