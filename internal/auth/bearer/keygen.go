// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package bearer

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"

	"github.com/samber/oops"
)

// Key generation algorithms.
const (
	AlgEd25519 = "ed25519"
	AlgRSA     = "rsa"
)

const rsaKeyBits = 3072

// GenerateKeyPair creates a new asymmetric signing key pair and returns it
// as PKCS#8 private and PKIX public PEM blocks.
func GenerateKeyPair(alg string) (privatePEM, publicPEM []byte, err error) {
	var priv crypto.Signer
	switch alg {
	case AlgEd25519:
		_, priv, err = ed25519.GenerateKey(rand.Reader)
	case AlgRSA:
		priv, err = rsa.GenerateKey(rand.Reader, rsaKeyBits)
	default:
		return nil, nil, oops.Code("BEARER_KEYGEN_FAILED").With("alg", alg).Errorf("unsupported key algorithm")
	}
	if err != nil {
		return nil, nil, oops.Code("BEARER_KEYGEN_FAILED").With("alg", alg).Wrap(err)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, nil, oops.Code("BEARER_KEYGEN_FAILED").With("operation", "marshal private key").Wrap(err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(priv.Public())
	if err != nil {
		return nil, nil, oops.Code("BEARER_KEYGEN_FAILED").With("operation", "marshal public key").Wrap(err)
	}

	privatePEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	publicPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return privatePEM, publicPEM, nil
}
