// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package bearer issues and verifies signed, stateless access tokens (JWT).
package bearer

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/samber/oops"
)

// Defaults for access tokens.
const (
	DefaultTTL    = 15 * time.Minute
	DefaultLeeway = 60 * time.Second
	maxLeeway     = 5 * time.Minute
)

// Claims are the access token claims. AccountID and Roles are the
// application claims; the registered claims are filled in by Issue.
type Claims struct {
	AccountID int64    `json:"uid"`
	Roles     []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Reason explains why Verify rejected a token. It is meant for logs and
// metrics only and must not be returned to clients.
type Reason string

// Rejection reasons.
const (
	ReasonNone             Reason = ""
	ReasonMalformed        Reason = "malformed"
	ReasonInvalidSignature Reason = "invalid_signature"
	ReasonExpired          Reason = "expired"
	ReasonNotYetValid      Reason = "not_yet_valid"
	ReasonInvalidIssuer    Reason = "invalid_issuer"
	ReasonInvalidAudience  Reason = "invalid_audience"
	ReasonInvalidClaims    Reason = "invalid_claims"
)

// Options configures a Codec.
type Options struct {
	Issuer   string
	Audience string
	// Leeway tolerates clock skew on exp, nbf, and iat. Zero means
	// DefaultLeeway; negative disables it.
	Leeway time.Duration
	// Now overrides the clock. Tests only.
	Now func() time.Time
}

// Codec signs and verifies access tokens with one immutable key set.
type Codec struct {
	keys   *Keys
	opts   Options
	parser *jwt.Parser
}

// NewCodec creates a Codec.
func NewCodec(keys *Keys, opts Options) (*Codec, error) {
	if keys == nil {
		return nil, oops.Code("BEARER_CONFIG_INVALID").Errorf("keys are required")
	}
	switch {
	case opts.Leeway == 0:
		opts.Leeway = DefaultLeeway
	case opts.Leeway < 0:
		opts.Leeway = 0
	case opts.Leeway > maxLeeway:
		return nil, oops.Code("BEARER_CONFIG_INVALID").
			With("leeway", opts.Leeway).
			Errorf("leeway must not exceed %s", maxLeeway)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{keys.Algorithm()}),
		jwt.WithLeeway(opts.Leeway),
		jwt.WithTimeFunc(opts.Now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(opts.Issuer))
	}
	if opts.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(opts.Audience))
	}

	return &Codec{keys: keys, opts: opts, parser: jwt.NewParser(parserOpts...)}, nil
}

// Issue signs an access token for subject valid for ttl. The registered
// claims of claims are overwritten; a fresh random jti is assigned.
func (c *Codec) Issue(subject string, claims Claims, ttl time.Duration) (string, error) {
	if !c.keys.CanSign() {
		return "", oops.Code("BEARER_SIGNING_UNAVAILABLE").
			With("alg", c.keys.Algorithm()).
			Errorf("codec holds verification keys only")
	}
	if subject == "" {
		return "", oops.Code("BEARER_ISSUE_FAILED").Errorf("subject is required")
	}
	if ttl <= 0 {
		return "", oops.Code("BEARER_ISSUE_FAILED").With("ttl", ttl).Errorf("ttl must be positive")
	}

	now := c.opts.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    c.opts.Issuer,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if c.opts.Audience != "" {
		claims.Audience = jwt.ClaimStrings{c.opts.Audience}
	}

	signed, err := jwt.NewWithClaims(c.keys.method, claims).SignedString(c.keys.signKey)
	if err != nil {
		return "", oops.Code("BEARER_ISSUE_FAILED").With("alg", c.keys.Algorithm()).Wrap(err)
	}
	return signed, nil
}

// Verify returns the claims of a valid token, or (nil, false) for any
// malformed, forged, foreign, or expired token.
func (c *Codec) Verify(token string) (*Claims, bool) {
	claims, reason := c.VerifyDetailed(token)
	return claims, reason == ReasonNone
}

// VerifyDetailed is Verify with the rejection reason.
func (c *Codec) VerifyDetailed(token string) (*Claims, Reason) {
	if token == "" {
		return nil, ReasonMalformed
	}
	parsed, err := c.parser.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != c.keys.Algorithm() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return c.keys.verifyKey, nil
	})
	if err != nil {
		return nil, reasonFor(err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ReasonInvalidClaims
	}
	return claims, ReasonNone
}

func reasonFor(err error) Reason {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ReasonMalformed
	case errors.Is(err, jwt.ErrTokenExpired):
		return ReasonExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return ReasonNotYetValid
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ReasonInvalidIssuer
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ReasonInvalidAudience
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ReasonInvalidSignature
	default:
		return ReasonInvalidClaims
	}
}
