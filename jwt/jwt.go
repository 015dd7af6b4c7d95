package jwtkit

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// Signer issues asymmetric bearer tokens.
type Signer interface {
	// Algorithm returns the JWS algorithm (e.g., RS256).
	Algorithm() string
	// KID returns current key id.
	KID() string
	Sign(ctx context.Context, claims jwt.Claims) (token string, err error)
}

// AccessClaims are the claims memberkit reads from a marketplace access token.
// ProfileID is optional; when present it seeds the active profile hint.
type AccessClaims struct {
	jwt.RegisteredClaims
	Email     string `json:"email,omitempty"`
	ProfileID string `json:"profile_id,omitempty"`
}

// NewAccessClaims builds claims for actorID valid for ttl.
func NewAccessClaims(actorID, email, profileID, issuer string, audiences []string, ttl time.Duration) AccessClaims {
	now := time.Now()
	return AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   actorID,
			Audience:  audiences,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email:     email,
		ProfileID: profileID,
	}
}

// RSASigner signs with an in-memory RSA key. Used by tests and local setups;
// production tokens come from the marketplace backend.
type RSASigner struct {
	key *rsa.PrivateKey
	kid string
}

func NewRSASigner(bits int, kid string) (*RSASigner, error) {
	if bits == 0 {
		bits = 2048
	}
	k, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, err
	}
	return &RSASigner{key: k, kid: kid}, nil
}

// NewRSASignerFromPEM constructs an RSASigner from a PKCS1 or PKCS8 private key.
func NewRSASignerFromPEM(kid string, pemBytes []byte) (*RSASigner, error) {
	blk, _ := pem.Decode(pemBytes)
	if blk == nil {
		return nil, errors.New("jwtkit: invalid private key pem")
	}
	if blk.Type == "RSA PRIVATE KEY" {
		k, err := x509.ParsePKCS1PrivateKey(blk.Bytes)
		if err != nil {
			return nil, err
		}
		return &RSASigner{key: k, kid: kid}, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(blk.Bytes)
	if err != nil {
		return nil, err
	}
	k, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("jwtkit: pkcs8 key is not RSA")
	}
	return &RSASigner{key: k, kid: kid}, nil
}

func (s *RSASigner) Algorithm() string         { return jwt.SigningMethodRS256.Alg() }
func (s *RSASigner) KID() string               { return s.kid }
func (s *RSASigner) PublicKey() *rsa.PublicKey { return &s.key.PublicKey }

func (s *RSASigner) Sign(_ context.Context, claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.kid
	return token.SignedString(s.key)
}
