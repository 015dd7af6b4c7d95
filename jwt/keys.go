package jwtkit

import (
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sort"

	jwt "github.com/golang-jwt/jwt/v5"
)

// KeySource resolves verification keys by kid.
type KeySource interface {
	PublicKey(kid string) (*rsa.PublicKey, bool)
	PublicKeys() map[string]*rsa.PublicKey
}

// StaticKeySource is a fixed set of public keys.
type StaticKeySource struct {
	Pubs map[string]*rsa.PublicKey
}

func (s StaticKeySource) PublicKey(kid string) (*rsa.PublicKey, bool) {
	k, ok := s.Pubs[kid]
	return k, ok
}

func (s StaticKeySource) PublicKeys() map[string]*rsa.PublicKey { return s.Pubs }

// SignerKeys exposes the public halves of the given signers.
func SignerKeys(signers ...*RSASigner) StaticKeySource {
	pubs := make(map[string]*rsa.PublicKey, len(signers))
	for _, s := range signers {
		pubs[s.KID()] = s.PublicKey()
	}
	return StaticKeySource{Pubs: pubs}
}

// ParsePublicKeys parses a kid -> PEM map.
func ParsePublicKeys(pems map[string]string) (StaticKeySource, error) {
	pubs := make(map[string]*rsa.PublicKey, len(pems))
	for kid, p := range pems {
		pub, err := jwt.ParseRSAPublicKeyFromPEM([]byte(p))
		if err != nil {
			return StaticKeySource{}, fmt.Errorf("jwtkit: public key %s: %w", kid, err)
		}
		pubs[kid] = pub
	}
	return StaticKeySource{Pubs: pubs}, nil
}

// JWK minimal fields for RSA public keys.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use,omitempty"`
	Kid string `json:"kid,omitempty"`
	Alg string `json:"alg,omitempty"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type JWKS struct {
	Keys []JWK `json:"keys"`
}

// BuildJWKS renders every key of ks as RS256 JWKs, ordered by kid.
func BuildJWKS(ks KeySource) JWKS {
	pubs := ks.PublicKeys()
	kids := make([]string, 0, len(pubs))
	for kid := range pubs {
		kids = append(kids, kid)
	}
	sort.Strings(kids)
	out := JWKS{Keys: make([]JWK, 0, len(kids))}
	for _, kid := range kids {
		pub := pubs[kid]
		out.Keys = append(out.Keys, JWK{
			Kty: "RSA",
			Use: "sig",
			Kid: kid,
			Alg: jwt.SigningMethodRS256.Alg(),
			N:   b64(pub.N),
			E:   b64(big.NewInt(int64(pub.E))),
		})
	}
	return out
}

// ServeJWKS writes ks with an ETag and honours If-None-Match.
func ServeJWKS(w http.ResponseWriter, r *http.Request, ks JWKS) {
	b, _ := json.Marshal(ks)
	sum := sha256.Sum256(b)
	etag := "\"" + hex.EncodeToString(sum[:]) + "\""
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=300, must-revalidate")
	w.Header().Set("ETag", etag)
	_, _ = w.Write(b)
}

func b64(i *big.Int) string {
	return base64.RawURLEncoding.EncodeToString(i.Bytes())
}
