// Package sessiontest provides helpers for testing code built on memberkit: a
// token issuer serving a JWKS endpoint and a scriptable fake backend.
//
//	issuer := sessiontest.NewTestIssuer()
//	defer issuer.Close()
//	verifier := identity.NewJWKSVerifier(issuer.JWKSURL(), issuer.URL(), issuer.Audience(), 0)
//	token := issuer.CreateToken("actor-1", "a@example.com")
package sessiontest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"time"

	jwtkit "github.com/PaulFidika/memberkit/jwt"
	jwt "github.com/golang-jwt/jwt/v5"
)

// TestIssuer signs access tokens and serves the matching JWKS at
// /.well-known/jwks.json.
type TestIssuer struct {
	server   *httptest.Server
	signer   *jwtkit.RSASigner
	audience string
}

func NewTestIssuer() *TestIssuer {
	return NewTestIssuerWithAudience("memberkit-test")
}

func NewTestIssuerWithAudience(audience string) *TestIssuer {
	signer, err := jwtkit.NewRSASigner(2048, "test-key-1")
	if err != nil {
		panic("sessiontest: create RSA signer: " + err.Error())
	}
	ti := &TestIssuer{signer: signer, audience: audience}
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/jwks.json", func(w http.ResponseWriter, r *http.Request) {
		jwtkit.ServeJWKS(w, r, jwtkit.BuildJWKS(ti.Keys()))
	})
	ti.server = httptest.NewServer(mux)
	return ti
}

func (ti *TestIssuer) URL() string      { return ti.server.URL }
func (ti *TestIssuer) JWKSURL() string  { return ti.server.URL + "/.well-known/jwks.json" }
func (ti *TestIssuer) Audience() string { return ti.audience }

// Keys returns the issuer's verification keys for an in-process verifier.
func (ti *TestIssuer) Keys() jwtkit.StaticKeySource { return jwtkit.SignerKeys(ti.signer) }

func (ti *TestIssuer) Close() {
	if ti.server != nil {
		ti.server.Close()
	}
}

// CreateToken signs a one-hour token for actorID.
func (ti *TestIssuer) CreateToken(actorID, email string) string {
	return ti.sign(jwtkit.NewAccessClaims(actorID, email, "", ti.URL(), []string{ti.audience}, time.Hour))
}

// CreateTokenWithProfile signs a token carrying a profile hint.
func (ti *TestIssuer) CreateTokenWithProfile(actorID, email, profileID string) string {
	return ti.sign(jwtkit.NewAccessClaims(actorID, email, profileID, ti.URL(), []string{ti.audience}, time.Hour))
}

// CreateExpiredToken signs a token that expired an hour ago.
func (ti *TestIssuer) CreateExpiredToken(actorID, email string) string {
	return ti.sign(jwtkit.NewAccessClaims(actorID, email, "", ti.URL(), []string{ti.audience}, -time.Hour))
}

func (ti *TestIssuer) sign(claims jwt.Claims) string {
	tok, err := ti.signer.Sign(context.Background(), claims)
	if err != nil {
		panic("sessiontest: sign token: " + err.Error())
	}
	return tok
}
