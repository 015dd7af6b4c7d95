package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	jwtkit "github.com/PaulFidika/memberkit/jwt"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	jwxjwt "github.com/lestrrat-go/jwx/v2/jwt"
	"golang.org/x/sync/singleflight"
)

// KeyVerifier validates RS256 tokens against a fixed key source.
type KeyVerifier struct {
	keys     jwtkit.KeySource
	issuer   string
	audience string
}

// NewKeyVerifier builds a verifier. Empty issuer or audience skips that check.
func NewKeyVerifier(keys jwtkit.KeySource, issuer, audience string) *KeyVerifier {
	return &KeyVerifier{keys: keys, issuer: issuer, audience: audience}
}

func (v *KeyVerifier) Verify(ctx context.Context, raw string) (Actor, error) {
	_ = ctx
	if raw == "" {
		return Actor{}, ErrNoToken
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}), jwt.WithExpirationRequired()}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	var claims jwtkit.AccessClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if pub, ok := v.keys.PublicKey(kid); ok {
			return pub, nil
		}
		// A single configured key verifies tokens regardless of kid.
		if pubs := v.keys.PublicKeys(); len(pubs) == 1 {
			for _, pub := range pubs {
				return pub, nil
			}
		}
		return nil, fmt.Errorf("unknown kid %q", kid)
	}, opts...)
	if err != nil {
		return Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return Actor{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return Actor{ID: claims.Subject, Email: claims.Email, ProfileID: claims.ProfileID, Token: raw}, nil
}

// DefaultJWKSRefresh is how long a fetched key set is reused.
const DefaultJWKSRefresh = 10 * time.Minute

// MinJWKSRefetch bounds how often a token with an unknown kid may force an
// early refetch.
const MinJWKSRefetch = 30 * time.Second

// JWKSVerifier validates tokens against a remote JWKS document.
type JWKSVerifier struct {
	url      string
	issuer   string
	audience string
	refresh  time.Duration
	now      func() time.Time
	fetches  singleflight.Group

	mu      sync.Mutex
	set     jwk.Set
	fetched time.Time
}

// NewJWKSVerifier builds a verifier for the key set at url.
func NewJWKSVerifier(url, issuer, audience string, refresh time.Duration) *JWKSVerifier {
	if refresh <= 0 {
		refresh = DefaultJWKSRefresh
	}
	return &JWKSVerifier{url: url, issuer: issuer, audience: audience, refresh: refresh, now: time.Now}
}

func (v *JWKSVerifier) cached() (jwk.Set, time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.set, v.fetched
}

// keySet returns the cached set while it is fresh. Concurrent fetches
// collapse into one; a failed fetch keeps serving the previous set.
func (v *JWKSVerifier) keySet(ctx context.Context) (jwk.Set, error) {
	set, fetched := v.cached()
	if set != nil && v.now().Sub(fetched) < v.refresh {
		return set, nil
	}
	return v.fetch(ctx)
}

func (v *JWKSVerifier) fetch(ctx context.Context) (jwk.Set, error) {
	res, err, _ := v.fetches.Do(v.url, func() (any, error) {
		set, err := jwk.Fetch(ctx, v.url)
		if err != nil {
			return nil, err
		}
		v.mu.Lock()
		v.set, v.fetched = set, v.now()
		v.mu.Unlock()
		return set, nil
	})
	if err != nil {
		if set, _ := v.cached(); set != nil {
			return set, nil
		}
		return nil, err
	}
	return res.(jwk.Set), nil
}

// rotated reports whether raw names a key the cached set lacks and the set is
// old enough to be refetched early.
func (v *JWKSVerifier) rotated(raw string, set jwk.Set) bool {
	msg, err := jws.ParseString(raw)
	if err != nil || len(msg.Signatures()) == 0 {
		return false
	}
	kid := msg.Signatures()[0].ProtectedHeaders().KeyID()
	if kid == "" {
		return false
	}
	if _, ok := set.LookupKeyID(kid); ok {
		return false
	}
	_, fetched := v.cached()
	return v.now().Sub(fetched) >= MinJWKSRefetch
}

func (v *JWKSVerifier) Verify(ctx context.Context, raw string) (Actor, error) {
	if raw == "" {
		return Actor{}, ErrNoToken
	}
	set, err := v.keySet(ctx)
	if err != nil {
		return Actor{}, fmt.Errorf("identity: fetch jwks: %w", err)
	}
	tok, err := v.parse(ctx, raw, set)
	if err != nil && v.rotated(raw, set) {
		if set, ferr := v.fetch(ctx); ferr == nil {
			tok, err = v.parse(ctx, raw, set)
		}
	}
	if err != nil {
		return Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if tok.Subject() == "" {
		return Actor{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	a := Actor{ID: tok.Subject(), Token: raw}
	if s, ok := tok.Get("email"); ok {
		a.Email, _ = s.(string)
	}
	if s, ok := tok.Get("profile_id"); ok {
		a.ProfileID, _ = s.(string)
	}
	return a, nil
}

func (v *JWKSVerifier) parse(ctx context.Context, raw string, set jwk.Set) (jwxjwt.Token, error) {
	opts := []jwxjwt.ParseOption{
		jwxjwt.WithKeySet(set),
		jwxjwt.WithValidate(true),
		jwxjwt.WithContext(ctx),
	}
	if v.issuer != "" {
		opts = append(opts, jwxjwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwxjwt.WithAudience(v.audience))
	}
	return jwxjwt.ParseString(raw, opts...)
}
