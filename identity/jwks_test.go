package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	jwtkit "github.com/PaulFidika/memberkit/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type jwksServer struct {
	mu     sync.Mutex
	signer *jwtkit.RSASigner
	hits   int
}

func (s *jwksServer) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits++
	keys := jwtkit.SignerKeys(s.signer)
	s.mu.Unlock()
	jwtkit.ServeJWKS(w, r, jwtkit.BuildJWKS(keys))
}

func (s *jwksServer) rotate(signer *jwtkit.RSASigner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signer = signer
}

func (s *jwksServer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits
}

func newSigner(t *testing.T, kid string) *jwtkit.RSASigner {
	t.Helper()
	s, err := jwtkit.NewRSASigner(2048, kid)
	require.NoError(t, err)
	return s
}

func signed(t *testing.T, s *jwtkit.RSASigner, ttl time.Duration) string {
	t.Helper()
	tok, err := s.Sign(context.Background(), jwtkit.NewAccessClaims("actor-1", "", "", "", nil, ttl))
	require.NoError(t, err)
	return tok
}

func TestJWKSVerifier_BadTokensDoNotRefetch(t *testing.T) {
	current := newSigner(t, "key-1")
	stranger := newSigner(t, "key-unknown")
	srv := &jwksServer{signer: current}
	ts := httptest.NewServer(http.HandlerFunc(srv.serve))
	defer ts.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	v := NewJWKSVerifier(ts.URL, "", "", time.Hour)
	v.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := v.Verify(ctx, signed(t, current, time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, srv.count())

	for i := 0; i < 20; i++ {
		for _, raw := range []string{"garbage", "a.b.c", signed(t, current, -time.Hour), signed(t, stranger, time.Hour)} {
			_, err := v.Verify(ctx, raw)
			assert.ErrorIs(t, err, ErrInvalidToken)
		}
	}
	assert.Equal(t, 1, srv.count())
}

func TestJWKSVerifier_RefetchesForRotatedKey(t *testing.T) {
	old := newSigner(t, "key-1")
	srv := &jwksServer{signer: old}
	ts := httptest.NewServer(http.HandlerFunc(srv.serve))
	defer ts.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	v := NewJWKSVerifier(ts.URL, "", "", time.Hour)
	v.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := v.Verify(ctx, signed(t, old, time.Hour))
	require.NoError(t, err)

	rotated := newSigner(t, "key-2")
	srv.rotate(rotated)
	raw := signed(t, rotated, time.Hour)

	_, err = v.Verify(ctx, raw)
	assert.ErrorIs(t, err, ErrInvalidToken, "too soon after the last fetch")
	assert.Equal(t, 1, srv.count())

	now = now.Add(MinJWKSRefetch)
	a, err := v.Verify(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, "actor-1", a.ID)
	assert.Equal(t, 2, srv.count())
}
