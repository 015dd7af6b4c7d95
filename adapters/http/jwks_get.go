package memberhttp

import (
	"net/http"

	jwtkit "github.com/PaulFidika/memberkit/jwt"
)

// JWKSHandler serves the public JWKS document of ks.
func JWKSHandler(ks jwtkit.KeySource) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jwtkit.ServeJWKS(w, r, jwtkit.BuildJWKS(ks))
	})
}
