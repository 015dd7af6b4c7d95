package membergin

import (
	"strings"

	"github.com/PaulFidika/memberkit/adapters/ginutil"
	"github.com/PaulFidika/memberkit/identity"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AuthRequired verifies the bearer token and stores the actor on the
// context. Websocket clients may pass the token as ?access_token= since
// browsers cannot set headers on the upgrade request.
func AuthRequired(v identity.Verifier, log logrus.FieldLogger) gin.HandlerFunc {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return func(c *gin.Context) {
		raw, err := identity.BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			if q := strings.TrimSpace(c.Query("access_token")); q != "" {
				raw, err = q, nil
			}
		}
		if err != nil {
			ginutil.Unauthorized(c, "unauthorized")
			return
		}
		actor, err := v.Verify(c.Request.Context(), raw)
		if err != nil {
			log.WithError(err).Debug("membergin: token rejected")
			ginutil.Unauthorized(c, "invalid_token")
			return
		}
		ginutil.SetActor(c, actor)
		c.Next()
	}
}
