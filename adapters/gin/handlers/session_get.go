package handlers

import (
	"github.com/PaulFidika/memberkit/adapters/ginutil"
	"github.com/PaulFidika/memberkit/core"
	"github.com/gin-gonic/gin"
)

// HandleSessionGET opens the caller's session on first use and returns its
// snapshot. Every call rotates the session's bearer token.
func HandleSessionGET(mgr *core.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ginutil.Actor(c)
		if !ok {
			ginutil.Unauthorized(c, "unauthorized")
			return
		}
		snap, err := mgr.Open(c.Request.Context(), actor)
		ginutil.WriteSession(c, snap, err)
	}
}
