package handlers

import (
	"net/http"

	"github.com/PaulFidika/memberkit/adapters/ginutil"
	"github.com/PaulFidika/memberkit/core"
	"github.com/gin-gonic/gin"
)

// HandleSessionDELETE signs the caller out: the session ends and its
// remembered profile is forgotten.
func HandleSessionDELETE(mgr *core.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ginutil.Actor(c)
		if !ok {
			ginutil.Unauthorized(c, "unauthorized")
			return
		}
		mgr.Close(c.Request.Context(), actor.ID)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
