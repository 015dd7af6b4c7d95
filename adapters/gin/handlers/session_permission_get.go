package handlers

import (
	"net/http"
	"strings"

	"github.com/PaulFidika/memberkit/adapters/ginutil"
	"github.com/PaulFidika/memberkit/core"
	"github.com/gin-gonic/gin"
)

func HandleSessionPermissionGET(mgr *core.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ginutil.Actor(c)
		if !ok {
			ginutil.Unauthorized(c, "unauthorized")
			return
		}
		action := strings.TrimSpace(c.Param("action"))
		if action == "" {
			ginutil.BadRequest(c, "missing_action")
			return
		}
		snap, err := mgr.Open(c.Request.Context(), actor)
		if err != nil {
			ginutil.WriteSession(c, snap, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"action": action, "allowed": snap.HasPermission(action)})
	}
}
