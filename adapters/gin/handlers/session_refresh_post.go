package handlers

import (
	"github.com/PaulFidika/memberkit/adapters/ginutil"
	"github.com/PaulFidika/memberkit/core"
	"github.com/gin-gonic/gin"
)

// HandleSessionRefreshPOST forces a pass. A session opened by this request
// already ran one, so its snapshot is returned as is.
func HandleSessionRefreshPOST(mgr *core.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ginutil.Actor(c)
		if !ok {
			ginutil.Unauthorized(c, "unauthorized")
			return
		}
		ctx := c.Request.Context()
		snap, created, err := mgr.Acquire(ctx, actor)
		if err != nil || created {
			ginutil.WriteSession(c, snap, err)
			return
		}
		snap, err = mgr.Refresh(ctx, actor.ID)
		ginutil.WriteSession(c, snap, err)
	}
}
