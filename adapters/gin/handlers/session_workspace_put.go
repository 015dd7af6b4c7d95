package handlers

import (
	"strings"

	"github.com/PaulFidika/memberkit/adapters/ginutil"
	"github.com/PaulFidika/memberkit/core"
	"github.com/gin-gonic/gin"
)

func HandleSessionWorkspacePUT(mgr *core.Manager) gin.HandlerFunc {
	type switchReq struct {
		DocumentID string `json:"document_id"`
	}
	return func(c *gin.Context) {
		actor, ok := ginutil.Actor(c)
		if !ok {
			ginutil.Unauthorized(c, "unauthorized")
			return
		}
		var req switchReq
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.DocumentID) == "" {
			ginutil.BadRequest(c, "invalid_request")
			return
		}
		ctx := c.Request.Context()
		if snap, err := mgr.Open(ctx, actor); err != nil {
			ginutil.WriteSession(c, snap, err)
			return
		}
		snap, err := mgr.SwitchWorkspace(ctx, actor.ID, strings.TrimSpace(req.DocumentID))
		ginutil.WriteSession(c, snap, err)
	}
}
