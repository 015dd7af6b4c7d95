// Package membergin mounts the session API on a gin router.
package membergin

import (
	"net/http"

	"github.com/PaulFidika/memberkit/adapters/gin/handlers"
	"github.com/PaulFidika/memberkit/adapters/ginutil"
	"github.com/PaulFidika/memberkit/catalog"
	"github.com/PaulFidika/memberkit/core"
	"github.com/PaulFidika/memberkit/identity"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Options configures Register.
type Options struct {
	Manager  *core.Manager
	Verifier identity.Verifier
	Catalog  *catalog.Service
	Logger   logrus.FieldLogger
	// Upgrader overrides the websocket upgrader of /session/stream.
	Upgrader *websocket.Upgrader
}

// Register mounts the session routes on r:
//
//	GET    /catalog/categories
//	GET    /session
//	DELETE /session
//	POST   /session/refresh
//	PUT    /session/workspace
//	GET    /session/permissions/:action
//	GET    /session/stream
//	GET    /me
func Register(r gin.IRouter, opts Options) {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	if opts.Catalog != nil {
		r.GET("/catalog/categories", handlers.HandleCatalogCategoriesGET(opts.Catalog))
	}

	auth := r.Group("", AuthRequired(opts.Verifier, log))
	auth.GET("/session", handlers.HandleSessionGET(opts.Manager))
	auth.DELETE("/session", handlers.HandleSessionDELETE(opts.Manager))
	auth.POST("/session/refresh", handlers.HandleSessionRefreshPOST(opts.Manager))
	auth.PUT("/session/workspace", handlers.HandleSessionWorkspacePUT(opts.Manager))
	auth.GET("/session/permissions/:action", handlers.HandleSessionPermissionGET(opts.Manager))
	auth.GET("/session/stream", handlers.HandleSessionStreamGET(opts.Manager, opts.Upgrader, log))
	auth.GET("/me", func(c *gin.Context) {
		v, ok := CurrentActor(c, opts.Manager)
		if !ok {
			ginutil.Unauthorized(c, "unauthorized")
			return
		}
		c.JSON(http.StatusOK, v)
	})
}
