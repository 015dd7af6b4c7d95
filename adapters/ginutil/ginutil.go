// Package ginutil holds the response and context helpers shared by the gin
// handlers.
package ginutil

import (
	"net/http"

	"github.com/PaulFidika/memberkit/core"
	"github.com/PaulFidika/memberkit/identity"
	"github.com/PaulFidika/memberkit/session"
	"github.com/gin-gonic/gin"
)

const actorKey = "memberkit.actor"

// SetActor stores the verified caller on c.
func SetActor(c *gin.Context, a identity.Actor) { c.Set(actorKey, a) }

// Actor returns the verified caller, if the auth middleware ran.
func Actor(c *gin.Context) (identity.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return identity.Actor{}, false
	}
	a, ok := v.(identity.Actor)
	return a, ok && a.Valid()
}

func BadRequest(c *gin.Context, code string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": code})
}

func Unauthorized(c *gin.Context, code string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": code})
}

func NotFound(c *gin.Context, code string) {
	c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": code})
}

func Conflict(c *gin.Context, code string) {
	c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": code})
}

func TooMany(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
}

func ServerErr(c *gin.Context, code string) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": code})
}

// WriteSession writes snap, or the mapped error together with the snapshot
// the caller is left with.
func WriteSession(c *gin.Context, snap session.Snapshot, err error) {
	code, msg := core.ErrorStatus(err)
	if err == nil {
		c.JSON(code, snap)
		return
	}
	c.AbortWithStatusJSON(code, gin.H{"error": msg, "session": snap})
}
