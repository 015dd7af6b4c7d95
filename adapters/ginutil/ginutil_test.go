package ginutil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/PaulFidika/memberkit/identity"
	"github.com/PaulFidika/memberkit/session"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestActor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := Actor(c)
	assert.False(t, ok)

	SetActor(c, identity.Actor{})
	_, ok = Actor(c)
	assert.False(t, ok)

	SetActor(c, identity.Actor{ID: "a-1"})
	a, ok := Actor(c)
	assert.True(t, ok)
	assert.Equal(t, "a-1", a.ID)
}

func TestWriteSession_Error(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	WriteSession(c, session.Snapshot{Error: "graph: boom"}, session.ErrPassInFlight)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"error":"pass_in_flight"`)
	assert.Contains(t, w.Body.String(), `"session":`)
}
