package handlers

import (
	"net/http"

	"github.com/PaulFidika/memberkit/catalog"
	"github.com/gin-gonic/gin"
)

func HandleCatalogCategoriesGET(svc *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": svc.Categories(c.Request.Context())})
	}
}
