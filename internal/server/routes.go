package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/openmirror/mirrorbox/internal/mirror"
	"github.com/openmirror/mirrorbox/internal/server/handlers/sync"
	"github.com/openmirror/mirrorbox/internal/server/middlewares"
	"github.com/openmirror/mirrorbox/internal/version"
)

func SetupRoutes(svc *mirror.Service) http.Handler {
	r := gin.New()

	syncH := sync.New(svc)

	r.Use(middlewares.Logger())
	r.Use(gin.Recovery())
	r.Use(gzip.Gzip(gzip.BestSpeed))
	r.Use(cors.Default())

	r.GET("/", IndexHandler)
	r.GET("/healthz", HealthHandler)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/sync", syncH.Sync)
		v1.GET("/sync/latest", syncH.Latest)
		v1.GET("/sync/history", syncH.History)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "not found",
		})
	})

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"error": "method not allowed",
		})
	})

	return r.Handler()
}

func IndexHandler(ctx *gin.Context) {
	ctx.String(http.StatusOK, version.DetailedWithApp())
}

func HealthHandler(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
