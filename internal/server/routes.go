package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/gridbase/sheetsync/internal/server/handlers/jobs"
	"github.com/gridbase/sheetsync/internal/server/handlers/sync"
	"github.com/gridbase/sheetsync/internal/server/middlewares"
	"github.com/gridbase/sheetsync/internal/version"
)

func SetupRoutes(config *Config, svc *Services) http.Handler {
	r := gin.New()

	syncH := sync.New(svc.Engine, svc.Configs, svc.Logs, svc.Tracked)
	jobsH := jobs.New(svc.Jobs, svc.Scheduler)

	r.Use(middlewares.Logger())
	r.Use(gin.Recovery())
	r.Use(gzip.Gzip(gzip.BestSpeed))
	r.Use(cors.Default())

	r.GET("/", IndexHandler)
	r.GET("/healthz", HealthHandler)

	v1 := r.Group("/api/v1")
	v1.Use(middlewares.ServiceToken(config.HTTP.ServiceToken))
	{
		// sync
		v1.POST("/sync/run", syncH.Run)
		v1.GET("/sync/configs", syncH.ListConfigs)
		v1.GET("/sync/configs/:table", syncH.GetConfig)
		v1.PUT("/sync/configs/:table", syncH.PutConfig)
		v1.DELETE("/sync/configs/:table", syncH.DeleteConfig)
		v1.GET("/sync/logs", syncH.ListLogs)
		v1.GET("/sync/logs/:id", syncH.GetLog)

		// cron jobs
		v1.GET("/jobs", jobsH.List)
		v1.POST("/jobs", jobsH.Create)
		v1.GET("/jobs/:name", jobsH.Get)
		v1.DELETE("/jobs/:name", jobsH.Delete)
		v1.POST("/jobs/:name/run", jobsH.Run)
		v1.POST("/jobs/:name/stop", jobsH.Stop)
		v1.POST("/jobs/:name/enable", jobsH.Enable)
		v1.POST("/jobs/:name/disable", jobsH.Disable)
		v1.POST("/jobs/reload", jobsH.Reload)
		v1.POST("/jobs/clear-stuck", jobsH.ClearStuck)
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
	ctx.String(http.StatusOK, version.Detailed())
}

func HealthHandler(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
