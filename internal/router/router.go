package router

import (
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
	"go.uber.org/zap"

	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/backend"
	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/config"
	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/detect"
	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/handlers"
	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/session"
)

func keyFunc(c *gin.Context) string {
	return c.ClientIP()
}

func rateErrorHandler(c *gin.Context, info ratelimit.Info) {
	c.String(429, "Too many requests. Try again later.")
}

func Setup(log *zap.Logger, manager *session.Manager, frames *detect.Store, client *backend.Client) *gin.Engine {
	// Set up a new Gin router, add recovery middleware and request logging.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(log))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	origins := config.Conf.Server.AllowedOrigins
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
	}
	router.Use(cors.New(corsConfig))

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
	})
	router.Use(func(c *gin.Context) {
		err := secureMiddleware.Process(c.Writer, c.Request)
		if err != nil {
			c.Abort()
			return
		}
	})

	// Handlers and routes
	viewerHandler := handlers.NewViewerHandler(log, manager, frames)
	portalHandler := handlers.NewPortalHandler(log, client)
	adminHandler := handlers.NewAdminHandler(log, client)

	// Score-affecting endpoints get a per-IP limiter. The frame and
	// message feeds are exempt: the viewer posts them continuously.
	rateLimitStore := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
		Rate:  time.Minute,
		Limit: 30,
	})
	limiter := ratelimit.RateLimiter(rateLimitStore, &ratelimit.Options{
		ErrorHandler: rateErrorHandler,
		KeyFunc:      keyFunc,
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "active_sessions": manager.Active()})
	})

	viewerRoutes := router.Group("/viewer/sessions")
	{
		viewerRoutes.POST("", limiter, viewerHandler.Start)
		viewerRoutes.GET("/:id", viewerHandler.Get)
		viewerRoutes.POST("/:id/message", viewerHandler.Message)
		viewerRoutes.POST("/:id/frame", viewerHandler.Frame)
		viewerRoutes.POST("/:id/screenshot", limiter, viewerHandler.Screenshot)
		viewerRoutes.POST("/:id/confirm", limiter, viewerHandler.Confirm)
		viewerRoutes.POST("/:id/manual", limiter, viewerHandler.Manual)
		viewerRoutes.DELETE("/:id", viewerHandler.Close)
		viewerRoutes.GET("/:id/journal", viewerHandler.Journal)
	}

	router.GET("/library", portalHandler.Library)
	router.GET("/performance", portalHandler.Performance)
	router.POST("/feedback", limiter, portalHandler.Feedback)

	adminRoutes := router.Group("/admin")
	{
		adminRoutes.GET("/reports", adminHandler.Reports)
		adminRoutes.GET("/categories", adminHandler.ListCategories)
		adminRoutes.POST("/categories", adminHandler.CreateCategory)
		adminRoutes.PATCH("/categories/:id", adminHandler.UpdateCategory)
		adminRoutes.DELETE("/categories/:id", adminHandler.DeleteCategory)
		adminRoutes.GET("/models", adminHandler.ListModels)
		adminRoutes.POST("/models", adminHandler.CreateModel)
		adminRoutes.PATCH("/models/:id", adminHandler.UpdateModel)
		adminRoutes.DELETE("/models/:id", adminHandler.DeleteModel)
	}

	return router
}
