package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates and configures the HTTP router with all endpoints.
// Route groups are registered only for the dependencies present in cfg.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(RequestLogger(cfg.Logger))
	router.Use(Recovery(cfg.Logger))

	health := NewHealthController(cfg.Database, cfg.Version)
	for name, check := range cfg.HealthChecks {
		health.WithCheck(name, check)
	}

	// Health and metrics endpoints
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Remote store endpoints
	if cfg.RemoteStore != nil {
		NewRemoteController(cfg.RemoteStore, cfg.Logger).RegisterRoutes(router)
	}

	// Content origin: /dictionary/index.json and /dictionary/{word}.json
	if cfg.DictionaryDir != "" {
		router.Static("/dictionary", cfg.DictionaryDir)
	}

	// Agent endpoints
	if cfg.Engine != nil {
		NewLearningController(cfg.Engine, cfg.Logger).RegisterRoutes(router)
	}

	// Task management endpoints
	if cfg.TaskClient != nil {
		userID := func() string { return "" }
		if cfg.Engine != nil {
			userID = cfg.Engine.UserID
		}
		tasksController := NewTasksController(cfg.TaskClient, userID)
		router.GET("/api/tasks/types", tasksController.ListTaskTypes)
		router.GET("/api/tasks/:id", tasksController.GetTaskStatus)
		router.POST("/api/tasks/:type/run", tasksController.RunTask)
	}

	return router
}
