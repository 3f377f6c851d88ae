package controller

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the v1 API on router.
func RegisterRoutes(router gin.IRouter, submit *SubmitController, health *HealthController) {
	api := router.Group("/api/v1")
	api.POST("/submissions", submit.Create)
	api.GET("/tasks/:id/submissions", submit.ListByTask)
	api.GET("/tasks/:id/stats", submit.Stats)
	api.GET("/health/toolchains", health.Toolchains)
	api.GET("/health/dependencies", health.Dependencies)
}
