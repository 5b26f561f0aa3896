package routes

import (
	"challenge-scoring-api/controllers"
	"challenge-scoring-api/middleware"
	"challenge-scoring-api/models"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(router *gin.Engine, auth middleware.AuthOptions) {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Public routes
		public := v1.Group("")
		{
			// Health check
			public.GET("/health", func(c *gin.Context) {
				c.JSON(200, gin.H{
					"status":  "ok",
					"message": "Challenge Scoring API is running",
				})
			})
		}

		// Protected routes (require authentication)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(auth))
		{
			applications := protected.Group("/applications")
			{
				// Applicants submit their own application, admins may submit on their behalf
				applications.POST("", middleware.RequireRole(models.RoleApplicant, models.RoleAdmin), controllers.SubmitApplication)
				applications.POST("/:id/evaluate", middleware.RequireRole(models.RoleApplicant, models.RoleAdmin), controllers.EvaluateApplication)

				// Evaluators score assigned applications
				applications.POST("/:id/scores", middleware.RequireRole(models.RoleEvaluator, models.RoleAdmin), controllers.RecordManualScore)

				// Admin only
				applications.POST("/:id/assignments", middleware.RequireRole(models.RoleAdmin), controllers.AssignEvaluator)
				applications.POST("/:id/status", middleware.RequireRole(models.RoleAdmin), controllers.TransitionStatus)

				// Ownership is checked by the service for applicants
				applications.GET("/:id/history", controllers.ListHistory)
			}

			configs := protected.Group("/scoring-configs")
			{
				configs.GET("", middleware.RequireRole(models.RoleEvaluator, models.RoleAdmin), controllers.ListScoringConfigs)
				configs.GET("/active", controllers.GetActiveScoringConfig)
				configs.GET("/:id", middleware.RequireRole(models.RoleEvaluator, models.RoleAdmin), controllers.GetScoringConfig)

				configs.POST("", middleware.RequireRole(models.RoleAdmin), controllers.CreateScoringConfig)
				configs.POST("/import", middleware.RequireRole(models.RoleAdmin), controllers.ImportScoringRubric)
				configs.POST("/:id/activate", middleware.RequireRole(models.RoleAdmin), controllers.ActivateScoringConfig)
			}

			protected.POST("/re-evaluations", middleware.RequireRole(models.RoleAdmin), controllers.ReEvaluate)
			protected.GET("/analytics", middleware.RequireRole(models.RoleEvaluator, models.RoleAdmin), controllers.GetAnalytics)
			protected.GET("/exports/evaluations", middleware.RequireRole(models.RoleAdmin), controllers.ExportEvaluations)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{"success": false, "error": "Route not found"})
	})
}
