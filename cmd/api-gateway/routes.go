package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/noah-isme/lingua-scheduler-api/internal/handler"
	internalmiddleware "github.com/noah-isme/lingua-scheduler-api/internal/middleware"
	"github.com/noah-isme/lingua-scheduler-api/internal/models"
	"github.com/noah-isme/lingua-scheduler-api/internal/service"
	"github.com/noah-isme/lingua-scheduler-api/pkg/config"
)

type routeDeps struct {
	auth      *service.AuthService
	generator *handler.ScheduleGeneratorHandler
	sessions  *handler.ClassSessionHandler
	metrics   *handler.MetricsHandler
}

func registerRoutes(r *gin.Engine, cfg *config.Config, deps routeDeps) {
	r.GET("/health", deps.metrics.Health)
	r.GET("/metrics", deps.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	staff := []models.UserRole{models.RoleSuperAdmin, models.RoleAdmin}

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.JWT(deps.auth))

	schedules := api.Group("/schedules")
	{
		schedules.POST("/generate", internalmiddleware.RequireRoles(staff...), deps.generator.Generate)
		schedules.POST("/apply", internalmiddleware.RequireRoles(staff...), deps.generator.Apply)
		schedules.GET("/proposals/:id", internalmiddleware.RequireRoles(staff...), deps.generator.GetProposal)
		schedules.POST("/suggestions", internalmiddleware.RequireRoles(staff...), deps.sessions.Suggest)
		schedules.GET("/weekly", internalmiddleware.SelfOrRoles("user_id", staff...), deps.sessions.Weekly)
		schedules.GET("/weekly/export", internalmiddleware.SelfOrRoles("user_id", staff...), deps.sessions.ExportWeekly)
	}

	sessions := api.Group("/sessions")
	{
		sessions.POST("", internalmiddleware.RequireRoles(staff...), deps.sessions.Create)
		sessions.GET("/:id", deps.sessions.Get)
		sessions.PATCH("/:id", internalmiddleware.RequireRoles(staff...), deps.sessions.Update)
		sessions.DELETE("/:id", internalmiddleware.RequireRoles(staff...), deps.sessions.Delete)
	}

	api.GET("/metrics/summary", internalmiddleware.RequireRoles(staff...), deps.metrics.Summary)
}
