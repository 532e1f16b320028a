package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/pawclass-api/api/swagger"
	"github.com/noah-isme/pawclass-api/internal/middleware"
	"github.com/noah-isme/pawclass-api/internal/models"
	"github.com/noah-isme/pawclass-api/pkg/config"
	"github.com/noah-isme/pawclass-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/pawclass-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/pawclass-api/pkg/middleware/requestid"
)

func newRouter(cfg *config.Config, logr *zap.Logger, app *application) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(app.metrics))

	r.GET("/health", app.ops.Health)
	r.GET("/ready", app.ops.Ready)
	r.GET("/metrics", app.ops.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())

	cron := api.Group("/internal")
	cron.POST("/sweeps/bookings",
		middleware.CronSecret(app.auth),
		middleware.Audit(app.audits, "SWEEP_RUN", "bookings"),
		app.sweeps.Run,
	)

	authed := api.Group("")
	authed.Use(middleware.JWT(app.auth), middleware.UUIDParams("id"))

	staff := middleware.RequireStaff()
	bookers := middleware.RequireRoles(models.RoleStudent, models.RoleAdmin, models.RoleSuperAdmin)

	bookings := authed.Group("/bookings")
	bookings.GET("", app.bookings.List)
	bookings.GET("/:id", app.bookings.Get)
	bookings.POST("", bookers, app.bookings.Create)
	bookings.POST("/:id/cancel", bookers, app.bookings.Cancel)

	authed.GET("/me/enrollments", middleware.RequireRoles(models.RoleStudent), app.enrollments.Mine)

	classes := authed.Group("/classes")
	classes.GET("", app.classes.List)
	classes.GET("/:id", app.classes.Get)
	classes.POST("", staff, middleware.Audit(app.audits, "CLASS_CREATE", "classes"), app.classes.Create)

	templates := authed.Group("/ticket-templates", staff)
	templates.GET("", app.templates.List)
	templates.POST("", middleware.Audit(app.audits, "TEMPLATE_CREATE", "ticket_templates"), app.templates.Create)
	templates.POST("/:id/issue", middleware.Audit(app.audits, "TEMPLATE_ISSUE", "ticket_templates"), app.templates.Issue)

	enrollments := authed.Group("/enrollments", staff)
	enrollments.GET("", app.enrollments.List)
	enrollments.POST("", middleware.Audit(app.audits, "ENROLLMENT_CREATE", "enrollments"), app.enrollments.Create)
	enrollments.GET("/:id", app.enrollments.Get)
	enrollments.PATCH("/:id/status", app.enrollments.UpdateStatus)
	enrollments.POST("/:id/restore", app.enrollments.Restore)
	enrollments.DELETE("/:id", app.enrollments.Delete)

	schedules := authed.Group("/schedules")
	schedules.GET("", app.schedules.List)
	schedules.GET("/:id", app.schedules.Get)
	schedules.POST("", staff, middleware.Audit(app.audits, "SCHEDULE_CREATE", "schedules"), app.schedules.Create)
	schedules.POST("/:id/cancel", staff, app.schedules.Cancel)
	schedules.GET("/:id/roster", staff, app.schedules.Roster)

	reconciliations := authed.Group("/reconciliations", staff)
	reconciliations.GET("", app.reconciliationH.List)
	reconciliations.POST("/:id/resolve", middleware.Audit(app.audits, "RECONCILIATION_RESOLVE", "ledger_reconciliations"), app.reconciliationH.Resolve)

	return r
}
