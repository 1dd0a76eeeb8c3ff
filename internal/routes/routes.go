package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/internal/handler"
	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/internal/middleware"
	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/internal/models"
	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/internal/repository"
	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/internal/service"
	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/pkg/config"
	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/pkg/export"
)

// Dependencies carries the shared infrastructure handed down from main.
type Dependencies struct {
	Config  *config.Config
	DB      *sqlx.DB
	Cache   *repository.CacheRepository
	Metrics *service.MetricsService
	Logger  *zap.Logger
}

// Register wires repositories, services, and handlers onto the router. It
// returns the notification dispatcher so main can stop it on shutdown.
func Register(r *gin.Engine, deps Dependencies) *service.NotificationService {
	cfg := deps.Config
	validate := validator.New()

	userRepo := repository.NewUserRepository(deps.DB)
	sessionRepo := repository.NewSessionRepository(deps.DB)
	enrollmentRepo := repository.NewEnrollmentRepository(deps.DB)
	waitlistRepo := repository.NewWaitlistRepository(deps.DB)

	cacheSvc := service.NewCacheService(deps.Cache, deps.Metrics, cfg.Catalog.AvailabilityCacheTTL, deps.Logger, cfg.Catalog.CacheEnabled && deps.Cache != nil)

	var notifications *service.NotificationService
	var events service.SessionEventSink
	if cfg.Notifications.Enabled && deps.Cache != nil {
		notifications = service.NewNotificationService(deps.Cache, cfg.Notifications, deps.Logger)
		events = notifications
	}

	identity := service.NewUserIdentity(userRepo)
	directory := service.NewConfigDirectory(cfg.Catalog)
	billing := service.NewGrantAllBilling()

	authSvc := service.NewAuthService(userRepo, validate, deps.Logger, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     "estudio-pilates",
	})

	locks := service.NewSessionLocks()
	catalogSvc := service.NewCatalogService(sessionRepo, enrollmentRepo, userRepo, directory, identity, events, locks, cacheSvc, cfg.Catalog, cfg.Booking, validate, deps.Logger)
	waitlistSvc := service.NewWaitlistService(waitlistRepo, locks, deps.Metrics, cfg.Booking, deps.Logger)
	ledgerSvc := service.NewLedgerService(enrollmentRepo, sessionRepo, waitlistSvc, identity, locks, deps.Metrics, cacheSvc, cfg.Booking, deps.Logger)
	attendanceSvc := service.NewAttendanceService(enrollmentRepo, sessionRepo, billing, userRepo, deps.Logger)
	schedulingSvc := service.NewSchedulingService(ledgerSvc, catalogSvc, waitlistSvc, attendanceSvc, deps.Logger)

	authHandler := handler.NewAuthHandler(authSvc)
	sessionHandler := handler.NewSessionHandler(catalogSvc, export.NewCSVExporter(), export.NewPDFExporter())
	bookingHandler := handler.NewBookingHandler(schedulingSvc, ledgerSvc)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	staff := middleware.RequireStaff()

	sessions := protected.Group("/sessions")
	sessions.GET("", sessionHandler.List)
	sessions.GET("/available", sessionHandler.Available)
	sessions.GET("/:id", sessionHandler.Get)
	sessions.POST("", staff, sessionHandler.Create)
	sessions.POST("/:id/cancel", staff, sessionHandler.Cancel)
	sessions.PUT("/:id/capacity", staff, sessionHandler.SetCapacity)
	sessions.PUT("/:id/schedule", staff, sessionHandler.Reschedule)
	sessions.DELETE("/:id", staff, sessionHandler.Delete)
	sessions.GET("/:id/roster", staff, sessionHandler.Roster)
	sessions.GET("/:id/waitlist", staff, bookingHandler.SessionWaitlist)

	protected.POST("/bookings",
		middleware.Audit(userRepo, models.AuditActionBookingCreate, "booking"),
		bookingHandler.Book)

	enrollments := protected.Group("/enrollments")
	enrollments.GET("/:id", bookingHandler.GetEnrollment)
	enrollments.DELETE("/:id",
		middleware.Audit(userRepo, models.AuditActionBookingCancel, "enrollment"),
		bookingHandler.CancelEnrollment)
	enrollments.POST("/:id/attendance", staff, bookingHandler.MarkAttendance)

	waitlist := protected.Group("/waitlist")
	waitlist.GET("/:id/position", bookingHandler.WaitlistPosition)
	waitlist.DELETE("/:id", bookingHandler.Withdraw)

	me := protected.Group("/me")
	me.GET("/enrollments", bookingHandler.MyEnrollments)
	me.GET("/waitlist", bookingHandler.MyWaitlist)

	protected.GET("/users/:id/enrollments",
		middleware.RBAC(string(models.RoleAdmin), string(models.RoleStaff), "SELF"),
		bookingHandler.MemberEnrollments)

	return notifications
}
