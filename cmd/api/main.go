package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/campuskit/school-api/api/swagger"
	"github.com/campuskit/school-api/internal/handler"
	"github.com/campuskit/school-api/internal/middleware"
	"github.com/campuskit/school-api/internal/models"
	"github.com/campuskit/school-api/internal/repository"
	"github.com/campuskit/school-api/internal/service"
	"github.com/campuskit/school-api/pkg/cache"
	"github.com/campuskit/school-api/pkg/config"
	"github.com/campuskit/school-api/pkg/database"
	"github.com/campuskit/school-api/pkg/logger"
	corsmiddleware "github.com/campuskit/school-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campuskit/school-api/pkg/middleware/requestid"
)

// @title School Management API
// @version 1.0.0
// @description REST API for managing students, courses, class sections and enrollments
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	validate := validator.New()
	store := repository.NewStore(db)

	userRepo := repository.NewUserRepository(store)
	studentRepo := repository.NewStudentRepository(store)
	teacherRepo := repository.NewTeacherRepository(store)
	parentRepo := repository.NewParentRepository(store)
	departmentRepo := repository.NewDepartmentRepository(store)
	courseRepo := repository.NewCourseRepository(store)
	roomRepo := repository.NewRoomRepository(store)
	semesterRepo := repository.NewSemesterRepository(store)
	classRepo := repository.NewClassRoomRepository(store)
	enrollmentRepo := repository.NewEnrollmentRepository(store)
	attendanceRepo := repository.NewAttendanceRepository(store)
	gradeRepo := repository.NewGradeRepository(store)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsService := service.NewMetricsService()
	cacheService := service.NewCacheService(cacheRepo, metricsService, cfg.Catalog.CacheTTL, logr, cfg.Catalog.CacheEnabled && redisClient != nil)

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		SingleSession:      cfg.JWT.SingleSession,
	})
	userService := service.NewUserService(userRepo, store, validate, logr)
	studentService := service.NewStudentService(studentRepo, userRepo, store, validate, logr)
	teacherService := service.NewTeacherService(teacherRepo, departmentRepo, validate, logr)
	parentService := service.NewParentService(parentRepo, studentRepo, validate, logr)
	departmentService := service.NewDepartmentService(departmentRepo, teacherRepo, store, validate, logr)
	courseService := service.NewCourseService(courseRepo, departmentRepo, store, cacheService, validate, logr)
	catalogService := service.NewCatalogService(courseRepo, cacheService, cfg.Catalog.CacheTTL, logr)
	roomService := service.NewRoomService(roomRepo, store, validate, logr)
	semesterService := service.NewSemesterService(semesterRepo, store, cacheService, validate, logr)
	classService := service.NewClassRoomService(classRepo, courseRepo, semesterRepo, roomRepo, store, validate, logr)
	enrollmentService := service.NewEnrollmentService(enrollmentRepo, classRepo, studentRepo, courseRepo, semesterRepo, userRepo, gradeRepo, store, metricsService, validate, logr)
	attendanceService := service.NewAttendanceService(attendanceRepo, enrollmentRepo, validate, logr)
	gradeService := service.NewGradeService(gradeRepo, enrollmentRepo, store, validate, logr)
	exportService := service.NewExportService(enrollmentRepo, studentRepo, classRepo, logr, nil, nil)

	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	studentHandler := handler.NewStudentHandler(studentService, exportService)
	teacherHandler := handler.NewTeacherHandler(teacherService)
	parentHandler := handler.NewParentHandler(parentService)
	departmentHandler := handler.NewDepartmentHandler(departmentService)
	courseHandler := handler.NewCourseHandler(courseService, catalogService)
	roomHandler := handler.NewRoomHandler(roomService)
	semesterHandler := handler.NewSemesterHandler(semesterService)
	classHandler := handler.NewClassRoomHandler(classService, exportService)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentService, studentService)
	attendanceHandler := handler.NewAttendanceHandler(attendanceService)
	gradeHandler := handler.NewGradeHandler(gradeService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", middleware.JWT(authService), middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin), metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authService), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(authService), authHandler.Me)
	}

	// Catalog browsing does not require authentication.
	api.GET("/catalog/courses", courseHandler.Catalog)

	protected := api.Group("")
	protected.Use(middleware.JWT(authService))

	staff := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleTeacher)
	admins := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)

	users := protected.Group("/users", middleware.RBAC(string(models.RoleSuperAdmin), string(models.RoleAdmin), "SELF"))
	{
		users.GET("", userHandler.List)
		users.GET("/:id", userHandler.Get)
		users.POST("", userHandler.Create)
		users.PUT("/:id", userHandler.Update)
		users.DELETE("/:id", userHandler.Delete)
	}

	students := protected.Group("/students")
	{
		students.GET("", staff, studentHandler.List)
		students.GET("/:id", staff, studentHandler.Get)
		students.GET("/:id/transcript", staff, studentHandler.Transcript)
		students.POST("", admins, studentHandler.Create)
		students.PUT("/:id", admins, studentHandler.Update)
		students.DELETE("/:id", admins, studentHandler.Delete)
	}

	teachers := protected.Group("/teachers")
	{
		teachers.GET("", staff, teacherHandler.List)
		teachers.GET("/:id", staff, teacherHandler.Get)
		teachers.POST("", admins, teacherHandler.Create)
		teachers.PUT("/:id", admins, teacherHandler.Update)
		teachers.DELETE("/:id", admins, teacherHandler.Delete)
	}

	parents := protected.Group("/parents")
	{
		parents.GET("", staff, parentHandler.List)
		parents.GET("/:id", staff, parentHandler.Get)
		parents.GET("/:id/students", staff, parentHandler.Students)
		parents.POST("", admins, parentHandler.Create)
		parents.PUT("/:id", admins, parentHandler.Update)
		parents.DELETE("/:id", admins, parentHandler.Delete)
		parents.POST("/:id/students", admins, parentHandler.LinkStudent)
		parents.DELETE("/:id/students/:studentId", admins, parentHandler.UnlinkStudent)
	}

	departments := protected.Group("/departments")
	{
		departments.GET("", departmentHandler.List)
		departments.GET("/:id", departmentHandler.Get)
		departments.POST("", admins, departmentHandler.Create)
		departments.PUT("/:id", admins, departmentHandler.Update)
		departments.DELETE("/:id", admins, departmentHandler.Delete)
	}

	courses := protected.Group("/courses")
	{
		courses.GET("", courseHandler.List)
		courses.GET("/:id", courseHandler.Get)
		courses.GET("/:id/prerequisites", courseHandler.Prerequisites)
		courses.POST("", admins, courseHandler.Create)
		courses.PUT("/:id", admins, courseHandler.Update)
		courses.PUT("/:id/prerequisites", admins, courseHandler.SetPrerequisites)
		courses.DELETE("/:id", admins, courseHandler.Delete)
	}

	rooms := protected.Group("/rooms")
	{
		rooms.GET("", roomHandler.List)
		rooms.GET("/:id", roomHandler.Get)
		rooms.POST("", admins, roomHandler.Create)
		rooms.PUT("/:id", admins, roomHandler.Update)
		rooms.DELETE("/:id", admins, roomHandler.Delete)
	}

	semesters := protected.Group("/semesters")
	{
		semesters.GET("", semesterHandler.List)
		semesters.GET("/current", semesterHandler.Current)
		semesters.GET("/:id", semesterHandler.Get)
		semesters.POST("", admins, semesterHandler.Create)
		semesters.PUT("/:id", admins, semesterHandler.Update)
		semesters.PUT("/:id/current", admins, semesterHandler.SetCurrent)
		semesters.DELETE("/:id", admins, semesterHandler.Delete)
	}

	classes := protected.Group("/classes")
	{
		classes.GET("", classHandler.List)
		classes.GET("/:id", classHandler.Get)
		classes.GET("/:id/roster", staff, classHandler.Roster)
		classes.POST("", admins, classHandler.Create)
		classes.PUT("/:id", admins, classHandler.Update)
		classes.DELETE("/:id", admins, classHandler.Delete)
	}

	enrollments := protected.Group("/enrollments")
	{
		enrollments.GET("", enrollmentHandler.List)
		enrollments.GET("/:id", enrollmentHandler.Get)
		enrollments.GET("/:id/history", staff, enrollmentHandler.History)
		enrollments.GET("/:id/attendance/summary", staff, attendanceHandler.Summary)
		enrollments.GET("/:id/grades/summary", staff, gradeHandler.Summary)
		enrollments.POST("", enrollmentHandler.Register)
		enrollments.PUT("/:id/status", staff, enrollmentHandler.UpdateStatus)
		enrollments.DELETE("/:id", enrollmentHandler.Drop)
	}

	attendance := protected.Group("/attendance", staff)
	{
		attendance.GET("", attendanceHandler.List)
		attendance.POST("", attendanceHandler.Record)
		attendance.DELETE("/:id", attendanceHandler.Delete)
	}

	grades := protected.Group("/grades", staff)
	{
		grades.GET("", gradeHandler.List)
		grades.POST("", gradeHandler.Add)
		grades.PUT("/:id", gradeHandler.Update)
		grades.DELETE("/:id", gradeHandler.Delete)
	}

	admin := protected.Group("/admin", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin))
	{
		admin.GET("/stats", metricsHandler.Stats)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
