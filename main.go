package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"timeline/backend/internal/cache"
	"timeline/backend/internal/config"
	"timeline/backend/internal/database"
	"timeline/backend/internal/handlers"
	"timeline/backend/internal/middleware"
	"timeline/backend/internal/repositories"
	"timeline/backend/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Application holds all application dependencies and state
type Application struct {
	Config *config.Config
	DB     *database.Pool
	Cache  cache.Cache
	Redis  *redis.Client
	Router *gin.Engine
	Server *http.Server

	// Services
	TaskService    services.TaskService
	SubTaskService services.SubTaskService
	UserService    services.UserService
	AuthService    services.AuthService
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize application: %v", err)
	}

	app.setupRoutes()
	app.startServer()
}

func initializeApplication(cfg *config.Config) (*Application, error) {
	app := &Application{
		Config: cfg,
	}

	log.Println("🚀 Initializing TimeLine backend...")
	log.Printf("📋 Environment: %s", cfg.Server.Environment)

	pool, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}
	app.DB = pool
	log.Println("✅ Database connected and configured")

	migrationConfig := &repositories.MigrationConfig{
		MigrationsPath: "file://migrations",
		DBName:         cfg.Database.Name,
		MaxRetries:     3,
		RetryDelay:     2 * time.Second,
	}
	if err := repositories.RunMigrations(pool.DB, migrationConfig); err != nil {
		return nil, err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("⚠️  Redis unavailable: %v (falling back to in-process rate limiting)", err)
		redisClient = nil
	} else {
		app.Redis = redisClient
		log.Println("✅ Redis connected")
	}

	app.Cache = cache.NewMemoryCache()

	app.TaskService = services.NewTaskService()
	app.SubTaskService = services.NewSubTaskService()
	app.UserService = services.NewUserService()
	app.AuthService = services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	log.Println("✅ All services initialized")

	return app, nil
}

func (app *Application) setupRoutes() {
	r := gin.New()

	r.Use(gin.Logger())
	r.Use(middleware.RecoveryWithLog())

	// A shared redis limiter when redis is up, per-instance token buckets
	// otherwise.
	if app.Redis != nil {
		limiter := middleware.NewDistributedRateLimiter(app.Redis)
		r.Use(limiter.Middleware("api", &middleware.RateLimit{
			Rate:    120,
			Window:  time.Minute,
			KeyFunc: middleware.IPKeyFunc,
		}))
	} else {
		r.Use(middleware.RateLimiter(rate.Limit(2), 20))
	}

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", app.healthHandler())
	r.GET("/ready", app.readinessHandler())

	api := r.Group("/api")

	authHandler := handlers.NewAuthHandler(app.DB.DB, app.AuthService)
	registerHandler := handlers.NewRegisterHandler(app.DB.DB, app.UserService, app.Cache)
	api.POST("/register", registerHandler.Registration)
	api.POST("/login", authHandler.Login)

	protected := api.Group("")
	protected.Use(middleware.RequireAuth(app.Config.Auth.JWTSecret))
	{
		taskHandler := handlers.NewTaskHandler(app.DB.DB, app.TaskService)
		taskRoutes := protected.Group("/tasks")
		{
			taskRoutes.GET("", taskHandler.GetTasks)
			taskRoutes.GET("/stats", taskHandler.GetStats)
			taskRoutes.POST("", taskHandler.CreateTask)
			taskRoutes.PUT("/:id/title", taskHandler.UpdateTitle)
			taskRoutes.PATCH("/:id", taskHandler.PatchTask)
			taskRoutes.POST("/:id/toggle", taskHandler.ToggleTask)
			taskRoutes.POST("/:id/complete", taskHandler.CompleteTask)
			taskRoutes.DELETE("/:id", taskHandler.DeleteTask)
		}

		subTaskHandler := handlers.NewSubTaskHandler(app.DB.DB, app.SubTaskService)
		taskRoutes.POST("/:id/subtasks", subTaskHandler.AddSubTask)
		subTaskRoutes := protected.Group("/subtasks")
		{
			subTaskRoutes.POST("/:id/toggle", subTaskHandler.ToggleSubTask)
			subTaskRoutes.DELETE("/:id", subTaskHandler.DeleteSubTask)
		}

		userHandler := handlers.NewUserHandler(app.DB.DB, app.UserService, app.Cache)
		protected.GET("/users", userHandler.GetUsers)
		protected.GET("/users/:id", userHandler.GetUser)

		dashboardHandler := handlers.NewDashboardHandler(app.DB.DB, app.TaskService, app.UserService)
		protected.GET("/dashboard", dashboardHandler.GetDashboard)
	}

	app.Router = r
}

func (app *Application) startServer() {
	addr := ":" + app.Config.Server.Port

	app.Server = &http.Server{
		Addr:         addr,
		Handler:      app.Router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Println("🛑 Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
		defer cancel()

		if err := app.Server.Shutdown(ctx); err != nil {
			log.Printf("❌ Server forced to shutdown: %v", err)
		}

		app.cleanup()
		log.Println("✅ Server stopped gracefully")
	}()

	log.Printf("🚀 Server starting on %s", addr)
	log.Printf("💚 Health check at http://localhost%s/health", addr)

	if err := app.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("❌ Server failed to start: %v", err)
	}
}

func (app *Application) cleanup() {
	if app.Cache != nil {
		app.Cache.Close()
	}

	if app.Redis != nil {
		if err := app.Redis.Close(); err != nil {
			log.Printf("⚠️  Error closing Redis: %v", err)
		}
	}

	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			log.Printf("⚠️  Error closing database: %v", err)
		}
	}
}

func (app *Application) healthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		health := map[string]interface{}{
			"status":    "healthy",
			"timestamp": time.Now().Format(time.RFC3339),
			"service":   "timeline-backend",
		}

		if err := app.DB.Health(); err != nil {
			health["status"] = "unhealthy"
			health["database"] = "down"
			c.JSON(http.StatusServiceUnavailable, health)
			return
		}
		health["database"] = "up"
		health["pool"] = app.DB.Stats()

		if app.Redis != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := app.Redis.Ping(ctx).Err(); err != nil {
				health["redis"] = "down"
			} else {
				health["redis"] = "up"
			}
		}

		c.JSON(http.StatusOK, health)
	}
}

func (app *Application) readinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := app.DB.Health(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"reason": "database not ready",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{"ready": true})
	}
}
