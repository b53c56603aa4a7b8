package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/zsleinadg/WebCarros/internal/api/handlers"
	"github.com/zsleinadg/WebCarros/internal/api/middleware"
	"github.com/zsleinadg/WebCarros/internal/captcha"
	"github.com/zsleinadg/WebCarros/internal/config"
	"github.com/zsleinadg/WebCarros/internal/draft"
	"github.com/zsleinadg/WebCarros/internal/services"
	"github.com/zsleinadg/WebCarros/internal/storage"
	"github.com/zsleinadg/WebCarros/internal/validation"
)

// SetupRouter configures and returns the main Gin engine.
// mailer and imageEnqueuer are optional; passing nil disables the
// corresponding background work without affecting the request flow.
func SetupRouter(cfg *config.Config, db *mongo.Database, rdb *redis.Client, mailer handlers.IWelcomeMailer, imageEnqueuer draft.IImageEnqueuer, configSvc services.IConfigService) *gin.Engine {
	s3StorageService, err := storage.NewS3Storage(cfg)
	if err != nil {
		log.Fatalf("CRITICAL: Failed to initialize S3 storage for API: %v", err)
	}

	userService := services.NewUserService(db)
	carService := services.NewCarService(db, cfg, s3StorageService)
	carFormValidator := validation.NewCarFormValidator()
	drafts := draft.NewRegistry(s3StorageService, carService, carFormValidator, imageEnqueuer, cfg.ImageMaxSizeBytes)

	captchaVerifier := captcha.NewTurnstileVerifier(cfg)

	r := gin.Default()

	rateLimiter := middleware.NewRateLimiterMiddleware(cfg, configSvc)

	// Global middleware first (order matters)
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.CaptchaMiddleware(cfg, captchaVerifier))
	r.Use(rateLimiter.Limit())

	restAuthHandler := handlers.NewRestAuthHandler(cfg, userService, drafts, mailer)
	restCarHandler := handlers.NewRestCarHandler(carService)
	restConfigHandler := handlers.NewRestConfigHandler(configSvc)
	restDraftHandler := handlers.NewRestDraftHandler(drafts)

	v1 := r.Group("/v1")
	{
		// Public routes (rate limiting already applied globally)
		v1.GET("/config", restConfigHandler.GetPublicConfig)
		v1.GET("/cars", restCarHandler.SearchCars)
		v1.GET("/cars/:id", restCarHandler.GetCarByID)

		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		// Signup and signin are for guests; a live session gets redirected.
		guestOnly := v1.Group("/auth")
		guestOnly.Use(middleware.GuestOnlyMiddleware(cfg.JwtSecret))
		{
			guestOnly.POST("/signup", restAuthHandler.SignUp)
			guestOnly.POST("/signin", restAuthHandler.SignIn)
		}

		v1.POST("/auth/signout", middleware.AuthMiddleware(cfg.JwtSecret), restAuthHandler.SignOut)

		// Authenticated routes
		dashboard := v1.Group("/dashboard")
		dashboard.Use(middleware.AuthMiddleware(cfg.JwtSecret))
		{
			dashboard.GET("/cars", restCarHandler.GetOwnCars)
			dashboard.POST("/cars", restDraftHandler.SubmitCar)
			dashboard.DELETE("/cars/:id", restCarHandler.DeleteCar)

			dashboard.GET("/profile", restAuthHandler.GetProfile)
			dashboard.PUT("/profile", restAuthHandler.UpdateProfile)
			dashboard.DELETE("/account", restAuthHandler.DeleteAccount)

			dashboard.GET("/draft", restDraftHandler.GetDraft)
			dashboard.DELETE("/draft", restDraftHandler.DiscardDraft)
			dashboard.POST("/draft/images", restDraftHandler.AttachImage)
			dashboard.DELETE("/draft/images/:name", restDraftHandler.DetachImage)
		}
	}

	return r
}

// SetupServiceRouter builds the internal service API: remote shutdown
// plus the test-only lookup of emails captured by the Redis sender.
func SetupServiceRouter(cfg *config.Config, rdb *redis.Client, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			handleShutdown(c, shutdownChan)
		case "getTestEmail":
			handleGetTestEmail(c, rdb, req.Arguments)
		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}

func handleShutdown(c *gin.Context, shutdownChan chan<- struct{}) {
	fmt.Println("Received shutdown command via Service API")
	c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
	select {
	case shutdownChan <- struct{}{}:
		fmt.Println("Shutdown signal sent successfully.")
	default:
		fmt.Println("Shutdown channel already signaled or blocked.")
	}
}

// handleGetTestEmail polls Redis for an email captured by the mock
// sender, keyed by template ID and recipient. The entry is consumed on
// first read.
func handleGetTestEmail(c *gin.Context, rdb *redis.Client, rawArgs json.RawMessage) {
	var args []string
	if err := json.Unmarshal(rawArgs, &args); err != nil || len(args) != 2 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [templateID, email]"})
		return
	}
	redisKey := fmt.Sprintf("mockemail:%s:%s", args[1], args[0])

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	// Delivery goes through the task queue, so give the worker a moment.
	var stored string
	for attempt := 0; ; attempt++ {
		val, err := rdb.Get(ctx, redisKey).Result()
		if err == nil {
			stored = val
			rdb.Del(ctx, redisKey)
			break
		}
		if err != redis.Nil {
			log.Printf("Service API: Error getting key %s from Redis: %v", redisKey, err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Redis error"})
			return
		}
		if attempt >= 9 {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Test email not found in Redis for key %s", redisKey)})
			return
		}
		time.Sleep(200 * time.Millisecond)
	}

	var emailData map[string]interface{}
	if err := json.Unmarshal([]byte(stored), &emailData); err != nil {
		log.Printf("Service API: Error unmarshalling email data from key %s: %v", redisKey, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to parse stored email data"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": emailData})
}
