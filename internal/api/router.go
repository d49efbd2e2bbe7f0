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

	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/api/handlers"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/api/middleware"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/captcha"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/config"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/notify"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/services"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/storage"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/tasks"
)

// Deps carries the shared services the router wires into handlers. They are
// constructed once in main and reused by the background worker.
type Deps struct {
	Cfg             *config.Config
	DB              *mongo.Database
	RDB             *redis.Client
	ConfigService   services.IConfigService
	UserService     services.IUserService
	TemplateService services.IEmailTemplateService
	TriggerService  services.IEmailTriggerService
	EvidenceService services.IEvidenceService
	CommentService  services.ICommentService
	ClaimService    services.IClaimService
	Dispatcher      *notify.Dispatcher
	Enqueuer        *tasks.Enqueuer
}

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(deps Deps) *gin.Engine {
	cfg := deps.Cfg

	s3StorageService, err := storage.NewS3Storage(cfg)
	if err != nil {
		log.Fatalf("CRITICAL: Failed to initialize S3 storage for API: %v", err)
	}

	captchaVerifier := captcha.NewTurnstileVerifier(cfg)

	r := gin.Default()

	rateLimiter := middleware.NewRateLimiterMiddleware(cfg)

	// Global middleware, order matters: captcha must run before the rate
	// limiter so the soft limit can see the human-verified flag.
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.CaptchaMiddleware(cfg, captchaVerifier))
	r.Use(rateLimiter.Limit())

	authHandler := handlers.NewAuthHandler(cfg, deps.UserService, deps.Dispatcher)
	evidenceHandler := handlers.NewEvidenceHandler(deps.EvidenceService, deps.CommentService, deps.UserService, s3StorageService, deps.Enqueuer, deps.Dispatcher)
	claimHandler := handlers.NewClaimHandler(deps.ClaimService, deps.UserService, deps.Dispatcher)
	templateHandler := handlers.NewTemplateHandler(deps.TemplateService)
	triggerHandler := handlers.NewTriggerHandler(deps.TriggerService)
	notifyHandler := handlers.NewNotifyHandler(deps.Dispatcher)

	v1 := r.Group("/v1")
	{
		// Public routes (rate limiting already applied globally)
		v1.POST("/register", authHandler.Register)
		v1.POST("/login", authHandler.Login)
		v1.POST("/glo", claimHandler.RegisterGlo)

		v1.GET("/evidence/:id", evidenceHandler.Get)
		v1.POST("/evidence/:id/comment", evidenceHandler.Comment)

		v1.GET("/config", func(c *gin.Context) {
			public, err := deps.ConfigService.GetAllPublic(c.Request.Context())
			if err != nil {
				_ = c.Error(err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load configuration"})
				return
			}
			c.JSON(http.StatusOK, public)
		})

		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		// Authenticated routes
		authRequired := v1.Group("/")
		authRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret))
		{
			authRequired.POST("/evidence", evidenceHandler.Submit)
			authRequired.POST("/evidence/:id/photo-url", evidenceHandler.PhotoURL)
			authRequired.POST("/claim", claimHandler.Submit)
		}

		// Admin routes
		adminRequired := v1.Group("/admin")
		adminRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret), middleware.AdminMiddleware())
		{
			adminRequired.GET("/evidence", evidenceHandler.List)
			adminRequired.POST("/evidence/:id/approve", evidenceHandler.Approve)
			adminRequired.POST("/evidence/:id/reject", evidenceHandler.Reject)
			adminRequired.POST("/comments/:id/approve", evidenceHandler.ApproveComment)
			adminRequired.POST("/comments/:id/decline", evidenceHandler.DeclineComment)

			adminRequired.GET("/claims", claimHandler.List)
			adminRequired.GET("/claims/:id", claimHandler.Get)
			adminRequired.GET("/glo", claimHandler.ListGlo)

			adminRequired.GET("/templates", templateHandler.List)
			adminRequired.GET("/templates/:id", templateHandler.Get)
			adminRequired.POST("/templates", templateHandler.Create)
			adminRequired.PUT("/templates/:id", templateHandler.Update)
			adminRequired.DELETE("/templates/:id", templateHandler.Delete)

			adminRequired.GET("/triggers", triggerHandler.List)
			adminRequired.POST("/triggers", triggerHandler.Create)
			adminRequired.PUT("/triggers/:id", triggerHandler.Update)
			adminRequired.DELETE("/triggers/:id", triggerHandler.Delete)

			adminRequired.POST("/notify/dispatch", notifyHandler.Dispatch)
			adminRequired.POST("/notify/test", notifyHandler.Test)
		}
	}

	return r
}

// SetupServiceRouter configures and returns the internal service Gin engine,
// used by the test harness for shutdown and mock email retrieval.
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
			log.Println("Received shutdown command via Service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
			default:
				log.Println("Shutdown channel already signaled or blocked.")
			}
		case "getTestEmail":
			var args []string // ["ref", "email"]
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) != 2 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [ref, email]"})
				return
			}
			ref := args[0]
			emailAddr := args[1]
			redisKey := fmt.Sprintf("mockemail:%s:%s", emailAddr, ref)

			// Poll Redis briefly for the key; deferred triggers may lag.
			var emailJsonData string
			var getErr error
			found := false
			ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
			defer cancel()
			for i := 0; i < 10; i++ {
				emailJsonData, getErr = rdb.Get(ctx, redisKey).Result()
				if getErr == nil {
					found = true
					rdb.Del(ctx, redisKey)
					break
				}
				if getErr != redis.Nil {
					log.Printf("Service API: Error getting key %s from Redis: %v", redisKey, getErr)
					c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Redis error"})
					return
				}
				time.Sleep(200 * time.Millisecond)
			}

			if !found {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Test email not found in Redis for key %s", redisKey)})
				return
			}

			var emailData map[string]interface{}
			if err := json.Unmarshal([]byte(emailJsonData), &emailData); err != nil {
				log.Printf("Service API: Error unmarshalling email data from key %s: %v", redisKey, err)
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to parse stored email data"})
				return
			}

			c.JSON(http.StatusOK, gin.H{"success": true, "data": emailData})

		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}
