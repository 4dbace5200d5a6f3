package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"presence/internal/attendance"
	"presence/internal/cleanup"
	"presence/internal/config"
	"presence/internal/directory"
	"presence/internal/enrollment"
	"presence/internal/faceclient"
	"presence/internal/handler"
	"presence/internal/httpmiddleware"
	"presence/internal/photostore"
	"presence/internal/queue"
	"presence/internal/store"
)

func main() {
	cfg := config.Load()

	// Set Gin mode based on environment
	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}

	photos, err := photostore.Open(cfg.PhotoBackend, cfg.StorageDir, cfg.BaseURL, cfg.CloudinaryURL, cfg.CloudinaryFolder)
	if err != nil {
		return err
	}
	faces := faceclient.New(cfg.FaceServiceURL, cfg.FaceTimeout)
	log.Printf("face service: %s (timeout %s)", cfg.FaceServiceURL, cfg.FaceTimeout)

	var (
		q           queue.Queue
		redisClient *store.Redis
	)
	if cfg.QueueBackend == "memory" {
		mem := queue.NewInMemory(256)
		q = mem
		// No separate worker can reach an in-process queue.
		go func() {
			if err := cleanup.NewWorker(faces, photos).Run(ctx, mem); err != nil {
				log.Printf("cleanup worker stopped: %v", err)
			}
		}()
		log.Println("cleanup tasks run in-process")
	} else {
		redisClient = store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
		q = queue.NewRedisQueue(redisClient.Client, "")
	}

	dir := directory.NewRepository(db.Client)
	records := attendance.NewRepository(db.Client)
	window := attendance.Window{CheckIn: cfg.CheckinTime, CheckOut: cfg.CheckoutTime}
	att := attendance.NewService(faces, dir, records, window, cfg.Location())
	coordinator := enrollment.NewCoordinator(dir, faces, photos, cleanup.NewDispatcher(q))
	h := handler.New(dir, coordinator, att, photos, cfg.Development(), cfg.MaxUploadBytes)

	r := gin.New()
	r.MaxMultipartMemory = cfg.MaxUploadBytes + 1<<20

	// Recovery middleware
	r.Use(gin.Recovery())

	// Custom logger
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))

	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	// Security headers
	r.Use(securityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		dbHealthy := db.Healthy(c.Request.Context())
		redisHealthy := redisClient == nil || redisClient.Healthy(c.Request.Context())
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	if _, ok := photos.(*photostore.Disk); ok {
		r.Static("/files", cfg.StorageDir)
	}

	// Rate limiting on the kiosk endpoint
	limiter := httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	h.Register(r, limiter.GinMiddleware())
	r.NoRoute(h.NotFound)

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
