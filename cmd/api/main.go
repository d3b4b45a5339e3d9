// cmd/api/main.go
// Main entry point for the application
// This file bootstraps all components and starts the server

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	// Internal packages
	"github.com/vigilhq/breachwatch-backend/internal/auth"
	"github.com/vigilhq/breachwatch-backend/internal/breach"
	"github.com/vigilhq/breachwatch-backend/internal/common/database"
	"github.com/vigilhq/breachwatch-backend/internal/config"
	"github.com/vigilhq/breachwatch-backend/internal/monitoring"
	"github.com/vigilhq/breachwatch-backend/internal/push"
	"github.com/vigilhq/breachwatch-backend/internal/scheduler"
	"github.com/vigilhq/breachwatch-backend/internal/subscription"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	log.Println("========================================")
	log.Println("🚀 Starting BreachWatch Monitoring API")
	log.Println("========================================")

	// 1. Load environment variables
	log.Println("📁 Step 1: Loading .env file...")
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  Warning: No .env file found (%v), using environment variables", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// 2. Load configuration
	log.Println("\n📋 Step 2: Loading configuration...")
	cfg := config.Load()
	log.Printf("✅ Configuration loaded")

	// 3. Validate configuration
	log.Println("\n✔️  Step 3: Validating configuration...")
	if err := cfg.Validate(); err != nil {
		log.Fatal("❌ Configuration validation failed:", err)
	}
	log.Println("✅ Configuration is valid")

	// 4. Connect to PostgreSQL
	log.Println("\n🗄️  Step 4: Connecting to PostgreSQL...")
	db, err := database.NewPostgresDBFromURL(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("❌ Failed to connect to PostgreSQL:", err)
	}
	defer db.Close()
	log.Println("✅ Connected to PostgreSQL successfully")

	// 5. Connect to Redis (optional; plan cache and scheduler settings degrade gracefully)
	log.Println("\n📮 Step 5: Connecting to Redis...")
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.NewRedisClientFromURL(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️  Redis unavailable (%v), continuing without plan cache and settings store", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			log.Println("✅ Connected to Redis successfully")
		}
	} else {
		log.Println("⚠️  Redis URL not configured, skipping Redis connection")
	}

	// 6. Run database migrations
	log.Println("\n🔨 Step 6: Running database migrations...")
	if err := runMigrations(db); err != nil {
		log.Fatal("❌ Failed to run migrations: ", err)
	}
	log.Println("✅ Database migrations completed")

	// 7. Initialize authentication
	log.Println("\n🔐 Step 7: Initializing authentication...")
	tokenManager := auth.NewTokenManager(cfg.JWTSecret)
	authMiddleware := auth.NewMiddleware(tokenManager)
	authRepo := auth.NewPostgresRepository(db)
	authService := auth.NewService(authRepo, tokenManager)
	authHandler := auth.NewHandler(authService)
	log.Println("✅ Authentication initialized")

	// 8. Initialize Subscription module
	log.Println("\n💳 Step 8: Initializing Subscription module...")
	subscriptionRepo := subscription.NewPostgresRepository(db)
	subscriptionService := subscription.NewService(subscriptionRepo, redisClient, cfg.PlanCacheTTL)
	if redisClient != nil {
		log.Println("   ✅ Plan cache enabled")
	} else {
		log.Println("   ⚠️  Plan cache disabled, every check hits PostgreSQL")
	}
	log.Println("✅ Subscription module initialized")

	// 9. Initialize Monitoring module
	log.Println("\n🕵️  Step 9: Initializing Monitoring module...")
	monitoringRepo := monitoring.NewPostgresRepository(db)
	monitoringService := monitoring.NewService(monitoringRepo, subscriptionService)
	monitoringHandler := monitoring.NewHandler(monitoringService)
	log.Println("✅ Monitoring module initialized")

	// 10. Initialize Push module (session registry, hub, dispatcher)
	log.Println("\n🔔 Step 10: Initializing Push module...")
	registry := push.NewRegistry()
	hub := push.NewHub(registry)
	dispatcher := push.NewDispatcher(registry, hub)
	pushHandler := push.NewHandler(hub, tokenManager, cfg.WSConnectRate, cfg.WSConnectBurst)

	janitor := push.NewJanitor(registry, time.Hour, cfg.SessionMaxIdle)
	go janitor.Start(context.Background())
	log.Println("   ✅ Session janitor started")
	log.Println("✅ Push module initialized")

	// 11. Initialize Breach module
	log.Println("\n🚨 Step 11: Initializing Breach module...")
	lookupClient := breach.NewHTTPClient(cfg.BreachAPIURL, cfg.BreachAPIKey, cfg.BreachAPITimeout)
	alertRepo := breach.NewPostgresRepository(db)
	breachService := breach.NewService(lookupClient, alertRepo, monitoringRepo, dispatcher)
	alertHandler := breach.NewHandler(alertRepo)
	log.Println("✅ Breach module initialized")

	// 12. Initialize Scheduler
	log.Println("\n⏰ Step 12: Initializing Scheduler...")
	settings := scheduler.NewSettings(redisClient, map[string]int64{
		scheduler.KeyRealtimeInterval: cfg.RealtimeInterval.Milliseconds(),
		scheduler.KeyHourlyInterval:   cfg.HourlyInterval.Milliseconds(),
		scheduler.KeyDailyInterval:    cfg.DailyInterval.Milliseconds(),
		scheduler.KeyWeeklyInterval:   cfg.WeeklyInterval.Milliseconds(),
	})
	if err := settings.Reload(context.Background()); err != nil {
		log.Printf("   ⚠️  Settings store unavailable, using defaults: %v", err)
	}

	pool := scheduler.NewPool(cfg.PoolWorkers, cfg.PoolQueueSize, scheduler.CallerRunsPolicy{})
	sched := scheduler.NewScheduler(settings, monitoringRepo, subscriptionService, breachService, dispatcher, pool)
	if err := sched.Start(); err != nil {
		log.Fatal("❌ Failed to start scheduler:", err)
	}
	schedulerHandler := scheduler.NewHandler(sched, settings, registry, dispatcher)
	log.Println("✅ Scheduler started")

	// 13. Setup routes
	log.Println("\n🛣️  Step 13: Setting up routes...")
	router := mux.NewRouter()

	router.HandleFunc("/health", healthCheck).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	auth.RegisterRoutes(router, authHandler, authMiddleware.Authenticate)
	log.Println("   ✅ Auth routes registered")

	monitoring.RegisterRoutes(router, monitoringHandler, authMiddleware.Authenticate)
	log.Println("   ✅ Monitoring routes registered")

	breach.RegisterRoutes(router, alertHandler, authMiddleware.Authenticate)
	log.Println("   ✅ Alert routes registered")

	push.RegisterRoutes(router, pushHandler)
	log.Println("   ✅ WebSocket route registered")

	scheduler.RegisterRoutes(router, schedulerHandler, authMiddleware.Authenticate, authMiddleware.RequireAdmin)
	log.Println("   ✅ Admin routes registered")

	router.Use(loggingMiddleware)
	router.Use(corsMiddleware)

	// 14. Create and start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Println("\n========================================")
		log.Printf("🚀 Server starting on http://localhost%s", srv.Addr)
		log.Printf("🌍 Environment: %s", cfg.Environment)
		log.Println("========================================")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("❌ Failed to start server:", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("\n⚠️  Shutdown signal received...")

	// Stop intake first so no new checks are dispatched mid-shutdown
	log.Println("   - Shutting down scheduler...")
	sched.Shutdown(cfg.ShutdownGrace)

	log.Println("   - Stopping session janitor...")
	janitor.Stop()

	log.Println("   - Closing websocket sessions...")
	hub.CloseAll()
	dispatcher.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("❌ Server forced to shutdown:", err)
	}

	log.Println("✅ Server exited gracefully")
}

var startTime = time.Now()

// healthCheck returns server health status
func healthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(startTime).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// loggingMiddleware logs all requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		log.Printf("← %s %s [%d] %v", r.Method, r.RequestURI, wrapped.statusCode, time.Since(start))
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// runMigrations executes database migrations
func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		// Users table (minimal: identity plus role for the admin surface)
		`CREATE TABLE IF NOT EXISTS users (
			id SERIAL PRIMARY KEY,
			email VARCHAR(255) UNIQUE NOT NULL,
			username VARCHAR(100) UNIQUE NOT NULL,
			password_hash VARCHAR(255),
			role VARCHAR(20) DEFAULT 'user',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		// Subscription plans
		`CREATE TABLE IF NOT EXISTS plans (
			id SERIAL PRIMARY KEY,
			name VARCHAR(100) UNIQUE NOT NULL,
			max_items INTEGER NOT NULL DEFAULT 5,
			real_time_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			allowed_frequencies TEXT[] NOT NULL DEFAULT '{WEEKLY}',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS subscriptions (
			id SERIAL PRIMARY KEY,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			plan_id INTEGER NOT NULL REFERENCES plans(id),
			status VARCHAR(20) NOT NULL DEFAULT 'active',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		// Monitoring items
		`CREATE TABLE IF NOT EXISTS monitoring_items (
			id SERIAL PRIMARY KEY,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			value VARCHAR(500) NOT NULL,
			type VARCHAR(20) NOT NULL,
			check_frequency VARCHAR(20) NOT NULL DEFAULT 'DAILY',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			last_checked_at TIMESTAMP,
			breach_count INTEGER NOT NULL DEFAULT 0,
			alert_count INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT unique_user_item UNIQUE(user_id, value, type)
		)`,

		// Breach alerts
		`CREATE TABLE IF NOT EXISTS breach_alerts (
			id UUID PRIMARY KEY,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			item_id INTEGER NOT NULL REFERENCES monitoring_items(id) ON DELETE CASCADE,
			breach_name VARCHAR(255) NOT NULL,
			severity VARCHAR(20) NOT NULL,
			details TEXT,
			is_read BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		// Seed the standard plans
		`INSERT INTO plans (name, max_items, real_time_enabled, allowed_frequencies) VALUES
			('free', 3, FALSE, '{WEEKLY}'),
			('standard', 10, FALSE, '{HOURLY,DAILY,WEEKLY}'),
			('pro', 50, TRUE, '{REAL_TIME,HOURLY,DAILY,WEEKLY}')
		ON CONFLICT (name) DO NOTHING`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_subscriptions_user ON subscriptions(user_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_items_due ON monitoring_items(check_frequency, last_checked_at) WHERE is_active = true`,
		`CREATE INDEX IF NOT EXISTS idx_items_user ON monitoring_items(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_user ON breach_alerts(user_id, created_at DESC)`,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}
