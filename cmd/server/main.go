package main

import (
	"context"
	"database/sql"
	"encoding/gob"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sessions "github.com/gin-contrib/sessions"
	gsessions "github.com/gin-contrib/sessions/postgres"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	_ "github.com/jackc/pgx/v5/stdlib"

	"quizai/internal/ai"
	"quizai/internal/api"
	"quizai/internal/api/handlers"
	"quizai/internal/db"
	"quizai/internal/extract"
	"quizai/internal/logger"
	"quizai/internal/ratelimit"
	"quizai/internal/sanitize"
	"quizai/internal/storage"
)

const storeName = "quizai_session"

var googleOauthConfig *oauth2.Config

func init() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("FATAL: error loading .env file: %v", err)
	}

	gob.Register(handlers.UserProfile{})

	clientID := os.Getenv("GOOGLE_CLIENT_ID")
	clientSecret := os.Getenv("GOOGLE_CLIENT_SECRET")
	redirectURL := os.Getenv("GOOGLE_REDIRECT_URL")
	if clientID == "" || clientSecret == "" || redirectURL == "" {
		log.Fatal("FATAL: GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET and GOOGLE_REDIRECT_URL must be set")
	}

	googleOauthConfig = &oauth2.Config{
		RedirectURL:  redirectURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}

func main() {
	appLog, err := logger.New(os.Getenv("APP_ENV"))
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer appLog.Sync()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		appLog.Fatal("DATABASE_URL must be set")
	}
	store, err := db.Open(dbURL)
	if err != nil {
		appLog.Fatal("failed to connect to database", "error", err)
	}

	sessionSecret := os.Getenv("SESSION_SECRET")
	if sessionSecret == "" {
		appLog.Fatal("SESSION_SECRET must be set")
	}

	// The session store keeps its own small pool on the same database.
	sessionDB, err := sql.Open("pgx", dbURL)
	if err != nil {
		appLog.Fatal("failed to open session store connection", "error", err)
	}
	defer sessionDB.Close()
	if err := sessionDB.Ping(); err != nil {
		appLog.Fatal("failed to ping session store database", "error", err)
	}
	sessionStore, err := gsessions.NewStore(sessionDB, []byte(sessionSecret))
	if err != nil {
		appLog.Fatal("failed to create session store", "error", err)
	}
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		Secure:   os.Getenv("APP_ENV") == "production",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	registry, err := ai.NewRegistry(appLog)
	if err != nil {
		appLog.Fatal("failed to initialize AI providers", "error", err)
	}
	san := sanitize.New(appLog)
	generator := ai.NewGenerator(appLog, san, registry)
	extractor := extract.New(appLog, san, registry.Vision())

	var limiter ratelimit.Limiter
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		limiter = ratelimit.NewRedis(client)
		appLog.Info("rate limiting backed by redis", "addr", addr)
	} else {
		limiter = ratelimit.NewMemory()
		appLog.Info("rate limiting backed by in-process memory")
	}

	storageClient, err := storage.NewClient(appLog)
	if err != nil {
		appLog.Fatal("failed to initialize object storage", "error", err)
	}

	if os.Getenv("APP_ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(sessions.Sessions(storeName, sessionStore))

	handler := handlers.NewHandler(googleOauthConfig, store, generator, extractor, limiter, storageClient, appLog)
	api.SetupRoutes(router, handler, limiter, appLog)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	server := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		appLog.Info("server listening", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		appLog.Fatal("server forced to shutdown", "error", err)
	}
	appLog.Info("server exited")
}
