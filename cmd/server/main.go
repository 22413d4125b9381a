package main

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"podcast-ai-backend/internal/config"
	"podcast-ai-backend/internal/database"
	"podcast-ai-backend/internal/handlers"
	"podcast-ai-backend/internal/middleware"
	"podcast-ai-backend/internal/services"
	"podcast-ai-backend/internal/store"
	"podcast-ai-backend/internal/summarize"
	"podcast-ai-backend/internal/supabase"
	"podcast-ai-backend/internal/transcribe"
	"podcast-ai-backend/internal/workflow"
)

func main() {
	// Load .env if present; real deployments set env vars directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Project store: Postgres when configured, in-memory otherwise so
	// local development works without a database.
	var (
		projectStore store.ProjectStore
		stepLog      workflow.StepLog
	)
	if cfg.DatabaseURL != "" {
		migrator, err := database.NewMigrator(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to initialize migrator: %v", err)
		}
		if err := migrator.Run(); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		migrator.Close()
		log.Println("Migrations completed successfully")

		pg, err := store.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer pg.Close()
		projectStore, stepLog = pg, pg
	} else {
		log.Println("Warning: DATABASE_URL not set, using in-memory store")
		mem := store.NewMemoryStore()
		projectStore, stepLog = mem, mem
	}

	// Supabase clients for audio blob cleanup and realtime hooks.
	var (
		storageClient  *supabase.StorageClient
		realtimeClient *supabase.RealtimeClient
	)
	supabaseClient, err := supabase.NewClient(cfg)
	if err != nil {
		log.Printf("Warning: Failed to initialize Supabase client: %v", err)
	} else {
		realtimeClient = supabase.NewRealtimeClient(supabaseClient.Supabase)
	}
	storageClient, err = supabase.NewStorageClient(cfg.SupabaseURL, cfg.SupabasePublishableKey, cfg.SupabaseStorageBucket)
	if err != nil {
		log.Printf("Warning: Failed to initialize storage client: %v", err)
		storageClient = nil
	}

	transcriber := transcribe.NewClient(cfg.TranscriptAPIBaseURL, cfg.TranscriptAPIKey)

	summarizer, err := summarize.NewClient(cfg.GroqAPIKey, cfg.GroqModel)
	if err != nil {
		log.Fatalf("Failed to initialize summary client: %v", err)
	}
	if cfg.GroqAPIKey == "" {
		log.Println("Warning: GROQ_API_KEY not set, summaries use the local fallback")
	}

	orchestrator := workflow.NewOrchestrator(projectStore, stepLog, transcriber, summarizer)
	cleanupService := services.NewCleanupService(projectStore, storageClient, realtimeClient)

	projectsHandler := handlers.NewProjectsHandler(projectStore, cleanupService)
	statusHandler := handlers.NewStatusHandler(projectStore)
	eventsHandler := handlers.NewEventsHandler(orchestrator, realtimeClient)

	router := gin.Default()

	// Health check (no auth)
	router.GET("/health", handlers.HealthHandler)

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg))

	api.POST("/projects", projectsHandler.CreateProject)
	api.GET("/projects", projectsHandler.ListProjects)
	api.GET("/projects/:project_id", projectsHandler.GetProject)
	api.PATCH("/projects/:project_id", projectsHandler.RenameProject)
	api.DELETE("/projects/:project_id", projectsHandler.DeleteProject)
	api.GET("/projects/:project_id/status", statusHandler.GetStatus)

	api.POST("/events", eventsHandler.HandleEvent)

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
