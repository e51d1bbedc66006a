package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/trailforge/trailforge_core/internal/api"
	"github.com/trailforge/trailforge_core/internal/cache"
	"github.com/trailforge/trailforge_core/internal/config"
	"github.com/trailforge/trailforge_core/internal/db"
	"github.com/trailforge/trailforge_core/internal/pipeline"
	"github.com/trailforge/trailforge_core/internal/store"
)

func main() {
	log.Println("Starting Trailforge API server...")

	cfg := config.Load()

	pool, err := db.GetDB()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connection established")

	if _, err := cache.GetClient(); err != nil {
		log.Printf("Warning: Redis unavailable, running without cache: %v", err)
	} else {
		defer cache.Close()
		log.Println("Redis connection established")
	}

	trailStore := store.NewTrailStore(pool)

	server := &api.Server{
		Store:    trailStore,
		CacheTTL: cache.LoadConfigFromEnv().TTL,
	}

	// Build the topology in memory at startup so the graph endpoints can
	// answer without touching the database
	trails, err := trailStore.LoadTrails(context.Background(), cfg.Region)
	if err != nil {
		log.Fatalf("Failed to load trails: %v", err)
	}
	if len(trails) > 0 {
		result, err := pipeline.New(cfg).Run(context.Background(), trails, nil)
		if err != nil {
			log.Fatalf("Failed to build graph: %v", err)
		}
		server.Graph = result.Graph
		server.Components = result.Components
		log.Printf("Graph loaded into memory (%d vertices, %d edges)",
			len(result.Graph.Vertices), len(result.Graph.Edges))
	} else {
		log.Println("Warning: no trails in store; graph endpoints disabled")
	}

	app := fiber.New(fiber.Config{
		AppName:      "Trailforge API",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New())

	server.Register(app)

	// Graceful shutdown on SIGINT/SIGTERM
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down...")
		if err := app.Shutdown(); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := app.Listen(":" + port); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
