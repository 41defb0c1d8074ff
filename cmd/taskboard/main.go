package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/taskboard-dev/taskboard/db"
	"github.com/taskboard-dev/taskboard/internal/auth"
	"github.com/taskboard-dev/taskboard/internal/handlers"
	"github.com/taskboard-dev/taskboard/internal/notify"
	"github.com/taskboard-dev/taskboard/internal/realtime"
	"github.com/taskboard-dev/taskboard/internal/router"
	"github.com/taskboard-dev/taskboard/internal/scheduler"
	"github.com/taskboard-dev/taskboard/internal/storage"
	"github.com/taskboard-dev/taskboard/internal/workflow"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	if err := auth.InitJWTSecret(); err != nil {
		log.Fatalf("Failed to initialize JWT secret: %v", err)
	}

	if err := db.ConnectDatabase(os.Getenv("DATABASE_URL")); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.MigrateDatabase(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	if len(os.Args) > 1 && os.Args[1] == "seed" {
		if err := db.Seed(); err != nil {
			log.Fatalf("Failed to seed database: %v", err)
		}
		log.Println("Database seeded")
		return
	}

	hub := realtime.NewHub()
	fanout := notify.NewFanout(hub)

	wip := workflow.WIPAdvisory

	if os.Getenv("WIP_ENFORCE") == "true" {
		wip = workflow.WIPEnforce
	}

	engine := workflow.NewEngine(hub, fanout, wip)
	hub.SetCommandHandler(handlers.NewCommandDispatcher(engine))

	files, err := storage.NewStore(os.Getenv("UPLOAD_DIR"))

	if err != nil {
		log.Fatalf("Failed to initialize upload storage: %v", err)
	}

	sweeper := scheduler.NewScheduler(fanout)
	sweeper.Start()

	r := router.NewRouter(handlers.New(hub, engine, fanout, files))

	var port string

	if port = os.Getenv("PORT"); port == "" {
		port = "3000"
		log.Println("PORT not set, defaulting to 3000")
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Println("Shutting down")
		sweeper.Stop()
		hub.Close()
		os.Exit(0)
	}()

	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
