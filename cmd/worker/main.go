package main

import (
	"context"
	"log"
	"os"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"dev/bravebird/airline-entry/pkg/browser"
	"dev/bravebird/airline-entry/pkg/config"
	"dev/bravebird/airline-entry/pkg/database"
	"dev/bravebird/airline-entry/pkg/logging"
	"dev/bravebird/airline-entry/pkg/temporal/activities"
	"dev/bravebird/airline-entry/pkg/temporal/workflows"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Create Temporal client
	c, err := client.Dial(client.Options{
		HostPort: cfg.TemporalHost,
		Logger:   logging.NewStdLogger(log.New(os.Stderr, "", log.LstdFlags), cfg.Debug),
	})
	if err != nil {
		log.Fatalf("Failed to create Temporal client: %v", err)
	}
	defer c.Close()

	// Run results are persisted only when the database is reachable
	var store activities.Store
	db, err := database.New(cfg.MySQLDSN)
	if err != nil {
		log.Printf("Warning: Failed to connect to database: %v", err)
		log.Println("Running without database persistence")
	} else {
		defer db.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := db.Migrate(ctx); err != nil {
			log.Printf("Warning: %v", err)
		}
		cancel()
		store = db
	}

	// Create activities
	acts := activities.NewActivities(browser.Launch, store)

	// Create worker
	w := worker.New(c, config.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     5,
		MaxConcurrentWorkflowTaskExecutionSize: 10,
	})

	// Register workflows
	w.RegisterWorkflow(workflows.EntryWorkflow)

	// Register activities
	w.RegisterActivity(acts.InitializeBrowserActivity)
	w.RegisterActivity(acts.OpenSearchPageActivity)
	w.RegisterActivity(acts.AutofillActivity)
	w.RegisterActivity(acts.WaitForResultsActivity)
	w.RegisterActivity(acts.CaptureSnapshotActivity)
	w.RegisterActivity(acts.CloseBrowserActivity)
	w.RegisterActivity(acts.PersistRunActivity)

	log.Printf("Starting Temporal worker on task queue: %s", config.TaskQueue)
	log.Printf("Temporal host: %s", cfg.TemporalHost)
	log.Printf("Snapshot directory: %s", cfg.Output.Dir)

	// Start worker
	err = w.Run(worker.InterruptCh())
	if err != nil {
		log.Fatalf("Worker failed: %v", err)
	}
}
