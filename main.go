package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"condosync/config"
	"condosync/httputil"
	"condosync/logging"
	"condosync/pipeline"
	"condosync/provider"
	"condosync/scheduler"
	"condosync/services"
	"condosync/storage"
	"condosync/workers"
)

var (
	syncNow      = flag.Bool("sync", false, "Run a sync once and exit")
	syncMode     = flag.String("mode", "", "Sync mode: full or incremental (default: auto)")
	syncBuilding = flag.String("building", "", "Sync a single building (uuid or address) and exit")
	propertyType = flag.String("type", "", "Limit the sync to one property type")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logFile, err := logging.Setup("daemon.log")
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting condosync...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Provider: %s (%d property types, page size %d)",
		cfg.Provider.BaseURL, len(cfg.Provider.PropertyTypes), cfg.Provider.PageSize)

	clients := httputil.NewClients(cfg.Sync.RequestTimeout)

	ctx := context.Background()

	pgStore, err := storage.NewPostgresStore(ctx, cfg.DBURL)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer pgStore.Close()
	log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.DBURL))

	opsStore, err := storage.NewSQLiteStore(cfg.OpsDBPath)
	if err != nil {
		log.Fatalf("Failed to open ops database: %v", err)
	}
	defer opsStore.Close()
	log.Printf("Ops database: %s", cfg.OpsDBPath)

	client := provider.NewClient(cfg.Provider, clients.Provider, provider.DefaultRetryPolicy(cfg.Sync.RetryMax))
	enricher := provider.NewEnricher(client, cfg.Sync.EnrichBatchSize)
	resolver := services.NewBuildingResolver(pgStore)
	reconciler := services.NewReconciler(pgStore, resolver)
	aggregator := services.NewAggregator(pgStore)
	runs := services.NewRunRecorder(pgStore, cfg.Sync.StaleRunAfter)

	orchestrator := pipeline.NewOrchestrator(cfg, pgStore, opsStore, client, enricher, reconciler, aggregator, runs)

	// One-shot modes.
	if *syncBuilding != "" {
		if err := orchestrator.RunBuilding(ctx, *syncBuilding, *syncMode, "cli"); err != nil {
			log.Fatalf("Building sync failed: %v", err)
		}
		log.Println("Building sync complete!")
		return
	}
	if *syncNow {
		if *propertyType != "" {
			if err := orchestrator.RunPropertyType(ctx, *propertyType, *syncMode, "cli"); err != nil {
				log.Fatalf("Sync failed: %v", err)
			}
		} else if err := orchestrator.RunAll(ctx, "cli"); err != nil {
			log.Fatalf("Sync failed: %v", err)
		}
		log.Println("Sync complete!")
		return
	}

	// Daemon mode.
	sched := scheduler.New(cfg, orchestrator, opsStore)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	var uploader workers.Uploader
	if cfg.S3.Bucket != "" {
		s3up, err := storage.NewS3Uploader(ctx, cfg.S3)
		if err != nil {
			log.Fatalf("Failed to init S3 uploader: %v", err)
		}
		uploader = s3up
		log.Printf("Media mirroring to bucket %s", cfg.S3.Bucket)
	} else {
		uploader = &workers.NoOpUploader{}
		log.Println("No S3 bucket configured, media mirroring disabled")
	}

	mirrorWorker := workers.NewMirrorWorker(pgStore, clients.Media, uploader)
	sched.SetMirrorWorker(mirrorWorker)
	go mirrorWorker.Run(ctx, 20, 2*time.Minute)
	log.Println("Mirror worker started")

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	sched.Stop()
	log.Println("Goodbye!")
}

// maskConnectionString masks password in connection string for logging
func maskConnectionString(connStr string) string {
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
