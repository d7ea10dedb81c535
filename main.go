package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"homewatch/config"
	"homewatch/httputil"
	"homewatch/logging"
	"homewatch/pipeline"
	"homewatch/scheduler"
	"homewatch/scraper"
	"homewatch/services"
	"homewatch/storage"
)

var (
	runNow     = flag.Bool("run", false, "Run the pipeline once and exit")
	initialRun = flag.Bool("initial", false, "Use the one-time bulk mode for -run")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logging.Setup(cfg.LogPath)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting homewatch...")
	log.Printf("Loaded %d source configs", len(cfg.Sources))
	for id, src := range cfg.Sources {
		log.Printf("  - %s (%s)", src.Name, id)
	}

	clients, err := httputil.NewClients(cfg.Proxies, cfg.Scraper.FetchTimeout)
	if err != nil {
		log.Fatalf("Failed to build HTTP clients: %v", err)
	}

	ctx := context.Background()

	ledger, err := storage.NewLedgerStore(cfg.Ledger.DBPath)
	if err != nil {
		log.Fatalf("Failed to open ledger: %v", err)
	}
	defer ledger.Close()
	log.Printf("Ledger database: %s", cfg.Ledger.DBPath)

	raw, err := storage.NewRawStore(ctx, cfg.RawStore)
	if err != nil {
		log.Fatalf("Failed to init raw store: %v", err)
	}
	log.Printf("Raw store bucket: %s", cfg.RawStore.Bucket)

	props, err := storage.NewPropertyStore(ctx, cfg.Properties.DBURL)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer props.Close()
	log.Println("Connected to property store")

	fetcher := scraper.NewSearchFetcher(cfg.Scraper, clients)
	sources := scraper.NewConfigSourceProvider(cfg.Sources)
	orch := scraper.NewOrchestrator(cfg, ledger, raw, fetcher, sources)

	ingest := services.NewIngestService(ledger, raw, props)
	lookup := services.NewDetailPageLookup(clients.ForTier(config.TierDatacenter), cfg.Enrich.Timeout)
	enrich := services.NewEnrichService(props, lookup, cfg.Enrich.BatchSize)

	pipe := pipeline.New(orch, ingest, enrich, ledger)

	if *runNow {
		log.Println("Running pipeline...")
		if err := pipe.Run(ctx, *initialRun); err != nil {
			log.Fatalf("Pipeline failed: %v", err)
		}
		log.Println("Pipeline complete!")
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := scheduler.New(cfg, pipe, ledger)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	cancel()
	sched.Stop()
	log.Println("Goodbye!")
}
