// Command trackd is the trajectory tracking controller: it serves the
// simulator's websocket, runs the control loop, and records sessions.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/pathtrack/internal/api"
	"github.com/banshee-data/pathtrack/internal/config"
	"github.com/banshee-data/pathtrack/internal/db"
	"github.com/banshee-data/pathtrack/internal/monitoring"
	"github.com/banshee-data/pathtrack/internal/optimizer"
)

var (
	listen        = flag.String("listen", ":4567", "Listen address")
	dbFile        = flag.String("db", "sessions.db", "Path to the session database (empty disables recording)")
	migrationsDir = flag.String("migrations", "migrations", "Path to the database migrations directory")
	tuningFile    = flag.String("tuning", "", "Tuning override file, applied over "+config.DefaultConfigPath)
	verbose       = flag.Bool("verbose", false, "Log raw simulator frames")
)

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	monitoring.SetDebug(*verbose)

	tuning, err := config.LoadTuningConfig(config.DefaultConfigPath)
	if err != nil {
		log.Fatalf("failed to load tuning defaults: %v", err)
	}
	if *tuningFile != "" {
		override, err := config.LoadTuningConfig(*tuningFile)
		if err != nil {
			log.Fatalf("failed to load tuning override: %v", err)
		}
		tuning.Merge(override)
	}
	loopCfg, err := tuning.LoopConfig()
	if err != nil {
		log.Fatalf("invalid tuning: %v", err)
	}

	var database *db.DB
	if *dbFile != "" {
		database, err = db.New(*dbFile)
		if err != nil {
			log.Fatalf("failed to open session database: %v", err)
		}
		defer database.Close()
		if err := database.MigrateUp(*migrationsDir); err != nil {
			log.Fatalf("failed to migrate session database: %v", err)
		}
		version, dirty, err := database.MigrateVersion(*migrationsDir)
		if err != nil {
			log.Fatalf("failed to read migration version: %v", err)
		}
		log.Printf("session database %s at schema version %d (dirty=%v)", *dbFile, version, dirty)
	} else {
		log.Printf("session recording disabled")
	}

	server := api.NewServer(optimizer.NewPD(tuning.PDConfig()), loopCfg, database)
	srv := &http.Server{
		Addr:    *listen,
		Handler: api.LoggingMiddleware(server.ServeMux()),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		log.Printf("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("Listening on %s (actuation latency %v, fit degree %d)",
		*listen, loopCfg.ActuationLatency, loopCfg.FitDegree)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server failed: %v", err)
	}
}
