package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"school-transport-service/internal/adapters/repositories"
	"school-transport-service/internal/app"
	"school-transport-service/internal/config"
	"syscall"
	"time"
)

// main loads configuration, wires the application and serves HTTP until
// interrupted. The arrival monitor sweeps active trips in the background.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	// Seed demo trips on startup for local runs.
	if cfg.SeedPath != "" {
		if _, err := os.Stat(cfg.SeedPath); err == nil {
			n, err := repositories.SeedTripsFromJSON(ctx, a.Trips, cfg.SeedPath, false)
			if err != nil {
				log.Fatal(err)
			}
			log.Printf("seeded trips inserted=%d path=%s", n, cfg.SeedPath)
		}
	}

	go a.Arrival.Run(ctx, cfg.ArrivalCheckInterval)

	// Timeouts are tuned for cold-cache route generation (external API latency).
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown failed: %v", err)
		}
	}()

	log.Printf("Server listening addr=:%s db=%s", cfg.Port, cfg.DBDriver)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
	log.Println("Server stopped")
}
