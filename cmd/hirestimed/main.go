package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"hirestimer/internal/api"
	"hirestimer/internal/journal"
	"hirestimer/internal/obs"
	"hirestimer/pkg/hrtime"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Cancel context on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := getenv("HIRESTIMED_ADDR", ":7313")
	dbPath := getenv("HIRESTIMED_DB", "") // empty disables the journal
	holdMS := getenvInt("HIRESTIMED_HOLD_MS", 0)
	sweepMS := getenvInt("HIRESTIMED_SWEEP_MS", 500)

	logger := obs.NewLogger()
	metrics := obs.NewMetrics()

	reg := hrtime.NewRegistry(nil, logger, metrics)
	defer reg.Close()

	var jdb *journal.DB
	if dbPath != "" {
		var err error
		jdb, err = journal.Open(ctx, journal.Config{
			Path:        dbPath,
			BusyTimeout: 5 * time.Second,
		})
		if err != nil {
			log.Fatalf("journal open: %v", err)
		}
		defer jdb.Close()

		reg.SetTransitionHook(func(tr hrtime.Transition) {
			if err := jdb.Record(context.Background(), tr); err != nil {
				logger.Error(map[string]interface{}{
					"op":    "journal_record",
					"error": err.Error(),
				})
			}
		})
	}

	// Optionally pin a resolution for the daemon's own lifetime, for
	// hosts that just want "this box runs at 1ms while hirestimed is up".
	var held *hrtime.Handle
	if holdMS > 0 {
		held = reg.Request(time.Duration(holdMS) * time.Millisecond)
	}

	apiServer := api.NewServer(reg, logger, metrics)
	mon := api.NewLeaseMonitor(apiServer, logger, metrics, time.Duration(sweepMS)*time.Millisecond)

	mux := http.NewServeMux()
	mux.Handle("/", apiServer.Handler())
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	var wg sync.WaitGroup

	// Start lease monitor
	wg.Add(1)
	go func() {
		defer wg.Done()
		mon.Run(ctx) // exits when ctx is cancelled
	}()

	// Start HTTP server
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("hirestimed up addr=%s hold_ms=%d journal=%s", addr, holdMS, dbPath)
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http server error: %v", err)
			// If server fails unexpectedly, trigger shutdown.
			stop()
		}
	}()

	// Wait for signal
	<-ctx.Done()
	log.Printf("shutdown signal received")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}

	// Wait for goroutines to finish
	wg.Wait()

	// Withdraw every outstanding request so the registry restores the
	// OS baseline before the process exits.
	apiServer.ReleaseAll()
	if held != nil {
		held.Release()
	}
	log.Printf("hirestimed stopped")
}

func getenv(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("%s: %v", k, err)
	}
	return n
}
