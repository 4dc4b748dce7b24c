package main

import (
	"context"
	"encoding/json"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/tinyseg/tinyseg/pkg/config"
	"github.com/tinyseg/tinyseg/pkg/ingest"
	"github.com/tinyseg/tinyseg/pkg/store"
	"github.com/tinyseg/tinyseg/pkg/store/badger"
)

const (
	serverReadTimeout  = 5 * time.Minute // uploads can be large
	serverWriteTimeout = 5 * time.Minute
	shutdownTimeout    = 30 * time.Second
)

var startTime = time.Now()

// handleHealth returns service health status plus store stats and the
// on-disk size of the data directory (0 for in-memory stores).
func handleHealth(st store.Store, dataDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := st.Stats(r.Context())
		status := "healthy"
		if err != nil {
			log.Printf("⚠️  Could not read store stats: %v", err)
			status = "degraded"
		}

		var diskBytes int64
		if dataDir != "" {
			if size, err := dirDiskUsage(dataDir); err == nil {
				diskBytes = size
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(map[string]interface{}{
			"status":           status,
			"version":          "1.0.0",
			"uptime":           time.Since(startTime).String(),
			"store":            stats,
			"disk_usage_bytes": diskBytes,
		}); err != nil {
			log.Printf("❌ Failed to encode health response: %v", err)
		}
	}
}

// dirDiskUsage sums the actual disk usage of every file under dir.
func dirDiskUsage(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += getFileSize(info)
		return nil
	})
	return total, err
}

// setupRouter registers the full API surface on a fresh router.
func setupRouter(handler *ingest.Handler, st store.Store, dataDir string) *mux.Router {
	router := mux.NewRouter()

	api := router.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/columns/analyze", handler.HandleAnalyzeColumns).Methods("POST")
	api.HandleFunc("/segment", handler.HandleSegment).Methods("POST")
	api.HandleFunc("/businesses", handler.HandleListBusinesses).Methods("GET")
	api.HandleFunc("/businesses/{name}", handler.HandleGetBusiness).Methods("GET")
	api.HandleFunc("/businesses/{name}", handler.HandleDeleteBusiness).Methods("DELETE")
	api.HandleFunc("/stats", handler.HandleStats).Methods("GET")
	api.HandleFunc("/health", handleHealth(st, dataDir)).Methods("GET")
	api.HandleFunc("/ws", handler.HandleWebSocket).Methods("GET")

	return router
}

// getEnv gets a string from an environment variable or returns the default.
func getEnv(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

// getEnvInt64 gets an int64 from an environment variable or returns the default.
func getEnvInt64(key string, defaultValue int64) int64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			return parsed
		}
		log.Printf("⚠️  Invalid value for %s: %q, using default %d", key, val, defaultValue)
	}
	return defaultValue
}

func main() {
	log.Println("🚀 Starting TinySeg Server...")

	// .env is optional; environment variables win either way.
	if err := godotenv.Load(); err == nil {
		log.Println("⚙️  Loaded configuration from .env")
	}

	// TINYSEG_PORT: HTTP port (default 8080)
	// TINYSEG_DATA_DIR: BadgerDB directory (default ./data/tinyseg)
	// TINYSEG_MAX_MEMORY_MB: BadgerDB memory budget (default 48 MB)
	port := getEnv("TINYSEG_PORT", config.DefaultPort)
	dataDir := getEnv("TINYSEG_DATA_DIR", config.DefaultDataDir)
	maxMemoryMB := getEnvInt64("TINYSEG_MAX_MEMORY_MB", config.DefaultMaxMemoryMB)

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatalf("❌ Failed to create data directory: %v", err)
	}
	log.Printf("📁 Data directory: %s", dataDir)

	log.Println("💾 Initializing BadgerDB store for business records and model artifacts...")
	st, err := badger.New(badger.Config{
		Path:        dataDir,
		MaxMemoryMB: maxMemoryMB,
	})
	if err != nil {
		log.Fatalf("❌ Failed to initialize store: %v", err)
	}
	defer st.Close()
	log.Println("✅ Store initialized successfully")

	// WebSocket hub for live pipeline progress
	hub := ingest.NewProgressHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()
	log.Println("📡 WebSocket hub started for pipeline progress streaming")

	// BadgerDB garbage collection (reclaims disk space from overwritten models)
	stopGC := make(chan bool)
	wg.Add(1)
	go runBadgerGC(st, stopGC, &wg)

	handler := ingest.NewHandler(st, hub)
	log.Println("📊 Segmentation handler created")

	router := setupRouter(handler, st, dataDir)

	// CORS for browser dashboards
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      c.Handler(router),
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
	}

	go func() {
		log.Printf("🌐 Server starting on http://localhost:%s", port)
		log.Println("📡 API endpoints:")
		log.Println("   POST   /v1/columns/analyze  - Analyze CSV columns")
		log.Println("   POST   /v1/segment          - Run segmentation pipeline")
		log.Println("   GET    /v1/businesses       - List businesses")
		log.Println("   GET    /v1/businesses/{name} - Business details")
		log.Println("   DELETE /v1/businesses/{name} - Delete business + model")
		log.Println("   GET    /v1/ws               - Pipeline progress (WebSocket)")
		log.Println("✅ Server ready to accept requests")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutdown signal received...")

	// Cancel context first so the hub and GC goroutines stop before we
	// wait on them.
	cancel()
	close(stopGC)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	log.Println("🔄 Gracefully shutting down server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️  Server shutdown warning: %v", err)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("✅ All background tasks stopped cleanly")
	case <-time.After(5 * time.Second):
		log.Println("⚠️  Some background tasks did not stop in time (forcing exit)")
	}

	log.Println("👋 TinySeg server exited cleanly")
}

// runBadgerGC runs BadgerDB value-log garbage collection periodically.
// Retrains overwrite model artifacts in place, and the value log keeps the
// stale versions until GC reclaims them.
func runBadgerGC(st *badger.Store, stop chan bool, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(config.BadgerGCInterval)
	defer ticker.Stop()

	log.Printf("🗑️  BadgerDB GC scheduler started (runs every %v)", config.BadgerGCInterval)

	for {
		select {
		case <-ticker.C:
			start := time.Now()
			if err := st.RunGC(0.5); err != nil {
				// Not an error if no GC was needed
				log.Printf("🗑️  GC completed in %v (no rewrite needed)", time.Since(start).Round(time.Millisecond))
			} else {
				log.Printf("✅ GC completed in %v (disk space reclaimed)", time.Since(start).Round(time.Millisecond))
			}
		case <-stop:
			log.Println("🛑 Stopping BadgerDB GC scheduler")
			return
		}
	}
}
