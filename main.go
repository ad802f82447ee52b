// BoutiqueClient Server - Allocation hub for automation accounts and device clones
// Tracks account inventory, clone inventory, and the bindings between them.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/Acid-Arch/boutiqueclient-sub000/config"
	"github.com/Acid-Arch/boutiqueclient-sub000/logger"
	"github.com/Acid-Arch/boutiqueclient-sub000/storage"
	"github.com/Acid-Arch/boutiqueclient-sub000/ws"

	"github.com/kardianos/service"
)

// Version information (set at build time via -ldflags)
var (
	Version   = "dev"     // Semantic version (e.g., "0.1.0")
	BuildTime = "unknown" // Build timestamp
	GitCommit = "unknown" // Git commit hash
	BuildType = "dev"     // "dev" or "release"
)

var (
	serverLogger *logger.Logger
	serverStore  storage.Store
	serverConfig *Config
	eventHub     *ws.Hub
)

func main() {
	svcFlag := flag.String("service", "", "Service control action (install, uninstall, start, stop, run)")
	configPath := flag.String("config", "", "Config file path (default: platform search paths)")
	port := flag.Int("port", 0, "HTTP port for server API (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	logLevel := flag.String("log-level", "", "Log level (error, warn, info, debug, trace)")
	flag.Parse()

	if *svcFlag != "" && *svcFlag != "run" {
		if err := handleServiceControl(*svcFlag); err != nil {
			log.Fatal(err)
		}
		return
	}

	cfg := loadServerConfig(*configPath)
	if *port != 0 {
		cfg.Server.HTTPPort = *port
	}
	if *dbPath != "" {
		cfg.Database.Driver = "sqlite"
		cfg.Database.Path = *dbPath
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	serverConfig = cfg

	if *svcFlag == "run" {
		// Run under the service manager; it drives runServer via program.
		svcConfig := getServiceConfig()
		prg := &program{}
		svc, err := service.New(prg, svcConfig)
		if err != nil {
			log.Fatal(err)
		}
		if err := svc.Run(); err != nil {
			log.Fatal(err)
		}
		return
	}

	// Interactive: run until interrupted.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	runServer(ctx)
}

// loadServerConfig resolves the config file and loads it, falling back to
// defaults when no file exists anywhere on the search path.
func loadServerConfig(explicitPath string) *Config {
	if explicitPath != "" {
		cfg, err := LoadConfig(explicitPath)
		if err != nil {
			log.Fatalf("Failed to load config %s: %v", explicitPath, err)
		}
		return cfg
	}

	if path, _, err := config.FindConfigFile("server.toml", "server"); err == nil {
		cfg, err := LoadConfig(path)
		if err != nil {
			log.Fatalf("Failed to load config %s: %v", path, err)
		}
		return cfg
	}

	cfg, err := LoadConfig("")
	if err != nil {
		log.Fatal(err)
	}
	return cfg
}

// runServer starts the HTTP server and blocks until ctx is cancelled, then
// shuts down gracefully. Called directly in interactive mode and from the
// service wrapper.
func runServer(ctx context.Context) {
	cfg := serverConfig
	if cfg == nil {
		cfg = DefaultConfig()
	}

	log.Printf("BoutiqueClient Server %s", Version)
	log.Printf("Build: %s, Commit: %s, Type: %s", BuildTime, GitCommit, BuildType)
	log.Printf("Go: %s, OS: %s, Arch: %s", runtime.Version(), runtime.GOOS, runtime.GOARCH)

	logDir := filepath.Join(filepath.Dir(storage.GetDefaultDBPath()), "logs")
	serverLogger = logger.New(logger.ParseLevel(cfg.Logging.Level), logDir, 1000)
	defer serverLogger.Close()
	storage.SetLogger(serverLogger)
	ws.SetLogger(serverLogger)
	serverLogger.Info("Server starting", "version", Version)

	if cfg.Database.EffectiveDriver() == "sqlite" && cfg.Database.Path == "" {
		cfg.Database.Path = storage.GetDefaultDBPath()
	}
	serverLogger.Info("Initializing database",
		"driver", cfg.Database.EffectiveDriver(), "path", cfg.Database.Path)

	var err error
	serverStore, err = storage.NewStore(&cfg.Database)
	if err != nil {
		serverLogger.Error("Failed to initialize database", "error", err)
		log.Fatal(err)
	}
	defer serverStore.Close()

	serverLogger.Info("Database initialized successfully")

	eventHub = ws.NewHub()
	defer eventHub.Stop()

	mux := http.NewServeMux()
	setupRoutes(mux)

	addr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.HTTPPort)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverLogger.Info("HTTP server listening", "addr", addr)
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		serverLogger.Info("Shutdown requested")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			serverLogger.Warn("HTTP server shutdown error", "error", err)
		}
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			serverLogger.Error("HTTP server failed", "error", err)
			log.Fatal(err)
		}
	}

	serverLogger.Info("Server stopped")
}

func setupRoutes(mux *http.ServeMux) {
	// Health and version
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/api/version", handleVersion)

	// Account inventory
	mux.HandleFunc("/api/v1/accounts", handleAccounts)
	mux.HandleFunc("/api/v1/accounts/import", handleAccountsImport)
	mux.HandleFunc("/api/v1/accounts/bulk-status", handleAccountsBulkStatus)
	mux.HandleFunc("/api/v1/accounts/bulk-delete", handleAccountsBulkDelete)

	// Clone inventory and bindings
	mux.HandleFunc("/api/v1/clones", handleClones)
	mux.HandleFunc("/api/v1/clones/assign", handleCloneAssign)
	mux.HandleFunc("/api/v1/clones/unassign", handleCloneUnassign)

	// Device analytics
	mux.HandleFunc("/api/v1/devices/summaries", handleDeviceSummaries)
	mux.HandleFunc("/api/v1/devices/stats", handleDeviceStats)
	mux.HandleFunc("/api/v1/devices/capacity", handleDeviceCapacity)

	// Bulk allocation
	mux.HandleFunc("/api/v1/assignments/auto", handleAutoAssign)
	mux.HandleFunc("/api/v1/assignments/validate", handleValidateAssignments)

	// Live events
	mux.HandleFunc("/api/v1/events/ws", handleEventsWebSocket)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
		"build_type": BuildType,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
	})
}
