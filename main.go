package main

import (
	stdlog "log"
	"net/http"
	"os"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/yieldmap/backend/src/config"
	"github.com/username/yieldmap/backend/src/database"
	"github.com/username/yieldmap/backend/src/handlers"
	"github.com/username/yieldmap/backend/src/logger"
	"github.com/username/yieldmap/backend/src/parsers"
	"github.com/username/yieldmap/backend/src/services"
	"golang.org/x/time/rate"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"remoteAddr", r.RemoteAddr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Accept-Encoding")

		if r.Method == "OPTIONS" {
			logger.L.Debug("Handling OPTIONS preflight request", "path", r.URL.Path)
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel, config.Cfg.LogFormat)
	logger.L.Info("Yieldmap backend server starting...")

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	logger.L.Info("Database initialized successfully.")

	logger.L.Info("Loading listings...", "path", config.Cfg.ListingsCSVPath)
	listingsFile, err := os.Open(config.Cfg.ListingsCSVPath)
	if err != nil {
		logger.L.Error("Failed to open listings CSV", "path", config.Cfg.ListingsCSVPath, "error", err)
		os.Exit(1)
	}
	listingParser := parsers.NewListingParser()
	listings, err := listingParser.Parse(listingsFile)
	listingsFile.Close()
	if err != nil {
		logger.L.Error("Failed to parse listings CSV", "error", err)
		os.Exit(1)
	}
	if err := database.ReplaceListings(listings); err != nil {
		logger.L.Error("Failed to store listings", "error", err)
		os.Exit(1)
	}
	logger.L.Info("Listings loaded.", "count", len(listings))

	logger.L.Info("Initializing retrieval cache...", "ttl", config.Cfg.HistoryCacheTTL)
	historyTTL := config.Cfg.HistoryCacheTTL
	if historyTTL <= 0 {
		// Cached retrievals live for the whole process unless a TTL is set.
		historyTTL = cache.NoExpiration
	}
	historyCache := cache.New(historyTTL, 30*time.Minute)

	logger.L.Info("Initializing services and handlers...")
	alertService := services.NewAlertService()
	snapshotService := services.NewSnapshotService()
	historyService := services.NewHistoryService(snapshotService, historyCache, alertService)
	mapService := services.NewMapService(config.Cfg.MapArtifactPath)

	mapHandler := handlers.NewMapHandler(mapService)
	historyHandler := handlers.NewHistoryHandler(historyService)

	logger.L.Info("Configuring routes...")
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", mapHandler.HandleGetMap)
	mux.HandleFunc("GET /price-history/{id}", historyHandler.HandleGetPriceHistory)

	logger.L.Info("Applying global middleware...")
	finalHandler := enableCORS(rateLimitMiddleware(handlers.RequestIDMiddleware(mux)))

	// A price-history request legitimately blocks through the whole poll
	// loop, so the write timeout has to cover the worst case.
	maxRetrieval := config.Cfg.InitialDelay +
		time.Duration(config.Cfg.MaxPollAttempts+1)*config.Cfg.PollInterval +
		time.Minute

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      finalHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: maxRetrieval,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.L.Error("Failed to start server", "error", err)
		stdlog.Fatalf("Failed to start server: %v", err)
	} else if err == http.ErrServerClosed {
		logger.L.Info("Server stopped gracefully.")
	}
}
