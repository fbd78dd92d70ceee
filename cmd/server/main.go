package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/leafy-insurance/claims-backend/internal/api"
	"github.com/leafy-insurance/claims-backend/internal/claim"
	"github.com/leafy-insurance/claims-backend/internal/client"
	"github.com/leafy-insurance/claims-backend/internal/config"
	"github.com/leafy-insurance/claims-backend/internal/logging"
	"github.com/leafy-insurance/claims-backend/internal/samples"
	"github.com/leafy-insurance/claims-backend/internal/session"
	"github.com/leafy-insurance/claims-backend/internal/web"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// EnvConfigPath overrides the config file location.
const EnvConfigPath = "CLAIMS_CONFIG"

func main() {
	configPath := os.Getenv(EnvConfigPath)
	if configPath == "" {
		// Get the executable's directory for config resolution
		exePath, err := os.Executable()
		if err != nil {
			fmt.Printf("Failed to get executable path: %v\n", err)
			os.Exit(1)
		}
		configPath = filepath.Join(filepath.Dir(exePath), "claims.yaml")
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stderr, cfg.Logging.Level)
	serverLog := logger.WithPrefix("server")
	serverLog.Info("backend resolved", "url", cfg.BackendURL(), "source", cfg.BackendSourceName())

	catalog, err := samples.NewCatalog(cfg.Samples.Directory)
	if err != nil {
		serverLog.Fatal("failed to initialize samples", "err", err)
	}

	httpClient := client.NewHTTPClient()
	backend := client.New(cfg.BackendURL(), client.BackendPaths, httpClient)

	flows := session.NewManager(cfg.FlowTTL(), session.Deps{
		Gateway: backend,
		Fetcher: catalog,
		Lister:  catalog,
		Options: claim.FlowOptions{
			ToastDelay: cfg.ToastDelay(),
			Logger:     logger,
		},
		Logger: logger,
	})

	e := echo.New()
	e.HideBanner = true
	e.JSONSerializer = api.SonicSerializer{}

	api.SetupMiddleware(e, api.MiddlewareConfig{
		RequestLogging:   cfg.Server.RequestLogging,
		ReadTimeout:      time.Duration(cfg.Server.ReadTimeout) * time.Second,
		BodyLimit:        cfg.Server.BodyLimit,
		EnableCORS:       cfg.Server.EnableCORS,
		AllowOrigins:     cfg.Server.AllowOrigins,
		ShowErrorDetails: Version == "dev",
		Logger:           logger,
	})

	handlers := api.NewHandlers(&api.Dependencies{
		Flows:   flows,
		Catalog: catalog,
		Proxy: api.ProxyConfig{
			BaseURL: cfg.BackendURL(),
			Source:  cfg.BackendSourceName(),
			Client:  httpClient,
		},
		Version: Version,
		Logger:  logger,
	})
	api.RegisterRoutes(e, handlers, api.RateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst))

	// Register embedded page if available
	embeddedMode := web.HasEmbeddedFiles()
	if embeddedMode {
		if err := web.RegisterStaticRoutes(e); err != nil {
			serverLog.Warn("failed to register static routes", "err", err)
			embeddedMode = false
		}
	}

	// No WriteTimeout: description streams stay open as long as the backend writes
	s := &http.Server{
		Addr:        cfg.GetServerAddr(),
		ReadTimeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		IdleTimeout: time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	mode := "API only"
	if embeddedMode {
		mode = "Embedded page"
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Leafy Insurance Claims Server                   ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Mode:       %-45s║\n", mode)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Backend:   %-46s║\n", cfg.BackendURL()+" ("+cfg.BackendSourceName()+")")
	fmt.Printf("║  Samples:   %-46s║\n", catalog.Dir())
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	if err := e.StartServer(s); err != nil && err != http.ErrServerClosed {
		serverLog.Fatal("server stopped", "err", err)
	}
}
