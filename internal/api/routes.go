// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/leafy-insurance/claims-backend/internal/models"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Flows   FlowRegistry
	Catalog SampleCatalog
	Proxy   ProxyConfig
	Version string
	Logger  *log.Logger
}

// Handlers holds all handler instances
type Handlers struct {
	Health  HealthHandler
	Proxy   ProxyHandler
	Samples SampleHandler
	Claims  ClaimHandler
	Socket  *ClaimSocketHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	proxyCfg := deps.Proxy
	if proxyCfg.Logger == nil {
		proxyCfg.Logger = deps.Logger
	}
	return &Handlers{
		Health:  NewHealthHandler(deps.Version, proxyCfg.BaseURL, proxyCfg.Source),
		Proxy:   NewProxyHandler(proxyCfg),
		Samples: NewSampleHandler(deps.Catalog),
		Claims:  NewClaimHandler(deps.Flows),
		Socket:  NewClaimSocketHandler(deps.Flows, deps.Logger),
	}
}

// RegisterRoutes registers all routes with the Echo instance. Extra
// middleware applies to the /api group only.
func RegisterRoutes(e *echo.Echo, handlers *Handlers, apiMiddleware ...echo.MiddlewareFunc) {
	apiGroup := e.Group("/api", apiMiddleware...)

	// Health check
	apiGroup.GET("/health", handlers.Health.HandleHealth)

	// Backend proxy
	apiGroup.POST("/image-descriptor", handlers.Proxy.HandleImageDescriptor)
	apiGroup.POST("/run-agent", handlers.Proxy.HandleRunAgent)

	// Sample photos
	apiGroup.GET("/getSampleImages", handlers.Samples.HandleGetSampleImages)
	e.GET(models.SamplePathPrefix+":name", handlers.Samples.HandleGetSamplePhoto)

	// Claim flows
	apiGroup.GET("/ws/claims", handlers.Socket.HandleWebSocket)
	apiGroup.GET("/claims/:id", handlers.Claims.HandleGetClaim)
	apiGroup.GET("/claims/:id/msgpack", handlers.Claims.HandleGetClaimMsgpack)
}

// MiddlewareConfig tunes SetupMiddleware
type MiddlewareConfig struct {
	RequestLogging   bool
	ReadTimeout      time.Duration
	BodyLimit        string
	EnableCORS       bool
	AllowOrigins     []string
	ShowErrorDetails bool
	Logger           *log.Logger
}

// isStreamingPath reports routes that must not be buffered or timed out
func isStreamingPath(path string) bool {
	return path == "/api/image-descriptor" ||
		path == "/api/run-agent" ||
		strings.HasPrefix(path, "/api/ws/")
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, cfg MiddlewareConfig) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	httpLogger := logger.WithPrefix("http")

	e.HTTPErrorHandler = ErrorHandler(cfg.ShowErrorDetails)

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !cfg.RequestLogging {
				return true
			}
			return c.Request().URL.Path == "/api/health"
		},
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				httpLogger.Error("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency, "err", v.Error)
				return nil
			}
			httpLogger.Info("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			httpLogger.Error("panic recovered", "uri", c.Request().RequestURI, "err", err, "stack", string(stack))
			return err
		},
	}))

	if cfg.ReadTimeout > 0 {
		e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
			Timeout: cfg.ReadTimeout,
			Skipper: func(c echo.Context) bool {
				return isStreamingPath(c.Request().URL.Path)
			},
			ErrorMessage: "Request timeout",
		}))
	}

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Skipper: func(c echo.Context) bool {
			return isStreamingPath(c.Request().URL.Path)
		},
	}))

	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	if cfg.EnableCORS {
		origins := make([]string, 0, len(cfg.AllowOrigins))
		for _, origin := range cfg.AllowOrigins {
			if origin = strings.TrimSpace(origin); origin != "" {
				origins = append(origins, origin)
			}
		}
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}
}

// RateLimiter limits /api requests per client IP. A non-positive rps
// disables it.
func RateLimiter(rps float64, burst int) echo.MiddlewareFunc {
	if rps <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	if burst <= 0 {
		burst = int(rps)
		if burst < 1 {
			burst = 1
		}
	}
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/api/health"
		},
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(rps),
			Burst:     burst,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return RespondWithError(c, &APIError{
				Status:  http.StatusForbidden,
				Code:    "FORBIDDEN",
				Message: "unable to identify client",
			})
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return RespondWithError(c, &APIError{
				Status:  http.StatusTooManyRequests,
				Code:    "RATE_LIMITED",
				Message: "too many requests",
			})
		},
	})
}
