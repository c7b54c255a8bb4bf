package http

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/smallbiznis/valora-identity/internal/config"
	"github.com/smallbiznis/valora-identity/internal/http/handler"
	httpmiddleware "github.com/smallbiznis/valora-identity/internal/http/middleware"
	"github.com/smallbiznis/valora-identity/internal/metrics"
	"github.com/smallbiznis/valora-identity/internal/middleware"
)

const banner = "valora identity service is running"

const (
	msgNotFound         = "Not found."
	msgMethodNotAllowed = "Method not allowed."
)

// Handlers groups the route handlers mounted by NewRouter.
type Handlers struct {
	Auth          *handler.AuthHandler
	Organizations *handler.OrganizationHandler
	Users         *handler.UserHandler
}

// NewRouter wires Gin routes and middleware.
func NewRouter(cfg config.Config, logger *zap.Logger, h Handlers, authMiddleware *httpmiddleware.Auth, rateLimiter *middleware.RateLimiter) *gin.Engine {
	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(logger))
	r.Use(metrics.Middleware())
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, banner)
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/logout", authMiddleware.ValidateJWT, h.Auth.Logout)
		authGroup.GET("/me", authMiddleware.ValidateJWT, h.Auth.Me)
	}

	orgGroup := r.Group("/organization", authMiddleware.ValidateJWT)
	{
		orgGroup.POST("/new", h.Organizations.Create)
		orgGroup.GET("/:id", h.Organizations.Get)
		orgGroup.PUT("/:id", h.Organizations.Update)
		orgGroup.DELETE("/:id", h.Organizations.Delete)
	}

	userGroup := r.Group("/user", authMiddleware.ValidateJWT)
	{
		userGroup.POST("/new", h.Users.Create)
		userGroup.GET("/:id", h.Users.Get)
		userGroup.PUT("/:id", h.Users.Update)
		userGroup.DELETE("/:id", h.Users.Delete)
	}

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"message": msgMethodNotAllowed})
	})
	if cfg.StaticDir != "" {
		attachStaticRoutes(r, cfg.StaticDir)
	} else {
		r.NoRoute(notFound)
	}

	return r
}

// attachStaticRoutes serves files from distDir for unknown non-API paths and
// falls back to index.html.
func attachStaticRoutes(r *gin.Engine, distDir string) {
	indexPath := filepath.Join(distDir, "index.html")

	r.NoRoute(func(c *gin.Context) {
		path := c.Request.URL.Path
		if isAPIPath(path) || c.Request.Method != http.MethodGet {
			notFound(c)
			return
		}

		if filePath, ok := safeJoin(distDir, path); ok {
			if info, err := os.Stat(filePath); err == nil && !info.IsDir() {
				c.File(filePath)
				return
			}
		}

		if _, err := os.Stat(indexPath); err != nil {
			notFound(c)
			return
		}
		c.File(indexPath)
	})
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"message": msgNotFound})
}

func isAPIPath(path string) bool {
	for _, prefix := range []string{"/auth", "/organization", "/user", "/metrics", "/healthz"} {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

func safeJoin(baseDir, requestPath string) (string, bool) {
	cleaned := filepath.Clean("/" + requestPath)
	trimmed := strings.TrimPrefix(cleaned, "/")
	if trimmed == "" {
		return baseDir, true
	}
	if strings.HasPrefix(trimmed, "..") {
		return "", false
	}
	return filepath.Join(baseDir, trimmed), true
}
