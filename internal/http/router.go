package http

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/NEARBuilders/crosspost/internal/config"
	"github.com/NEARBuilders/crosspost/internal/http/handler"
	httpmiddleware "github.com/NEARBuilders/crosspost/internal/http/middleware"
	"github.com/NEARBuilders/crosspost/internal/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(cfg config.Config, twitterHandler *handler.TwitterHandler, publishHandler *handler.PublishHandler, draftHandler *handler.DraftHandler, rateLimiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(nil))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	api := r.Group("/api")
	{
		tw := api.Group("/twitter")
		{
			tw.POST("/auth", twitterHandler.Connect)
			tw.DELETE("/auth", twitterHandler.Disconnect)
			tw.GET("/callback", twitterHandler.Callback)
			tw.GET("/status", twitterHandler.Status)
			tw.POST("/tweet", twitterHandler.Tweet)
			tw.POST("/upload", twitterHandler.Upload)
		}

		api.POST("/publish", publishHandler.Publish)

		drafts := api.Group("/drafts")
		{
			drafts.GET("", draftHandler.List)
			drafts.POST("", draftHandler.Save)
			drafts.DELETE("/:id", draftHandler.Delete)
		}

		api.GET("/autosave", draftHandler.LoadAutosave)
		api.PUT("/autosave", draftHandler.Autosave)
		api.DELETE("/autosave", draftHandler.ClearAutosave)

		api.GET("/thread-mode", draftHandler.ThreadMode)
		api.PUT("/thread-mode", draftHandler.SetThreadMode)
	}

	// UI is served only as static files; connection and publish logic stays
	// on the API routes.
	attachUIRoutes(r, filepath.Join("ui", "dist"))

	return r
}

func attachUIRoutes(r *gin.Engine, distDir string) {
	indexPath := filepath.Join(distDir, "index.html")

	r.NoRoute(func(c *gin.Context) {
		path := c.Request.URL.Path
		if isAPIPath(path) {
			c.Status(http.StatusNotFound)
			return
		}

		if filePath, ok := safeJoin(distDir, path); ok {
			if info, err := os.Stat(filePath); err == nil && !info.IsDir() {
				c.File(filePath)
				return
			}
		}

		c.File(indexPath)
	})
}

func isAPIPath(path string) bool {
	return strings.HasPrefix(path, "/api")
}

func safeJoin(baseDir, requestPath string) (string, bool) {
	trimmed := strings.TrimPrefix(requestPath, "/")
	cleaned := filepath.Clean(trimmed)
	if cleaned == "." {
		return filepath.Join(baseDir, cleaned), true
	}
	if strings.HasPrefix(cleaned, "..") {
		return "", false
	}
	return filepath.Join(baseDir, cleaned), true
}
