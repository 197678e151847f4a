package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/kiosk/internal/api/handlers"
	"github.com/your-org/kiosk/internal/api/ws"
	"github.com/your-org/kiosk/internal/auth"
	"github.com/your-org/kiosk/internal/sensorbus"
	"github.com/your-org/kiosk/internal/storage"
)

type RouterConfig struct {
	APIKey string
	DB     *storage.PostgresStore
	Photos *storage.PhotoStore
	Bus    *sensorbus.Bus
	Hub    *ws.Hub
	Status handlers.StatusProvider
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.Photos, cfg.Bus)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket display feed
	v1.GET("/ws", cfg.Hub.HandleWS)

	kioskH := handlers.NewKioskHandler(cfg.DB, cfg.Photos, cfg.Status)
	v1.GET("/status", kioskH.Status)
	v1.GET("/entries", kioskH.ListEntries)
	v1.GET("/entries/:id/photo", kioskH.EntryPhoto)

	return r
}
