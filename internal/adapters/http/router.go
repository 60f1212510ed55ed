package http

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chatter/internal/adapters/signal"
	"github.com/dkeye/Chatter/internal/app/orch"
	"github.com/dkeye/Chatter/internal/config"
	"github.com/dkeye/Chatter/internal/metrics"
)

func genClientToken() string {
	return uuid.NewString()
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// MetricsMiddleware records request count and latency per route.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Pinger is implemented by optional backends reported on /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SetupRouter wires the websocket endpoint, the REST mirror of the room
// queries, health and metrics. feed may be nil.
func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, feed Pinger) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(MetricsMiddleware())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions("ChatterSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	h := &handlers{orch: o, feed: feed}
	r.GET("/healthz", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	ctrl := signal.NewSignalWSController(o, signal.NewRoomRateLimiter(cfg.Rate.Messages, cfg.Rate.Interval), signal.Options{
		ReadLimit:  cfg.WS.ReadLimit,
		PingPeriod: cfg.WS.PingPeriod,
		PongWait:   cfg.WS.PongWait,
		WriteWait:  cfg.WS.WriteWait,
		SendBuffer: cfg.WS.SendBuffer,
	})

	api := r.Group("/api")

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("client_token", c.GetString("client_token")).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	api.GET("/session", h.session)

	api.GET("/rooms", h.listRooms)
	api.POST("/rooms", h.createRoom)
	api.GET("/rooms/:id", h.getRoom)
	api.DELETE("/rooms/:id", h.deleteRoom)
	api.GET("/rooms/:id/messages", h.getMessages)
	api.POST("/rooms/:id/activity", h.touchRoom)

	return r
}
