package v1

import (
	"context"
	"net/http"

	"mesh_manager/api/v1/firmware"
	"mesh_manager/api/v1/middleware"
	"mesh_manager/api/v1/nodes"
	"mesh_manager/api/v1/ota"
	"mesh_manager/api/v1/state"
	"mesh_manager/api/v1/telemetry"
	"mesh_manager/internal/cache"
	firmwaresvc "mesh_manager/internal/firmware"
	"mesh_manager/internal/httpx"
	nodessvc "mesh_manager/internal/nodes"
	otasvc "mesh_manager/internal/ota"
	telemetrysvc "mesh_manager/internal/telemetry"
	"mesh_manager/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Services bundles the domain services exposed over HTTP
type Services struct {
	DB        *gorm.DB
	Nodes     *nodessvc.Service
	Telemetry *telemetrysvc.Service
	Firmware  *firmwaresvc.Service
	OTA       *otasvc.Service
	Events    *ws.Hub
}

// NewServices wires the domain services onto one database and snapshot cache.
// snapshots and events may be nil.
func NewServices(db *gorm.DB, snapshots *cache.SnapshotStore, events *ws.Hub, logger *logrus.Entry) *Services {
	fw := firmwaresvc.NewService(db, logger)
	svc := &Services{
		DB:        db,
		Nodes:     nodessvc.NewService(db, snapshots, logger),
		Telemetry: telemetrysvc.NewService(db, snapshots, logger),
		Firmware:  fw,
		OTA:       otasvc.NewService(db, fw, logger),
		Events:    events,
	}
	if events != nil {
		svc.Telemetry.WithNotifier(events)
		svc.OTA.WithNotifier(events)
	}
	return svc
}

// SetupRouter sets up the API v1 routes
func SetupRouter(r *gin.Engine, svc *Services, logger *logrus.Entry) {
	r.Use(middleware.RequestID(), middleware.RequestLogger(logger))

	r.GET("/health", healthHandler(svc.DB))

	if svc.Events != nil {
		svc.Events.RegisterSnapshot(ws.TopicNodes, func(ctx context.Context) (interface{}, error) {
			return svc.Nodes.List(ctx)
		})
		svc.Events.RegisterSnapshot(ws.TopicOTA, func(ctx context.Context) (interface{}, error) {
			return svc.OTA.List(ctx, "")
		})
		r.GET("/socket.io/*any", gin.WrapH(svc.Events.Handler()))
		r.POST("/socket.io/*any", gin.WrapH(svc.Events.Handler()))
	}

	v1 := r.Group("/api/v1")
	{
		v1.GET("/ping", pingHandler)

		// Nodes, telemetry and state routes
		nodesHandler := nodes.NewHandler(svc.Nodes)
		telemetryHandler := telemetry.NewHandler(svc.Telemetry)
		stateHandler := state.NewHandler(svc.Telemetry)
		nodesGroup := v1.Group("/nodes")
		{
			nodesGroup.GET("", nodesHandler.List)
			nodesGroup.GET("/:id", nodesHandler.Get)
			nodesGroup.PUT("/:id/name", nodesHandler.Rename)
			nodesGroup.DELETE("/:id", nodesHandler.Delete)

			nodesGroup.POST("/:id/telemetry", telemetryHandler.Push)
			nodesGroup.GET("/:id/history", telemetryHandler.History)

			nodesGroup.GET("/:id/state", stateHandler.Node)
			nodesGroup.GET("/:id/state/history", stateHandler.History)
		}
		v1.GET("/state", stateHandler.All)

		// Firmware routes
		firmwareHandler := firmware.NewHandler(svc.Firmware)
		firmwareGroup := v1.Group("/firmware")
		{
			firmwareGroup.POST("", firmwareHandler.Upload)
			firmwareGroup.GET("", firmwareHandler.List)
			firmwareGroup.GET("/:id", firmwareHandler.Get)
			firmwareGroup.GET("/:id/download", firmwareHandler.Download)
			firmwareGroup.PUT("/:id/stable", firmwareHandler.SetStable)
			firmwareGroup.DELETE("/:id", firmwareHandler.Delete)
		}

		// OTA routes
		otaHandler := ota.NewHandler(svc.OTA)
		updates := v1.Group("/ota/updates")
		{
			updates.POST("", otaHandler.Create)
			updates.GET("", otaHandler.List)
			updates.GET("/pending", otaHandler.Pending)
			updates.GET("/:id", otaHandler.Get)
			updates.POST("/:id/start", otaHandler.Start)
			updates.POST("/:id/node/:nodeId/progress", otaHandler.Progress)
			updates.POST("/:id/complete", otaHandler.Complete)
			updates.POST("/:id/fail", otaHandler.Fail)
			updates.DELETE("/:id", otaHandler.Cancel)
		}
	}
}

// pingHandler handles the ping request using unified response
func pingHandler(c *gin.Context) {
	httpx.OK(c, gin.H{
		"pong": true,
	})
}

// healthHandler reports database reachability
func healthHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			httpx.FailErr(c, httpx.NewAppError(http.StatusServiceUnavailable, httpx.CodeDatabaseError, "database unavailable", err))
			return
		}
		httpx.OK(c, gin.H{"status": "ok"})
	}
}
