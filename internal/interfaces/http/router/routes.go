package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kpidash/backend/internal/infrastructure/logger"
	"github.com/kpidash/backend/internal/interfaces/http/dto"
	"github.com/kpidash/backend/internal/interfaces/http/handler"
	"github.com/kpidash/backend/internal/interfaces/http/middleware"
)

// Handlers are the endpoint implementations mounted by NewEngine
type Handlers struct {
	System *handler.SystemHandler
	KPI    *handler.KPIHandler
	Member *handler.MemberHandler
}

// EngineConfig holds the HTTP settings NewEngine needs
type EngineConfig struct {
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
	MaxBodySize      int64
	Tracing          middleware.TracingConfig
}

// NewEngine builds the gin engine with the middleware stack and every route
func NewEngine(cfg EngineConfig, h Handlers, log *zap.Logger) *gin.Engine {
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.CORSAllowOrigins
	if len(cfg.CORSAllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.CORSAllowMethods
	}
	if len(cfg.CORSAllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.CORSAllowHeaders
	}
	corsConfig.MaxAge = 12 * time.Hour

	// Order matters: the request ID must exist before tracing, logging and recovery
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Tracing(cfg.Tracing)...)
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(corsConfig))

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeNotFound, "Route not found", middleware.GetRequestID(c)))
	})

	engine.GET("/health", h.System.Health)

	r := NewRouter(engine, WithAPIVersion("v1"))
	r.Use(middleware.ForwardToken())

	systemRoutes := NewDomainGroup("system", "")
	systemRoutes.GET("/ping", h.System.Ping)

	r.Register(systemRoutes).
		Register(KPIRoutes(h.KPI)).
		Register(MemberRoutes(h.Member, cfg.MaxBodySize))
	r.Setup()

	return engine
}

// KPIRoutes mounts the report endpoints under /kpi
func KPIRoutes(h *handler.KPIHandler) *DomainGroup {
	kpiRoutes := NewDomainGroup("kpi", "/kpi")
	kpiRoutes.GET("/retention", h.Retention)
	kpiRoutes.GET("/cohort", h.Cohort)
	kpiRoutes.GET("/basic", h.Basic)
	kpiRoutes.GET("/repurchase-rate", h.RepurchaseRate)
	kpiRoutes.GET("/repurchase-period", h.RepurchasePeriod)
	kpiRoutes.GET("/consumption-period", h.ConsumptionPeriod)
	kpiRoutes.GET("/export", h.Export)
	kpiRoutes.POST("/export/publish", h.Publish)
	return kpiRoutes
}

// MemberRoutes mounts the member proxy endpoints
func MemberRoutes(h *handler.MemberHandler, maxBodySize int64) *DomainGroup {
	memberRoutes := NewDomainGroup("member", "")
	if maxBodySize > 0 {
		memberRoutes.Use(middleware.BodyLimit(maxBodySize))
	}
	memberRoutes.POST("/members/sync", h.Sync)
	memberRoutes.POST("/member/refunds", h.Refund)
	return memberRoutes
}
