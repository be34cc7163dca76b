package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appreport "github.com/kpidash/backend/internal/application/report"
	"github.com/kpidash/backend/internal/domain/kpi"
	"github.com/kpidash/backend/internal/infrastructure/upstream"
	"github.com/kpidash/backend/internal/interfaces/http/handler"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v2"))
	r.Use(func(c *gin.Context) {
		c.Header("X-Api", "on")
		c.Next()
	})

	group := NewDomainGroup("test", "/test")
	group.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	r.Register(group)
	r.Setup()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v2/test/ping", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
	assert.Equal(t, "on", w.Header().Get("X-Api"))
}

func TestDomainGroup(t *testing.T) {
	t.Run("name and prefix", func(t *testing.T) {
		g := NewDomainGroup("kpi", "/kpi")
		assert.Equal(t, "kpi", g.Name())
		assert.Equal(t, "/kpi", g.Prefix())
	})

	t.Run("routes, middleware and subgroups", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("kpi", "/kpi")
		g.Use(func(c *gin.Context) {
			c.Header("X-Group", "kpi")
			c.Next()
		})
		g.GET("/basic", func(c *gin.Context) { c.String(http.StatusOK, "basic") })
		g.POST("/export/publish", func(c *gin.Context) { c.String(http.StatusCreated, "published") })
		g.Group("export", "/export").GET("/latest", func(c *gin.Context) { c.String(http.StatusOK, "latest") })

		g.RegisterRoutes(engine.Group("/api/v1"))

		tests := []struct {
			method string
			path   string
			code   int
			body   string
		}{
			{http.MethodGet, "/api/v1/kpi/basic", http.StatusOK, "basic"},
			{http.MethodPost, "/api/v1/kpi/export/publish", http.StatusCreated, "published"},
			{http.MethodGet, "/api/v1/kpi/export/latest", http.StatusOK, "latest"},
		}
		for _, tt := range tests {
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.code, w.Code, tt.path)
			assert.Equal(t, tt.body, w.Body.String(), tt.path)
			assert.Equal(t, "kpi", w.Header().Get("X-Group"), tt.path)
		}
	})
}

type memorySource struct {
	orders  []kpi.Order
	members []kpi.Member
}

func (s *memorySource) ListOrders(context.Context) ([]kpi.Order, error) {
	return s.orders, nil
}

func (s *memorySource) ListMembers(context.Context) ([]kpi.Member, error) {
	return s.members, nil
}

type memberGateway struct {
	refunds []upstream.RefundRequest
}

func (g *memberGateway) SyncMembers(context.Context) (json.RawMessage, error) {
	return json.RawMessage(`{"synced":2}`), nil
}

func (g *memberGateway) RefundMembership(_ context.Context, req upstream.RefundRequest) (json.RawMessage, error) {
	g.refunds = append(g.refunds, req)
	return json.RawMessage(`{"ok":true}`), nil
}

func newTestEngine(t *testing.T, gateway handler.MemberGateway) *gin.Engine {
	t.Helper()
	source := &memorySource{
		orders: []kpi.Order{
			{StoreName: "강남점", UserName: "kim", ProductName: "Americano", OrderTime: "2025-01-01T10:00:00+09:00"},
			{StoreName: "강남점", UserName: "kim", ProductName: "Americano", OrderTime: "2025-01-08T10:00:00+09:00"},
		},
	}
	svc := appreport.NewKPIReportService(source, kpi.NewCalculator(), zap.NewNop())
	return NewEngine(EngineConfig{
		CORSAllowOrigins: []string{"http://localhost:5173"},
		MaxBodySize:      64,
	}, Handlers{
		System: handler.NewSystemHandler("kpi-backend", "test"),
		KPI:    handler.NewKPIHandler(svc),
		Member: handler.NewMemberHandler(gateway),
	}, zap.NewNop())
}

func TestNewEngine_Routes(t *testing.T) {
	engine := newTestEngine(t, &memberGateway{})

	tests := []struct {
		method string
		path   string
		code   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/api/v1/ping", http.StatusOK},
		{http.MethodGet, "/api/v1/kpi/retention", http.StatusOK},
		{http.MethodGet, "/api/v1/kpi/cohort", http.StatusOK},
		{http.MethodGet, "/api/v1/kpi/basic", http.StatusOK},
		{http.MethodGet, "/api/v1/kpi/repurchase-rate", http.StatusOK},
		{http.MethodGet, "/api/v1/kpi/repurchase-period", http.StatusOK},
		{http.MethodGet, "/api/v1/kpi/consumption-period", http.StatusOK},
		{http.MethodGet, "/api/v1/kpi/export?report=basic", http.StatusOK},
		{http.MethodPost, "/api/v1/members/sync", http.StatusOK},
		{http.MethodGet, "/api/v1/unknown", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.code, w.Code, w.Body.String())
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		})
	}
}

func TestNewEngine_RefundBodyLimit(t *testing.T) {
	gateway := &memberGateway{}
	engine := newTestEngine(t, gateway)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/member/refunds", strings.NewReader(`{"membership_id":7}`))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, gateway.refunds, 1)
	assert.Equal(t, int64(7), gateway.refunds[0].MembershipID)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/member/refunds",
		strings.NewReader(`{"membership_id":7,"reason":"`+strings.Repeat("x", 100)+`"}`))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestNewEngine_CORSPreflight(t *testing.T) {
	engine := newTestEngine(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/kpi/export", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}
