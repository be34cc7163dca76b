package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kpidash/backend/internal/infrastructure/upstream"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/id", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	t.Run("generates uuid", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/id", nil))

		id := w.Header().Get(RequestIDHeader)
		_, err := uuid.Parse(id)
		require.NoError(t, err)
		assert.Equal(t, id, w.Body.String())
	})

	t.Run("keeps incoming header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/id", nil)
		req.Header.Set(RequestIDHeader, "from-client")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "from-client", w.Header().Get(RequestIDHeader))
		assert.Equal(t, "from-client", w.Body.String())
	})
}

func TestCORSWithConfig(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowOrigins = []string{"http://localhost:5173"}

	router := gin.New()
	router.Use(CORSWithConfig(cfg))
	router.GET("/kpi", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	tests := []struct {
		name        string
		method      string
		origin      string
		wantStatus  int
		wantOrigin  string
		wantCredsOn bool
	}{
		{"allowed origin", http.MethodGet, "http://localhost:5173", http.StatusOK, "http://localhost:5173", true},
		{"unknown origin", http.MethodGet, "http://evil.example", http.StatusOK, "", false},
		{"same origin request", http.MethodGet, "", http.StatusOK, "", false},
		{"preflight allowed", http.MethodOptions, "http://localhost:5173", http.StatusNoContent, "http://localhost:5173", true},
		{"preflight unknown", http.MethodOptions, "http://evil.example", http.StatusNoContent, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/kpi", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCredsOn, w.Header().Get("Access-Control-Allow-Credentials") == "true")
		})
	}
}

func TestCORS_Wildcard(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowOrigins = []string{"*"}

	router := gin.New()
	router.Use(CORSWithConfig(cfg))
	router.GET("/kpi", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/kpi", nil)
	req.Header.Set("Origin", "http://any.example")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
}

func TestSecure(t *testing.T) {
	router := gin.New()
	router.Use(Secure())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestBodyLimit(t *testing.T) {
	router := gin.New()
	router.Use(BodyLimit(100))
	router.POST("/refunds", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	t.Run("within limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/refunds", bytes.NewReader([]byte(`{}`))))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("too large", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/refunds", strings.NewReader(strings.Repeat("x", 200)))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Contains(t, w.Body.String(), "REQUEST_TOO_LARGE")
	})
}

type rangeQuery struct {
	StartDate string `form:"start_date" binding:"ymd"`
	EndDate   string `form:"end_date" binding:"ymd"`
}

func TestValidateYMD(t *testing.T) {
	v := validator.New()
	RegisterValidations(v)

	tests := []struct {
		value string
		valid bool
	}{
		{"", true},
		{"2025-01-31", true},
		{"2024-02-29", true},
		{"2025-02-29", false},
		{"2025-1-5", false},
		{"2025/01/05", false},
		{"2025-01-05T00:00:00", false},
		{"yesterday", false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			err := v.Var(tt.value, "ymd")
			assert.Equal(t, tt.valid, err == nil)
		})
	}
}

func TestSetupValidator_BindQuery(t *testing.T) {
	SetupValidator()

	router := gin.New()
	router.GET("/kpi", func(c *gin.Context) {
		var q rangeQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.String(http.StatusOK, q.StartDate)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/kpi?start_date=2025-01-01", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2025-01-01", w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/kpi?end_date=01-31-2025", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"end_date"`)
	assert.Contains(t, w.Body.String(), "YYYY-MM-DD")
}

func TestForwardToken(t *testing.T) {
	router := gin.New()
	router.Use(ForwardToken())
	router.GET("/kpi", func(c *gin.Context) {
		c.String(http.StatusOK, upstream.TokenFromContext(c.Request.Context()))
	})

	req := httptest.NewRequest(http.MethodGet, "/kpi", nil)
	req.Header.Set("Authorization", "Bearer abc.def")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "abc.def", w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/kpi", nil))
	assert.Empty(t, w.Body.String())
}
