package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MaxRequestIDLength bounds the request id copied onto spans
const MaxRequestIDLength = 128

// TracingConfig holds configuration for the tracing middleware
type TracingConfig struct {
	ServiceName string
	Enabled     bool
	Options     []otelgin.Option
}

// Tracing returns the server span middleware followed by span enrichment.
// Disabled tracing yields no handlers.
func Tracing(cfg TracingConfig) []gin.HandlerFunc {
	if !cfg.Enabled {
		return nil
	}
	return []gin.HandlerFunc{
		otelgin.Middleware(cfg.ServiceName, cfg.Options...),
		SpanAttributes(),
	}
}

// SpanAttributes tags the active span with the request id and report
// selection, and marks client errors as failed spans.
func SpanAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			c.Next()
			return
		}

		if id := GetRequestID(c); id != "" {
			if len(id) > MaxRequestIDLength {
				id = id[:MaxRequestIDLength]
			}
			span.SetAttributes(attribute.String("request_id", id))
		}
		if report := c.Query("report"); report != "" {
			span.SetAttributes(attribute.String("kpi.report", report))
		}

		c.Next()

		status := c.Writer.Status()
		if status >= http.StatusBadRequest && status < http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}
