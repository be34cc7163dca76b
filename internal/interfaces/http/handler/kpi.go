package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	appreport "github.com/kpidash/backend/internal/application/report"
	"github.com/kpidash/backend/internal/domain/kpi"
	"github.com/kpidash/backend/internal/domain/report"
	"github.com/kpidash/backend/internal/infrastructure/export"
	"github.com/kpidash/backend/internal/infrastructure/logger"
	"github.com/kpidash/backend/internal/infrastructure/storage"
	"github.com/kpidash/backend/internal/interfaces/http/middleware"
)

// KPIService is the report service used by KPIHandler
type KPIService interface {
	Retention(ctx context.Context, q appreport.ReportQuery) ([]kpi.RetentionRow, error)
	CohortSummary(ctx context.Context, q appreport.ReportQuery) ([]kpi.CohortSummaryRow, error)
	BasicKPI(ctx context.Context, q appreport.ReportQuery) (*kpi.BasicKPIResult, error)
	RepurchaseRate(ctx context.Context, q appreport.ReportQuery) (*kpi.RepurchaseRateResult, error)
	RepurchasePeriod(ctx context.Context, q appreport.ReportQuery) (*kpi.RepurchasePeriodResult, error)
	ConsumptionPeriod(ctx context.Context, q appreport.ReportQuery) (*kpi.ConsumptionPeriodResult, error)
	Export(ctx context.Context, q appreport.ReportQuery, kind report.Kind, format export.Format) (*appreport.ExportFile, error)
	Publish(ctx context.Context, q appreport.ReportQuery, kind report.Kind, format export.Format) (*appreport.PublishedExport, error)
}

// KPIHandler serves the KPI reports
type KPIHandler struct {
	BaseHandler
	service KPIService
}

// NewKPIHandler creates a new KPIHandler
func NewKPIHandler(service KPIService) *KPIHandler {
	return &KPIHandler{service: service}
}

// KPIQuery holds the filters shared by every report endpoint
type KPIQuery struct {
	StartDate string `form:"start_date" binding:"ymd"`
	EndDate   string `form:"end_date" binding:"ymd"`
	Store     string `form:"store" binding:"max=100"`
	User      string `form:"user" binding:"max=100"`
}

// ExportQuery selects the report and file format of an export
type ExportQuery struct {
	KPIQuery
	Report string `form:"report"`
	Format string `form:"format"`
}

// bindQuery binds and validates the filters. It writes the error response
// itself and returns false on failure.
func (h *KPIHandler) bindQuery(c *gin.Context, dst any, base *KPIQuery) (appreport.ReportQuery, bool) {
	if err := c.ShouldBindQuery(dst); err != nil {
		middleware.HandleValidationError(c, err)
		return appreport.ReportQuery{}, false
	}
	if base.StartDate != "" && base.EndDate != "" && base.StartDate > base.EndDate {
		h.BadRequest(c, "start_date must not be after end_date")
		return appreport.ReportQuery{}, false
	}
	return appreport.ReportQuery{
		Range: kpi.DateRange{StartDate: base.StartDate, EndDate: base.EndDate},
		Store: base.Store,
		User:  base.User,
	}, true
}

// run binds the common filters, tags the request context with the report
// name and answers with whatever fn returns.
func (h *KPIHandler) run(c *gin.Context, name string, fn func(ctx context.Context, q appreport.ReportQuery) (any, error)) {
	var req KPIQuery
	q, ok := h.bindQuery(c, &req, &req)
	if !ok {
		return
	}
	ctx := logger.WithReport(c.Request.Context(), name)
	data, err := fn(ctx, q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, data)
}

// Retention returns the Day0..Day70 retention rows
func (h *KPIHandler) Retention(c *gin.Context) {
	h.run(c, string(report.KindRetention), func(ctx context.Context, q appreport.ReportQuery) (any, error) {
		return h.service.Retention(ctx, q)
	})
}

// Cohort returns the Day7/14/21 cohort summary
func (h *KPIHandler) Cohort(c *gin.Context) {
	h.run(c, string(report.KindCohort), func(ctx context.Context, q appreport.ReportQuery) (any, error) {
		return h.service.CohortSummary(ctx, q)
	})
}

// Basic returns active users, margins and product sales
func (h *KPIHandler) Basic(c *gin.Context) {
	h.run(c, string(report.KindBasic), func(ctx context.Context, q appreport.ReportQuery) (any, error) {
		return h.service.BasicKPI(ctx, q)
	})
}

// RepurchaseRate returns the membership repurchase rate
func (h *KPIHandler) RepurchaseRate(c *gin.Context) {
	h.run(c, "repurchase-rate", func(ctx context.Context, q appreport.ReportQuery) (any, error) {
		return h.service.RepurchaseRate(ctx, q)
	})
}

// RepurchasePeriod returns days between exhausting a membership and the next purchase
func (h *KPIHandler) RepurchasePeriod(c *gin.Context) {
	h.run(c, "repurchase-period", func(ctx context.Context, q appreport.ReportQuery) (any, error) {
		return h.service.RepurchasePeriod(ctx, q)
	})
}

// ConsumptionPeriod returns days from purchase to exhaustion
func (h *KPIHandler) ConsumptionPeriod(c *gin.Context) {
	h.run(c, "consumption-period", func(ctx context.Context, q appreport.ReportQuery) (any, error) {
		return h.service.ConsumptionPeriod(ctx, q)
	})
}

// bindExport parses the export selection. An empty report means all
// reports and an empty format means CSV.
func (h *KPIHandler) bindExport(c *gin.Context) (appreport.ReportQuery, report.Kind, export.Format, bool) {
	var req ExportQuery
	q, ok := h.bindQuery(c, &req, &req.KPIQuery)
	if !ok {
		return q, "", "", false
	}

	kind := report.KindAll
	if req.Report != "" {
		k, err := report.ParseKind(req.Report)
		if err != nil {
			h.BadRequest(c, err.Error())
			return q, "", "", false
		}
		kind = k
	}
	format, err := export.ParseFormat(req.Format)
	if err != nil {
		h.BadRequest(c, err.Error())
		return q, "", "", false
	}
	return q, kind, format, true
}

// Export streams a report file as an attachment
func (h *KPIHandler) Export(c *gin.Context) {
	q, kind, format, ok := h.bindExport(c)
	if !ok {
		return
	}

	ctx := logger.WithReport(c.Request.Context(), string(kind))
	file, err := h.service.Export(ctx, q, kind, format)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", storage.AttachmentDisposition(file.FileName))
	c.Header("Content-Length", strconv.Itoa(len(file.Data)))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

// Publish stores a report file and returns its download link
func (h *KPIHandler) Publish(c *gin.Context) {
	q, kind, format, ok := h.bindExport(c)
	if !ok {
		return
	}

	ctx := logger.WithReport(c.Request.Context(), string(kind))
	published, err := h.service.Publish(ctx, q, kind, format)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, published)
}
