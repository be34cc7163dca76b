package report

import (
	"time"

	"github.com/kpidash/backend/internal/domain/kpi"
)

// ReportQuery selects the slice of data a report covers
type ReportQuery struct {
	Range kpi.DateRange
	Store string
	User  string
}

// Scope converts the query into the order filter
func (q ReportQuery) Scope() kpi.Scope {
	return kpi.Scope{Range: q.Range, Store: q.Store, User: q.User}
}

// ExportFile is a rendered report ready to download
type ExportFile struct {
	FileName    string
	ContentType string
	Data        []byte
}

// PublishedExport describes an export uploaded to storage
type PublishedExport struct {
	Key       string     `json:"key"`
	FileName  string     `json:"file_name"`
	URL       string     `json:"url"`
	Size      int        `json:"size"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}
