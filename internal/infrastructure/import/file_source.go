package csvimport

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/kpidash/backend/internal/domain/kpi"
)

// FileSource serves order and member snapshots from local files. Files are
// re-read on every call so edits between reports are picked up.
type FileSource struct {
	ordersPath  string
	membersPath string
	logger      *zap.Logger
}

// NewFileSource creates a file-backed data source. An empty membersPath
// yields no members, so membership reports come out empty.
func NewFileSource(ordersPath, membersPath string, logger *zap.Logger) *FileSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSource{
		ordersPath:  ordersPath,
		membersPath: membersPath,
		logger:      logger,
	}
}

// ListOrders loads the order CSV
func (s *FileSource) ListOrders(ctx context.Context) ([]kpi.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.ordersPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open orders file: %w", err)
	}
	defer f.Close()

	result, err := LoadOrders(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load orders from %s: %w", s.ordersPath, err)
	}
	if result.TotalErrors > 0 {
		s.logger.Warn("Order file has malformed cells",
			zap.String("path", s.ordersPath),
			zap.Int("warnings", result.TotalErrors),
			zap.Int("rows", result.TotalRows),
			zap.String("first", result.Warnings[0].Error()),
		)
	}
	return result.Orders, nil
}

// ListMembers loads the member JSON
func (s *FileSource) ListMembers(ctx context.Context) ([]kpi.Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.membersPath == "" {
		return []kpi.Member{}, nil
	}
	f, err := os.Open(s.membersPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open members file: %w", err)
	}
	defer f.Close()

	members, err := LoadMembers(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load members from %s: %w", s.membersPath, err)
	}
	return members, nil
}
