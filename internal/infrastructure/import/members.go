package csvimport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/kpidash/backend/internal/domain/kpi"
)

// LoadMembers reads a JSON member dump, either a bare array or the API's
// {"data": [...]} envelope.
func LoadMembers(r io.Reader) ([]kpi.Member, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read member file: %w", err)
	}
	data = bytes.TrimSpace(bytes.TrimPrefix(data, []byte("\xEF\xBB\xBF")))
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	if data[0] != '[' {
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
		}
		data = bytes.TrimSpace(envelope.Data)
	}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return []kpi.Member{}, nil
	}

	members := make([]kpi.Member, 0)
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return members, nil
}
