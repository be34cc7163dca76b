package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportKey(t *testing.T) {
	now := time.Date(2025, 1, 31, 23, 0, 0, 0, time.UTC)
	key := ExportKey(now, "nested/dir/전체_리텐션.csv")

	parts := strings.Split(key, "/")
	require.Len(t, parts, 4)
	assert.Equal(t, "exports", parts[0])
	assert.Equal(t, "2025-01-31", parts[1])
	_, err := uuid.Parse(parts[2])
	assert.NoError(t, err)
	assert.Equal(t, "전체_리텐션.csv", parts[3])

	assert.NotEqual(t, key, ExportKey(now, "nested/dir/전체_리텐션.csv"))
}

func TestLocalExportStorage(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalExportStorage(filepath.Join(root, "out"))
	require.NoError(t, err)
	ctx := context.Background()

	key := "exports/2025-01-31/id/report.csv"
	require.NoError(t, s.Upload(ctx, key, []byte("hello"), "text/csv"))

	p, err := s.Path(key)
	require.NoError(t, err)
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	link, expiresAt, err := s.GenerateDownloadURL(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link, "file://"))
	assert.True(t, strings.HasSuffix(link, "/report.csv"))
	assert.True(t, expiresAt.IsZero())

	_, _, err = s.GenerateDownloadURL(ctx, "exports/missing.csv", 0)
	assert.Error(t, err)
}

func TestLocalExportStorage_RejectsEscapingKeys(t *testing.T) {
	s, err := NewLocalExportStorage(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"../x.csv", "a/../../x.csv", "/etc/passwd"} {
		err := s.Upload(context.Background(), key, []byte("x"), "")
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
	assert.ErrorIs(t, s.Upload(context.Background(), "", nil, ""), ErrEmptyKey)

	_, err = NewLocalExportStorage(" ")
	assert.Error(t, err)
}
