package mirror

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagwalker/tagwalker/internal/infrastructure/monitoring/logging"
)

type fakeSource struct{ rows []FlatAtomRow }

func (f *fakeSource) ListAll(ctx context.Context) ([]FlatAtomRow, error) { return f.rows, nil }

func TestProjector_Run_WritesBucketTagTree(t *testing.T) {
	dir := t.TempDir()
	src := &fakeSource{rows: []FlatAtomRow{
		{ID: "m1", Content: "first molecule", SourcePath: "notes/a.md", Buckets: []string{"project:foo"}, Tags: []string{"rust"}},
		{ID: "m2", Content: "second molecule", SourcePath: "notes/a.md", Buckets: []string{"project:foo"}, Tags: []string{"rust"}},
	}}

	p := New(Config{OutputDir: dir}, src, logging.NewNopLogger())
	require.NoError(t, p.Run(context.Background()))

	expected := filepath.Join(dir, "@project:foo", "#rust")
	entries, err := os.ReadDir(expected)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	content, err := os.ReadFile(filepath.Join(expected, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(content), "[m1]")
	assert.Contains(t, string(content), "[m2]")
}

func TestProjector_Run_UncategorizedFallback(t *testing.T) {
	dir := t.TempDir()
	src := &fakeSource{rows: []FlatAtomRow{
		{ID: "m1", Content: "no tags here", SourcePath: "notes/b.md"},
	}}

	p := New(Config{OutputDir: dir}, src, logging.NewNopLogger())
	require.NoError(t, p.Run(context.Background()))

	_, err := os.Stat(filepath.Join(dir, "@uncategorized", "#untagged"))
	assert.NoError(t, err)
}

func TestChunkRows_SplitsOverPageSize(t *testing.T) {
	rows := make([]FlatAtomRow, 150)
	for i := range rows {
		rows[i] = FlatAtomRow{ID: string(rune('a' + i%26))}
	}
	pages := chunkRows(rows, moleculesPerFile)
	require.Len(t, pages, 2)
	assert.Len(t, pages[0], 100)
	assert.Len(t, pages[1], 50)
}

func TestFileName_MultiPageSuffix(t *testing.T) {
	single := fileName("a", 0, 1)
	multi := fileName("a", 0, 2)
	assert.Regexp(t, `^a_[0-9a-f]{8}\.md$`, single)
	assert.Regexp(t, `^a_[0-9a-f]{8}_1\.md$`, multi)
}

func TestSanitizeSegment(t *testing.T) {
	assert.Equal(t, "project_foo", sanitizeSegment("project/foo"))
	assert.Equal(t, "_", sanitizeSegment(""))
}
