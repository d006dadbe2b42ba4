// Package mirror implements Component H: a one-way projection of the ingest
// graph onto a filesystem tree for human inspection (spec.md §4.H). It never
// reads its own output back; every run wipes and re-emits the configured
// output directory from the current store contents.
package mirror

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/tagwalker/tagwalker/internal/infrastructure/monitoring/logging"
	"github.com/tagwalker/tagwalker/pkg/errors"
)

// moleculesPerFile is the spec.md §4.H bundling limit.
const moleculesPerFile = 100

const uncategorizedBucket = "uncategorized"
const untaggedTag = "untagged"

// FlatAtomRow is the denormalized molecule row the projector reads from
// (the same shape UpsertFlatAtoms writes; see repositories.molecule_repo).
type FlatAtomRow struct {
	ID         string
	Content    string
	SourcePath string
	Buckets    []string
	Tags       []string
}

// Source enumerates every molecule the projector should render. It is
// satisfied by PostgresSource, reading the legacy flat_atoms table directly
// rather than joining compounds/molecules/edges.
type Source interface {
	ListAll(ctx context.Context) ([]FlatAtomRow, error)
}

// Config holds the projector's output directory and bundling parameters,
// mirroring config.MirrorConfig.
type Config struct {
	OutputDir string
}

// Projector renders the current corpus to OutputDir as
// @{bucket}/#{tag}/{source-name}_{path-hash}.md files.
type Projector struct {
	cfg    Config
	source Source
	logger logging.Logger
}

func New(cfg Config, source Source, logger logging.Logger) *Projector {
	return &Projector{cfg: cfg, source: source, logger: logger}
}

var moleculeHeaderTemplate = template.Must(template.New("molecule").Parse(
	"## [{{.ID}}] {{.Snippet}}\n\n{{.Content}}\n\n"))

type moleculeView struct {
	ID      string
	Snippet string
	Content string
}

// Run wipes Config.OutputDir and re-emits the full tree. Called after every
// successful ingest cycle; safe to call concurrently with reads of the
// previous tree (the rename-free wipe means a reader mid-walk may observe a
// partially-rewritten tree, which the spec accepts since the mirror is
// advisory).
func (p *Projector) Run(ctx context.Context) error {
	rows, err := p.source.ListAll(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "mirror projector failed to read corpus")
	}

	if err := os.RemoveAll(p.cfg.OutputDir); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "mirror projector failed to clear output directory")
	}
	if err := os.MkdirAll(p.cfg.OutputDir, 0o755); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "mirror projector failed to create output directory")
	}

	groups := groupByBucketTag(rows)

	written := 0
	for key, bySource := range groups {
		dir := filepath.Join(p.cfg.OutputDir, "@"+sanitizeSegment(key.Bucket), "#"+sanitizeSegment(key.Tag))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, errors.CodeInternal, "mirror projector failed to create bucket/tag directory")
		}
		for sourcePath, sourceRows := range bySource {
			pages := chunkRows(sourceRows, moleculesPerFile)
			for i, page := range pages {
				name := fileName(sourcePath, i, len(pages))
				if err := writeFile(filepath.Join(dir, name), page); err != nil {
					return err
				}
				written++
			}
		}
	}

	p.logger.Info("mirror projection complete",
		logging.Int("files_written", written),
		logging.Int("molecules", len(rows)))
	return nil
}

type bucketTagKey struct{ Bucket, Tag string }

func groupByBucketTag(rows []FlatAtomRow) map[bucketTagKey]map[string][]FlatAtomRow {
	groups := make(map[bucketTagKey]map[string][]FlatAtomRow)
	for _, row := range rows {
		buckets := row.Buckets
		if len(buckets) == 0 {
			buckets = []string{uncategorizedBucket}
		}
		tags := row.Tags
		if len(tags) == 0 {
			tags = []string{untaggedTag}
		}
		for _, b := range buckets {
			for _, t := range tags {
				key := bucketTagKey{Bucket: b, Tag: t}
				if groups[key] == nil {
					groups[key] = make(map[string][]FlatAtomRow)
				}
				groups[key][row.SourcePath] = append(groups[key][row.SourcePath], row)
			}
		}
	}
	return groups
}

func chunkRows(rows []FlatAtomRow, size int) [][]FlatAtomRow {
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	var pages [][]FlatAtomRow
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		pages = append(pages, rows[start:end])
	}
	return pages
}

func fileName(sourcePath string, page, totalPages int) string {
	base := sanitizeSegment(filepath.Base(sourcePath))
	hash := pathHash(sourcePath)
	if totalPages > 1 {
		return fmt.Sprintf("%s_%s_%d.md", base, hash, page+1)
	}
	return fmt.Sprintf("%s_%s.md", base, hash)
}

func writeFile(path string, rows []FlatAtomRow) error {
	var sb strings.Builder
	for _, row := range rows {
		snippet := row.Content
		if len(snippet) > 80 {
			snippet = snippet[:80]
		}
		snippet = strings.ReplaceAll(snippet, "\n", " ")
		if err := moleculeHeaderTemplate.Execute(&sb, moleculeView{ID: row.ID, Snippet: snippet, Content: row.Content}); err != nil {
			return errors.Wrap(err, errors.CodeInternal, "mirror projector template render failed")
		}
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "mirror projector failed to write "+path)
	}
	return nil
}

func sanitizeSegment(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "_"
	}
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "-")
	return replacer.Replace(s)
}

func pathHash(path string) string {
	var h uint32 = 2166136261
	for i := 0; i < len(path); i++ {
		h ^= uint32(path[i])
		h *= 16777619
	}
	return fmt.Sprintf("%08x", h)
}
