// Package atomize implements the ingestion pipeline's Atomizer: a pure,
// deterministic decomposition of sanitized text into a Compound/Molecule/
// Atom topology with byte-accurate offsets (spec §4.B).
package atomize

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tagwalker/tagwalker/internal/domain/ingest"
	"github.com/tagwalker/tagwalker/internal/domain/ingest/sanitize"
	"github.com/tagwalker/tagwalker/internal/infrastructure/monitoring/logging"
)

// projectIndicatorDirs are path segments that, when present, cause a
// "#project:<name>" system tag to be derived from the next segment.
var projectIndicatorDirs = map[string]bool{
	"src": true, "packages": true, "apps": true, "projects": true,
	"repos": true, "personal": true, "work": true, "client": true,
}

var codeExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".ts": true, ".tsx": true, ".jsx": true,
	".java": true, ".c": true, ".cpp": true, ".h": true, ".hpp": true, ".rs": true,
	".rb": true, ".php": true, ".sh": true, ".sql": true, ".cs": true, ".swift": true,
}

var dataExtensions = map[string]bool{
	".csv": true, ".json": true,
}

var configExtensions = map[string]bool{
	".yaml": true, ".yml": true, ".toml": true, ".ini": true, ".conf": true, ".env": true,
}

var docExtensions = map[string]bool{
	".md": true, ".txt": true, ".rst": true, ".adoc": true,
}

var (
	// sentenceBoundary matches a sentence terminator followed by whitespace
	// and a capital letter. Go's RE2 engine has no lookbehind, so runs of
	// terminators ("...", "?!") are matched and split on their final
	// character only, by construction of the pattern below.
	sentenceBoundary = regexp.MustCompile(`(?s)([.!?]+)\s+(?=[A-Z])`)
	codeFenceBlock   = regexp.MustCompile("(?s)```.*?(?:```|$)")
	markdownTableRow = regexp.MustCompile(`^\s*\|.*\|\s*$`)
	codeHeuristic    = regexp.MustCompile(`\b(func|const|import|class|def)\b|` + "```")

	isoTimestamp = regexp.MustCompile(`\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}:\d{2}`)

	numericWithUnit = regexp.MustCompile(`\b(\d+(?:\.\d+)?)\s*([a-zA-Z%]{0,10})\b`)

	hashTagPattern = regexp.MustCompile(`#[A-Za-z][A-Za-z0-9_:\-]*`)
)

// Atomizer decomposes sanitized text into Compound/Molecule/Atom topology.
// It is deterministic: identical (content, path) inputs always yield
// identical ids and byte offsets.
type Atomizer struct {
	sanitizer       *sanitize.Sanitizer
	keywordRegistry []string
	logger          logging.Logger
}

// New constructs an Atomizer. keywordRegistry is a configurable list of
// concept keywords scanned case-insensitively in every molecule (spec
// §4.B.8); it is read-only after startup.
func New(sanitizer *sanitize.Sanitizer, keywordRegistry []string, logger logging.Logger) *Atomizer {
	return &Atomizer{sanitizer: sanitizer, keywordRegistry: keywordRegistry, logger: logger}
}

// Result is the complete topology produced by one Atomize call, plus the
// pending domain events emitted by the constructed Compound.
type Result struct {
	Compound  *ingest.Compound
	Molecules []*ingest.Molecule
	Atoms     []*ingest.Atom
	Edges     []ingest.Edge
	Events    []ingest.DomainEvent
}

// Atomize runs the full nine-step algorithm described in spec §4.B. It has
// no side effects; the caller (application/ingest) is responsible for
// persistence. fileModTime is used as the fallback timestamp when no
// molecule carries a parseable timestamp and no prior timestamp exists in
// the compound.
func (a *Atomizer) Atomize(raw []byte, sourcePath string, provenance ingest.Provenance, fileModTime time.Time) (*Result, error) {
	// Step 1: sanitize.
	body := a.sanitizer.Sanitize(raw, sourcePath)

	now := fileModTime
	compound := ingest.NewCompound(body, sourcePath, provenance, SimHash64(body), now)

	// Step 3: system atoms derived from path.
	systemAtoms := deriveSystemAtoms(sourcePath)

	// Step 4: type detection.
	kind := detectKind(sourcePath, body)

	// Step 5: molecular fission.
	spans := fission(body, kind)

	atomSet := make(map[ingest.ID]*ingest.Atom)
	for _, sa := range systemAtoms {
		atomSet[sa.ID] = sa
	}

	var molecules []*ingest.Molecule
	var edges []ingest.Edge
	lastTimestamp := now

	for seq, span := range spans {
		content := body[span.start:span.end]
		spanKind := kind
		if kind == ingest.KindProse && looksLikeCode(content) {
			spanKind = ingest.KindCode
		}

		// Step 6: timestamp extraction.
		ts := extractTimestamp(content)
		if ts.IsZero() {
			ts = lastTimestamp
		} else {
			lastTimestamp = ts
		}

		mol := ingest.NewMolecule(compound.ID, seq, content, span.start, span.end, spanKind, SimHash64(content), ts, provenance)

		// Step 7: numeric extraction, data molecules only.
		if spanKind == ingest.KindData {
			if val, unit, ok := extractNumeric(content); ok {
				mol.NumericValue = &val
				mol.NumericUnit = unit
			}
		}

		// Step 8: per-molecule tagging.
		for _, sa := range systemAtoms {
			mol.TagWith(sa.ID)
			edges = append(edges, ingest.NewEdge(mol.ID, sa.ID, ingest.RelationTagged))
		}
		for _, atom := range extractConceptAtoms(content, a.keywordRegistry) {
			atomSet[atom.ID] = atom
			mol.TagWith(atom.ID)
			edges = append(edges, ingest.NewEdge(mol.ID, atom.ID, ingest.RelationTagged))
		}

		molecules = append(molecules, mol)
		compound.AddMolecule(mol)
	}

	for _, sa := range systemAtoms {
		edges = append(edges, ingest.NewEdge(compound.ID, sa.ID, ingest.RelationHasTag))
	}

	atoms := make([]*ingest.Atom, 0, len(atomSet))
	for _, atom := range atomSet {
		atoms = append(atoms, atom)
	}
	sort.Slice(atoms, func(i, j int) bool { return atoms[i].ID < atoms[j].ID })

	compound.RecordIngested()

	return &Result{
		Compound:  compound,
		Molecules: molecules,
		Atoms:     atoms,
		Edges:     edges,
		Events:    compound.Events(),
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Step 3 — system atoms
// ─────────────────────────────────────────────────────────────────────────────

func deriveSystemAtoms(sourcePath string) []*ingest.Atom {
	normalized := "/" + strings.TrimPrefix(filepath.ToSlash(sourcePath), "/")
	segments := strings.Split(normalized, "/")

	var atoms []*ingest.Atom
	seen := make(map[string]bool)

	add := func(label string, archive bool) {
		if seen[label] {
			return
		}
		seen[label] = true
		atom := ingest.NewAtom(label, ingest.AtomKindSystem)
		if archive {
			atom = atom.WithArchiveWeight()
		}
		atoms = append(atoms, atom)
	}

	for i, seg := range segments {
		if projectIndicatorDirs[seg] && i+1 < len(segments) {
			add(fmt.Sprintf("#project:%s", segments[i+1]), false)
		}
		switch seg {
		case "src":
			add("#src", false)
		case "docs", "doc":
			add("#docs", false)
		case "test", "tests":
			add("#test", false)
		}
	}

	if strings.Contains(normalized, "/history/") || strings.Contains(normalized, "/archive/") {
		add("#Archive", true)
	}

	ext := strings.ToLower(filepath.Ext(sourcePath))
	switch {
	case codeExtensions[ext]:
		add("#code", false)
	case docExtensions[ext]:
		add("#doc", false)
	case configExtensions[ext]:
		add("#config", false)
	}

	return atoms
}

// ─────────────────────────────────────────────────────────────────────────────
// Step 4 — type detection
// ─────────────────────────────────────────────────────────────────────────────

func detectKind(sourcePath, body string) ingest.MoleculeKind {
	ext := strings.ToLower(filepath.Ext(sourcePath))
	switch {
	case dataExtensions[ext]:
		return ingest.KindData
	case codeExtensions[ext]:
		return ingest.KindCode
	}

	lines := strings.Split(body, "\n")
	tableRows := 0
	for _, line := range lines {
		if markdownTableRow.MatchString(line) {
			tableRows++
		}
	}
	if tableRows >= 2 {
		return ingest.KindData
	}

	if codeHeuristic.MatchString(body) {
		return ingest.KindCode
	}

	return ingest.KindProse
}

func looksLikeCode(content string) bool {
	return codeHeuristic.MatchString(content)
}

// ─────────────────────────────────────────────────────────────────────────────
// Step 5 — molecular fission
// ─────────────────────────────────────────────────────────────────────────────

type span struct {
	start, end int
}

func fission(body string, kind ingest.MoleculeKind) []span {
	var spans []span
	switch kind {
	case ingest.KindCode:
		spans = fissionCode(body)
	case ingest.KindData:
		spans = fissionData(body)
	default:
		spans = fissionProse(body)
	}
	return enforceMaxSize(body, spans)
}

// fissionCode splits on blank lines at brace depth 0 (a proxy for top-level
// block boundaries without a full language parser).
func fissionCode(body string) []span {
	var spans []span
	depth := 0
	start := 0
	lineStart := 0
	for i, r := range body {
		switch r {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		case '\n':
			line := body[lineStart:i]
			if depth == 0 && strings.TrimSpace(line) == "" && i > start {
				spans = append(spans, span{start, i})
				start = i + 1
			}
			lineStart = i + 1
		}
	}
	if start < len(body) {
		spans = append(spans, span{start, len(body)})
	}
	return trimEmptySpans(body, spans)
}

// fissionData emits one span per non-empty line.
func fissionData(body string) []span {
	var spans []span
	lineStart := 0
	for i := 0; i <= len(body); i++ {
		if i == len(body) || body[i] == '\n' {
			if strings.TrimSpace(body[lineStart:i]) != "" {
				spans = append(spans, span{lineStart, i})
			}
			lineStart = i + 1
		}
	}
	return spans
}

// fissionProse first isolates fenced code blocks as their own spans, then
// splits the remaining prose on sentence boundaries. Offsets are recovered
// by searching forward from a monotonically advancing cursor (spec §9)
// rather than trusting regex match positions directly, so the
// body[start:end] == content invariant holds exactly.
func fissionProse(body string) []span {
	var spans []span
	cursor := 0

	fenceMatches := codeFenceBlock.FindAllStringIndex(body, -1)
	for _, fm := range fenceMatches {
		if fm[0] > cursor {
			spans = append(spans, fissionSentences(body, cursor, fm[0])...)
		}
		spans = append(spans, span{fm[0], fm[1]})
		cursor = fm[1]
	}
	if cursor < len(body) {
		spans = append(spans, fissionSentences(body, cursor, len(body))...)
	}
	return trimEmptySpans(body, spans)
}

// fissionSentences splits body[from:to] on sentence boundaries using a
// monotonically advancing cursor search so offsets remain byte-exact.
func fissionSentences(body string, from, to int) []span {
	segment := body[from:to]
	locs := sentenceBoundary.FindAllStringSubmatchIndex(segment, -1)

	var spans []span
	cursor := 0
	for _, loc := range locs {
		matchEnd := loc[1]     // end of the whole match (terminator run + whitespace)
		termEnd := loc[3]      // end of the captured terminator run, group 1
		spans = append(spans, span{from + cursor, from + termEnd})
		cursor = matchEnd
	}
	if cursor < len(segment) {
		spans = append(spans, span{from + cursor, to})
	}
	return spans
}

func trimEmptySpans(body string, spans []span) []span {
	var out []span
	for _, sp := range spans {
		// Right-trim inter-sentence whitespace only, preserving the
		// documented elision rule (spec §8 invariant 2).
		end := sp.end
		for end > sp.start && isTrimmableSpace(body[end-1]) {
			end--
		}
		if end > sp.start {
			out = append(out, span{sp.start, end})
		}
	}
	return out
}

func isTrimmableSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// enforceMaxSize force-splits any span exceeding ingest.DefaultMoleculeBytes
// into fixed-size chunks, each inheriting the parent span's position for
// timestamp inheritance purposes (spec §4.B.5).
func enforceMaxSize(body string, spans []span) []span {
	var out []span
	for _, sp := range spans {
		if sp.end-sp.start <= ingest.DefaultMoleculeBytes {
			out = append(out, sp)
			continue
		}
		cursor := sp.start
		for cursor < sp.end {
			chunkEnd := cursor + ingest.DefaultMoleculeBytes
			if chunkEnd > sp.end {
				chunkEnd = sp.end
			}
			out = append(out, span{cursor, chunkEnd})
			cursor = chunkEnd
		}
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Step 6 — timestamp extraction
// ─────────────────────────────────────────────────────────────────────────────

func extractTimestamp(content string) time.Time {
	match := isoTimestamp.FindString(content)
	if match == "" {
		return time.Time{}
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, match); err == nil {
			return ts
		}
	}
	return time.Time{}
}

// ─────────────────────────────────────────────────────────────────────────────
// Step 7 — numeric extraction (data molecules only)
// ─────────────────────────────────────────────────────────────────────────────

func extractNumeric(content string) (float64, string, bool) {
	match := numericWithUnit.FindStringSubmatch(content)
	if match == nil {
		return 0, "", false
	}
	val, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, "", false
	}
	unit := match[2]
	if unit == "" && val >= 1900 && val <= 2100 && !strings.Contains(match[1], ".") {
		// Bare four-digit integers in [1900, 2100] are probable years, not
		// measurements (spec §4.B.7).
		return 0, "", false
	}
	return val, unit, true
}

// ─────────────────────────────────────────────────────────────────────────────
// Step 8 — per-molecule tagging (concept atoms)
// ─────────────────────────────────────────────────────────────────────────────

func extractConceptAtoms(content string, keywordRegistry []string) []*ingest.Atom {
	var atoms []*ingest.Atom
	seen := make(map[string]bool)

	for _, tag := range hashTagPattern.FindAllString(content, -1) {
		if seen[tag] {
			continue
		}
		seen[tag] = true
		atoms = append(atoms, ingest.NewAtom(tag, ingest.AtomKindConcept))
	}

	lower := strings.ToLower(content)
	for _, keyword := range keywordRegistry {
		if keyword == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(keyword)) {
			label := "#" + strings.ToLower(keyword)
			if seen[label] {
				continue
			}
			seen[label] = true
			atoms = append(atoms, ingest.NewAtom(label, ingest.AtomKindConcept))
		}
	}

	return atoms
}
