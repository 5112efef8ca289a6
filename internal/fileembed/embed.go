// Package fileembed reads files into prompt blocks under a token budget:
// extension-tiered prioritization, cross-turn dedup, line-boundary
// truncation, and the large-prompt escape protocol.
package fileembed

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

// TransportCharBudget is the per-request cap on user-supplied text imposed by
// the MCP transport. Text past the cap triggers the large-prompt escape.
const TransportCharBudget = 50_000

// PromptEscapeFilename is the well-known name the host saves oversized
// prompts under; the embedder loads it as the effective prompt instead of
// embedding it.
const PromptEscapeFilename = "prompt.txt"

// ErrFilePathNotAbsolute rejects relative paths.
var ErrFilePathNotAbsolute = errors.New("file path must be absolute")

// LargePromptError is the cooperative escape signal: the host should save the
// prompt to prompt.txt and resubmit with its path in files.
type LargePromptError struct {
	Size int
}

func (e *LargePromptError) Error() string {
	return fmt.Sprintf("prompt of %d characters exceeds the %d character transport budget", e.Size, TransportCharBudget)
}

// CheckTransportBudget returns a *LargePromptError when text exceeds the
// transport cap. Text exactly at the cap is accepted.
func CheckTransportBudget(text string) error {
	if len(text) > TransportCharBudget {
		return &LargePromptError{Size: len(text)}
	}
	return nil
}

// ResolvePromptFile implements re-entry after the escape: when files contains
// a prompt.txt, its content becomes the effective prompt and the file is
// removed from the embed set.
func ResolvePromptFile(prompt string, files []string) (string, []string, error) {
	rest := make([]string, 0, len(files))
	effective := prompt
	for _, f := range files {
		if filepath.Base(f) == PromptEscapeFilename {
			data, err := os.ReadFile(f)
			if err != nil {
				return "", nil, fmt.Errorf("read %s: %w", PromptEscapeFilename, err)
			}
			effective = string(data)
			continue
		}
		rest = append(rest, f)
	}
	return effective, rest, nil
}

// Priority tiers by extension; tier 1 is embedded first.
var (
	tierSource = map[string]bool{
		".go": true, ".py": true, ".js": true, ".ts": true, ".tsx": true, ".jsx": true,
		".java": true, ".c": true, ".h": true, ".cpp": true, ".hpp": true, ".cc": true,
		".rs": true, ".rb": true, ".php": true, ".swift": true, ".kt": true, ".scala": true,
		".sh": true, ".sql": true, ".proto": true, ".zig": true, ".cs": true,
	}
	tierDocsConfig = map[string]bool{
		".md": true, ".rst": true, ".adoc": true,
		".json": true, ".yaml": true, ".yml": true, ".toml": true, ".ini": true,
		".xml": true, ".html": true, ".css": true, ".mod": true, ".sum": true,
	}
	tierText = map[string]bool{
		".txt": true, ".csv": true, ".env": true, ".cfg": true, ".conf": true,
	}
	tierLogs = map[string]bool{
		".log": true, ".out": true,
	}
)

// tierShares allocates the embed budget: 60/30/10/0 percent.
var tierShares = [4]float64{0.60, 0.30, 0.10, 0}

// tierOf classifies a path; unknown extensions land in the text tier.
func tierOf(path string) int {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case tierSource[ext]:
		return 0
	case tierDocsConfig[ext]:
		return 1
	case tierLogs[ext]:
		return 3
	case tierText[ext]:
		return 2
	default:
		return 2
	}
}

func recognized(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return tierSource[ext] || tierDocsConfig[ext] || tierText[ext] || tierLogs[ext]
}

// Skipped records a path that was not embedded and why.
type Skipped struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Result is the outcome of one embed pass.
type Result struct {
	// Block is the rendered embed section.
	Block string

	// Embedded lists the paths whose content appears in Block, in render
	// order.
	Embedded []string

	// Referenced lists paths already present in the conversation, rendered
	// as bare references.
	Referenced []string

	// Skipped lists paths left out (unreadable, binary, over budget).
	Skipped []Skipped

	// Tokens is the estimated token cost of Block.
	Tokens int
}

// Embedder renders files into prompt blocks.
type Embedder struct {
	// Counter estimates tokens for text. Defaults to ceil(chars/4).
	Counter func(string) int

	// LineNumbers prefixes every embedded line with its number.
	LineNumbers bool

	// Strict fails the whole call on unreadable files instead of emitting
	// placeholders.
	Strict bool
}

func (e *Embedder) count(text string) int {
	if e.Counter != nil {
		return e.Counter(text)
	}
	return (len(text) + 3) / 4
}

// Embed renders the given paths under budgetTokens. Paths must be absolute;
// directories are expanded depth-first in lexicographic order. Files in seen
// become bare references marked as already in the conversation.
//
// Repeated calls with identical inputs produce identical output.
func (e *Embedder) Embed(paths []string, seen map[string]bool, budgetTokens int, label string) (*Result, error) {
	res := &Result{}
	if len(paths) == 0 {
		return res, nil
	}

	var files []string
	for _, p := range paths {
		if !filepath.IsAbs(p) {
			return nil, fmt.Errorf("%w: %s", ErrFilePathNotAbsolute, p)
		}
		expanded, err := expand(p)
		if err != nil {
			if e.Strict {
				return nil, err
			}
			res.Skipped = append(res.Skipped, Skipped{Path: p, Reason: err.Error()})
			continue
		}
		files = append(files, expanded...)
	}

	// Dedup while preserving first-seen order.
	uniq := files[:0]
	have := map[string]bool{}
	for _, f := range files {
		if have[f] {
			continue
		}
		have[f] = true
		uniq = append(uniq, f)
	}
	files = uniq

	var sb strings.Builder
	if label != "" {
		fmt.Fprintf(&sb, "=== %s ===\n", label)
	}

	// Cross-turn dedup first: prior files render as references only.
	fresh := files[:0]
	for _, f := range files {
		if seen != nil && seen[f] {
			fmt.Fprintf(&sb, "%s: [already in conversation]\n", f)
			res.Referenced = append(res.Referenced, f)
			continue
		}
		fresh = append(fresh, f)
	}
	files = fresh

	// Partition into tiers and allocate budget shares; within a tier, files
	// split the tier budget equally.
	var tiers [4][]string
	for _, f := range files {
		t := tierOf(f)
		tiers[t] = append(tiers[t], f)
	}
	for t := 0; t < 4; t++ {
		tierBudget := int(float64(budgetTokens) * tierShares[t])
		if len(tiers[t]) == 0 {
			continue
		}
		if tierBudget <= 0 {
			for _, f := range tiers[t] {
				res.Skipped = append(res.Skipped, Skipped{Path: f, Reason: "no budget for tier"})
			}
			continue
		}
		share := tierBudget / len(tiers[t])
		for _, f := range tiers[t] {
			e.renderFile(&sb, res, f, share)
		}
	}

	res.Block = sb.String()
	res.Tokens = e.count(res.Block)
	return res, nil
}

func (e *Embedder) renderFile(sb *strings.Builder, res *Result, path string, shareTokens int) {
	data, err := os.ReadFile(path)
	if err != nil {
		if e.Strict {
			// Strict mode failures are collected by the caller via Skipped;
			// Embed handles directory errors, per-file read errors land here.
			res.Skipped = append(res.Skipped, Skipped{Path: path, Reason: err.Error()})
			return
		}
		fmt.Fprintf(sb, "\n--- %s ---\n[unreadable: %v]\n", path, err)
		res.Skipped = append(res.Skipped, Skipped{Path: path, Reason: err.Error()})
		return
	}
	if !utf8.Valid(data) {
		fmt.Fprintf(sb, "\n--- %s ---\n[binary file, %d bytes]\n", path, len(data))
		res.Skipped = append(res.Skipped, Skipped{Path: path, Reason: "binary"})
		return
	}

	content := string(data)
	truncated := false
	if e.count(content) > shareTokens {
		content, truncated = e.truncateToShare(content, shareTokens)
	}

	fmt.Fprintf(sb, "\n--- %s ---\n", path)
	if e.LineNumbers {
		for i, line := range strings.Split(strings.TrimSuffix(content, "\n"), "\n") {
			fmt.Fprintf(sb, "%4d| %s\n", i+1, line)
		}
	} else {
		sb.WriteString(content)
		if !strings.HasSuffix(content, "\n") {
			sb.WriteByte('\n')
		}
	}
	if truncated {
		sb.WriteString("[truncated: file exceeds its token share]\n")
	}
	res.Embedded = append(res.Embedded, path)
}

// truncateToShare cuts content so the remainder fits the token share under
// the configured counter. Counters are monotone in input length, so the
// largest fitting prefix is found by binary search, then pulled back to a
// line boundary.
func (e *Embedder) truncateToShare(content string, shareTokens int) (string, bool) {
	lo, hi := 0, len(content)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if e.count(content[:mid]) <= shareTokens {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return truncateAtLine(content, lo)
}

// truncateAtLine cuts content at the last full line within maxChars.
func truncateAtLine(content string, maxChars int) (string, bool) {
	if len(content) <= maxChars {
		return content, false
	}
	if maxChars <= 0 {
		return "", true
	}
	cut := content[:maxChars]
	if idx := strings.LastIndexByte(cut, '\n'); idx > 0 {
		cut = cut[:idx+1]
	}
	return cut, true
}

// expand resolves a path to the ordered file list it denotes. Directories
// walk depth-first with lexicographic order per directory, filtered to
// recognized extensions.
func expand(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	var out []string
	err = walkDir(path, &out)
	return out, err
}

func walkDir(dir string, out *[]string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, ent := range entries {
		if strings.HasPrefix(ent.Name(), ".") {
			continue
		}
		full := filepath.Join(dir, ent.Name())
		if ent.IsDir() {
			if err := walkDir(full, out); err != nil {
				return err
			}
			continue
		}
		if recognized(full) {
			*out = append(*out, full)
		}
	}
	return nil
}
