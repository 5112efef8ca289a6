package conversation

import (
	"fmt"
	"strings"

	"github.com/haasonsaas/zen/internal/catalog"
	"github.com/haasonsaas/zen/internal/fileembed"
)

// maxRevivedImages caps how many prior images are reattached when a thread is
// revived; older references become textual placeholders.
const maxRevivedImages = 3

// Budget splits a model's context window into reserved fractions. The
// remainder after response and file reserves is the history budget.
type Budget struct {
	ResponseReserve float64
	FileReserve     float64
}

// BudgetFor returns the reserve policy for a model category. Reasoning models
// reserve more room for output.
func BudgetFor(cat catalog.Category) Budget {
	switch cat {
	case catalog.CategoryReasoning:
		return Budget{ResponseReserve: 0.35, FileReserve: 0.25}
	case catalog.CategoryFast:
		return Budget{ResponseReserve: 0.20, FileReserve: 0.30}
	default:
		return Budget{ResponseReserve: 0.25, FileReserve: 0.30}
	}
}

// HistoryTokens returns the token budget for prior-turn history.
func (b Budget) HistoryTokens(contextWindow int) int {
	return int(float64(contextWindow) * (1 - b.ResponseReserve - b.FileReserve))
}

// FileTokens returns the token budget for newly embedded files.
func (b Budget) FileTokens(contextWindow int) int {
	return int(float64(contextWindow) * b.FileReserve)
}

// ResponseTokens returns the reserve for the model's output.
func (b Budget) ResponseTokens(contextWindow int) int {
	return int(float64(contextWindow) * b.ResponseReserve)
}

// Revived is the reconstructed prior conversation for a continuation call.
type Revived struct {
	// History is the formatted conversation block, chronological order.
	History string

	// EmbeddedFiles lists files whose content is embedded in History (each
	// at its most recent occurrence only).
	EmbeddedFiles []string

	// Images are the most recent image references to reattach.
	Images []string

	// Tokens is the estimated cost of History.
	Tokens int

	// DroppedTurns counts older turns left out of the budget.
	DroppedTurns int
}

// Assembler rebuilds thread history into a prompt prefix under a token
// budget.
type Assembler struct {
	// Counter estimates tokens for text.
	Counter func(string) int

	// Embedder renders conversation files.
	Embedder *fileembed.Embedder
}

// Build reconstructs the thread under the budget for the given capability.
// Turns are selected newest-first, then emitted chronologically; a turn is
// kept whole or dropped. File content appears once, at its newest reference,
// after the turn transcript.
func (a *Assembler) Build(t *Thread, cap *catalog.Capability) (*Revived, error) {
	budget := BudgetFor(cap.Category)
	historyBudget := budget.HistoryTokens(cap.ContextWindow)

	rendered := make([]string, len(t.Turns))
	kept := make([]bool, len(t.Turns))
	used := 0
	dropped := 0

	// Newest-first selection: stop at the first turn that no longer fits.
	for i := len(t.Turns) - 1; i >= 0; i-- {
		text := renderTurn(&t.Turns[i], i+1)
		cost := a.count(text)
		if used+cost > historyBudget {
			dropped = i + 1
			break
		}
		rendered[i] = text
		kept[i] = true
		used += cost
	}

	var sb strings.Builder
	sb.WriteString("=== CONVERSATION HISTORY (continuation) ===\n")
	fmt.Fprintf(&sb, "Thread: %s\n", t.ID)
	if dropped > 0 {
		fmt.Fprintf(&sb, "[%d earlier turn(s) omitted for budget]\n", dropped)
	}
	for i := range t.Turns {
		if kept[i] {
			sb.WriteString(rendered[i])
		}
	}

	rev := &Revived{DroppedTurns: dropped}

	// Embed file content once per file, at its most recent occurrence,
	// within what remains of the history budget.
	files := newestFiles(t, kept)
	if len(files) > 0 && a.Embedder != nil {
		remaining := historyBudget - used
		if remaining > 0 {
			res, err := a.Embedder.Embed(files, nil, remaining, "FILES REFERENCED IN THIS CONVERSATION")
			if err != nil {
				return nil, err
			}
			sb.WriteString("\n")
			sb.WriteString(res.Block)
			rev.EmbeddedFiles = res.Embedded
		}
	}
	sb.WriteString("\n=== END CONVERSATION HISTORY ===\n")

	rev.Images = newestImages(t, maxRevivedImages)
	rev.History = sb.String()
	rev.Tokens = a.count(rev.History)
	return rev, nil
}

func (a *Assembler) count(text string) int {
	if a.Counter != nil {
		return a.Counter(text)
	}
	return (len(text) + 3) / 4
}

func renderTurn(turn *Turn, index int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "\n--- Turn %d (%s", index, turn.Role)
	if turn.Tool != "" {
		fmt.Fprintf(&sb, ", tool=%s", turn.Tool)
	}
	if turn.Model != "" {
		fmt.Fprintf(&sb, ", model=%s", turn.Model)
	}
	sb.WriteString(") ---\n")
	sb.WriteString(turn.Content)
	if !strings.HasSuffix(turn.Content, "\n") {
		sb.WriteByte('\n')
	}
	if len(turn.Files) > 0 {
		fmt.Fprintf(&sb, "Files referenced: %s\n", strings.Join(turn.Files, ", "))
	}
	if len(turn.Images) > 0 {
		fmt.Fprintf(&sb, "Images referenced: %s\n", strings.Join(turn.Images, ", "))
	}
	return sb.String()
}

// newestFiles returns each referenced file once, ordered by its most recent
// occurrence (newest first), restricted to kept turns.
func newestFiles(t *Thread, kept []bool) []string {
	var out []string
	seen := map[string]bool{}
	for i := len(t.Turns) - 1; i >= 0; i-- {
		if !kept[i] {
			continue
		}
		for _, f := range t.Turns[i].Files {
			if seen[f] {
				continue
			}
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

func newestImages(t *Thread, limit int) []string {
	var out []string
	seen := map[string]bool{}
	for i := len(t.Turns) - 1; i >= 0 && len(out) < limit; i-- {
		for _, img := range t.Turns[i].Images {
			if seen[img] || len(out) >= limit {
				continue
			}
			seen[img] = true
			out = append(out, img)
		}
	}
	return out
}
