package conversation

// Confidence levels for workflow investigations, weakest to strongest.
const (
	ConfidenceExploring     = "exploring"
	ConfidenceLow           = "low"
	ConfidenceMedium        = "medium"
	ConfidenceHigh          = "high"
	ConfidenceVeryHigh      = "very_high"
	ConfidenceAlmostCertain = "almost_certain"
	ConfidenceCertain       = "certain"
)

var confidenceRank = map[string]int{
	ConfidenceExploring:     0,
	ConfidenceLow:           1,
	ConfidenceMedium:        2,
	ConfidenceHigh:          3,
	ConfidenceVeryHigh:      4,
	ConfidenceAlmostCertain: 5,
	ConfidenceCertain:       6,
}

// ValidConfidence reports whether c is a recognized confidence level.
func ValidConfidence(c string) bool {
	_, ok := confidenceRank[c]
	return ok
}

// ConfidenceRank orders confidence levels; unknown levels rank lowest.
func ConfidenceRank(c string) int { return confidenceRank[c] }

// Issue is a single finding with a severity.
type Issue struct {
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

// StepRecord captures what one workflow step contributed, so backtracking can
// discard contributions recorded after a given step.
type StepRecord struct {
	Step     int    `json:"step"`
	Findings string `json:"findings"`
}

// WorkflowState is the accumulated investigation state of a workflow thread.
// The conversation store owns it; tools mutate it through Store.UpdateWorkflow.
type WorkflowState struct {
	// StepNumber is the last accepted step; monotone except for backtracking.
	StepNumber int `json:"step_number"`

	// TotalSteps is the host's current estimate; it may be revised.
	TotalSteps int `json:"total_steps"`

	// Confidence is the host's current confidence level.
	Confidence string `json:"confidence"`

	// Steps holds per-step findings in acceptance order.
	Steps []StepRecord `json:"steps"`

	// FilesChecked is the ordered dedup set of every file examined.
	FilesChecked []string `json:"files_checked,omitempty"`

	// RelevantFiles is the subset of FilesChecked that matters.
	RelevantFiles []string `json:"relevant_files,omitempty"`

	// RelevantContext is the ordered dedup set of implicated symbols.
	RelevantContext []string `json:"relevant_context,omitempty"`

	// IssuesFound accumulates issues with severities.
	IssuesFound []Issue `json:"issues_found,omitempty"`

	// Hypothesis is the current working theory.
	Hypothesis string `json:"hypothesis,omitempty"`

	// Images is the ordered dedup set of image references.
	Images []string `json:"images,omitempty"`

	// Completed is set once next_step_required=false was accepted.
	Completed bool `json:"completed"`

	// ExpertCalled records that the terminal expert analysis ran; it runs at
	// most once per thread.
	ExpertCalled bool `json:"expert_called"`

	// FilesDocumented / TotalFilesToDocument drive the docgen completion gate.
	FilesDocumented      int `json:"files_documented,omitempty"`
	TotalFilesToDocument int `json:"total_files_to_document,omitempty"`
}

// NewWorkflowState returns an empty state.
func NewWorkflowState() *WorkflowState {
	return &WorkflowState{Confidence: ConfidenceExploring}
}

// ConsolidatedFindings joins per-step findings in step order.
func (w *WorkflowState) ConsolidatedFindings() string {
	var out string
	for i, rec := range w.Steps {
		if i > 0 {
			out += "\n\n"
		}
		out += rec.Findings
	}
	return out
}

// Backtrack discards contributions recorded strictly after the given step.
func (w *WorkflowState) Backtrack(fromStep int) {
	kept := w.Steps[:0]
	for _, rec := range w.Steps {
		if rec.Step <= fromStep {
			kept = append(kept, rec)
		}
	}
	w.Steps = kept
	w.StepNumber = fromStep
}

// MergeList appends items to an ordered dedup set.
func MergeList(dst []string, items []string) []string {
	seen := map[string]bool{}
	for _, v := range dst {
		seen[v] = true
	}
	for _, v := range items {
		if v == "" || seen[v] {
			continue
		}
		dst = append(dst, v)
		seen[v] = true
	}
	return dst
}

func (w *WorkflowState) clone() *WorkflowState {
	c := *w
	c.Steps = append([]StepRecord(nil), w.Steps...)
	c.FilesChecked = append([]string(nil), w.FilesChecked...)
	c.RelevantFiles = append([]string(nil), w.RelevantFiles...)
	c.RelevantContext = append([]string(nil), w.RelevantContext...)
	c.IssuesFound = append([]Issue(nil), w.IssuesFound...)
	c.Images = append([]string(nil), w.Images...)
	return &c
}
