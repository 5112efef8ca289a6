package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/haasonsaas/zen/internal/catalog"
	"github.com/haasonsaas/zen/internal/conversation"
	"github.com/haasonsaas/zen/internal/providers"
)

// Registry is the set of served tools, in registration order.
type Registry struct {
	order  []*Tool
	byName map[string]*Tool
}

// NewRegistry builds the tool set, drops disabled tools, and compiles every
// schema. The utility tools ignore the disable list.
func NewRegistry(autoMode bool, disabled map[string]bool) (*Registry, error) {
	r := &Registry{byName: map[string]*Tool{}}
	for _, t := range buildTools() {
		if disabled[t.Name] && t.Kind != KindLocal {
			continue
		}
		if err := t.BuildSchema(autoMode); err != nil {
			return nil, err
		}
		r.order = append(r.order, t)
		r.byName[t.Name] = t
	}
	return r, nil
}

// Get returns the named tool.
func (r *Registry) Get(name string) (*Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// List returns the tools in registration order.
func (r *Registry) List() []*Tool { return r.order }

// Names returns the served tool names in order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	for i, t := range r.order {
		out[i] = t.Name
	}
	return out
}

// requireRelevantFiles refuses progress past the first step, and completion,
// until the investigation has named at least one relevant file.
func requireRelevantFiles(st *conversation.WorkflowState, req *WorkflowRequest) error {
	if req.StepNumber < 2 && req.NextStepRequired {
		return nil
	}
	if len(st.RelevantFiles) == 0 && len(req.RelevantFiles) == 0 {
		return &PreconditionError{
			Name:    "relevant_files_missing",
			Message: "identify at least one relevant file before continuing",
		}
	}
	return nil
}

// docgenGate keeps the documentation counters consistent and refuses
// completion while files remain undocumented.
func docgenGate(st *conversation.WorkflowState, req *WorkflowRequest) error {
	total := req.TotalFilesToDocument
	if total == 0 {
		total = st.TotalFilesToDocument
	}
	if req.StepNumber >= 2 && total == 0 {
		return &PreconditionError{
			Name:    "file_count_missing",
			Message: "report total_files_to_document from the discovery step",
		}
	}
	if req.NumFilesDocumented > total {
		return &ValidationError{
			Field:   "num_files_documented",
			Message: fmt.Sprintf("%d documented exceeds the %d total", req.NumFilesDocumented, total),
		}
	}
	if !req.NextStepRequired && req.NumFilesDocumented < total {
		return &PreconditionError{
			Name:    "documentation_incomplete",
			Message: fmt.Sprintf("%d of %d files documented; finish the rest before completing", req.NumFilesDocumented, total),
		}
	}
	return nil
}

// consensusGate requires the model list on the terminal step.
func consensusGate(_ *conversation.WorkflowState, req *WorkflowRequest) error {
	if !req.NextStepRequired && len(req.Models) == 0 {
		return &PreconditionError{
			Name:    "models_missing",
			Message: "name the models to consult before requesting the consensus",
		}
	}
	return nil
}

func skipWhenCertain(st *conversation.WorkflowState) bool {
	return st.Confidence == conversation.ConfidenceCertain
}

func alwaysSkip(*conversation.WorkflowState) bool { return true }

func investigationActions(step int, confidence string) []string {
	if step == 1 {
		return []string{
			"Read the code paths involved and record what each does.",
			"List every file examined in files_checked, even dead ends.",
			"Report findings and an initial hypothesis in the next step.",
		}
	}
	if conversation.ConfidenceRank(confidence) >= conversation.ConfidenceRank(conversation.ConfidenceHigh) {
		return []string{
			"Verify the hypothesis against the actual code once more.",
			"Confirm relevant_files covers everything the conclusion depends on.",
		}
	}
	return []string{
		"Follow the strongest lead from the current findings.",
		"Narrow the hypothesis and update the confidence level.",
	}
}

func reviewActions(step int, _ string) []string {
	if step == 1 {
		return []string{
			"Read the target files end to end before judging them.",
			"Record every file examined and mark the relevant ones.",
		}
	}
	return []string{
		"Check the remaining review dimensions: security, performance, maintainability.",
		"Attach a severity to every issue recorded.",
	}
}

func planActions(step int, _ string) []string {
	if step == 1 {
		return []string{"Break the goal into its major phases before detailing any step."}
	}
	return []string{"Detail the next phase, including how to verify it is done."}
}

// buildTools constructs the full tool catalogue.
func buildTools() []*Tool {
	return []*Tool{
		{
			Name:               "chat",
			Description:        "General development chat: brainstorming, second opinions, explanations, and technology comparisons. Accepts files and images for context.",
			Kind:               KindSimple,
			PrimaryField:       "prompt",
			SystemPrompt:       chatPrompt,
			Category:           catalog.CategoryBalanced,
			DefaultTemperature: 0.5,
		},
		{
			Name:               "thinkdeep",
			Description:        "Multi-step deep reasoning on a hard problem: extends and challenges an existing analysis, then gets expert validation.",
			Kind:               KindWorkflow,
			PrimaryField:       "findings",
			SystemPrompt:       thinkdeepPrompt,
			Category:           catalog.CategoryReasoning,
			DefaultTemperature: 0.7,
			DefaultThinking:    string(providers.ThinkingHigh),
			RequiredActions:    investigationActions,
			SkipExpert:         skipWhenCertain,
		},
		{
			Name:               "analyze",
			Description:        "Holistic code analysis: architecture, scalability, maintainability, and strategic fit of a codebase or component.",
			Kind:               KindWorkflow,
			PrimaryField:       "findings",
			SystemPrompt:       analyzePrompt,
			Category:           catalog.CategoryBalanced,
			DefaultTemperature: 0.3,
			RequiredActions:    investigationActions,
			SkipExpert:         skipWhenCertain,
		},
		{
			Name:               "debug",
			Description:        "Systematic root cause analysis: step-by-step investigation of a bug with hypothesis tracking, then expert validation of the diagnosis.",
			Kind:               KindWorkflow,
			PrimaryField:       "findings",
			SystemPrompt:       debugPrompt,
			Category:           catalog.CategoryReasoning,
			DefaultTemperature: 0.2,
			DefaultThinking:    string(providers.ThinkingMedium),
			RequiredActions:    investigationActions,
			SkipExpert:         skipWhenCertain,
		},
		{
			Name:               "codereview",
			Description:        "Structured code review across correctness, security, performance, and maintainability, with severity-ranked findings.",
			Kind:               KindWorkflow,
			PrimaryField:       "findings",
			SystemPrompt:       codereviewPrompt,
			Category:           catalog.CategoryBalanced,
			DefaultTemperature: 0.2,
			LineNumbers:        true,
			RequiredActions:    reviewActions,
			Precondition:       requireRelevantFiles,
			SkipExpert:         skipWhenCertain,
		},
		{
			Name:               "precommit",
			Description:        "Pre-commit validation of pending changes: completeness, regressions, secrets, and test coverage before the change lands.",
			Kind:               KindWorkflow,
			PrimaryField:       "findings",
			SystemPrompt:       precommitPrompt,
			Category:           catalog.CategoryBalanced,
			DefaultTemperature: 0.2,
			LineNumbers:        true,
			RequiredActions:    reviewActions,
			Precondition:       requireRelevantFiles,
		},
		{
			Name:               "consensus",
			Description:        "Gathers structured opinions from several models, each arguing an assigned stance, and synthesizes the result.",
			Kind:               KindWorkflow,
			PrimaryField:       "findings",
			SystemPrompt:       consensusPrompt,
			Category:           catalog.CategoryBalanced,
			DefaultTemperature: 0.2,
			ExtraProperties: map[string]any{
				"models": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"model":  map[string]any{"type": "string"},
							"stance": map[string]any{"type": "string", "enum": []string{"for", "against", "neutral"}},
						},
						"required": []string{"model"},
					},
					"description": "Models to consult on the terminal step, each with an optional stance.",
				},
			},
			Precondition: consensusGate,
			RunExpert:    consensusExpert,
		},
		{
			Name:               "planner",
			Description:        "Interactive step-by-step planning with revision and branching; produces the plan itself rather than a model analysis.",
			Kind:               KindWorkflow,
			PrimaryField:       "step",
			SystemPrompt:       plannerPrompt,
			Category:           catalog.CategoryBalanced,
			DefaultTemperature: 0.5,
			RequiredActions:    planActions,
			SkipExpert:         alwaysSkip,
		},
		{
			Name:               "refactor",
			Description:        "Refactoring analysis: decomposition opportunities, code smells, and modernization, ranked by structural impact.",
			Kind:               KindWorkflow,
			PrimaryField:       "findings",
			SystemPrompt:       refactorPrompt,
			Category:           catalog.CategoryBalanced,
			DefaultTemperature: 0.3,
			LineNumbers:        true,
			RequiredActions:    reviewActions,
			Precondition:       requireRelevantFiles,
			SkipExpert:         skipWhenCertain,
		},
		{
			Name:               "testgen",
			Description:        "Test generation grounded in an investigation of the code under test: critical paths, boundary conditions, and failure modes.",
			Kind:               KindWorkflow,
			PrimaryField:       "findings",
			SystemPrompt:       testgenPrompt,
			Category:           catalog.CategoryBalanced,
			DefaultTemperature: 0.2,
			LineNumbers:        true,
			RequiredActions:    investigationActions,
			Precondition:       requireRelevantFiles,
		},
		{
			Name:               "docgen",
			Description:        "Documentation generation with per-file progress tracking; refuses to finish while counted files remain undocumented.",
			Kind:               KindWorkflow,
			PrimaryField:       "findings",
			SystemPrompt:       docgenPrompt,
			Category:           catalog.CategoryBalanced,
			DefaultTemperature: 0.3,
			ExtraProperties: map[string]any{
				"num_files_documented": map[string]any{
					"type":        "integer",
					"minimum":     0,
					"description": "Files fully documented so far.",
				},
				"total_files_to_document": map[string]any{
					"type":        "integer",
					"minimum":     0,
					"description": "Total files the discovery step counted.",
				},
			},
			RequiredActions: func(step int, _ string) []string {
				if step == 1 {
					return []string{"Count the files needing documentation and report the total."}
				}
				return []string{"Document the next file completely, then update num_files_documented."}
			},
			Precondition: docgenGate,
			SkipExpert:   alwaysSkip,
		},
		{
			Name:               "tracer",
			Description:        "Execution-flow or dependency tracing for a method, class, or module, producing a structured call map.",
			Kind:               KindWorkflow,
			PrimaryField:       "findings",
			SystemPrompt:       tracerPrompt,
			Category:           catalog.CategoryBalanced,
			DefaultTemperature: 0.2,
			LineNumbers:        true,
			ExtraProperties: map[string]any{
				"trace_mode": map[string]any{
					"type":        "string",
					"enum":        []string{"precision", "dependencies", "ask"},
					"description": "precision traces execution flow; dependencies maps structural relationships.",
				},
			},
			RequiredActions: investigationActions,
			SkipExpert:      skipWhenCertain,
		},
		{
			Name:               "secaudit",
			Description:        "Security audit against the OWASP Top 10: severity-ranked vulnerabilities with attack scenarios and remediations.",
			Kind:               KindWorkflow,
			PrimaryField:       "findings",
			SystemPrompt:       secauditPrompt,
			Category:           catalog.CategoryReasoning,
			DefaultTemperature: 0.2,
			DefaultThinking:    string(providers.ThinkingMedium),
			LineNumbers:        true,
			RequiredActions:    reviewActions,
			Precondition:       requireRelevantFiles,
			SkipExpert:         skipWhenCertain,
		},
		{
			Name:        "version",
			Description: "Reports the server version, configuration, and the served tool list.",
			Kind:        KindLocal,
			Local:       versionTool,
		},
		{
			Name:        "listmodels",
			Description: "Lists the available models grouped by provider, with aliases and capabilities.",
			Kind:        KindLocal,
			Local:       listModelsTool,
		},
	}
}

// consensusExpert consults each requested model with its assigned stance and
// stitches the answers together. One model failing does not sink the others.
func consensusExpert(ctx context.Context, rt *Runtime, t *Tool, st *conversation.WorkflowState, req *WorkflowRequest) (*ExpertResult, error) {
	summary := investigationSummary(st)
	var sections []string
	var usage providers.Usage
	var served []string
	failures := 0

	for _, m := range req.Models {
		driver, canonical, err := rt.Providers.PickDriver(m.Model)
		if err != nil {
			sections = append(sections, fmt.Sprintf("## %s\n[unavailable: %v]", m.Model, err))
			failures++
			continue
		}
		cap, ok := driver.Capabilities(canonical)
		if !ok {
			sections = append(sections, fmt.Sprintf("## %s\n[unavailable: no capability descriptor]", m.Model))
			failures++
			continue
		}

		temp := req.Temperature
		if temp == nil {
			v := t.DefaultTemperature
			temp = &v
		}
		greq := &providers.GenerateRequest{
			Model:        canonical,
			Prompt:       summary + "\n\nProposal under discussion:\n" + req.Step,
			SystemPrompt: rt.systemPrompt(t, req.Locale) + stanceInstruction(m.Stance),
			Temperature:  temp,
		}
		resp, err := rt.callProvider(ctx, driver, callTimeout(cap.Category, ""), greq)
		if err != nil {
			sections = append(sections, fmt.Sprintf("## %s (%s)\n[failed: %v]", canonical, stanceName(m.Stance), err))
			failures++
			continue
		}
		sections = append(sections, fmt.Sprintf("## %s (%s)\n%s", canonical, stanceName(m.Stance), resp.Content))
		usage.InputTokens += resp.Usage.InputTokens
		usage.OutputTokens += resp.Usage.OutputTokens
		served = append(served, canonical)
	}
	usage.TotalTokens = usage.InputTokens + usage.OutputTokens

	if len(served) == 0 {
		return nil, fmt.Errorf("consensus: all %d model consultations failed", len(req.Models))
	}

	content := "# Consensus\n\n" + strings.Join(sections, "\n\n")
	return &ExpertResult{
		Content:  content,
		Model:    strings.Join(served, ","),
		Provider: "consensus",
		Usage:    usage,
		Extra: map[string]any{
			"models_consulted": served,
			"models_failed":    failures,
		},
	}, nil
}

func stanceInstruction(stance string) string {
	switch stance {
	case "for":
		return "\n\nTake the supportive stance: argue the strongest honest case for this proposal while conceding its real risks."
	case "against":
		return "\n\nTake the critical stance: argue the strongest honest case against this proposal while conceding its real strengths."
	default:
		return "\n\nTake a neutral stance: weigh the proposal on its merits."
	}
}

func stanceName(stance string) string {
	if stance == "" {
		return "neutral"
	}
	return stance
}

// versionTool reports server identity and configuration without a provider
// call.
func versionTool(_ context.Context, rt *Runtime, _ map[string]any) (*Envelope, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Zen MCP Server %s\n\n", rt.Version)
	fmt.Fprintf(&sb, "Default model: %s\n", rt.DefaultModel)
	fmt.Fprintf(&sb, "Providers: %s\n", strings.Join(rt.Providers.Tags(), ", "))
	if rt.Registry != nil {
		fmt.Fprintf(&sb, "Tools: %s\n", strings.Join(rt.Registry.Names(), ", "))
	}
	return &Envelope{
		Status:      StatusSuccess,
		Content:     sb.String(),
		ContentType: "text",
		Metadata:    Metadata{Tool: "version", Extra: map[string]any{"version": rt.Version}},
	}, nil
}

// listModelsTool renders the available models grouped by provider.
func listModelsTool(_ context.Context, rt *Runtime, _ map[string]any) (*Envelope, error) {
	available := rt.Providers.ListAvailable()
	grouped := map[string][]providers.Available{}
	for _, a := range available {
		grouped[a.Provider] = append(grouped[a.Provider], a)
	}
	tags := make([]string, 0, len(grouped))
	for tag := range grouped {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	var sb strings.Builder
	sb.WriteString("# Available Models\n")
	for _, tag := range tags {
		fmt.Fprintf(&sb, "\n## %s\n", tag)
		for _, a := range grouped[tag] {
			cap := a.Capability
			fmt.Fprintf(&sb, "- %s", cap.Name)
			if len(cap.Aliases) > 0 {
				fmt.Fprintf(&sb, " (aliases: %s)", strings.Join(cap.Aliases, ", "))
			}
			fmt.Fprintf(&sb, ", context %dk", cap.ContextWindow/1000)
			if cap.SupportsThinking {
				sb.WriteString(", thinking")
			}
			if cap.SupportsVision {
				sb.WriteString(", vision")
			}
			if cap.Description != "" {
				fmt.Fprintf(&sb, "\n  %s", cap.Description)
			}
			sb.WriteByte('\n')
		}
	}
	if len(available) == 0 {
		sb.WriteString("\nNo models available: no provider is configured.\n")
	}
	return &Envelope{
		Status:      StatusSuccess,
		Content:     sb.String(),
		ContentType: "text",
		Metadata:    Metadata{Tool: "listmodels", Extra: map[string]any{"count": len(available)}},
	}, nil
}
