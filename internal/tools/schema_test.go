package tools

import (
	"errors"
	"testing"
)

func TestBuildSchemaPrimaryRequired(t *testing.T) {
	tool := &Tool{Name: "x", Kind: KindSimple}
	if err := tool.BuildSchema(false); err != nil {
		t.Fatal(err)
	}

	var ve *ValidationError
	if err := tool.ValidateArgs(map[string]any{}); !errors.As(err, &ve) {
		t.Errorf("missing prompt accepted: %v", err)
	}
	if err := tool.ValidateArgs(map[string]any{"prompt": "hi"}); err != nil {
		t.Errorf("valid args rejected: %v", err)
	}
}

func TestBuildSchemaAutoModeRequiresModel(t *testing.T) {
	tool := &Tool{Name: "x", Kind: KindSimple}
	if err := tool.BuildSchema(true); err != nil {
		t.Fatal(err)
	}
	if err := tool.ValidateArgs(map[string]any{"prompt": "hi"}); err == nil {
		t.Error("auto mode should require an explicit model")
	}
	if err := tool.ValidateArgs(map[string]any{"prompt": "hi", "model": "m"}); err != nil {
		t.Errorf("valid args rejected: %v", err)
	}

	// Local tools never talk to a provider, so no model is required.
	local := &Tool{Name: "version", Kind: KindLocal}
	if err := local.BuildSchema(true); err != nil {
		t.Fatal(err)
	}
	if err := local.ValidateArgs(map[string]any{}); err != nil {
		t.Errorf("local tool rejected empty args: %v", err)
	}
}

func TestValidateArgsEnums(t *testing.T) {
	simple := &Tool{Name: "x", Kind: KindSimple}
	if err := simple.BuildSchema(false); err != nil {
		t.Fatal(err)
	}
	if err := simple.ValidateArgs(map[string]any{"prompt": "hi", "thinking_mode": "bogus"}); err == nil {
		t.Error("unknown thinking_mode accepted")
	}

	wf := &Tool{Name: "w", Kind: KindWorkflow}
	if err := wf.BuildSchema(false); err != nil {
		t.Fatal(err)
	}
	args := map[string]any{
		"step": "s", "step_number": 1, "total_steps": 1,
		"next_step_required": false, "findings": "f",
		"confidence": "sure",
	}
	var ve *ValidationError
	if err := wf.ValidateArgs(args); !errors.As(err, &ve) {
		t.Errorf("unknown confidence accepted: %v", err)
	}
	args["confidence"] = "almost_certain"
	if err := wf.ValidateArgs(args); err != nil {
		t.Errorf("valid confidence rejected: %v", err)
	}
}

func TestValidateArgsWorkflowRequired(t *testing.T) {
	wf := &Tool{Name: "w", Kind: KindWorkflow}
	if err := wf.BuildSchema(false); err != nil {
		t.Fatal(err)
	}
	if err := wf.ValidateArgs(map[string]any{"step": "s"}); err == nil {
		t.Error("step submission without counters accepted")
	}
}

func TestStrictSchemaRejectsUnknownFields(t *testing.T) {
	tool := &Tool{Name: "x", Kind: KindSimple, StrictSchema: true}
	if err := tool.BuildSchema(false); err != nil {
		t.Fatal(err)
	}
	if err := tool.ValidateArgs(map[string]any{"prompt": "hi", "surprise": 1}); err == nil {
		t.Error("unknown field accepted under strict schema")
	}
}

func TestRegistryDisabledTools(t *testing.T) {
	reg, err := NewRegistry(false, map[string]bool{"chat": true, "version": true})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := reg.Get("chat"); ok {
		t.Error("disabled tool still served")
	}
	// Utility tools ignore the disable list.
	if _, ok := reg.Get("version"); !ok {
		t.Error("version tool should never be disabled")
	}
	if _, ok := reg.Get("debug"); !ok {
		t.Error("debug missing from default set")
	}
}

func TestRegistryFullCatalogue(t *testing.T) {
	reg, err := NewRegistry(false, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"chat", "thinkdeep", "analyze", "debug", "codereview", "precommit",
		"consensus", "planner", "refactor", "testgen", "docgen", "tracer",
		"secaudit", "version", "listmodels",
	}
	got := reg.Names()
	if len(got) != len(want) {
		t.Fatalf("Names = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	for _, tool := range reg.List() {
		if len(tool.RawSchema()) == 0 {
			t.Errorf("%s has no compiled schema", tool.Name)
		}
	}
}
