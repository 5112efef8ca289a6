package conversation

import "testing"

func TestConsolidatedFindings(t *testing.T) {
	st := NewWorkflowState()
	st.Steps = []StepRecord{
		{Step: 1, Findings: "found the handler"},
		{Step: 2, Findings: "handler drops the error"},
	}
	got := st.ConsolidatedFindings()
	want := "found the handler\n\nhandler drops the error"
	if got != want {
		t.Errorf("ConsolidatedFindings = %q, want %q", got, want)
	}
}

func TestBacktrack(t *testing.T) {
	st := NewWorkflowState()
	st.Steps = []StepRecord{
		{Step: 1, Findings: "a"},
		{Step: 2, Findings: "b"},
		{Step: 3, Findings: "c"},
	}
	st.StepNumber = 3

	st.Backtrack(1)
	if st.StepNumber != 1 {
		t.Errorf("StepNumber = %d, want 1", st.StepNumber)
	}
	if len(st.Steps) != 1 || st.Steps[0].Findings != "a" {
		t.Errorf("Steps after backtrack = %v", st.Steps)
	}
}

func TestMergeList(t *testing.T) {
	got := MergeList([]string{"/a.go", "/b.go"}, []string{"/b.go", "", "/c.go", "/a.go"})
	want := []string{"/a.go", "/b.go", "/c.go"}
	if len(got) != len(want) {
		t.Fatalf("MergeList = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("MergeList[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestConfidenceOrdering(t *testing.T) {
	levels := []string{
		ConfidenceExploring, ConfidenceLow, ConfidenceMedium, ConfidenceHigh,
		ConfidenceVeryHigh, ConfidenceAlmostCertain, ConfidenceCertain,
	}
	for i := 1; i < len(levels); i++ {
		if ConfidenceRank(levels[i]) <= ConfidenceRank(levels[i-1]) {
			t.Errorf("%s should rank above %s", levels[i], levels[i-1])
		}
	}
	if ValidConfidence("sure") {
		t.Error("unknown level accepted")
	}
	if !ValidConfidence(ConfidenceCertain) {
		t.Error("certain rejected")
	}
}
