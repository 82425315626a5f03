package viz

import (
	"strings"
	"testing"
)

func TestTree_SingleNode(t *testing.T) {
	result := Tree(NodeInfo{Type: "Application", ID: "app1"}, 80)

	if !strings.Contains(result, "Archive app1 (1 operations)") {
		t.Errorf("expected header, got:\n%s", result)
	}
	if !strings.Contains(result, "Application app1") {
		t.Errorf("expected node label, got:\n%s", result)
	}
}

func TestTree_Connectors(t *testing.T) {
	root := NodeInfo{
		Type: "Application", ID: "app1",
		Children: []NodeInfo{
			{Type: "Job", ID: "job1", Children: []NodeInfo{
				{Type: "Stage", ID: "stage1"},
			}},
			{Type: "Job", ID: "job2"},
		},
	}

	result := Tree(root, 80)

	if !strings.Contains(result, "├─ Job job1") {
		t.Errorf("expected mid connector, got:\n%s", result)
	}
	if !strings.Contains(result, "└─ Job job2") {
		t.Errorf("expected last connector, got:\n%s", result)
	}
	if !strings.Contains(result, "│  └─ Stage stage1") {
		t.Errorf("expected nested connector with pipe, got:\n%s", result)
	}
	if !strings.Contains(result, "4 operations") {
		t.Errorf("expected operation count, got:\n%s", result)
	}
}

func TestTree_FieldsRendered(t *testing.T) {
	root := NodeInfo{
		Type: "Job", ID: "job1",
		Fields: []FieldInfo{{Name: "duration", Value: "120"}, {Name: "result", Value: "ok"}},
	}

	result := Tree(root, 80)
	if !strings.Contains(result, "[duration=120 result=ok]") {
		t.Errorf("expected fields in order, got:\n%s", result)
	}
}

func TestTree_WidthTruncation(t *testing.T) {
	root := NodeInfo{
		Type: "Application", ID: strings.Repeat("x", 100),
	}

	result := Tree(root, 40)
	for _, line := range strings.Split(result, "\n") {
		// The ellipsis rune is wider in bytes than in columns.
		if len([]rune(line)) > 40 {
			t.Errorf("line exceeds width: %q", line)
		}
	}
}

func TestSummary(t *testing.T) {
	stats := []TypeStats{
		{Type: "Application", Count: 1},
		{Type: "Job", Count: 4, Unlinked: 1},
		{Type: "Task", Count: 40},
	}

	result := Summary(stats, 2)

	if !strings.Contains(result, "Operations (3 types, 45 models)") {
		t.Errorf("expected header, got:\n%s", result)
	}
	if !strings.Contains(result, "(1 unlinked)") {
		t.Errorf("expected unlinked annotation, got:\n%s", result)
	}
	if !strings.Contains(result, "2 build errors") {
		t.Errorf("expected error count, got:\n%s", result)
	}
	// Largest type gets the full bar.
	if !strings.Contains(result, strings.Repeat("#", 20)) {
		t.Errorf("expected full bar for Task, got:\n%s", result)
	}
}

func TestSummary_Empty(t *testing.T) {
	if got := Summary(nil, 0); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}
