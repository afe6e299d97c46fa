package tool

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"codepilot/internal/domain"
	"codepilot/internal/skill"
)

func TestQuestionTool_EmitsSentinel(t *testing.T) {
	qt := NewQuestionTool()

	resp, err := qt.Execute(context.Background(), map[string]any{
		"questions": []any{"Which directory?", "Overwrite existing files?"},
	})
	if err != nil {
		t.Fatalf("question failed: %v", err)
	}
	if resp.Content != domain.QuestionSentinel {
		t.Errorf("content must be the sentinel, got %q", resp.Content)
	}
	qs := resp.Data["questions"].([]string)
	if len(qs) != 2 {
		t.Errorf("questions = %v", qs)
	}
}

func TestQuestionTool_EmptyRejected(t *testing.T) {
	qt := NewQuestionTool()
	if _, err := qt.Execute(context.Background(), map[string]any{"questions": []any{}}); err == nil {
		t.Error("empty question list must be rejected")
	}
	if _, err := qt.Execute(context.Background(), map[string]any{"questions": "not an array"}); err == nil {
		t.Error("non-array questions must be rejected")
	}
}

func TestTodoTool_ReplacesWholesale(t *testing.T) {
	tt := NewTodoTool()

	_, err := tt.Execute(context.Background(), map[string]any{
		"todos": []any{
			map[string]any{"content": "step one", "status": "completed"},
			map[string]any{"content": "step two", "status": "pending"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	resp, err := tt.Execute(context.Background(), map[string]any{
		"todos": []any{map[string]any{"content": "only item", "status": "pending"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resp.Content, "1 item") {
		t.Errorf("content = %q", resp.Content)
	}
	if got := tt.List(); len(got) != 1 || got[0]["content"] != "only item" {
		t.Errorf("list not replaced: %v", got)
	}
}

func TestWebFetchTool_TextFormatStripsTags(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html><body><h1>Title</h1><p>Hello &amp; welcome</p></body></html>")
	}))
	defer srv.Close()

	wf := NewWebFetchTool()
	resp, err := wf.Execute(context.Background(), map[string]any{"url": srv.URL, "format": "text"})
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if strings.Contains(resp.Content, "<") {
		t.Errorf("tags not stripped: %q", resp.Content)
	}
	if !strings.Contains(resp.Content, "Hello & welcome") {
		t.Errorf("entities not unescaped: %q", resp.Content)
	}
}

func TestWebFetchTool_OutputCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, strings.Repeat("x", fetchMaxOutput+500))
	}))
	defer srv.Close()

	wf := NewWebFetchTool()
	resp, err := wf.Execute(context.Background(), map[string]any{"url": srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Content) != fetchMaxOutput {
		t.Errorf("output not capped: %d", len(resp.Content))
	}
	if resp.Data["size"] != fetchMaxOutput+500 {
		t.Errorf("size = %v", resp.Data["size"])
	}
}

func TestWebFetchTool_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	wf := NewWebFetchTool()
	if _, err := wf.Execute(context.Background(), map[string]any{"url": srv.URL}); err == nil {
		t.Error("expected error for 404")
	}
}

func TestSkillTool_LoadsBuiltin(t *testing.T) {
	lib := skill.NewLibrary(testLogger())
	st := NewSkillTool(lib)

	resp, err := st.Execute(context.Background(), map[string]any{"name": "code-review"})
	if err != nil {
		t.Fatalf("skill failed: %v", err)
	}
	if resp.Content == "" {
		t.Error("skill body must be returned")
	}
}

func TestSkillTool_UnknownListsAvailable(t *testing.T) {
	lib := skill.NewLibrary(testLogger())
	st := NewSkillTool(lib)

	_, err := st.Execute(context.Background(), map[string]any{"name": "nope"})
	if err == nil {
		t.Fatal("expected error for unknown skill")
	}
	if !strings.Contains(err.Error(), "code-review") {
		t.Errorf("available skills not listed: %v", err)
	}
}

func TestSessionDetailTool(t *testing.T) {
	detail := func(_ context.Context, sessionID string, seq int) (string, error) {
		return "step detail text", nil
	}
	st := NewSessionDetailTool(stepDetailerFunc(detail), func() string { return "s-1" })

	resp, err := st.Execute(context.Background(), map[string]any{"stepNumber": float64(2)})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "step detail text" {
		t.Errorf("content = %q", resp.Content)
	}

	if _, err := st.Execute(context.Background(), map[string]any{"stepNumber": float64(0)}); err == nil {
		t.Error("non-positive step number must fail")
	}
}

// stepDetailerFunc adapts a function to the StepDetailer interface.
type stepDetailerFunc func(ctx context.Context, sessionID string, seq int) (string, error)

func (f stepDetailerFunc) StepDetail(ctx context.Context, sessionID string, seq int) (string, error) {
	return f(ctx, sessionID, seq)
}
