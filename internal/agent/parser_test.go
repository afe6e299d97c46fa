package agent

import (
	"testing"
)

func TestExtractToolCalls_PureJSON(t *testing.T) {
	calls := extractToolCallsFromContent(`{"name":"bash","arguments":{"command":"ls"}}`)
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if calls[0].Name != "bash" {
		t.Errorf("name = %q", calls[0].Name)
	}
	if calls[0].Arguments["command"] != "ls" {
		t.Errorf("arguments = %v", calls[0].Arguments)
	}
}

func TestExtractToolCalls_CodeFenced(t *testing.T) {
	content := "```json\n{\"name\":\"read\",\"arguments\":{\"filePath\":\"a.txt\"}}\n```"
	calls := extractToolCallsFromContent(content)
	if len(calls) != 1 || calls[0].Name != "read" {
		t.Fatalf("fenced JSON not extracted: %+v", calls)
	}
}

func TestExtractToolCalls_SurroundedByText(t *testing.T) {
	content := "Sure, I'll run that now.\n{\"name\":\"bash\",\"arguments\":{\"command\":\"pwd\"}}\nLet me check the result."
	calls := extractToolCallsFromContent(content)
	if len(calls) != 1 || calls[0].Name != "bash" {
		t.Fatalf("embedded JSON not extracted: %+v", calls)
	}
}

func TestExtractToolCalls_Array(t *testing.T) {
	content := `[{"name":"read","arguments":{"filePath":"a"}},{"name":"read","arguments":{"filePath":"b"}}]`
	calls := extractToolCallsFromContent(content)
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
}

func TestExtractToolCalls_ParametersKey(t *testing.T) {
	calls := extractToolCallsFromContent(`{"name":"glob","parameters":{"pattern":"*.go"}}`)
	if len(calls) != 1 {
		t.Fatal("parameters key not accepted")
	}
	if calls[0].Arguments["pattern"] != "*.go" {
		t.Errorf("arguments = %v", calls[0].Arguments)
	}
}

func TestExtractToolCalls_PlainProse(t *testing.T) {
	if calls := extractToolCallsFromContent("I created the file you asked for."); calls != nil {
		t.Errorf("prose must yield no calls, got %+v", calls)
	}
}

func TestExtractToolCalls_InvalidEscapes(t *testing.T) {
	// \% is not a valid JSON escape; the sanitizer drops the backslash.
	content := `{"name":"bash","arguments":{"command":"grep 100\% done"}}`
	calls := extractToolCallsFromContent(content)
	if len(calls) != 1 {
		t.Fatalf("sanitized JSON not extracted: %+v", calls)
	}
}

func TestNormalizeToolName(t *testing.T) {
	cases := map[string]string{
		"shell":      "bash",
		"exec":       "bash",
		"read_file":  "read",
		"write_file": "write",
		"web_fetch":  "webfetch",
		"bash":       "bash",
		"unknown":    "unknown",
	}
	for in, want := range cases {
		if got := normalizeToolName(in); got != want {
			t.Errorf("normalizeToolName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFindJSONBounds_IgnoresBracesInStrings(t *testing.T) {
	s := `prefix {"name":"bash","arguments":{"command":"echo {not json}"}} suffix`
	start, end := findJSONBounds(s)
	if start < 0 {
		t.Fatal("bounds not found")
	}
	if s[start] != '{' || s[end-1] != '}' {
		t.Errorf("bad bounds %d:%d -> %q", start, end, s[start:end])
	}
	if calls := extractToolCallsFromContent(s); len(calls) != 1 {
		t.Errorf("call not extracted from %q", s)
	}
}
