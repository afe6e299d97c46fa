package tool

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"codepilot/internal/domain"
)

const (
	defaultReadLimit = 2000
	maxLineChars     = 2000
)

// --- ReadTool ---

// ReadTool reads a file from the workspace with line offset and limit.
type ReadTool struct {
	ws Workspace
}

func NewReadTool(ws Workspace) *ReadTool {
	return &ReadTool{ws: ws}
}

func (t *ReadTool) Name() string { return "read" }
func (t *ReadTool) Description() string {
	return "Read the contents of a file. Long lines are truncated; use offset/limit to page through large files."
}
func (t *ReadTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"filePath": {Type: "string", Description: "File path to read (relative to the workspace)"},
			"limit":    {Type: "integer", Description: "Maximum number of lines to return (default 2000)"},
			"offset":   {Type: "integer", Description: "Number of leading lines to skip"},
		},
		[]string{"filePath"},
	)
}

func (t *ReadTool) Execute(ctx context.Context, args map[string]any) (domain.Response, error) {
	path := ArgsString(args, "filePath")
	if path == "" {
		return domain.Response{}, fmt.Errorf("missing argument: filePath")
	}
	limit := ArgsInt(args, "limit", defaultReadLimit)
	if limit <= 0 {
		limit = defaultReadLimit
	}
	offset := ArgsInt(args, "offset", 0)

	resolved := t.ws.Resolve(path)
	info, err := os.Stat(resolved)
	if err != nil {
		return domain.Response{}, fmt.Errorf("file does not exist: %s", path)
	}
	if info.IsDir() {
		return domain.Response{}, fmt.Errorf("path is a directory, not a file: %s", path)
	}

	f, err := os.Open(resolved)
	if err != nil {
		return domain.Response{}, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	var lines []string
	truncated := false
	lineNumber := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lineNumber++
		if lineNumber <= offset {
			continue
		}
		line := scanner.Text()
		if len(line) > maxLineChars {
			line = line[:maxLineChars]
		}
		lines = append(lines, line)
		if len(lines) >= limit {
			truncated = true
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return domain.Response{}, fmt.Errorf("read file: %w", err)
	}

	content := strings.Join(lines, "\n")
	return domain.Response{
		Content: content,
		Data: map[string]any{
			"path":      resolved,
			"size":      len(content),
			"lines":     len(lines),
			"truncated": truncated,
		},
	}, nil
}

// --- WriteTool ---

// WriteTool writes content to a file, creating parent directories as needed.
type WriteTool struct {
	ws Workspace
}

func NewWriteTool(ws Workspace) *WriteTool {
	return &WriteTool{ws: ws}
}

func (t *WriteTool) Name() string { return "write" }
func (t *WriteTool) Description() string {
	return "Write content to a file. Creates the file if it does not exist; overwrites if it exists."
}
func (t *WriteTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"filePath": {Type: "string", Description: "File path to write (relative to the workspace)"},
			"content":  {Type: "string", Description: "Content to write to the file"},
		},
		[]string{"filePath", "content"},
	)
}

func (t *WriteTool) Execute(ctx context.Context, args map[string]any) (domain.Response, error) {
	path := ArgsString(args, "filePath")
	if path == "" {
		return domain.Response{}, fmt.Errorf("missing argument: filePath")
	}
	content := ArgsString(args, "content")

	resolved := t.ws.Resolve(path)
	if info, err := os.Stat(resolved); err == nil && info.IsDir() {
		return domain.Response{}, fmt.Errorf("path is a directory, not a file: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return domain.Response{}, fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return domain.Response{}, fmt.Errorf("write file: %w", err)
	}

	return domain.Response{
		Content: fmt.Sprintf("file saved: %s", resolved),
		Data: map[string]any{
			"path": resolved,
			"size": len(content),
		},
	}, nil
}

// --- EditTool ---

// EditTool replaces text in an existing file. Without replaceAll the target
// text must occur exactly once; the edit is all-or-nothing.
type EditTool struct {
	ws Workspace
}

func NewEditTool(ws Workspace) *EditTool {
	return &EditTool{ws: ws}
}

func (t *EditTool) Name() string { return "edit" }
func (t *EditTool) Description() string {
	return "Replace oldString with newString in a file. oldString must match exactly once unless replaceAll is set."
}
func (t *EditTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"filePath":   {Type: "string", Description: "File path to edit (relative to the workspace)"},
			"oldString":  {Type: "string", Description: "Exact text to replace"},
			"newString":  {Type: "string", Description: "Replacement text"},
			"replaceAll": {Type: "boolean", Description: "Replace every occurrence instead of requiring a single match"},
		},
		[]string{"filePath", "oldString", "newString"},
	)
}

func (t *EditTool) Execute(ctx context.Context, args map[string]any) (domain.Response, error) {
	path := ArgsString(args, "filePath")
	oldString := ArgsString(args, "oldString")
	if path == "" || oldString == "" {
		return domain.Response{}, fmt.Errorf("missing required arguments (filePath, oldString, newString)")
	}
	newString := ArgsString(args, "newString")
	replaceAll := ArgsBool(args, "replaceAll")

	resolved := t.ws.Resolve(path)
	data, err := os.ReadFile(resolved)
	if err != nil {
		return domain.Response{}, fmt.Errorf("file does not exist: %s", path)
	}
	content := string(data)

	count := strings.Count(content, oldString)
	if count == 0 {
		return domain.Response{}, fmt.Errorf("no match for oldString in %s", path)
	}
	if count > 1 && !replaceAll {
		return domain.Response{}, fmt.Errorf("oldString occurs %d times in %s; pass replaceAll to replace every occurrence", count, path)
	}

	replaced := count
	var updated string
	if replaceAll {
		updated = strings.ReplaceAll(content, oldString, newString)
	} else {
		updated = strings.Replace(content, oldString, newString, 1)
		replaced = 1
	}

	if err := os.WriteFile(resolved, []byte(updated), 0o644); err != nil {
		return domain.Response{}, fmt.Errorf("write file: %w", err)
	}

	return domain.Response{
		Content: fmt.Sprintf("replacement applied (%d occurrence(s))", replaced),
		Data: map[string]any{
			"path": resolved,
			"size": len(updated),
		},
	}, nil
}

// Compile-time interface checks.
var (
	_ domain.Tool = (*ReadTool)(nil)
	_ domain.Tool = (*WriteTool)(nil)
	_ domain.Tool = (*EditTool)(nil)
)
