package tool

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"codepilot/internal/domain"
)

// maxSearchResults caps both glob and grep result lists.
const maxSearchResults = 100

// --- GlobTool ---

// GlobTool finds files whose names match a glob pattern under a directory.
type GlobTool struct {
	ws Workspace
}

func NewGlobTool(ws Workspace) *GlobTool {
	return &GlobTool{ws: ws}
}

func (t *GlobTool) Name() string { return "glob" }
func (t *GlobTool) Description() string {
	return "Find files matching a glob pattern (e.g. '*.go', 'main.*') recursively under a directory."
}
func (t *GlobTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"pattern": {Type: "string", Description: "Glob pattern matched against file names"},
			"path":    {Type: "string", Description: "Directory to search (default: workspace root)"},
		},
		[]string{"pattern"},
	)
}

func (t *GlobTool) Execute(ctx context.Context, args map[string]any) (domain.Response, error) {
	pattern := ArgsString(args, "pattern")
	if pattern == "" {
		return domain.Response{}, fmt.Errorf("missing argument: pattern")
	}
	root := t.ws.Resolve(ArgsString(args, "path"))

	info, err := os.Stat(root)
	if err != nil {
		return domain.Response{}, fmt.Errorf("path does not exist: %s", root)
	}
	if !info.IsDir() {
		root = filepath.Dir(root)
	}

	var matches []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil // skip unreadable entries
		}
		if d.IsDir() {
			return nil
		}
		ok, matchErr := filepath.Match(pattern, d.Name())
		if matchErr != nil {
			return matchErr
		}
		if ok {
			matches = append(matches, t.ws.Rel(path))
		}
		return nil
	})
	if err != nil {
		return domain.Response{}, fmt.Errorf("glob search: %w", err)
	}

	sort.Strings(matches)
	total := len(matches)
	if total > maxSearchResults {
		matches = matches[:maxSearchResults]
	}

	return domain.Response{
		Content: fmt.Sprintf("found %d matching file(s)", total),
		Data: map[string]any{
			"files": matches,
			"count": total,
		},
	}, nil
}

// --- GrepTool ---

// GrepTool searches file contents line by line with a regular expression.
type GrepTool struct {
	ws Workspace
}

func NewGrepTool(ws Workspace) *GrepTool {
	return &GrepTool{ws: ws}
}

func (t *GrepTool) Name() string { return "grep" }
func (t *GrepTool) Description() string {
	return "Search file contents with a regular expression. Returns file:line:text matches."
}
func (t *GrepTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"pattern": {Type: "string", Description: "Regular expression applied per line"},
			"path":    {Type: "string", Description: "File or directory to search (default: workspace root)"},
			"include": {Type: "string", Description: "Space-separated file name globs to restrict the search (e.g. '*.go *.md')"},
		},
		[]string{"pattern"},
	)
}

func (t *GrepTool) Execute(ctx context.Context, args map[string]any) (domain.Response, error) {
	pattern := ArgsString(args, "pattern")
	if pattern == "" {
		return domain.Response{}, fmt.Errorf("missing argument: pattern")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return domain.Response{}, fmt.Errorf("invalid pattern: %w", err)
	}

	root := t.ws.Resolve(ArgsString(args, "path"))
	if _, err := os.Stat(root); err != nil {
		return domain.Response{}, fmt.Errorf("path does not exist: %s", root)
	}

	includes := strings.Fields(ArgsString(args, "include"))

	var results []string
	total := 0
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() {
			return nil
		}
		if !matchesAny(d.Name(), includes) {
			return nil
		}
		total += t.grepFile(path, re, &results)
		return nil
	})
	if err != nil {
		return domain.Response{}, fmt.Errorf("content search: %w", err)
	}

	if len(results) > maxSearchResults {
		results = results[:maxSearchResults]
	}

	return domain.Response{
		Content: fmt.Sprintf("found %d matching line(s)", total),
		Data: map[string]any{
			"results": results,
			"count":   total,
		},
	}, nil
}

// grepFile appends file:line:text matches to results and returns the number
// of matching lines. Unreadable or binary-ish files are skipped silently.
func (t *GrepTool) grepFile(path string, re *regexp.Regexp, results *[]string) int {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	count := 0
	lineNo := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if re.MatchString(line) {
			count++
			if len(*results) < maxSearchResults {
				*results = append(*results, fmt.Sprintf("%s:%d:%s", t.ws.Rel(path), lineNo, strings.TrimRight(line, " \t")))
			}
		}
	}
	return count
}

func matchesAny(name string, globs []string) bool {
	if len(globs) == 0 {
		return true
	}
	for _, g := range globs {
		if ok, _ := filepath.Match(g, name); ok {
			return true
		}
	}
	return false
}

var (
	_ domain.Tool = (*GlobTool)(nil)
	_ domain.Tool = (*GrepTool)(nil)
)
