package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"codepilot/internal/domain"
)

// Registry holds all available tools and dispatches calls to them. Every
// dispatch, success or failure, produces exactly one Outcome and one entry
// in the append-only execution log.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]domain.Tool
	logger *slog.Logger

	logMu   sync.Mutex
	execLog []LogEntry
}

// LogEntry records one dispatch for the execution log.
type LogEntry struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
	Success   bool           `json:"success"`
	Outcome   domain.Outcome `json:"outcome"`
	Timestamp time.Time      `json:"timestamp"`
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		tools:  make(map[string]domain.Tool),
		logger: logger,
	}
}

func (r *Registry) Register(t domain.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
	r.logger.Debug("registered tool", "name", t.Name())
}

func (r *Registry) Get(name string) domain.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Dispatch routes one tool call to its bound operation and normalizes the
// result into an Outcome. Faults never propagate: unknown names, missing
// required arguments, tool errors, and panics all become failed outcomes.
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]any) domain.Outcome {
	start := time.Now()

	finish := func(o domain.Outcome) domain.Outcome {
		o.Tool = name
		o.Duration = time.Since(start)
		o.Timestamp = time.Now()
		r.appendLog(name, args, o)
		return o
	}

	t := r.Get(name)
	if t == nil {
		r.logger.Warn("unknown tool requested", "name", name)
		return finish(domain.Outcome{Error: fmt.Sprintf("unknown tool: %s (available: %v)", name, r.Names())})
	}

	if missing := missingRequired(t.Parameters(), args); len(missing) > 0 {
		return finish(domain.Outcome{Error: fmt.Sprintf("missing required arguments for %s: %v", name, missing)})
	}

	resp, err := r.invoke(ctx, t, args)
	if err != nil {
		r.logger.Warn("tool failed", "name", name, "error", err)
		return finish(domain.Outcome{Content: resp.Content, Data: resp.Data, Error: err.Error()})
	}

	r.logger.Debug("tool completed", "name", name, "content_len", len(resp.Content))
	return finish(domain.Outcome{Success: true, Content: resp.Content, Data: resp.Data})
}

// invoke calls the tool and converts a panic into an error with the stack
// attached, so a misbehaving tool cannot take down the run.
func (r *Registry) invoke(ctx context.Context, t domain.Tool, args map[string]any) (resp domain.Response, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("tool panic: %v\n%s", rec, debug.Stack())
		}
	}()
	return t.Execute(ctx, args)
}

func (r *Registry) appendLog(name string, args map[string]any, o domain.Outcome) {
	r.logMu.Lock()
	defer r.logMu.Unlock()
	r.execLog = append(r.execLog, LogEntry{
		Tool:      name,
		Arguments: args,
		Success:   o.Success,
		Outcome:   o,
		Timestamp: o.Timestamp,
	})
}

// Log returns a copy of the execution log.
func (r *Registry) Log() []LogEntry {
	r.logMu.Lock()
	defer r.logMu.Unlock()
	out := make([]LogEntry, len(r.execLog))
	copy(out, r.execLog)
	return out
}

func (r *Registry) ClearLog() {
	r.logMu.Lock()
	defer r.logMu.Unlock()
	r.execLog = nil
}

// GetDefinitions returns the tool catalog in function-calling shape, sorted
// by name so identical registries always produce identical catalogs.
func (r *Registry) GetDefinitions() []domain.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]domain.ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, domain.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// missingRequired checks the JSON Schema "required" list against the
// argument bag before the operation is invoked.
func missingRequired(schema, args map[string]any) []string {
	var required []string
	switch req := schema["required"].(type) {
	case []string:
		required = req
	case []any:
		for _, v := range req {
			if s, ok := v.(string); ok {
				required = append(required, s)
			}
		}
	}

	var missing []string
	for _, name := range required {
		if _, ok := args[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// Param describes a single tool parameter.
type Param struct {
	Type        string
	Description string
}

// ToolParameters builds a JSON Schema "parameters" object for a tool.
func ToolParameters(properties map[string]Param, required []string) map[string]any {
	props := make(map[string]any)
	for name, p := range properties {
		props[name] = map[string]any{"type": p.Type, "description": p.Description}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func ArgsString(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	v, ok := args[key]
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

// ArgsInt reads an integer argument, tolerating the float64 that JSON
// decoding produces.
func ArgsInt(args map[string]any, key string, fallback int) int {
	if args == nil {
		return fallback
	}
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}

func ArgsBool(args map[string]any, key string) bool {
	if args == nil {
		return false
	}
	b, _ := args[key].(bool)
	return b
}
