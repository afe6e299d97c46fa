package tool

import (
	"context"
	"fmt"
	"strings"

	"codepilot/internal/domain"
	"codepilot/internal/skill"
)

// SkillTool loads a named skill from the library and returns its body so
// the agent can follow its instructions for the rest of the run.
type SkillTool struct {
	library *skill.Library
}

func NewSkillTool(library *skill.Library) *SkillTool {
	return &SkillTool{library: library}
}

func (t *SkillTool) Name() string { return "skill" }
func (t *SkillTool) Description() string {
	return "Load a skill by name. The skill body contains specialized instructions to apply to the current task."
}
func (t *SkillTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"name": {Type: "string", Description: "Name of the skill to load"},
		},
		[]string{"name"},
	)
}

func (t *SkillTool) Execute(ctx context.Context, args map[string]any) (domain.Response, error) {
	name := ArgsString(args, "name")
	if name == "" {
		return domain.Response{}, fmt.Errorf("missing argument: name")
	}

	def, ok := t.library.Get(name)
	if !ok {
		names := make([]string, 0)
		for _, s := range t.library.List() {
			names = append(names, s.Name)
		}
		return domain.Response{}, fmt.Errorf("unknown skill: %s (available: %s)", name, strings.Join(names, ", "))
	}

	return domain.Response{
		Content: def.Body,
		Data:    map[string]any{"skill": def.Name},
	}, nil
}

var _ domain.Tool = (*SkillTool)(nil)
