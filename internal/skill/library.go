package skill

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"codepilot/internal/domain"

	"gopkg.in/yaml.v3"
)

// Library holds the skills the agent can load on demand: built-in ones plus
// user-defined YAML files from the skills directory.
type Library struct {
	mu     sync.RWMutex
	skills map[string]domain.SkillDefinition
	logger *slog.Logger
}

func NewLibrary(logger *slog.Logger) *Library {
	l := &Library{
		skills: make(map[string]domain.SkillDefinition),
		logger: logger,
	}
	for _, s := range builtinSkills() {
		l.skills[s.Name] = s
	}
	return l
}

// LoadDirectory merges skill definitions from YAML files in dir. User
// skills override built-in ones with the same name. A missing directory is
// not an error.
func (l *Library) LoadDirectory(dir string) error {
	if dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		l.logger.Debug("skills directory does not exist, skipping", "dir", dir)
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read skills dir: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			l.logger.Warn("cannot read skill file", "path", path, "err", err)
			continue
		}

		var def domain.SkillDefinition
		if err := yaml.Unmarshal(data, &def); err != nil {
			l.logger.Warn("cannot parse skill file", "path", path, "err", err)
			continue
		}
		if def.Name == "" {
			def.Name = strings.TrimSuffix(name, filepath.Ext(name))
		}
		if def.Body == "" {
			l.logger.Warn("skill file has no body, skipping", "path", path)
			continue
		}

		l.logger.Info("loaded user skill", "name", def.Name, "path", path)
		l.skills[def.Name] = def
	}

	return nil
}

func (l *Library) Get(name string) (domain.SkillDefinition, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	def, ok := l.skills[name]
	return def, ok
}

// List returns all skills sorted by name.
func (l *Library) List() []domain.SkillDefinition {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.SkillDefinition, 0, len(l.skills))
	for _, s := range l.skills {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func builtinSkills() []domain.SkillDefinition {
	return []domain.SkillDefinition{
		{
			Name:        "code-review",
			Description: "Systematic code review checklist and output format",
			BuiltIn:     true,
			Body: `## Code review

### When analyzing code:
1. Read the complete code first and understand the overall structure
2. Check for common problems:
   - unused imports or variables
   - hard-coded values
   - missing error handling
   - security risks
3. Assess quality, readability, and maintainability
4. Give concrete improvement suggestions

### Output format:
- problem description
- location (file:line)
- severity
- suggested fix`,
		},
	}
}
