package domain

// SkillDefinition is a reusable instruction block the agent can load on
// demand through the skill tool. User skills come from YAML files; built-in
// skills ship with the binary.
type SkillDefinition struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Body        string `json:"body" yaml:"body"`
	BuiltIn     bool   `json:"built_in" yaml:"-"`
}
