package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			Workspace:       expandPath("~/.codepilot/workspace"),
			LogLevel:        "info",
			DefaultProducer: "openai",
		},
		Providers: map[string]ProviderConfig{
			"openai": {
				Enabled:      true,
				APIBase:      "https://api.openai.com/v1",
				APIKey:       "${OPENAI_API_KEY}",
				DefaultModel: "gpt-4o-mini",
			},
			"qwen": {
				Enabled:        false,
				APIBase:        "https://dashscope.aliyuncs.com/compatible-mode/v1",
				APIKey:         "${DASHSCOPE_API_KEY}",
				DefaultModel:   "qwen-plus",
				EnableThinking: true,
			},
			"bigmodel": {
				Enabled:        false,
				APIKey:         "${BIGMODEL_API_KEY}",
				DefaultModel:   "glm-4.7",
				EnableThinking: true,
			},
			"local": {
				Enabled:      false,
				APIBase:      "http://localhost:11434/v1",
				DefaultModel: "llama3.1:8b",
			},
		},
		Agent: AgentConfig{
			MaxIterations:       200,
			MaxExecutionSeconds: 900,
			StepDelayMs:         500,
		},
		Tools: ToolsConfig{
			Bash: BashToolConfig{
				IdleTimeoutSeconds: 5,
				GraceSeconds:       2,
			},
		},
		Sessions: SessionsConfig{
			DBPath: expandPath("~/.codepilot/sessions.db"),
		},
		Skills: SkillsConfig{
			Dir: expandPath("~/.codepilot/skills"),
		},
	}
}
