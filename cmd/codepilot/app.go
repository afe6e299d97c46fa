package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"codepilot/internal/agent"
	"codepilot/internal/config"
	"codepilot/internal/domain"
	"codepilot/internal/provider"
	"codepilot/internal/session"
	"codepilot/internal/skill"
	"codepilot/internal/tool"
)

// app wires the full stack for one CLI invocation.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *session.SQLiteStore
	manager   *session.Manager
	registry  *tool.Registry
	todo      *tool.TodoTool
	engine    *agent.Engine
	sessionID string
}

func loadConfig() *config.Config {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Warn("config not found, using defaults", "path", cfgPath, "err", err)
		cfg = config.Defaults()
	}
	return cfg
}

func logLevel(cfg *config.Config) slog.Level {
	switch cfg.General.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildApp(ctx context.Context, producer string) (*app, error) {
	cfg := loadConfig()
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg)}))

	if err := os.MkdirAll(cfg.General.Workspace, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	ws := tool.NewWorkspace(cfg.General.Workspace)

	store, err := session.NewSQLiteStore(cfg.Sessions.DBPath, logger)
	if err != nil {
		return nil, err
	}
	manager := session.NewManager(store, logger)

	sess, err := manager.Current(ctx, ws.Root())
	if err != nil {
		store.Close()
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		manager:   manager,
		sessionID: sess.ID,
	}

	skills := skill.NewLibrary(logger)
	if err := skills.LoadDirectory(cfg.Skills.Dir); err != nil {
		logger.Warn("cannot load user skills", "err", err)
	}

	a.todo = tool.NewTodoTool()
	a.registry = tool.NewRegistry(logger)
	a.registry.Register(tool.NewReadTool(ws))
	a.registry.Register(tool.NewWriteTool(ws))
	a.registry.Register(tool.NewEditTool(ws))
	a.registry.Register(tool.NewGlobTool(ws))
	a.registry.Register(tool.NewGrepTool(ws))
	a.registry.Register(tool.NewBashTool(tool.BashConfig{
		Workspace:   ws,
		IdleTimeout: time.Duration(cfg.Tools.Bash.IdleTimeoutSeconds) * time.Second,
		Grace:       time.Duration(cfg.Tools.Bash.GraceSeconds) * time.Second,
		Logger:      logger,
	}))
	a.registry.Register(tool.NewQuestionTool())
	a.registry.Register(a.todo)
	a.registry.Register(tool.NewWebFetchTool())
	a.registry.Register(tool.NewSkillTool(skills))
	a.registry.Register(tool.NewSessionDetailTool(manager, func() string { return a.sessionID }))

	factory := provider.NewFactory(cfg, logger)
	prov, err := factory.Get(producer)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("resolve producer: %w", err)
	}

	a.engine = agent.NewEngine(agent.EngineConfig{
		Provider: prov,
		Tools:    a.registry,
		Prompt:   agent.NewPromptBuilder(ws.Root(), cfg.Agent.SystemPromptExtra),
		Logger:   logger,
		Budget: domain.Budget{
			MaxIterations: cfg.Agent.MaxIterations,
			MaxDuration:   time.Duration(cfg.Agent.MaxExecutionSeconds * float64(time.Second)),
			StepDelay:     time.Duration(cfg.Agent.StepDelayMs) * time.Millisecond,
		},
		Model: modelFlag,
	})
	return a, nil
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
}

// executeTask runs one task to completion in the current session, printing
// step progress, and records the run.
func (a *app) executeTask(ctx context.Context, task string) error {
	preamble, err := a.manager.ContextPrompt(ctx, a.sessionID)
	if err != nil {
		a.logger.Warn("cannot load session context", "err", err)
		preamble = ""
	}

	var steps []domain.StepRecord
	for step := range a.engine.Run(ctx, task, "", preamble) {
		steps = append(steps, step)
		printStep(step)
	}

	summary := a.engine.Summary()
	printSummary(summary)

	if err := a.manager.RecordRun(ctx, a.sessionID, task, steps, summary.FinalMessage); err != nil {
		a.logger.Warn("cannot record run", "err", err)
	}
	return nil
}
