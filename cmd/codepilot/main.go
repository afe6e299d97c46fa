package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"codepilot/internal/config"
	"codepilot/internal/provider"
)

var (
	version    = "0.2.0"
	logger     *slog.Logger
	configPath string
	producer   string
	modelFlag  string
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:     "codepilot",
		Short:   "CodePilot: an autonomous coding agent for your terminal",
		Long:    "CodePilot runs coding tasks autonomously: it plans with a reasoning model, edits files, runs commands, and reports each step until the task is done.",
		Version: version,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.codepilot/config.json)")
	root.PersistentFlags().StringVarP(&producer, "producer", "p", "", "reasoning back-end to use (default from config)")
	root.PersistentFlags().StringVarP(&modelFlag, "model", "m", "", "model override for the chosen producer")

	root.AddCommand(initCmd())
	root.AddCommand(runCmd())
	root.AddCommand(chatCmd())
	root.AddCommand(sessionsCmd())
	root.AddCommand(statusCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config, workspace, and skills directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := resolveConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			for _, dir := range []string{cfg.General.Workspace, cfg.Skills.Dir} {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
			}
			logger.Info("initialized", "config", cfgPath, "workspace", cfg.General.Workspace)
			return nil
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <task...>",
		Short: "Run a single task to completion",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task := strings.Join(args, " ")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, producer)
			if err != nil {
				return err
			}
			defer a.close()

			return a.executeTask(ctx, task)
		},
	}
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive mode: submit tasks one after another in the same session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, producer)
			if err != nil {
				return err
			}
			defer a.close()

			fmt.Printf("codepilot %s - session %s (exit to quit)\n", version, shortID(a.sessionID))
			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("\ntask> ")
				if !scanner.Scan() {
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				if line == "exit" || line == "quit" {
					return nil
				}
				if err := a.executeTask(ctx, line); err != nil {
					fmt.Fprintf(os.Stderr, "error: %v\n", err)
				}
				if ctx.Err() != nil {
					return nil
				}
			}
		},
	}
}

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage sessions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List recent sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx, producer)
			if err != nil {
				return err
			}
			defer a.close()

			sessions, err := a.manager.List(ctx, 20)
			if err != nil {
				return err
			}
			for _, s := range sessions {
				marker := " "
				if s.ID == a.sessionID {
					marker = "*"
				}
				summary := s.Summary
				if summary == "" {
					summary = "(no tasks yet)"
				}
				fmt.Printf("%s %s  %-8s  %s  %s\n",
					marker, shortID(s.ID), s.Status, s.UpdatedAt.Format(time.DateTime), summary)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "new",
		Short: "Start a fresh session and make it current",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx, producer)
			if err != nil {
				return err
			}
			defer a.close()

			sess, err := a.manager.StartSession(ctx, a.cfg.General.Workspace)
			if err != nil {
				return err
			}
			fmt.Printf("session %s is now current\n", shortID(sess.ID))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "use <session-id>",
		Short: "Switch the current session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx, producer)
			if err != nil {
				return err
			}
			defer a.close()

			sess, err := a.manager.Use(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("session %s is now current\n", shortID(sess.ID))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "archive <session-id>",
		Short: "Archive a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx, producer)
			if err != nil {
				return err
			}
			defer a.close()
			return a.manager.Archive(ctx, args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session and its recorded steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx, producer)
			if err != nil {
				return err
			}
			defer a.close()
			return a.manager.Delete(ctx, args[0])
		},
	})

	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show config, producers, and session state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			fmt.Printf("config:    %s\n", resolveConfigPath())
			fmt.Printf("workspace: %s\n", cfg.General.Workspace)
			fmt.Printf("sessions:  %s\n", cfg.Sessions.DBPath)
			fmt.Printf("default producer: %s\n\n", cfg.General.DefaultProducer)

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()

			factory := provider.NewFactory(cfg, logger)
			for name, pc := range cfg.Providers {
				if !pc.Enabled {
					fmt.Printf("%-10s disabled\n", name)
					continue
				}
				p, err := factory.Get(name)
				if err != nil {
					fmt.Printf("%-10s error: %v\n", name, err)
					continue
				}
				if err := p.Healthy(ctx); err != nil {
					fmt.Printf("%-10s unreachable: %v\n", name, err)
				} else {
					fmt.Printf("%-10s ok (model: %s)\n", name, pc.DefaultModel)
				}
			}
			return nil
		},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
