package tool

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"codepilot/internal/domain"
)

const (
	defaultIdleTimeout = 5 * time.Second
	defaultKillGrace   = 2 * time.Second
	lineQueueDepth     = 64
)

// BashTool runs shell commands with streamed, idle-timeout-bounded capture.
// A dedicated goroutine drains the process output into a bounded channel;
// the controller only ever waits on that channel, never on the pipe itself,
// so a silent long-running process can always be detected and stopped.
type BashTool struct {
	ws          Workspace
	idleTimeout time.Duration
	grace       time.Duration
	echo        io.Writer
	logger      *slog.Logger
}

type BashConfig struct {
	Workspace   Workspace
	IdleTimeout time.Duration
	Grace       time.Duration
	Echo        io.Writer // live line echo; defaults to os.Stdout
	Logger      *slog.Logger
}

func NewBashTool(cfg BashConfig) *BashTool {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Grace <= 0 {
		cfg.Grace = defaultKillGrace
	}
	if cfg.Echo == nil {
		cfg.Echo = os.Stdout
	}
	return &BashTool{
		ws:          cfg.Workspace,
		idleTimeout: cfg.IdleTimeout,
		grace:       cfg.Grace,
		echo:        cfg.Echo,
		logger:      cfg.Logger,
	}
}

func (t *BashTool) Name() string { return "bash" }
func (t *BashTool) Description() string {
	return "Execute a shell command in the workspace. Output is streamed; a command that stays silent longer than the idle timeout is stopped and reported as failed."
}
func (t *BashTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"command": {Type: "string", Description: "The shell command to execute (e.g. 'ls -la', 'go test ./...')"},
			"workdir": {Type: "string", Description: "Working directory for the command (default: workspace root)"},
		},
		[]string{"command"},
	)
}

func (t *BashTool) Execute(ctx context.Context, args map[string]any) (domain.Response, error) {
	command := ArgsString(args, "command")
	if command == "" {
		return domain.Response{}, fmt.Errorf("missing argument: command")
	}

	dir := t.ws.Root()
	if wd := ArgsString(args, "workdir"); wd != "" {
		resolved := t.ws.Resolve(wd)
		if info, err := os.Stat(resolved); err == nil && info.IsDir() {
			dir = resolved
		}
	}

	// sh -c for reliable handling of pipes, redirects, and quoting.
	cmd := exec.Command("sh", "-c", command)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "FORCE_COLOR=1")

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return domain.Response{}, fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout // combined capture as one stream

	if err := cmd.Start(); err != nil {
		return domain.Response{}, fmt.Errorf("start command: %w", err)
	}

	// Exactly one reader per invocation. Channel close is the
	// end-of-stream sentinel.
	lines := make(chan string, lineQueueDepth)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	var output []string
	timedOut := false

receive:
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				break receive
			}
			output = append(output, line)
			fmt.Fprintln(t.echo, line)
		case <-time.After(t.idleTimeout):
			timedOut = true
			fmt.Fprintf(t.echo, "[timeout] no output for %s, stopping process\n", t.idleTimeout)
			t.stop(cmd, lines, &output)
			break receive
		}
	}

	waitErr := cmd.Wait()
	exitCode := -1
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}

	joined := strings.Join(output, "\n")
	data := map[string]any{
		"command":   command,
		"output":    joined,
		"exit_code": exitCode,
	}

	if timedOut {
		t.logger.Warn("command stalled", "command", command, "idle_timeout", t.idleTimeout)
		return domain.Response{Data: data},
			fmt.Errorf("process stalled: no output within %s, terminated", t.idleTimeout)
	}
	if exitCode != 0 {
		if waitErr != nil {
			return domain.Response{Data: data}, fmt.Errorf("command exited with code %d: %v", exitCode, waitErr)
		}
		return domain.Response{Data: data}, fmt.Errorf("command exited with code %d", exitCode)
	}

	return domain.Response{
		Content: "command completed (see live log above)",
		Data:    data,
	}, nil
}

// stop requests graceful termination, then force-kills after the grace
// period. While waiting it keeps draining the line channel so the reader
// can make progress toward end of stream.
func (t *BashTool) stop(cmd *exec.Cmd, lines <-chan string, output *[]string) {
	_ = cmd.Process.Signal(syscall.SIGTERM)

	graceful := time.NewTimer(t.grace)
	defer graceful.Stop()
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			*output = append(*output, line)
		case <-graceful.C:
			_ = cmd.Process.Kill()
			t.drainTail(lines, output)
			return
		}
	}
}

// drainTail collects whatever the reader still delivers after a kill. The
// wait is bounded: a grandchild process inheriting the pipe could keep it
// open indefinitely, and the controller must never block on that.
func (t *BashTool) drainTail(lines <-chan string, output *[]string) {
	deadline := time.NewTimer(t.grace)
	defer deadline.Stop()
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			*output = append(*output, line)
		case <-deadline.C:
			return
		}
	}
}

var _ domain.Tool = (*BashTool)(nil)
