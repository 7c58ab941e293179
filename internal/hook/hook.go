// Package hook runs an optional user command after a transcript is produced.
package hook

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"tingxie/internal/config"

	"github.com/google/shlex"
	"github.com/sirupsen/logrus"
)

// Job carries one finished transcript to the hook command.
type Job struct {
	TranscriptPath string
	Text           string
	DisplayName    string
	Timestamp      time.Time
}

// Runner executes the configured command with the transcript path appended to
// its args and the text exposed via environment.
type Runner struct {
	cfg    *config.Config
	logger *logrus.Logger
}

func NewRunner(cfg *config.Config, logger *logrus.Logger) *Runner {
	return &Runner{cfg: cfg, logger: logger}
}

// Enabled reports whether a hook command is configured.
func (r *Runner) Enabled() bool {
	return strings.TrimSpace(r.cfg.Hook.Command) != ""
}

// Run executes the hook for one job. Hook failures are the caller's to log;
// they never fail the transcription itself.
func (r *Runner) Run(ctx context.Context, job Job) error {
	cmdStr := r.cfg.Hook.Command
	if cmdStr == "" {
		return fmt.Errorf("no hook.command configured")
	}
	args := append([]string{}, r.cfg.Hook.Args...)
	args = append(args, job.TranscriptPath)

	runCtx := ctx
	var cancel context.CancelFunc
	if r.cfg.Hook.TimeoutSec > 0 {
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(float64(time.Second)*r.cfg.Hook.TimeoutSec))
		defer cancel()
	}
	cmd := exec.CommandContext(runCtx, cmdStr, args...)
	cmd.Env = os.Environ()
	for k, v := range r.cfg.Hook.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	cmd.Env = append(cmd.Env, fmt.Sprintf("TINGXIE_TRANSCRIPT=%s", job.TranscriptPath))
	cmd.Env = append(cmd.Env, fmt.Sprintf("TINGXIE_TEXT=%s", job.Text))
	cmd.Env = append(cmd.Env, fmt.Sprintf("TINGXIE_INPUT=%s", job.DisplayName))

	out, err := cmd.CombinedOutput()
	if len(out) > 0 {
		r.logger.Infof("hook output: %s", strings.TrimSpace(string(out)))
	}
	if err != nil {
		return fmt.Errorf("hook failed: %w", err)
	}
	return nil
}

// ParseArgs allows Hook.Args to be configured as a single string.
func ParseArgs(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return []string{}, nil
	}
	return shlex.Split(raw)
}
