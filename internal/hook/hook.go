// Package hook runs a user command for every detected bypass.
package hook

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/maxvaer/wafpierce/internal/scanner"
)

const defaultTimeout = 30 * time.Second

// payload is the JSON document sent to the hook command via stdin.
type payload struct {
	ScanID string `json:"scan_id,omitempty"`
	Target string `json:"target"`
	scanner.ProbeResult
}

// Runner executes a shell command for each bypass.
type Runner struct {
	cmd     string
	scanID  string
	target  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewRunner creates a hook runner. cmd is the shell command to execute.
func NewRunner(cmd, scanID, target string, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cmd: cmd, scanID: scanID, target: target, timeout: defaultTimeout, logger: logger}
}

// Expand substitutes {target}, {technique}, {severity}, {status}, {method},
// {path}, {size} and {reason} in the command template. Every value is
// shell-quoted, since reason and path carry text the target controls.
func (r *Runner) Expand(result *scanner.ProbeResult) string {
	vars := r.vars(result)
	pairs := make([]string, 0, 2*len(vars))
	for _, v := range vars {
		pairs = append(pairs, "{"+v.name+"}", shellQuote(v.value))
	}
	return strings.NewReplacer(pairs...).Replace(r.cmd)
}

type hookVar struct{ name, value string }

func (r *Runner) vars(result *scanner.ProbeResult) []hookVar {
	return []hookVar{
		{"target", r.target},
		{"technique", result.Technique},
		{"severity", result.Severity.String()},
		{"status", strconv.Itoa(result.Status)},
		{"method", result.Method},
		{"path", result.Path},
		{"size", strconv.FormatInt(result.Size, 10)},
		{"reason", result.Reason},
	}
}

// environ returns the process environment plus WAFPIERCE_<NAME> for every
// placeholder.
func (r *Runner) environ(result *scanner.ProbeResult) []string {
	env := os.Environ()
	for _, v := range r.vars(result) {
		env = append(env, "WAFPIERCE_"+strings.ToUpper(v.name)+"="+v.value)
	}
	return env
}

// shellQuote makes s a single literal word for the platform shell.
func shellQuote(s string) string {
	if runtime.GOOS == "windows" {
		// cmd has no escape inside quotes and expands %VAR% everywhere.
		return `"` + strings.NewReplacer(`"`, "", "%", "").Replace(s) + `"`
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Run executes the hook command with the result as JSON on stdin. The
// command is killed after 30 seconds. Failures are logged and never halt
// the scan.
func (r *Runner) Run(ctx context.Context, result *scanner.ProbeResult) {
	data, err := json.Marshal(payload{ScanID: r.scanID, Target: r.target, ProbeResult: *result})
	if err != nil {
		r.logger.Warn("Hook payload could not be encoded", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	shell, args := shellCommand()
	cmd := exec.CommandContext(ctx, shell, append(args, r.Expand(result))...)
	cmd.Stdin = bytes.NewReader(data)
	cmd.Env = r.environ(result)
	cmd.Stderr = os.Stderr
	// Grandchildren may hold stdout open after the shell is killed.
	cmd.WaitDelay = time.Second

	output, err := cmd.Output()
	if err != nil {
		r.logger.Warn("Hook command failed",
			zap.String("technique", result.Technique),
			zap.Error(err))
		return
	}

	if out := strings.TrimSpace(string(output)); out != "" {
		r.logger.Info("Hook output", zap.String("technique", result.Technique), zap.String("output", out))
	}
}

func shellCommand() (string, []string) {
	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C"}
	}
	return "sh", []string{"-c"}
}
