package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/maxvaer/wafpierce/internal/config"
	"github.com/maxvaer/wafpierce/internal/observability"
	"github.com/maxvaer/wafpierce/internal/runner"
	"github.com/maxvaer/wafpierce/internal/scanerr"
	"github.com/maxvaer/wafpierce/internal/technique"
	"github.com/maxvaer/wafpierce/pkg/version"
)

// Process exit codes.
const (
	exitClean       = 0
	exitBypasses    = 1
	exitConfig      = 2
	exitBaseline    = 3
	exitUnreachable = 4
	exitInterrupted = 130
)

var (
	cfgFile        string
	headerFlags    []string
	listTechniques bool
)

type flagGroup struct {
	title string
	flags []string
}

var helpGroups = []flagGroup{
	{"TARGET", []string{"request-file", "header", "user-agent", "proxy", "http2", "insecure"}},
	{"TECHNIQUES", []string{"techniques", "list-techniques"}},
	{"RATE-LIMIT", []string{"threads", "delay", "timeout", "rate", "adaptive-throttle", "retries", "backoff"}},
	{"OUTPUT", []string{"output", "format", "quiet", "no-color", "on-bypass"}},
	{"LOGGING", []string{"log-level", "log-format", "log-file"}},
	{"CONFIGURATION", []string{"config"}},
}

// exitError carries a process exit code. A nil err exits silently.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

var rootCmd = &cobra.Command{
	Use:     "wafpierce <url> [flags]",
	Short:   "WAF bypass detection against a single web target",
	Version: version.Version,
	Long: `wafpierce sends a catalog of request mutations (header spoofing, path
encoding, method and protocol tricks) to a target that sits behind a WAF
or reverse proxy, and reports every response that differs meaningfully
from a clean baseline request.`,
	Example: `  wafpierce https://example.com/admin
  wafpierce https://example.com -t 20 -d 100ms -o bypasses.json
  wafpierce https://example.com --techniques "X-Forwarded-For,Path Encoding"
  wafpierce -r burp.req --proxy http://127.0.0.1:8080
  wafpierce https://example.com --rate 5 --adaptive-throttle
  wafpierce https://example.com --on-bypass 'notify-send {severity} {technique}'
  wafpierce --list-techniques`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if listTechniques {
			printTechniques(cmd.OutOrStdout())
			return nil
		}

		opts, err := loadOptions(cmd, args)
		if err != nil {
			return &exitError{code: exitConfig, err: err}
		}
		if opts.URL == "" && opts.RequestFile == "" {
			_ = cmd.Help()
			fmt.Fprintln(os.Stderr)
			return &exitError{code: exitConfig, err: errors.New("target required: pass a URL or --request-file")}
		}

		observability.InitializeLogger(opts.Logger)
		defer observability.Sync()
		logger := observability.GetLogger()
		logger.Debug("Starting wafpierce", zap.String("version", version.Version))

		session, err := runner.New(opts)
		if err != nil {
			// Anything New rejects is a usage problem.
			code := exitCode(err)
			if code == exitBypasses {
				code = exitConfig
			}
			return &exitError{code: code, err: err}
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		stopOnSignal(ctx, session, cancel, opts.Quiet)

		restore := session.EnableKeyboardControl()
		results, err := session.Scan(ctx)
		restore()

		if err != nil {
			return &exitError{code: exitCode(err), err: err}
		}
		if len(results) > 0 {
			return &exitError{code: exitBypasses}
		}
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	d := config.Defaults()
	f := rootCmd.Flags()

	// Target
	f.StringP("request-file", "r", "", "Raw HTTP request file (e.g. Burp Suite export)")
	f.StringSliceVarP(&headerFlags, "header", "H", nil, "Extra headers sent with every request (Key: Value)")
	f.String("user-agent", "", "Custom User-Agent string")
	f.String("proxy", "", "HTTP proxy URL")
	f.Bool("http2", false, "Negotiate HTTP/2 over TLS")
	f.BoolP("insecure", "k", false, "Skip TLS certificate verification")

	// Techniques
	f.StringSlice("techniques", nil, "Only run these technique categories (comma-separated)")
	f.BoolVar(&listTechniques, "list-techniques", false, "List technique categories and exit")

	// Performance
	f.IntP("threads", "t", d.Threads, "Number of techniques run concurrently")
	f.DurationP("delay", "d", d.Delay, "Delay after each probe within a technique")
	f.Duration("timeout", d.Timeout, "HTTP request timeout")
	f.Float64("rate", 0, "Global requests per second cap (0 = off)")
	f.Bool("adaptive-throttle", false, "Back off automatically on 429/503 responses")
	f.Int("retries", d.Retries, "Attempts per request, the first included")
	f.Duration("backoff", d.RetryBackoff, "Retry backoff factor")

	// Output
	f.StringP("output", "o", "", "Write a JSON report to this file")
	f.String("format", d.OutputFormat, "Stdout format: text, json, csv")
	f.BoolP("quiet", "q", false, "Only print bypasses")
	f.Bool("no-color", false, "Disable colored output")
	f.String("on-bypass", "", "Shell command run per bypass with the result as JSON on stdin (placeholders are shell-quoted)")

	// Logging
	f.String("log-level", d.Logger.Level, "Log level: debug, info, warn, error")
	f.String("log-format", d.Logger.Format, "Console log format: console, json")
	f.String("log-file", "", "Also write JSON logs to this rotating file")

	f.StringVarP(&cfgFile, "config", "c", "", "YAML config file (default ./wafpierce.yaml)")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &exitError{code: exitConfig, err: err}
	})

	// Custom help: categorized flags like httpx.
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		w := os.Stderr
		fmt.Fprint(w, helpBanner(cmd.Version))
		fmt.Fprintf(w, "%s\n\nUsage:\n  %s\n", cmd.Long, cmd.UseLine())
		fmt.Fprintf(w, "\nExamples:\n%s\n", cmd.Example)
		fmt.Fprintf(w, "\nFlags:\n")
		for _, g := range helpGroups {
			fmt.Fprintf(w, "\n%s:\n", g.title)
			for _, name := range g.flags {
				if f := cmd.Flags().Lookup(name); f != nil {
					fmt.Fprintln(w, formatFlag(f))
				}
			}
		}
		fmt.Fprintln(w)
	})
}

// Execute runs the root command and exits with the scan's status code.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}

	code := exitBypasses
	var ee *exitError
	if errors.As(err, &ee) {
		code = ee.code
		if ee.err == nil {
			os.Exit(code)
		}
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(code)
}

// loadOptions layers defaults, config file, environment and flags.
func loadOptions(cmd *cobra.Command, args []string) (config.Options, error) {
	v := viper.New()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return config.Options{}, err
	}
	opts, err := config.Load(v, cfgFile)
	if err != nil {
		return config.Options{}, err
	}

	if len(args) == 1 {
		opts.URL = args[0]
	}

	extra, err := parseHeaders(headerFlags)
	if err != nil {
		return config.Options{}, err
	}
	if len(extra) > 0 {
		if opts.Headers == nil {
			opts.Headers = make(map[string]string, len(extra))
		}
		for k, val := range extra {
			opts.Headers[k] = val
		}
	}

	// A stopped CLI scan exits 130.
	opts.SurfaceInterrupt = true
	opts.Logger.NoColor = opts.NoColor || !term.IsTerminal(int(os.Stderr.Fd()))
	return opts, nil
}

// parseHeaders turns "Key: Value" flags into a map.
func parseHeaders(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		parts := strings.SplitN(h, ":", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
			return nil, fmt.Errorf("invalid header format %q, expected 'Key: Value'", h)
		}
		headers[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return headers, nil
}

// stopOnSignal stops the session on the first interrupt and cancels ctx on
// the second, abandoning in-flight requests.
func stopOnSignal(ctx context.Context, session *runner.Session, cancel context.CancelFunc, quiet bool) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
		case <-ctx.Done():
			return
		}
		if !quiet {
			fmt.Fprintf(os.Stderr, "\n[*] Stopping after in-flight probes, press Ctrl+C again to abort\n")
		}
		session.Stop()

		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()
}

// exitCode maps a scan error onto the documented process exit codes.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitClean
	case errors.Is(err, scanerr.ScanInterrupted), errors.Is(err, context.Canceled):
		return exitInterrupted
	case errors.Is(err, scanerr.BaselineFailed):
		if errors.Is(err, scanerr.TargetUnreachable) || errors.Is(err, scanerr.DNSResolution) {
			return exitUnreachable
		}
		return exitBaseline
	case errors.Is(err, scanerr.ErrValidation), errors.Is(err, scanerr.ErrConfiguration):
		return exitConfig
	default:
		return exitBypasses
	}
}

func printTechniques(w io.Writer) {
	for _, e := range technique.Catalog() {
		fmt.Fprintf(w, "  %-24s %s\n", e.Name, e.Description)
	}
}

func formatFlag(f *pflag.Flag) string {
	var left string
	if f.Shorthand != "" {
		left = fmt.Sprintf("-%s, --%s", f.Shorthand, f.Name)
	} else {
		left = fmt.Sprintf("    --%s", f.Name)
	}

	typ := f.Value.Type()
	if typ != "bool" {
		left += " " + typ
	}

	// Pad to fixed column width for aligned descriptions.
	const col = 36
	for len(left) < col {
		left += " "
	}

	right := f.Usage
	// Show default for non-zero values.
	def := f.DefValue
	if def != "" && def != "false" && def != "0" && def != "0s" && def != "[]" {
		right += fmt.Sprintf(" (default %s)", def)
	}

	return "   " + left + right
}

func helpBanner(ver string) string {
	if ver != "dev" && ver != "" && !strings.HasPrefix(ver, "v") {
		ver = "v" + ver
	}
	return fmt.Sprintf(`
  wafpierce %s
  ─────────────────────────────
  WAF bypass detection

`, ver)
}
