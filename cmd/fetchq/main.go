package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const helpDescription = `
Fetch one or more URLs concurrently through a single transfer engine.

Bodies go to stdout, or to files with --output-dir. A colored per-URL
summary is printed to stderr when all transfers settled. Configure via
flags, FETCHQ_* environment variables, or a TOML config file.
`

var exampleUsage = strings.TrimSpace(`
  fetchq https://go.dev/VERSION?m=text
  fetchq --output-dir ./dl --sha256 <hex> https://dl.google.com/go/go1.24.0.src.tar.gz
  fetchq -X POST --body '{"name":"gopher"}' --header 'Content-Type: application/json' https://api.example.com/users
  fetchq --rps 5 --burst 1 --total-conns 4 https://a.example.com https://b.example.com
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:          "fetchq [flags] URL...",
		Short:        "Fetch URLs concurrently through a single transfer engine",
		Long:         strings.TrimSpace(helpDescription),
		Example:      exampleUsage,
		Version:      fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// .env values surface through the environment pass below.
			_ = godotenv.Load()

			// Flags explicitly set on the command line beat file and env values.
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = defaultConfigPath()
			}

			if cfgFile != "" && fileExists(cfgFile) {
				fc, err := loadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("loading config file: %w", err)
				}
				if err := applyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			if err := applyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			log, closeLog, err := newLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return run(ctx, cfg, log, args)
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.fetchq/config.toml)")

	root.Flags().StringVarP(&cfg.Method, "method", "X", cfg.Method, "HTTP method")
	root.Flags().StringArrayVar(&cfg.Headers, "header", cfg.Headers, "request header as 'Key: Value' (repeatable)")
	root.Flags().StringVar(&cfg.Body, "body", cfg.Body, "raw request body")
	root.Flags().StringArrayVar(&cfg.Form, "form", cfg.Form, "multipart form field as name=value (repeatable)")
	root.Flags().StringArrayVar(&cfg.FormFiles, "form-file", cfg.FormFiles, "multipart file field as name=path (repeatable)")

	root.Flags().StringVarP(&cfg.OutputDir, "output-dir", "o", cfg.OutputDir, "write bodies to this directory instead of stdout (GET only)")
	root.Flags().StringVar(&cfg.Sha256, "sha256", cfg.Sha256, "verify the downloaded body against this hex digest (single URL with --output-dir)")

	root.Flags().IntVar(&cfg.TotalConns, "total-conns", cfg.TotalConns, "max concurrent transfers, 0 for unlimited")
	root.Flags().IntVar(&cfg.HostConns, "host-conns", cfg.HostConns, "max concurrent transfers per host, 0 for unlimited")
	root.Flags().IntVar(&cfg.RPS, "rps", cfg.RPS, "request rate limit per second, 0 to disable")
	root.Flags().IntVar(&cfg.Burst, "burst", cfg.Burst, "request burst allowance, required with --rps")
	root.Flags().DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "cancel transfers still pending after this long, 0 for no deadline")
	root.Flags().StringVarP(&cfg.UserAgent, "user-agent", "A", cfg.UserAgent, "User-Agent header for every request")
	root.Flags().BoolVar(&cfg.NoFollowRedirects, "no-follow-redirects", cfg.NoFollowRedirects, "return redirect responses instead of following them")

	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	root.Flags().StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: text, json")
	root.Flags().StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "also write logs to this rotating file")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "fetchq:", err)
		os.Exit(1)
	}
}
