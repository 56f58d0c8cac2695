// VitaRoute is a medical-results assistant that routes each request to
// document investigation or a side-effecting action, then explains the
// outcome.
//
// Usage:
//
//	vitaroute init [dir]                 Write a starter config
//	vitaroute serve                      Start the API server
//	vitaroute ask [-file path] <prompt>  Answer one prompt
//	vitaroute react -headline h -personas p.json -image img.png
//	vitaroute ingest <passages.jsonl>    Load passages into the local index
//	vitaroute version                    Print version and build information
//	vitaroute -o json version            Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pragasv/sola-labs-demo/internal/api"
	"github.com/pragasv/sola-labs-demo/internal/buildinfo"
	"github.com/pragasv/sola-labs-demo/internal/config"
)

// main builds the OS-level environment and delegates to [run], keeping
// os.Exit, os.Stdout and os.Args out of the application logic.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point. Arguments are parsed by hand so that run
// holds no global flag state and can be called concurrently from tests.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case command != "":
			cmdArgs = append(cmdArgs, args[i])
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-"):
			command = args[i]
		default:
			return fmt.Errorf("unknown flag: %s", args[i])
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "ask":
		opts, err := parseAskArgs(cmdArgs)
		if err != nil {
			return err
		}
		return runAsk(ctx, stdout, stderr, configPath, opts)
	case "react":
		opts, err := parseReactArgs(cmdArgs)
		if err != nil {
			return err
		}
		return runReact(ctx, stdout, stderr, configPath, opts)
	case "ingest":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: vitaroute ingest <passages.jsonl>")
		}
		return runIngest(ctx, stdout, configPath, cmdArgs[0])
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.BuildInfo()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "git_branch", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "VitaRoute - medical results assistant")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: vitaroute [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  init [dir]                   Write a starter config.yaml and data dir")
	fmt.Fprintln(w, "  serve                        Start the API server")
	fmt.Fprintln(w, "  ask [-file path] <prompt>    Answer a single prompt")
	fmt.Fprintln(w, "  react -headline h -personas file.json -image img.png")
	fmt.Fprintln(w, "                               Predict persona reactions to a creative")
	fmt.Fprintln(w, "  ingest <passages.jsonl>      Load passages into the local index")
	fmt.Fprintln(w, "  version                      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  "+strings.Join(config.DefaultSearchPaths(), ", "))
	return nil
}

type askOptions struct {
	file   string
	prompt string
}

func parseAskArgs(args []string) (askOptions, error) {
	var opts askOptions
	var words []string
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-file" && i+1 < len(args):
			opts.file = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-file="):
			opts.file = strings.TrimPrefix(args[i], "-file=")
		default:
			words = append(words, args[i])
		}
	}
	opts.prompt = strings.Join(words, " ")
	if opts.prompt == "" && opts.file == "" {
		return opts, fmt.Errorf("usage: vitaroute ask [-file path] <prompt>")
	}
	return opts, nil
}

type reactOptions struct {
	headline string
	personas string
	image    string
	mime     string
}

func parseReactArgs(args []string) (reactOptions, error) {
	var opts reactOptions
	for i := 0; i < len(args); i++ {
		if i+1 >= len(args) {
			return opts, fmt.Errorf("missing value for %s", args[i])
		}
		switch args[i] {
		case "-headline":
			opts.headline = args[i+1]
		case "-personas":
			opts.personas = args[i+1]
		case "-image":
			opts.image = args[i+1]
		case "-mime":
			opts.mime = args[i+1]
		default:
			return opts, fmt.Errorf("unknown react flag: %s", args[i])
		}
		i++
	}
	if opts.headline == "" || opts.image == "" {
		return opts, fmt.Errorf("usage: vitaroute react -headline h [-personas file.json] -image img.png [-mime type]")
	}
	return opts, nil
}

// runAsk answers one prompt with the full pipeline, including memory
// and metrics, and prints the answer.
func runAsk(ctx context.Context, stdout io.Writer, stderr io.Writer, configPath string, opts askOptions) error {
	cfg, logger, err := setup(stderr, configPath)
	if err != nil {
		return err
	}

	var file []byte
	if opts.file != "" {
		if file, err = os.ReadFile(opts.file); err != nil {
			return fmt.Errorf("read attachment: %w", err)
		}
	}

	c, err := buildComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	answer, err := c.service.Process(ctx, opts.prompt, file)
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}
	fmt.Fprintln(stdout, answer)
	return nil
}

// runReact runs the creative reaction path for a local image.
func runReact(ctx context.Context, stdout io.Writer, stderr io.Writer, configPath string, opts reactOptions) error {
	cfg, logger, err := setup(stderr, configPath)
	if err != nil {
		return err
	}

	image, err := os.ReadFile(opts.image)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}
	personas := "{}"
	if opts.personas != "" {
		data, err := os.ReadFile(opts.personas)
		if err != nil {
			return fmt.Errorf("read personas: %w", err)
		}
		personas = string(data)
	}
	mime := opts.mime
	if mime == "" {
		mime = mimeFromExt(opts.image)
	}

	c, err := buildComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	fmt.Fprintln(stdout, c.service.CreativeReact(ctx, opts.headline, personas, image, mime))
	return nil
}

// runServe starts the API server and blocks until SIGINT or SIGTERM.
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	cfg, logger, err := setup(stdout, configPath)
	if err != nil {
		return err
	}
	logger.Info("starting VitaRoute",
		"version", buildinfo.Version,
		"commit", buildinfo.GitCommit,
		"branch", buildinfo.GitBranch,
		"built", buildinfo.BuildTime,
	)

	c, err := buildComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	server := api.NewServer(cfg.Listen.Address, cfg.Listen.Port, c.service, logger)
	server.SetAllowedOrigins(cfg.CORS.AllowedOrigins)
	if c.metricsStore != nil {
		server.SetMetricsStore(c.metricsStore)
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received")
		_ = server.Shutdown(context.Background())
	}()

	if err := server.Start(ctx); err != nil {
		if ctx.Err() == nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	logger.Info("VitaRoute stopped")
	return nil
}

// setup loads the configuration and builds the configured logger.
func setup(logOut io.Writer, explicit string) (*config.Config, *slog.Logger, error) {
	cfg, cfgPath, err := loadConfig(explicit)
	if err != nil {
		return nil, nil, err
	}
	level, _ := config.ParseLogLevel(cfg.LogLevel)
	logger := config.NewLogger(logOut, level, cfg.LogFormat)
	logger.Info("config loaded", "path", cfgPath, "retrieval", cfg.Retrieval.Backend, "memory", cfg.Memory.Backend)
	return cfg, logger, nil
}

// loadConfig locates and parses the YAML configuration file. If explicit
// is non-empty, that exact path is used and must exist.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}
