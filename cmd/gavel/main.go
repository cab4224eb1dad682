package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/hurttlocker/gavel/internal/config"
	"github.com/hurttlocker/gavel/internal/dataset"
	"github.com/hurttlocker/gavel/internal/mcp"
	"github.com/hurttlocker/gavel/internal/model"
	"github.com/hurttlocker/gavel/internal/retrain"
	"github.com/hurttlocker/gavel/internal/server"
	"github.com/hurttlocker/gavel/internal/service"
	"github.com/hurttlocker/gavel/internal/store"
)

const version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(os.Args[2:])
	case "mcp":
		err = runMCP(os.Args[2:])
	case "predict":
		err = runPredict(os.Args[2:])
	case "analyze":
		err = runAnalyze(os.Args[2:])
	case "prepare":
		err = runPrepare(os.Args[2:])
	case "export":
		err = runExport(os.Args[2:])
	case "stats":
		err = runStats(os.Args[2:])
	case "history":
		err = runHistory(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("gavel %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// cliFlags collects the shared --flag value pairs; remaining positional
// arguments are returned in order.
type cliFlags struct {
	opts       config.ResolveOptions
	format     string
	watch      bool
	positional []string
}

func parseArgs(args []string) (*cliFlags, error) {
	f := &cliFlags{}
	i := 0
	next := func(flagName string) (string, error) {
		i++
		if i >= len(args) {
			return "", fmt.Errorf("flag %s requires a value", flagName)
		}
		return args[i], nil
	}
	for ; i < len(args); i++ {
		var err error
		switch arg := args[i]; arg {
		case "--config":
			f.opts.ConfigPath, err = next(arg)
		case "--db":
			f.opts.CLIDBPath, err = next(arg)
		case "--data-dir":
			f.opts.CLIDataDir, err = next(arg)
		case "--model":
			f.opts.CLIModelPath, err = next(arg)
		case "--tokenizer":
			f.opts.CLITokenizerPath, err = next(arg)
		case "--onnxruntime":
			f.opts.CLIORTLibrary, err = next(arg)
		case "--listen":
			f.opts.CLIListenAddr, err = next(arg)
		case "--seed":
			f.opts.CLISeed, err = next(arg)
		case "--interval":
			f.opts.CLIInterval, err = next(arg)
		case "--format":
			f.format, err = next(arg)
		case "--watch", "-w":
			f.watch = true
		default:
			if strings.HasPrefix(arg, "-") {
				return nil, fmt.Errorf("unknown flag: %s", arg)
			}
			f.positional = append(f.positional, arg)
		}
		if err != nil {
			return nil, err
		}
	}
	return f, nil
}

// pipeline bundles the wired components behind every command.
type pipeline struct {
	resolved config.ResolvedConfig
	st       store.Store
	clf      *model.Classifier
	svc      *service.Service
	analyzer *model.Analyzer
	files    *dataset.Files
	runner   *retrain.Runner
}

func (p *pipeline) close() {
	if p.clf != nil {
		p.clf.Close()
	}
	if p.st != nil {
		p.st.Close()
	}
}

// buildPipeline opens the store and dataset directories. When withModel
// is set the ONNX classifier is loaded too; commands that never predict
// skip it so they work without model files on disk.
func buildPipeline(opts config.ResolveOptions, withModel bool) (*pipeline, error) {
	resolved, err := config.ResolveConfig(opts)
	if err != nil {
		return nil, err
	}

	p := &pipeline{resolved: resolved}

	p.st, err = store.NewStore(store.StoreConfig{DBPath: resolved.DBPath.Value})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	p.files, err = dataset.NewFiles(resolved.DataDir.Value)
	if err != nil {
		p.close()
		return nil, fmt.Errorf("preparing data directory: %w", err)
	}

	seed, err := strconv.ParseInt(resolved.Seed.Value, 10, 64)
	if err != nil {
		p.close()
		return nil, fmt.Errorf("invalid seed %q: %w", resolved.Seed.Value, err)
	}
	p.runner = retrain.NewRunner(p.st, p.files, seed)

	if withModel {
		p.clf, err = model.NewClassifier(model.Config{
			ModelPath:     resolved.ModelPath.Value,
			TokenizerPath: resolved.TokenizerPath.Value,
			LibraryPath:   resolved.ORTLibrary.Value,
		})
		if err != nil {
			p.close()
			return nil, fmt.Errorf("loading classifier: %w", err)
		}
		p.svc = service.New(p.clf, p.st)
		p.analyzer = model.NewAnalyzer(p.clf)
	}

	return p, nil
}

func runServe(args []string) error {
	f, err := parseArgs(args)
	if err != nil {
		return err
	}

	p, err := buildPipeline(f.opts, true)
	if err != nil {
		return err
	}
	defer p.close()

	srv := server.New(p.svc, p.analyzer, p.st, p.files, p.runner)
	fmt.Printf("gavel %s listening on %s (db: %s)\n", version, p.resolved.ListenAddr.Value, p.resolved.DBPath.Value)
	return srv.Router().Run(p.resolved.ListenAddr.Value)
}

func runMCP(args []string) error {
	f, err := parseArgs(args)
	if err != nil {
		return err
	}

	p, err := buildPipeline(f.opts, true)
	if err != nil {
		return err
	}
	defer p.close()

	srv := mcp.NewServer(mcp.ServerConfig{
		Service:  p.svc,
		Analyzer: p.analyzer,
		Store:    p.st,
		Runner:   p.runner,
		Version:  version,
	})
	return mcpserver.ServeStdio(srv)
}

func runPredict(args []string) error {
	f, err := parseArgs(args)
	if err != nil {
		return err
	}
	if len(f.positional) == 0 {
		return fmt.Errorf("usage: gavel predict <description>")
	}
	description := strings.Join(f.positional, " ")

	p, err := buildPipeline(f.opts, true)
	if err != nil {
		return err
	}
	defer p.close()

	stored, err := p.svc.Submit(context.Background(), service.SubmitRequest{Description: description})
	if err != nil {
		return err
	}

	fmt.Printf("Case %s (id %d)\n", stored.CaseNumber, stored.ID)
	fmt.Printf("Verdict:    %s\n", stored.Verdict)
	fmt.Printf("Confidence: %.4f\n", stored.ConfidenceScore)
	return nil
}

func runAnalyze(args []string) error {
	f, err := parseArgs(args)
	if err != nil {
		return err
	}
	if len(f.positional) != 1 {
		return fmt.Errorf("usage: gavel analyze <file>")
	}

	text, err := os.ReadFile(f.positional[0])
	if err != nil {
		return fmt.Errorf("reading document: %w", err)
	}

	p, err := buildPipeline(f.opts, true)
	if err != nil {
		return err
	}
	defer p.close()

	analysis, err := p.analyzer.Analyze(context.Background(), string(text))
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runPrepare(args []string) error {
	f, err := parseArgs(args)
	if err != nil {
		return err
	}

	p, err := buildPipeline(f.opts, false)
	if err != nil {
		return err
	}
	defer p.close()

	printReport := func(r *retrain.Report) {
		fmt.Printf("Split %s: %d cases, %d train / %d validation", r.Timestamp, r.Scanned, r.TrainRows, r.ValidationRows)
		if r.Stratified {
			fmt.Print(" (stratified)")
		}
		fmt.Println()
		if r.Warning != "" {
			fmt.Printf("Warning: %s\n", r.Warning)
		}
		fmt.Printf("  %s\n  %s\n", r.TrainPath, r.ValidationPath)
	}

	if f.watch {
		interval, err := time.ParseDuration(p.resolved.Interval.Value)
		if err != nil {
			return fmt.Errorf("invalid interval %q: %w", p.resolved.Interval.Value, err)
		}
		fmt.Printf("Watching for retraining data every %s (Ctrl-C to stop)\n", interval)
		return p.runner.RunLoop(context.Background(), interval, printReport)
	}

	report, err := p.runner.Run(context.Background())
	if err != nil {
		return err
	}
	printReport(report)
	return nil
}

func runExport(args []string) error {
	f, err := parseArgs(args)
	if err != nil {
		return err
	}
	format := f.format
	if format == "" {
		format = "json"
	}

	p, err := buildPipeline(f.opts, false)
	if err != nil {
		return err
	}
	defer p.close()

	cases, err := p.st.ListAll(context.Background())
	if err != nil {
		return err
	}

	path, err := p.files.ExportCases(cases, format)
	if err != nil {
		return err
	}
	fmt.Printf("Exported %d cases to %s\n", len(cases), path)
	return nil
}

func runStats(args []string) error {
	f, err := parseArgs(args)
	if err != nil {
		return err
	}

	p, err := buildPipeline(f.opts, false)
	if err != nil {
		return err
	}
	defer p.close()

	cases, err := p.st.ListAll(context.Background())
	if err != nil {
		return err
	}
	stats := dataset.ComputeStatistics(cases)

	fmt.Printf("Total cases:    %d\n", stats.TotalCases)
	fmt.Printf("Avg confidence: %.4f\n", stats.AvgConfidence)
	if stats.TotalCases > 0 {
		fmt.Printf("Date range:     %s to %s\n",
			stats.DateRange.Start.Format("2006-01-02"), stats.DateRange.End.Format("2006-01-02"))
	}
	fmt.Println("Verdicts:")
	for _, v := range []model.Verdict{model.VerdictGuilty, model.VerdictNotGuilty, model.VerdictInconclusive} {
		fmt.Printf("  %-14s %d\n", v, stats.VerdictDistribution[string(v)])
	}
	if len(stats.CaseTypeDistribution) > 0 {
		fmt.Println("Case types:")
		for ct, n := range stats.CaseTypeDistribution {
			fmt.Printf("  %-14s %d\n", ct, n)
		}
	}
	return nil
}

func runHistory(args []string) error {
	f, err := parseArgs(args)
	if err != nil {
		return err
	}

	p, err := buildPipeline(f.opts, false)
	if err != nil {
		return err
	}
	defer p.close()

	cases, err := p.st.ListRecent(context.Background(), service.HistoryLimit)
	if err != nil {
		return err
	}
	if len(cases) == 0 {
		fmt.Println("No cases recorded yet.")
		return nil
	}
	for _, c := range cases {
		fmt.Printf("%-6d %-22s %-14s %.4f  %s\n", c.ID, c.CaseNumber, c.Verdict, c.ConfidenceScore, c.Title)
	}
	return nil
}

func printUsage() {
	fmt.Printf(`gavel %s — Legal verdict prediction pipeline

Usage:
  gavel <command> [arguments]

Commands:
  serve               Run the HTTP API server
  mcp                 Run the MCP server over stdio
  predict <text>      Predict a verdict for a case description
  analyze <file>      Analyze a legal document
  prepare             Build a train/validation split from stored cases
  export              Export all cases (json or csv)
  stats               Show corpus statistics
  history             Show the most recent cases
  version             Print version

Prepare Flags:
  -w, --watch         Keep rebuilding the split on an interval
  --interval <dur>    Rebuild interval for --watch (default 1h)

Export Flags:
  --format <fmt>      Export format: json or csv (default json)

Flags:
  --config <path>     Config file (default ~/.gavel/config.yaml)
  --db <path>         SQLite database path
  --data-dir <path>   Dataset directory
  --model <path>      ONNX model path
  --tokenizer <path>  Tokenizer JSON path
  --onnxruntime <p>   ONNX Runtime shared library path
  --listen <addr>     HTTP listen address (default :5000)
  --seed <n>          Shuffle seed for dataset splits (default 42)
  -h, --help          Show this help message
  -v, --version       Print version
`, version)
}
