package cmd

import (
	"errors"
	"fmt"
	"time"

	"iconfont/pkg/config"
	"iconfont/pkg/fontcustom"
	"iconfont/pkg/logging"
	"iconfont/pkg/pipeline"
	"iconfont/pkg/source"
	"iconfont/pkg/version"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// errReported signals that the run finished but stages reported errors.
var errReported = errors.New("icon font generation reported errors")

type compileFlags struct {
	configFile     string
	envFile        string
	dest           string
	tool           string
	workspaceRoot  string
	fontName       string
	set            map[string]string
	timeout        time.Duration
	concurrency    int
	maxFileSizeKB  int
	workers        int
	ignoreFile     string
	ignorePatterns []string
	verify         bool
	noSummary      bool
}

var compileOpts compileFlags

var compileCmd = &cobra.Command{
	Use:   "compile [paths...]",
	Short: "Generate icon fonts from SVG icons",
	Long: `Walks the given paths (default: current directory), groups *.svg files by
directory, runs "fontcustom compile" once per directory and writes the
generated fonts together with every other file to --dest.`,
	RunE: runCompile,
}

func init() {
	f := compileCmd.Flags()
	f.StringVarP(&compileOpts.configFile, "config", "c", "", "YAML configuration file")
	f.StringVar(&compileOpts.envFile, "env-file", ".env", "Environment file loaded before ICONFONT_* variables")
	f.StringVarP(&compileOpts.dest, "dest", "d", "", "Destination directory")
	f.StringVar(&compileOpts.tool, "tool", "", "fontcustom executable")
	f.StringVar(&compileOpts.workspaceRoot, "workspace-root", "", "Directory for temporary workspaces")
	f.StringVarP(&compileOpts.fontName, "font-name", "n", "", "Font name passed to fontcustom")
	f.StringToStringVar(&compileOpts.set, "set", nil, "Extra fontcustom option as key=value (repeatable)")
	f.DurationVar(&compileOpts.timeout, "timeout", 0, "Timeout per fontcustom invocation (0 = none)")
	f.IntVar(&compileOpts.concurrency, "concurrency", 0, "Maximum simultaneous fontcustom runs (0 = unlimited)")
	f.IntVar(&compileOpts.maxFileSizeKB, "max-file-size", 0, "Skip source files larger than this many KB")
	f.IntVar(&compileOpts.workers, "workers", 0, "Concurrent file readers (0 = number of CPUs)")
	f.StringVar(&compileOpts.ignoreFile, "ignore-file", "", "Global ignore file applied to every path")
	f.StringSliceVar(&compileOpts.ignorePatterns, "ignore", nil, "Additional ignore patterns")
	f.BoolVar(&compileOpts.verify, "verify", false, "Parse generated TrueType fonts and report broken ones")
	f.BoolVar(&compileOpts.noSummary, "no-summary", false, "Do not print the summary table")

	RootCmd.AddCommand(compileCmd)
}

func runCompile(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(compileOpts.envFile, compileOpts.configFile)
	if err != nil {
		logger.Error("Failed to load configuration", zap.Error(err))
		return err
	}
	if err := applyFlags(cmd, &cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Debug && !debug {
		if logger, err = logging.Setup(true, version.AppName, version.Get().Version); err != nil {
			return err
		}
	}

	paths := args
	if len(paths) == 0 {
		paths = []string{"."}
	}

	files, err := source.Src(paths, source.Options{
		MaxFileSizeKB:  cfg.MaxFileSizeKB,
		MaxWorkers:     cfg.MaxWorkers,
		IgnoreFiles:    nonEmpty(cfg.IgnoreFile),
		IgnorePatterns: compileOpts.ignorePatterns,
		Exclude:        []string{cfg.Dest},
		ExcludeNames:   []string{fontcustom.WorkspaceGlob},
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to collect files: %w", err)
	}

	runner := fontcustom.NewExecRunner(cfg.Tool, logger)
	stages := []pipeline.Stage{fontcustom.New(cfg.StageConfig(runner), logger)}
	if cfg.Verify {
		stages = append(stages, fontcustom.NewVerifier(logger))
	}

	res, err := pipeline.Run(cmd.Context(), files, logger, stages...)
	if err != nil {
		return err
	}

	written, err := source.Dest(cfg.Dest, res.Files, logger)
	if err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	logger.Info("Wrote output", zap.String("dest", cfg.Dest), zap.Int("files", written))

	if !compileOpts.noSummary {
		if err := printSummary(res, cfg.Dest, written); err != nil {
			logger.Warn("Failed to render summary", zap.Error(err))
		}
	}

	if len(res.Errors) > 0 {
		return fmt.Errorf("%w: %d", errReported, len(res.Errors))
	}
	return nil
}

// applyFlags overrides configuration values with explicitly set flags.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("dest") {
		cfg.Dest = compileOpts.dest
	}
	if f.Changed("tool") {
		cfg.Tool = compileOpts.tool
	}
	if f.Changed("workspace-root") {
		cfg.WorkspaceRoot = compileOpts.workspaceRoot
	}
	if f.Changed("timeout") {
		cfg.Timeout = compileOpts.timeout
	}
	if f.Changed("concurrency") {
		cfg.Concurrency = compileOpts.concurrency
	}
	if f.Changed("max-file-size") {
		cfg.MaxFileSizeKB = compileOpts.maxFileSizeKB
	}
	if f.Changed("workers") {
		cfg.MaxWorkers = compileOpts.workers
	}
	if f.Changed("ignore-file") {
		cfg.IgnoreFile = compileOpts.ignoreFile
	}
	if f.Changed("verify") {
		cfg.Verify = compileOpts.verify
	}
	for k, v := range compileOpts.set {
		if err := cfg.Options.Set(k, v); err != nil {
			return fmt.Errorf("invalid --set: %w", err)
		}
	}
	if f.Changed("font-name") {
		cfg.Options.FontName = compileOpts.fontName
	}
	return nil
}

func nonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}

func printSummary(res *pipeline.Result, dest string, written int) error {
	data := pterm.TableData{{"File", "Bytes"}}
	for _, f := range res.Files {
		if f.IsBuffer() {
			data = append(data, []string{f.Relative(), fmt.Sprint(len(f.Contents))})
		}
	}
	if len(data) > 1 {
		if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
			return err
		}
	}

	for _, e := range res.Errors {
		pterm.Error.Println(e.Error())
	}
	if len(res.Errors) == 0 {
		pterm.Success.Printfln("Wrote %d files to %s", written, dest)
	} else {
		pterm.Warning.Printfln("Wrote %d files to %s with %d error(s)", written, dest, len(res.Errors))
	}
	return nil
}
