package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/philipparndt/stl2step/internal/config"
	"github.com/philipparndt/stl2step/internal/convert"
	"github.com/philipparndt/stl2step/internal/logging"
	"github.com/philipparndt/stl2step/version"
)

// app holds the flag values and the state shared by all commands
type app struct {
	configPath string
	envFile    string
	logLevel   string

	outputDir     string
	jobs          int
	weldTolerance float64
	noMerge       bool
	color         string

	cfg    *config.Config
	logger *slog.Logger
}

func newApp() *app {
	return &app{}
}

// log returns the configured logger, or a stderr logger when configuration
// failed before one was built
func (a *app) log() *slog.Logger {
	if a.logger == nil {
		return logging.NewLogger(os.Stderr, logging.LevelWarn)
	}
	return a.logger
}

// setup loads the configuration, applies explicitly set flags on top and
// builds the logger
func (a *app) setup(cmd *cobra.Command) error {
	cfg, resolved, exists, err := config.Load(a.configPath, a.envFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("output-dir") {
		cfg.Convert.OutputDir = a.outputDir
	}
	if flags.Changed("jobs") {
		cfg.Convert.Jobs = a.jobs
	}
	if flags.Changed("weld-tolerance") {
		cfg.Clean.WeldTolerance = a.weldTolerance
	}
	if flags.Changed("no-merge") {
		cfg.Clean.MergeCoplanar = !a.noMerge
	}
	if flags.Changed("color") {
		cfg.Step.Color = a.color
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logging.NewLogger(cmd.ErrOrStderr(), level)
	if exists {
		a.logger.Debug("loaded configuration", "path", resolved)
	}
	return nil
}

func (a *app) converter() *convert.Converter {
	return convert.New(a.cfg, a.logger)
}

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stl2step [file ...]",
		Short: "Convert STL meshes into STEP solids",
		Long: `stl2step reads STL files (ASCII or binary) or OpenSCAD sources, repairs the
mesh (welds vertices, drops degenerate and duplicate triangles, fixes the
winding, merges coplanar triangles into faces) and writes a STEP AP214 file
with the same base name.

Without arguments the configured default input is converted.`,
		Args:          cobra.ArbitraryArgs,
		Version:       version.GetFullVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "completion" || cmd.Name() == "version" {
				return nil
			}
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs := args
			if len(inputs) == 0 {
				inputs = []string{a.cfg.Convert.Input}
			}
			outputs, err := a.converter().ConvertAll(cmd.Context(), inputs)
			if err != nil {
				return err
			}
			for _, out := range outputs {
				a.logger.Info("converted", "output", out)
			}
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "Configuration file (default ./stl2step.toml or the user config directory)")
	pf.StringVar(&a.envFile, "env-file", "", "Load STL2STEP_* variables from a .env file")
	pf.StringVar(&a.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	pf.StringVarP(&a.outputDir, "output-dir", "o", ".", "Directory for written STEP files")
	pf.IntVarP(&a.jobs, "jobs", "j", 0, "Concurrent conversions (default one per CPU)")
	pf.Float64Var(&a.weldTolerance, "weld-tolerance", 1e-6, "Distance below which vertices are merged")
	pf.BoolVar(&a.noMerge, "no-merge", false, "Keep every triangle as its own face")
	pf.StringVar(&a.color, "color", "", "Surface colour, e.g. #c0c0c0 or rgb(192,192,192)")

	rootCmd.AddCommand(newInfoCommand(a))
	rootCmd.AddCommand(newWatchCommand(a))
	rootCmd.AddCommand(newCompletionCommand(rootCmd))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}
