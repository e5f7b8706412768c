// Command qasmsim compiles, optimizes, simulates and debugs OpenQASM 2.0
// programs on the dense state-vector engine.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"qasmsim/config"
	"qasmsim/optimizer"
	"qasmsim/qasm"
	"qasmsim/quantum"
	"qasmsim/sim"
	"qasmsim/tui"
)

const (
	exitOK      = 0
	exitUser    = 1
	exitRuntime = 2
)

type app struct {
	cfg config.Config
	log *zap.Logger

	configPath string
	optLevel   int
	shots      int
	seed       int64
	noiseSpec  string
	maxQubits  int
	format     string
}

func main() {
	os.Exit(run())
}

func run() int {
	a := &app{cfg: config.Default()}

	root := &cobra.Command{
		Use:           "qasmsim",
		Short:         "OpenQASM 2.0 compiler and state-vector simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "YAML config file")
	pf.IntVar(&a.optLevel, "optimize", 0, "optimization level 0..3")
	pf.IntVar(&a.shots, "shots", 1024, "shots for measurement runs")
	pf.Int64Var(&a.seed, "seed", 1, "engine PRNG seed")
	pf.StringVar(&a.noiseSpec, "noise", "", "noise channel, e.g. depolarizing:0.01")
	pf.IntVar(&a.maxQubits, "max-qubits", 0, "reject circuits wider than this")
	pf.StringVar(&a.format, "format", "qasm", "output format: qasm or json")

	root.AddCommand(
		a.compileCmd(),
		a.optimizeCmd(),
		a.simulateCmd(),
		a.measureCmd(),
		a.debugCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "qasmsim:", err)
		if isUserError(err) {
			return exitUser
		}
		return exitRuntime
	}
	return exitOK
}

// setup merges the config file with flag overrides and builds the logger.
func (a *app) setup() error {
	if a.configPath != "" {
		cfg, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}
	if a.optLevel != 0 {
		a.cfg.OptLevel = a.optLevel
	}
	if a.shots != 1024 {
		a.cfg.Shots = a.shots
	}
	if a.seed != 1 {
		a.cfg.Seed = a.seed
	}
	if a.noiseSpec != "" {
		a.cfg.Noise = a.noiseSpec
	}
	if a.maxQubits != 0 {
		a.cfg.MaxQubits = a.maxQubits
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	var err error
	if a.cfg.Verbose {
		a.log, err = zap.NewDevelopment()
	} else {
		a.log = zap.NewNop()
	}
	return err
}

// isUserError separates exit code 1 (bad input) from 2 (runtime failure).
func isUserError(err error) bool {
	var perr *qasm.ParseError
	if errors.As(err, &perr) {
		return true
	}
	var verr *quantum.ValidationError
	if errors.As(err, &verr) {
		return true
	}
	var nerr *sim.NoiseError
	return errors.As(err, &nerr)
}

// loadSource reads the program from a path, or stdin for "-".
func loadSource(path string) ([]byte, error) {
	if path == "-" {
		src, err := io.ReadAll(os.Stdin)
		return src, errors.Wrap(err, "reading stdin")
	}
	src, err := os.ReadFile(path)
	return src, errors.Wrapf(err, "reading %q", path)
}

// fileResolver resolves include paths relative to the source file.
func fileResolver(srcPath string) qasm.Resolver {
	dir := filepath.Dir(srcPath)
	return func(name string) ([]byte, error) {
		return os.ReadFile(filepath.Join(dir, name))
	}
}

func (a *app) compileSource(path string) (*quantum.Circuit, *qasm.Layout, error) {
	src, err := loadSource(path)
	if err != nil {
		return nil, nil, err
	}
	prog, err := qasm.Parse(src, qasm.WithResolver(fileResolver(path)))
	if err != nil {
		return nil, nil, err
	}
	circuit, layout, err := qasm.Lower(prog, qasm.WithInlineDepth(a.cfg.InlineDepth))
	if err != nil {
		return nil, nil, err
	}
	if a.cfg.MaxQubits > 0 && circuit.NumQubits > a.cfg.MaxQubits {
		return nil, nil, &quantum.ValidationError{
			Msg: fmt.Sprintf("circuit has %d qubits, limit is %d", circuit.NumQubits, a.cfg.MaxQubits),
		}
	}
	return circuit, layout, nil
}

func (a *app) newEngine(numQubits int) (*sim.Engine, error) {
	opts := []sim.EngineOption{
		sim.WithSeed(a.cfg.Seed),
		sim.WithCacheSize(a.cfg.CacheSize),
		sim.WithLogger(a.log),
	}
	if a.cfg.Noise != "" {
		model, err := sim.ParseNoiseSpec(a.cfg.Noise)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sim.WithNoise(model))
	}
	return sim.NewEngine(numQubits, opts...)
}

func (a *app) maybeOptimize(c *quantum.Circuit) (*quantum.Circuit, error) {
	if a.cfg.OptLevel == 0 {
		return c, nil
	}
	out, _, err := optimizer.New(optimizer.WithLogger(a.log)).
		Run(c, optimizer.Level(a.cfg.OptLevel))
	return out, err
}

func (a *app) emit(w io.Writer, c *quantum.Circuit, layout *qasm.Layout) error {
	switch a.format {
	case "json":
		out, err := qasm.PrintJSON(c)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(out))
		return nil
	default:
		fmt.Fprint(w, qasm.PrintQASM(c, layout))
		return nil
	}
}

func (a *app) compileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compile <file.qasm>",
		Short: "Parse and lower a program, printing the circuit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			circuit, layout, err := a.compileSource(args[0])
			if err != nil {
				return err
			}
			return a.emit(cmd.OutOrStdout(), circuit, layout)
		},
	}
}

func (a *app) optimizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "optimize <file.qasm>",
		Short: "Optimize a program and print the rewritten circuit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			circuit, layout, err := a.compileSource(args[0])
			if err != nil {
				return err
			}
			if a.cfg.OptLevel == 0 {
				a.cfg.OptLevel = 1
			}
			out, report, err := optimizer.New(optimizer.WithLogger(a.log)).
				Run(circuit, optimizer.Level(a.cfg.OptLevel))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "gates %d -> %d, depth %d\n",
				len(circuit.Gates), len(out.Gates), report.Depth)
			// Remapping renames qubits, so the original register layout no
			// longer applies.
			if a.cfg.OptLevel >= 3 {
				layout = nil
			}
			return a.emit(cmd.OutOrStdout(), out, layout)
		},
	}
}

func (a *app) simulateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "simulate <file.qasm>",
		Short: "Execute once and print amplitudes and probabilities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			circuit, _, err := a.compileSource(args[0])
			if err != nil {
				return err
			}
			circuit, err = a.maybeOptimize(circuit)
			if err != nil {
				return err
			}
			engine, err := a.newEngine(circuit.NumQubits)
			if err != nil {
				return err
			}
			if err := engine.Execute(circuit); err != nil {
				return err
			}

			s := engine.State()
			w := cmd.OutOrStdout()
			for i := 0; i < s.Len(); i++ {
				amp := s.Amplitude(i)
				prob := real(amp)*real(amp) + imag(amp)*imag(amp)
				if prob < 1e-12 {
					continue
				}
				fmt.Fprintf(w, "|%0*b⟩  %+.9f%+.9fi  p=%.9f\n",
					circuit.NumQubits, i, real(amp), imag(amp), prob)
			}
			return nil
		},
	}
}

func (a *app) measureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "measure <file.qasm>",
		Short: "Run shots and print outcome counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			circuit, _, err := a.compileSource(args[0])
			if err != nil {
				return err
			}
			circuit, err = a.maybeOptimize(circuit)
			if err != nil {
				return err
			}
			engine, err := a.newEngine(circuit.NumQubits)
			if err != nil {
				return err
			}
			counts, err := engine.Run(circuit, a.cfg.Shots)
			if err != nil {
				return err
			}

			keys := make([]string, 0, len(counts))
			for k := range counts {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			w := cmd.OutOrStdout()
			for _, k := range keys {
				fmt.Fprintf(w, "%s  %d\n", k, counts[k])
			}
			return nil
		},
	}
}

func (a *app) debugCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "debug <file.qasm>",
		Short: "Step through a program in the interactive debugger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			circuit, layout, err := a.compileSource(args[0])
			if err != nil {
				return err
			}
			circuit, err = a.maybeOptimize(circuit)
			if err != nil {
				return err
			}
			engine, err := a.newEngine(circuit.NumQubits)
			if err != nil {
				return err
			}
			debugger, err := sim.NewDebugger(circuit, engine)
			if err != nil {
				return err
			}
			return tui.Run(debugger, layout)
		},
	}
}
