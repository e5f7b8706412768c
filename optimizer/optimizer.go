// Package optimizer rewrites circuits with local algebraic passes:
// cancellation, rotation merging, bounded commutation reordering, depth
// layering and qubit remapping. Every pass is a pure Circuit → Circuit
// function iterated to a fixed point, and the composed result is
// observationally equivalent to the input up to a global phase.
package optimizer

import (
	"go.uber.org/zap"

	"qasmsim/quantum"
)

// Level selects which passes run.
//
//	0  identity
//	1  cancellation + merging
//	2  + commutation reordering
//	3  + depth layering + qubit remapping
type Level int

const (
	LevelNone Level = iota
	LevelBasic
	LevelCommute
	LevelFull
)

// maxPassSweeps caps fixed-point iteration; the displacement bound makes
// each pass terminate on its own, this is a second fence for pass
// interactions.
const maxPassSweeps = 64

// PassError reports an invariant violation inside a pass. It should be
// unreachable; when it fires the original circuit is returned untouched.
type PassError struct {
	Pass string
	Msg  string
}

func (e *PassError) Error() string { return "pass " + e.Pass + ": " + e.Msg }

// Report carries what the optimizer did: per-pass rewrite counts, the final
// depth, and the qubit permutation applied by remapping (identity when the
// pass did not run). QubitMap[old] = new.
type Report struct {
	Level     Level
	Sweeps    int
	Cancelled int
	Merged    int
	Commuted  int
	Depth     int
	QubitMap  []int
}

// Option configures an optimizer.
type Option func(*Optimizer)

// WithLogger attaches a logger; pass statistics land at Debug.
func WithLogger(lg *zap.Logger) Option {
	return func(o *Optimizer) { o.log = lg }
}

// Optimizer applies rewrite passes at a fixed level.
type Optimizer struct {
	log *zap.Logger
}

// New returns an optimizer.
func New(opts ...Option) *Optimizer {
	o := &Optimizer{log: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Optimize is the package-level convenience around New().Run.
func Optimize(c *quantum.Circuit, level Level) (*quantum.Circuit, *Report, error) {
	return New().Run(c, level)
}

// Run rewrites the circuit at the given level. The input is never mutated;
// on any pass error the original circuit is returned with the error.
func (o *Optimizer) Run(c *quantum.Circuit, level Level) (*quantum.Circuit, *Report, error) {
	report := &Report{Level: level, QubitMap: identityMap(c.NumQubits)}
	if level <= LevelNone {
		report.Depth = c.Depth()
		return c, report, nil
	}

	work := c.Clone()

	// Rewrite passes iterate together: commutation exposes cancellations,
	// cancellations expose merges. Stop when a full sweep changes nothing.
	for sweep := 0; sweep < maxPassSweeps; sweep++ {
		changed := false
		report.Sweeps = sweep + 1

		n := cancelPass(work)
		report.Cancelled += n
		changed = changed || n > 0

		n = mergePass(work)
		report.Merged += n
		changed = changed || n > 0

		if level >= LevelCommute {
			n = commutePass(work)
			report.Commuted += n
			changed = changed || n > 0
		}

		if !changed {
			break
		}
	}

	if level >= LevelFull {
		layered, err := layerPass(work)
		if err != nil {
			return c, report, err
		}
		work = layered

		remapped, qubitMap, err := remapPass(work)
		if err != nil {
			return c, report, err
		}
		work = remapped
		report.QubitMap = qubitMap
	}

	if err := work.Validate(); err != nil {
		return c, report, &PassError{Pass: "final", Msg: err.Error()}
	}
	report.Depth = work.Depth()
	work.Freeze()

	o.log.Debug("optimized circuit",
		zap.Int("level", int(level)),
		zap.Int("sweeps", report.Sweeps),
		zap.Int("cancelled", report.Cancelled),
		zap.Int("merged", report.Merged),
		zap.Int("commuted", report.Commuted),
		zap.Int("gates_in", len(c.Gates)),
		zap.Int("gates_out", len(work.Gates)),
		zap.Int("depth", report.Depth),
	)
	return work, report, nil
}

func identityMap(n int) []int {
	m := make([]int, n)
	for i := range m {
		m[i] = i
	}
	return m
}
