package qasm

import (
	"qasmsim/quantum"

	"github.com/pkg/errors"
)

// ErrRecursion is returned when user-gate inlining exceeds the configured
// depth, which is how recursive definitions surface.
var ErrRecursion = errors.New("gate inlining recursion limit exceeded")

// DefaultInlineDepth bounds user-gate inlining.
const DefaultInlineDepth = 16

// Layout records how declared registers map onto the circuit's flat qubit
// and cbit indices. Registers are concatenated in declaration order. The
// circuit itself only sees flat indices; the layout exists for diagnostics
// and printers.
type Layout struct {
	QubitOffset map[string]int
	QubitSize   map[string]int
	CbitOffset  map[string]int
	CbitSize    map[string]int
	QRegOrder   []string
	CRegOrder   []string
	NumQubits   int
	NumCbits    int
}

// QubitIndex flattens (register, index) into a circuit qubit index.
func (l *Layout) QubitIndex(reg string, idx int) (int, bool) {
	off, ok := l.QubitOffset[reg]
	if !ok || idx < 0 || idx >= l.QubitSize[reg] {
		return 0, false
	}
	return off + idx, true
}

// CbitIndex flattens (register, index) into a circuit cbit index.
func (l *Layout) CbitIndex(reg string, idx int) (int, bool) {
	off, ok := l.CbitOffset[reg]
	if !ok || idx < 0 || idx >= l.CbitSize[reg] {
		return 0, false
	}
	return off + idx, true
}

// QubitName maps a flat qubit index back to "reg[i]" notation.
func (l *Layout) QubitName(flat int) string {
	for _, reg := range l.QRegOrder {
		off := l.QubitOffset[reg]
		if flat >= off && flat < off+l.QubitSize[reg] {
			return (&Ref{Name: reg, Index: flat - off, HasIndex: true}).String()
		}
	}
	return (&Ref{Name: "q", Index: flat, HasIndex: true}).String()
}

// LowerOption configures lowering.
type LowerOption func(*lowerer)

// WithInlineDepth overrides the user-gate inlining limit.
func WithInlineDepth(depth int) LowerOption {
	return func(lw *lowerer) { lw.maxDepth = depth }
}

type lowerer struct {
	layout   *Layout
	circuit  *quantum.Circuit
	gates    map[string]*GateDecl
	maxDepth int
}

// Lower walks a validated AST in source order and produces a single frozen
// Circuit plus the register layout.
func Lower(prog *Program, opts ...LowerOption) (*quantum.Circuit, *Layout, error) {
	lw := &lowerer{
		layout: &Layout{
			QubitOffset: map[string]int{},
			QubitSize:   map[string]int{},
			CbitOffset:  map[string]int{},
			CbitSize:    map[string]int{},
		},
		gates:    map[string]*GateDecl{},
		maxDepth: DefaultInlineDepth,
	}
	for _, opt := range opts {
		opt(lw)
	}

	// Register widths first: the circuit needs its dimensions before any
	// gate lands.
	for _, stmt := range prog.Stmts {
		switch s := stmt.(type) {
		case *QRegDecl:
			lw.layout.QubitOffset[s.Name] = lw.layout.NumQubits
			lw.layout.QubitSize[s.Name] = s.Size
			lw.layout.QRegOrder = append(lw.layout.QRegOrder, s.Name)
			lw.layout.NumQubits += s.Size
		case *CRegDecl:
			lw.layout.CbitOffset[s.Name] = lw.layout.NumCbits
			lw.layout.CbitSize[s.Name] = s.Size
			lw.layout.CRegOrder = append(lw.layout.CRegOrder, s.Name)
			lw.layout.NumCbits += s.Size
		}
	}
	if lw.layout.NumQubits == 0 {
		return nil, nil, errors.New("program declares no quantum registers")
	}

	circuit, err := quantum.NewCircuit(lw.layout.NumQubits, lw.layout.NumCbits)
	if err != nil {
		return nil, nil, err
	}
	lw.circuit = circuit

	for _, stmt := range prog.Stmts {
		if err := lw.stmt(stmt); err != nil {
			return nil, nil, err
		}
	}
	circuit.Freeze()
	return circuit, lw.layout, nil
}

func (lw *lowerer) stmt(stmt Stmt) error {
	switch s := stmt.(type) {
	case *QRegDecl, *CRegDecl, *IncludeStmt:
		return nil
	case *GateDecl:
		lw.gates[s.Name] = s
		return nil
	case *GateCall:
		gates, err := lw.lowerCall(s, nil, nil, 0)
		if err != nil {
			return err
		}
		for _, g := range gates {
			if err := lw.circuit.Append(g); err != nil {
				return errors.Wrapf(err, "%s", s.Pos)
			}
		}
		return nil
	case *MeasureStmt:
		return lw.lowerMeasure(s)
	case *BarrierStmt:
		return lw.lowerBarrier(s)
	case *ResetStmt:
		return lw.lowerReset(s)
	case *IfStmt:
		return lw.lowerIf(s)
	}
	return errors.Errorf("unhandled statement at %s", stmt.StmtPos())
}

// expandTargets broadcasts whole-register references. All whole registers in
// one call must share a width; indexed references repeat across the
// broadcast.
func (lw *lowerer) expandTargets(pos Pos, targets []Ref) ([][]int, error) {
	width := 0
	for _, ref := range targets {
		if !ref.HasIndex {
			size, ok := lw.layout.QubitSize[ref.Name]
			if !ok {
				return nil, errors.Errorf("%s: undefined quantum register %q", ref.Pos, ref.Name)
			}
			if width == 0 {
				width = size
			} else if size != width {
				return nil, errors.Errorf("%s: broadcast width mismatch: %q has %d qubits, expected %d",
					ref.Pos, ref.Name, size, width)
			}
		}
	}
	if width == 0 {
		width = 1
	}

	rows := make([][]int, width)
	for i := 0; i < width; i++ {
		row := make([]int, len(targets))
		for j, ref := range targets {
			idx := ref.Index
			if !ref.HasIndex {
				idx = i
			}
			flat, ok := lw.layout.QubitIndex(ref.Name, idx)
			if !ok {
				return nil, errors.Errorf("%s: qubit %s[%d] out of range", ref.Pos, ref.Name, idx)
			}
			row[j] = flat
		}
		rows[i] = row
	}
	return rows, nil
}

// builtinKind resolves names the parser accepted to circuit kinds.
func builtinKind(name string) (quantum.Kind, bool) {
	switch name {
	case "U", "u":
		return quantum.KindU3, true
	case "CX":
		return quantum.KindCNOT, true
	}
	return quantum.KindFromName(name)
}

// lowerCall expands one gate call into concrete gates. env/qubitEnv carry a
// gate body's lexical scope during inlining; depth guards recursion.
func (lw *lowerer) lowerCall(call *GateCall, env map[string]float64, qubitEnv map[string]int, depth int) ([]quantum.Gate, error) {
	if depth > lw.maxDepth {
		return nil, errors.Wrapf(ErrRecursion, "%s: inlining gate %q", call.Pos, call.Name)
	}

	params := make([]float64, len(call.Args))
	for i, arg := range call.Args {
		v, err := arg.Eval(env)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: parameter %d of %q", call.Pos, i, call.Name)
		}
		params[i] = v
	}

	var rows [][]int
	if qubitEnv != nil {
		row := make([]int, len(call.Targets))
		for j, ref := range call.Targets {
			flat, ok := qubitEnv[ref.Name]
			if !ok {
				return nil, errors.Errorf("%s: undefined qubit argument %q", ref.Pos, ref.Name)
			}
			row[j] = flat
		}
		rows = [][]int{row}
	} else {
		var err error
		rows, err = lw.expandTargets(call.Pos, call.Targets)
		if err != nil {
			return nil, err
		}
	}

	// Built-ins resolve first, then user definitions.
	if _, isBuiltin := builtinGates[call.Name]; isBuiltin {
		var out []quantum.Gate
		for _, qubits := range rows {
			g, err := lw.builtinGate(call, params, qubits)
			if err != nil {
				return nil, err
			}
			out = append(out, g)
		}
		return out, nil
	}

	decl, ok := lw.gates[call.Name]
	if !ok {
		return nil, errors.Errorf("%s: undefined gate %q", call.Pos, call.Name)
	}
	if len(params) != len(decl.Params) || len(call.Targets) != len(decl.Qubits) {
		return nil, errors.Errorf("%s: gate %q arity mismatch", call.Pos, call.Name)
	}

	var out []quantum.Gate
	for _, qubits := range rows {
		innerEnv := make(map[string]float64, len(decl.Params))
		for i, name := range decl.Params {
			innerEnv[name] = params[i]
		}
		innerQubits := make(map[string]int, len(decl.Qubits))
		for i, name := range decl.Qubits {
			innerQubits[name] = qubits[i]
		}
		for _, body := range decl.Body {
			switch b := body.(type) {
			case *GateCall:
				gates, err := lw.lowerCall(b, innerEnv, innerQubits, depth+1)
				if err != nil {
					return nil, err
				}
				out = append(out, gates...)
			case *BarrierStmt:
				qs := make([]int, 0, len(b.Targets))
				for _, ref := range b.Targets {
					flat, ok := innerQubits[ref.Name]
					if !ok {
						return nil, errors.Errorf("%s: undefined qubit argument %q", ref.Pos, ref.Name)
					}
					qs = append(qs, flat)
				}
				out = append(out, quantum.NewBarrier(qs))
			default:
				return nil, errors.Errorf("%s: unsupported statement in gate body", body.StmtPos())
			}
		}
	}
	return out, nil
}

func (lw *lowerer) builtinGate(call *GateCall, params []float64, qubits []int) (quantum.Gate, error) {
	if call.Name == "id" {
		// id == u1(0); keep it explicit so the gate count is faithful.
		g, err := quantum.NewGate(quantum.KindU1, qubits, []float64{0})
		return g, errors.Wrapf(err, "%s", call.Pos)
	}
	kind, ok := builtinKind(call.Name)
	if !ok {
		return quantum.Gate{}, errors.Errorf("%s: undefined gate %q", call.Pos, call.Name)
	}
	g, err := quantum.NewGate(kind, qubits, params)
	if err != nil {
		return quantum.Gate{}, errors.Wrapf(err, "%s", call.Pos)
	}
	return g, nil
}

func (lw *lowerer) lowerMeasure(s *MeasureStmt) error {
	if s.Src.HasIndex {
		q, ok := lw.layout.QubitIndex(s.Src.Name, s.Src.Index)
		if !ok {
			return errors.Errorf("%s: qubit %s out of range", s.Pos, s.Src)
		}
		c, ok := lw.layout.CbitIndex(s.Dst.Name, s.Dst.Index)
		if !ok {
			return errors.Errorf("%s: cbit %s out of range", s.Pos, s.Dst)
		}
		return errors.Wrapf(lw.circuit.AddMeasure(q, c), "%s", s.Pos)
	}

	size := lw.layout.QubitSize[s.Src.Name]
	for i := 0; i < size; i++ {
		q, _ := lw.layout.QubitIndex(s.Src.Name, i)
		c, ok := lw.layout.CbitIndex(s.Dst.Name, i)
		if !ok {
			return errors.Errorf("%s: cbit %s[%d] out of range", s.Pos, s.Dst.Name, i)
		}
		if err := lw.circuit.AddMeasure(q, c); err != nil {
			return errors.Wrapf(err, "%s", s.Pos)
		}
	}
	return nil
}

func (lw *lowerer) lowerBarrier(s *BarrierStmt) error {
	var qubits []int
	for _, ref := range s.Targets {
		if ref.HasIndex {
			q, ok := lw.layout.QubitIndex(ref.Name, ref.Index)
			if !ok {
				return errors.Errorf("%s: qubit %s out of range", s.Pos, ref)
			}
			qubits = append(qubits, q)
			continue
		}
		size := lw.layout.QubitSize[ref.Name]
		for i := 0; i < size; i++ {
			q, _ := lw.layout.QubitIndex(ref.Name, i)
			qubits = append(qubits, q)
		}
	}
	return errors.Wrapf(lw.circuit.AddBarrier(qubits...), "%s", s.Pos)
}

func (lw *lowerer) lowerReset(s *ResetStmt) error {
	if s.Target.HasIndex {
		q, ok := lw.layout.QubitIndex(s.Target.Name, s.Target.Index)
		if !ok {
			return errors.Errorf("%s: qubit %s out of range", s.Pos, s.Target)
		}
		return errors.Wrapf(lw.circuit.Add(quantum.KindReset, []int{q}), "%s", s.Pos)
	}
	size := lw.layout.QubitSize[s.Target.Name]
	for i := 0; i < size; i++ {
		q, _ := lw.layout.QubitIndex(s.Target.Name, i)
		if err := lw.circuit.Add(quantum.KindReset, []int{q}); err != nil {
			return errors.Wrapf(err, "%s", s.Pos)
		}
	}
	return nil
}

func (lw *lowerer) lowerIf(s *IfStmt) error {
	off, ok := lw.layout.CbitOffset[s.Reg]
	if !ok {
		return errors.Errorf("%s: undefined classical register %q", s.Pos, s.Reg)
	}
	size := lw.layout.CbitSize[s.Reg]
	mask := uint64((1<<uint(size))-1) << uint(off)
	value := uint64(s.Value) << uint(off)

	gates, err := lw.lowerCall(s.Call, nil, nil, 0)
	if err != nil {
		return err
	}
	for _, g := range gates {
		if err := lw.circuit.AddConditional(g, mask, value); err != nil {
			return errors.Wrapf(err, "%s", s.Pos)
		}
	}
	return nil
}

// Compile parses and lowers in one call, the common front door.
func Compile(src []byte, opts ...Option) (*quantum.Circuit, *Layout, error) {
	prog, err := Parse(src, opts...)
	if err != nil {
		return nil, nil, err
	}
	return Lower(prog)
}
