package qasm

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// Program is the AST root: the declared version and the top-level items in
// source order.
type Program struct {
	Version string
	Stmts   []Stmt
}

// Stmt is any top-level or gate-body statement.
type Stmt interface {
	StmtPos() Pos
}

// Ref names a register or a single element of one: "q" or "q[3]".
type Ref struct {
	Pos      Pos
	Name     string
	Index    int
	HasIndex bool
}

func (r Ref) String() string {
	if r.HasIndex {
		return fmt.Sprintf("%s[%d]", r.Name, r.Index)
	}
	return r.Name
}

// IncludeStmt is an include directive; the parser resolves it eagerly, so a
// surviving IncludeStmt in the AST is purely informational.
type IncludeStmt struct {
	Pos  Pos
	Path string
}

// QRegDecl declares a quantum register.
type QRegDecl struct {
	Pos  Pos
	Name string
	Size int
}

// CRegDecl declares a classical register.
type CRegDecl struct {
	Pos  Pos
	Name string
	Size int
}

// GateDecl defines a user gate with formal parameters and qubit arguments.
type GateDecl struct {
	Pos    Pos
	Name   string
	Params []string
	Qubits []string
	Body   []Stmt
}

// GateCall applies a built-in or user-defined gate.
type GateCall struct {
	Pos     Pos
	Name    string
	Args    []Expr
	Targets []Ref
}

// MeasureStmt measures a qubit (or register) into a cbit (or register).
type MeasureStmt struct {
	Pos Pos
	Src Ref
	Dst Ref
}

// BarrierStmt fences the listed qubits (all qubits when empty after
// broadcast).
type BarrierStmt struct {
	Pos     Pos
	Targets []Ref
}

// ResetStmt returns a qubit (or register) to |0⟩.
type ResetStmt struct {
	Pos    Pos
	Target Ref
}

// IfStmt guards a gate call on a classical register comparison.
type IfStmt struct {
	Pos   Pos
	Reg   string
	Value int
	Call  *GateCall
}

func (s *IncludeStmt) StmtPos() Pos { return s.Pos }
func (s *QRegDecl) StmtPos() Pos    { return s.Pos }
func (s *CRegDecl) StmtPos() Pos    { return s.Pos }
func (s *GateDecl) StmtPos() Pos    { return s.Pos }
func (s *GateCall) StmtPos() Pos    { return s.Pos }
func (s *MeasureStmt) StmtPos() Pos { return s.Pos }
func (s *BarrierStmt) StmtPos() Pos { return s.Pos }
func (s *ResetStmt) StmtPos() Pos   { return s.Pos }
func (s *IfStmt) StmtPos() Pos      { return s.Pos }

// Expr is a real-valued parameter expression. Eval resolves identifiers
// through env (gate-definition formals); unknown names are an error.
type Expr interface {
	Eval(env map[string]float64) (float64, error)
	ExprPos() Pos
}

// NumExpr is a numeric literal.
type NumExpr struct {
	Pos   Pos
	Value float64
}

// PiExpr is the pi constant.
type PiExpr struct {
	Pos Pos
}

// IdentExpr references a gate-definition parameter.
type IdentExpr struct {
	Pos  Pos
	Name string
}

// UnaryExpr is unary minus.
type UnaryExpr struct {
	Pos Pos
	X   Expr
}

// BinaryExpr is one of + - * / ^.
type BinaryExpr struct {
	Pos  Pos
	Op   TokenType
	X, Y Expr
}

// CallExpr is a builtin function application: sin, cos, tan, exp, ln, sqrt,
// pow.
type CallExpr struct {
	Pos  Pos
	Fn   string
	Args []Expr
}

func (e *NumExpr) ExprPos() Pos    { return e.Pos }
func (e *PiExpr) ExprPos() Pos     { return e.Pos }
func (e *IdentExpr) ExprPos() Pos  { return e.Pos }
func (e *UnaryExpr) ExprPos() Pos  { return e.Pos }
func (e *BinaryExpr) ExprPos() Pos { return e.Pos }
func (e *CallExpr) ExprPos() Pos   { return e.Pos }

func (e *NumExpr) Eval(env map[string]float64) (float64, error) { return e.Value, nil }

func (e *PiExpr) Eval(env map[string]float64) (float64, error) { return math.Pi, nil }

func (e *IdentExpr) Eval(env map[string]float64) (float64, error) {
	if v, ok := env[e.Name]; ok {
		return v, nil
	}
	return 0, errors.Errorf("%s: undefined parameter %q", e.Pos, e.Name)
}

func (e *UnaryExpr) Eval(env map[string]float64) (float64, error) {
	v, err := e.X.Eval(env)
	return -v, err
}

func (e *BinaryExpr) Eval(env map[string]float64) (float64, error) {
	x, err := e.X.Eval(env)
	if err != nil {
		return 0, err
	}
	y, err := e.Y.Eval(env)
	if err != nil {
		return 0, err
	}
	switch e.Op {
	case TokenPlus:
		return x + y, nil
	case TokenMinus:
		return x - y, nil
	case TokenStar:
		return x * y, nil
	case TokenSlash:
		if y == 0 {
			return 0, errors.Errorf("%s: division by zero", e.Pos)
		}
		return x / y, nil
	case TokenCaret:
		return math.Pow(x, y), nil
	}
	return 0, errors.Errorf("%s: unsupported operator %s", e.Pos, e.Op)
}

var exprFuncs = map[string]func(float64) float64{
	"sin":  math.Sin,
	"cos":  math.Cos,
	"tan":  math.Tan,
	"exp":  math.Exp,
	"ln":   math.Log,
	"sqrt": math.Sqrt,
}

func (e *CallExpr) Eval(env map[string]float64) (float64, error) {
	if e.Fn == "pow" {
		if len(e.Args) != 2 {
			return 0, errors.Errorf("%s: pow wants 2 arguments, got %d", e.Pos, len(e.Args))
		}
		x, err := e.Args[0].Eval(env)
		if err != nil {
			return 0, err
		}
		y, err := e.Args[1].Eval(env)
		if err != nil {
			return 0, err
		}
		return math.Pow(x, y), nil
	}
	fn, ok := exprFuncs[e.Fn]
	if !ok {
		return 0, errors.Errorf("%s: unknown function %q", e.Pos, e.Fn)
	}
	if len(e.Args) != 1 {
		return 0, errors.Errorf("%s: %s wants 1 argument, got %d", e.Pos, e.Fn, len(e.Args))
	}
	v, err := e.Args[0].Eval(env)
	if err != nil {
		return 0, err
	}
	return fn(v), nil
}
