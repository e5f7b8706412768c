package qasm

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Diagnostic is a single parse or semantic failure at a source position.
type Diagnostic struct {
	Pos Pos
	Msg string
}

func (d Diagnostic) String() string { return fmt.Sprintf("%s: %s", d.Pos, d.Msg) }

// ParseError accumulates every diagnostic found in one parse. The parser
// recovers at statement boundaries so a single run reports as many problems
// as it can see.
type ParseError struct {
	Diags []Diagnostic
}

func (e *ParseError) Error() string {
	if len(e.Diags) == 0 {
		return "parse error"
	}
	var sb strings.Builder
	sb.WriteString(e.Diags[0].String())
	if len(e.Diags) > 1 {
		fmt.Fprintf(&sb, " (and %d more)", len(e.Diags)-1)
	}
	return sb.String()
}

// Resolver maps an include path to source bytes. The core performs no file
// I/O itself; callers supply the lookup.
type Resolver func(path string) ([]byte, error)

// Option configures a parse.
type Option func(*Parser)

// WithResolver installs an include resolver. "qelib1.inc" is always handled
// internally: its gate set is built in.
func WithResolver(r Resolver) Option {
	return func(p *Parser) { p.resolver = r }
}

const maxIncludeDepth = 8

// builtinGates maps qelib1 gate names to (param count, qubit count).
var builtinGates = map[string][2]int{
	"U":      {3, 1},
	"CX":     {0, 2},
	"u":      {3, 1},
	"u3":     {3, 1},
	"u2":     {2, 1},
	"u1":     {1, 1},
	"p":      {1, 1},
	"id":     {0, 1},
	"h":      {0, 1},
	"x":      {0, 1},
	"y":      {0, 1},
	"z":      {0, 1},
	"s":      {0, 1},
	"sdg":    {0, 1},
	"t":      {0, 1},
	"tdg":    {0, 1},
	"rx":     {1, 1},
	"ry":     {1, 1},
	"rz":     {1, 1},
	"cx":     {0, 2},
	"cz":     {0, 2},
	"swap":   {0, 2},
	"iswap":  {0, 2},
	"siswap": {0, 2},
	"cp":     {1, 2},
	"cu1":    {1, 2},
	"cu2":    {2, 2},
	"cu3":    {3, 2},
	"crx":    {1, 2},
	"cry":    {1, 2},
	"crz":    {1, 2},
	"ccx":    {0, 3},
	"ccz":    {0, 3},
	"cswap":  {0, 3},
}

// Parser is a recursive-descent parser for OpenQASM 2.0 with statement-level
// error recovery.
type Parser struct {
	toks []Token
	pos  int

	diags    []Diagnostic
	resolver Resolver

	qregs map[string]int // name → size
	cregs map[string]int
	gates map[string]*GateDecl

	includeDepth int
}

// Parse lexes and parses src, returning the AST root or a *ParseError with
// every accumulated diagnostic.
func Parse(src []byte, opts ...Option) (*Program, error) {
	p := &Parser{
		toks:  Tokens(src),
		qregs: map[string]int{},
		cregs: map[string]int{},
		gates: map[string]*GateDecl{},
	}
	for _, opt := range opts {
		opt(p)
	}
	prog := p.parseProgram()
	if len(p.diags) > 0 {
		return nil, &ParseError{Diags: p.diags}
	}
	return prog, nil
}

func (p *Parser) cur() Token  { return p.toks[p.pos] }
func (p *Parser) next() Token { t := p.toks[p.pos]; p.advance(); return t }

func (p *Parser) advance() {
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
}

func (p *Parser) at(t TokenType) bool { return p.cur().Type == t }

func (p *Parser) errorf(pos Pos, format string, args ...interface{}) {
	p.diags = append(p.diags, Diagnostic{Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

// expect consumes a token of the given type or records a diagnostic.
func (p *Parser) expect(t TokenType) (Token, bool) {
	if p.at(t) {
		return p.next(), true
	}
	tok := p.cur()
	p.errorf(tok.Pos, "expected %s, found %s", t, describe(tok))
	return tok, false
}

func describe(t Token) string {
	switch t.Type {
	case TokenIdent, TokenNumber, TokenInt:
		return fmt.Sprintf("%q", t.Text)
	case TokenEOF:
		return "end of input"
	default:
		return t.Type.String()
	}
}

// sync skips to just past the next statement boundary (';' or '}') so a
// single malformed statement yields one diagnostic, not a cascade.
func (p *Parser) sync() {
	for !p.at(TokenEOF) {
		t := p.next()
		if t.Type == TokenSemicolon || t.Type == TokenRBrace {
			return
		}
	}
}

func (p *Parser) parseProgram() *Program {
	prog := &Program{}

	if _, ok := p.expect(TokenOpenQASM); ok {
		ver := p.cur()
		if ver.Type == TokenNumber || ver.Type == TokenInt {
			prog.Version = ver.Text
			p.advance()
		} else {
			p.errorf(ver.Pos, "expected version number, found %s", describe(ver))
		}
		p.expect(TokenSemicolon)
	} else {
		p.sync()
	}

	for !p.at(TokenEOF) {
		if stmt := p.parseTopLevel(); stmt != nil {
			prog.Stmts = append(prog.Stmts, stmt...)
		}
	}
	return prog
}

func (p *Parser) parseTopLevel() []Stmt {
	tok := p.cur()
	switch tok.Type {
	case TokenInclude:
		return p.parseInclude()
	case TokenQReg:
		if s := p.parseRegDecl(true); s != nil {
			return []Stmt{s}
		}
		return nil
	case TokenCReg:
		if s := p.parseRegDecl(false); s != nil {
			return []Stmt{s}
		}
		return nil
	case TokenGate:
		if s := p.parseGateDecl(); s != nil {
			return []Stmt{s}
		}
		return nil
	default:
		if s := p.parseStatement(nil, nil); s != nil {
			return []Stmt{s}
		}
		return nil
	}
}

func (p *Parser) parseInclude() []Stmt {
	start := p.next() // include
	path, ok := p.expect(TokenString)
	if !ok {
		p.sync()
		return nil
	}
	p.expect(TokenSemicolon)

	if path.Text == "qelib1.inc" {
		// The qelib1 gate set is built in.
		return []Stmt{&IncludeStmt{Pos: start.Pos, Path: path.Text}}
	}
	if p.resolver == nil {
		p.errorf(path.Pos, "cannot resolve include %q: no resolver configured", path.Text)
		return nil
	}
	if p.includeDepth >= maxIncludeDepth {
		p.errorf(path.Pos, "include %q exceeds nesting limit %d", path.Text, maxIncludeDepth)
		return nil
	}
	src, err := p.resolver(path.Text)
	if err != nil {
		p.errorf(path.Pos, "cannot resolve include %q: %v", path.Text, err)
		return nil
	}

	// Parse the included source in the same symbol environment; its
	// declarations and statements splice in at the include site.
	sub := &Parser{
		toks:         Tokens(src),
		resolver:     p.resolver,
		qregs:        p.qregs,
		cregs:        p.cregs,
		gates:        p.gates,
		includeDepth: p.includeDepth + 1,
	}
	var stmts []Stmt
	for !sub.at(TokenEOF) {
		if s := sub.parseTopLevel(); s != nil {
			stmts = append(stmts, s...)
		}
	}
	for _, d := range sub.diags {
		p.errorf(d.Pos, "in include %q: %s", path.Text, d.Msg)
	}
	return stmts
}

func (p *Parser) declaredReg(name string) bool {
	_, q := p.qregs[name]
	_, c := p.cregs[name]
	return q || c
}

func (p *Parser) parseRegDecl(quantum bool) Stmt {
	start := p.next() // qreg / creg
	name, ok := p.expect(TokenIdent)
	if !ok {
		p.sync()
		return nil
	}
	if _, ok := p.expect(TokenLBracket); !ok {
		p.sync()
		return nil
	}
	size, ok := p.expect(TokenInt)
	if !ok {
		p.sync()
		return nil
	}
	p.expect(TokenRBracket)
	p.expect(TokenSemicolon)

	if size.Int <= 0 {
		p.errorf(size.Pos, "register %q must have positive width, got %d", name.Text, size.Int)
		return nil
	}
	if p.declaredReg(name.Text) {
		p.errorf(name.Pos, "duplicate register declaration %q", name.Text)
		return nil
	}
	if quantum {
		p.qregs[name.Text] = size.Int
		return &QRegDecl{Pos: start.Pos, Name: name.Text, Size: size.Int}
	}
	p.cregs[name.Text] = size.Int
	return &CRegDecl{Pos: start.Pos, Name: name.Text, Size: size.Int}
}

func (p *Parser) parseGateDecl() Stmt {
	start := p.next() // gate
	name, ok := p.expect(TokenIdent)
	if !ok {
		p.sync()
		return nil
	}
	decl := &GateDecl{Pos: start.Pos, Name: name.Text}

	if _, dup := builtinGates[name.Text]; dup {
		p.errorf(name.Pos, "gate %q shadows a built-in gate", name.Text)
	} else if _, dup := p.gates[name.Text]; dup {
		p.errorf(name.Pos, "duplicate gate declaration %q", name.Text)
	}

	if p.at(TokenLParen) {
		p.advance()
		for !p.at(TokenRParen) && !p.at(TokenEOF) {
			id, ok := p.expect(TokenIdent)
			if !ok {
				p.sync()
				return nil
			}
			decl.Params = append(decl.Params, id.Text)
			if p.at(TokenComma) {
				p.advance()
			}
		}
		p.expect(TokenRParen)
	}

	for p.at(TokenIdent) {
		decl.Qubits = append(decl.Qubits, p.next().Text)
		if p.at(TokenComma) {
			p.advance()
		} else {
			break
		}
	}
	if len(decl.Qubits) == 0 {
		p.errorf(p.cur().Pos, "gate %q declares no qubit arguments", decl.Name)
	}

	if _, ok := p.expect(TokenLBrace); !ok {
		p.sync()
		return nil
	}

	formals := map[string]bool{}
	for _, q := range decl.Qubits {
		formals[q] = true
	}
	params := map[string]bool{}
	for _, a := range decl.Params {
		params[a] = true
	}

	// Register before body-arity checks so self-reference is reported as
	// recursion at lowering, not as an unknown gate here.
	p.gates[decl.Name] = decl

	for !p.at(TokenRBrace) && !p.at(TokenEOF) {
		if s := p.parseStatement(formals, params); s != nil {
			decl.Body = append(decl.Body, s)
		}
	}
	p.expect(TokenRBrace)
	return decl
}

// parseStatement parses one executable statement. Inside a gate body,
// formals/params are the lexical scope; at top level both are nil.
func (p *Parser) parseStatement(formals, params map[string]bool) Stmt {
	tok := p.cur()
	switch tok.Type {
	case TokenMeasure:
		return p.parseMeasure(formals)
	case TokenBarrier:
		return p.parseBarrier(formals)
	case TokenReset:
		return p.parseReset(formals)
	case TokenIf:
		return p.parseIf(formals, params)
	case TokenIdent:
		call := p.parseGateCall(formals, params)
		if call == nil {
			return nil
		}
		return call
	case TokenSemicolon:
		p.advance() // stray semicolon
		return nil
	default:
		p.errorf(tok.Pos, "unexpected %s", describe(tok))
		p.sync()
		return nil
	}
}

// parseRef parses a register reference with optional index. Inside a gate
// body only bare formal names are legal.
func (p *Parser) parseRef(formals map[string]bool, wantQuantum bool) (Ref, bool) {
	name, ok := p.expect(TokenIdent)
	if !ok {
		return Ref{}, false
	}
	ref := Ref{Pos: name.Pos, Name: name.Text}
	if p.at(TokenLBracket) {
		p.advance()
		idx, ok := p.expect(TokenInt)
		if !ok {
			return Ref{}, false
		}
		p.expect(TokenRBracket)
		ref.Index = idx.Int
		ref.HasIndex = true
	}

	if formals != nil {
		if !formals[ref.Name] {
			p.errorf(ref.Pos, "undefined qubit argument %q in gate body", ref.Name)
			return Ref{}, false
		}
		if ref.HasIndex {
			p.errorf(ref.Pos, "gate-body qubit %q cannot be indexed", ref.Name)
			return Ref{}, false
		}
		return ref, true
	}

	sizes := p.qregs
	kind := "quantum register"
	if !wantQuantum {
		sizes = p.cregs
		kind = "classical register"
	}
	size, declared := sizes[ref.Name]
	if !declared {
		p.errorf(ref.Pos, "undefined %s %q", kind, ref.Name)
		return Ref{}, false
	}
	if ref.HasIndex && (ref.Index < 0 || ref.Index >= size) {
		p.errorf(ref.Pos, "index %d out of bounds for %s %q of width %d", ref.Index, kind, ref.Name, size)
		return Ref{}, false
	}
	return ref, true
}

func (p *Parser) parseMeasure(formals map[string]bool) Stmt {
	start := p.next() // measure
	if formals != nil {
		p.errorf(start.Pos, "measure is not allowed inside a gate body")
		p.sync()
		return nil
	}
	src, ok := p.parseRef(nil, true)
	if !ok {
		p.sync()
		return nil
	}
	if _, ok := p.expect(TokenArrow); !ok {
		p.sync()
		return nil
	}
	dst, ok := p.parseRef(nil, false)
	if !ok {
		p.sync()
		return nil
	}
	p.expect(TokenSemicolon)

	if src.HasIndex != dst.HasIndex {
		p.errorf(start.Pos, "measure mixes indexed and whole-register operands")
		return nil
	}
	if !src.HasIndex && p.qregs[src.Name] != p.cregs[dst.Name] {
		p.errorf(start.Pos, "measure width mismatch: %q has %d qubits, %q has %d bits",
			src.Name, p.qregs[src.Name], dst.Name, p.cregs[dst.Name])
		return nil
	}
	return &MeasureStmt{Pos: start.Pos, Src: src, Dst: dst}
}

func (p *Parser) parseBarrier(formals map[string]bool) Stmt {
	start := p.next() // barrier
	stmt := &BarrierStmt{Pos: start.Pos}
	for {
		ref, ok := p.parseRef(formals, true)
		if !ok {
			p.sync()
			return nil
		}
		stmt.Targets = append(stmt.Targets, ref)
		if p.at(TokenComma) {
			p.advance()
			continue
		}
		break
	}
	p.expect(TokenSemicolon)
	return stmt
}

func (p *Parser) parseReset(formals map[string]bool) Stmt {
	start := p.next() // reset
	if formals != nil {
		p.errorf(start.Pos, "reset is not allowed inside a gate body")
		p.sync()
		return nil
	}
	ref, ok := p.parseRef(nil, true)
	if !ok {
		p.sync()
		return nil
	}
	p.expect(TokenSemicolon)
	return &ResetStmt{Pos: start.Pos, Target: ref}
}

func (p *Parser) parseIf(formals, params map[string]bool) Stmt {
	start := p.next() // if
	if formals != nil {
		p.errorf(start.Pos, "if is not allowed inside a gate body")
		p.sync()
		return nil
	}
	if _, ok := p.expect(TokenLParen); !ok {
		p.sync()
		return nil
	}
	reg, ok := p.expect(TokenIdent)
	if !ok {
		p.sync()
		return nil
	}
	if _, declared := p.cregs[reg.Text]; !declared {
		p.errorf(reg.Pos, "undefined classical register %q in condition", reg.Text)
	}
	if _, ok := p.expect(TokenEqEq); !ok {
		p.sync()
		return nil
	}
	val, ok := p.expect(TokenInt)
	if !ok {
		p.sync()
		return nil
	}
	p.expect(TokenRParen)

	call := p.parseGateCall(nil, params)
	if call == nil {
		return nil
	}
	return &IfStmt{Pos: start.Pos, Reg: reg.Text, Value: val.Int, Call: call}
}

func (p *Parser) parseGateCall(formals, params map[string]bool) *GateCall {
	name, ok := p.expect(TokenIdent)
	if !ok {
		p.sync()
		return nil
	}
	call := &GateCall{Pos: name.Pos, Name: name.Text}

	if p.at(TokenLParen) {
		p.advance()
		for !p.at(TokenRParen) && !p.at(TokenEOF) {
			expr := p.parseExpr(params)
			if expr == nil {
				p.sync()
				return nil
			}
			call.Args = append(call.Args, expr)
			if p.at(TokenComma) {
				p.advance()
			} else {
				break
			}
		}
		p.expect(TokenRParen)
	}

	for {
		ref, ok := p.parseRef(formals, true)
		if !ok {
			p.sync()
			return nil
		}
		call.Targets = append(call.Targets, ref)
		if p.at(TokenComma) {
			p.advance()
			continue
		}
		break
	}
	p.expect(TokenSemicolon)

	p.checkCallArity(call)
	return call
}

// checkCallArity validates a call against the built-in table or a prior
// user definition. Built-ins resolve first.
func (p *Parser) checkCallArity(call *GateCall) {
	if shape, ok := builtinGates[call.Name]; ok {
		if len(call.Args) != shape[0] {
			p.errorf(call.Pos, "gate %q wants %d parameters, got %d", call.Name, shape[0], len(call.Args))
		}
		if len(call.Targets) != shape[1] {
			p.errorf(call.Pos, "gate %q wants %d qubits, got %d", call.Name, shape[1], len(call.Targets))
		}
		return
	}
	if decl, ok := p.gates[call.Name]; ok {
		if len(call.Args) != len(decl.Params) {
			p.errorf(call.Pos, "gate %q wants %d parameters, got %d", call.Name, len(decl.Params), len(call.Args))
		}
		if len(call.Targets) != len(decl.Qubits) {
			p.errorf(call.Pos, "gate %q wants %d qubits, got %d", call.Name, len(decl.Qubits), len(call.Targets))
		}
		return
	}
	p.errorf(call.Pos, "undefined gate %q", call.Name)
}

// Expression grammar: term-level precedence with ^ binding tightest, then
// * /, then + -; unary minus; parenthesized subexpressions; function calls.
func (p *Parser) parseExpr(params map[string]bool) Expr {
	return p.parseAdditive(params)
}

func (p *Parser) parseAdditive(params map[string]bool) Expr {
	x := p.parseMultiplicative(params)
	if x == nil {
		return nil
	}
	for p.at(TokenPlus) || p.at(TokenMinus) {
		op := p.next()
		y := p.parseMultiplicative(params)
		if y == nil {
			return nil
		}
		x = &BinaryExpr{Pos: op.Pos, Op: op.Type, X: x, Y: y}
	}
	return x
}

func (p *Parser) parseMultiplicative(params map[string]bool) Expr {
	x := p.parsePower(params)
	if x == nil {
		return nil
	}
	for p.at(TokenStar) || p.at(TokenSlash) {
		op := p.next()
		y := p.parsePower(params)
		if y == nil {
			return nil
		}
		x = &BinaryExpr{Pos: op.Pos, Op: op.Type, X: x, Y: y}
	}
	return x
}

func (p *Parser) parsePower(params map[string]bool) Expr {
	x := p.parseUnary(params)
	if x == nil {
		return nil
	}
	if p.at(TokenCaret) {
		op := p.next()
		y := p.parsePower(params) // right associative
		if y == nil {
			return nil
		}
		return &BinaryExpr{Pos: op.Pos, Op: TokenCaret, X: x, Y: y}
	}
	return x
}

func (p *Parser) parseUnary(params map[string]bool) Expr {
	if p.at(TokenMinus) {
		tok := p.next()
		x := p.parseUnary(params)
		if x == nil {
			return nil
		}
		return &UnaryExpr{Pos: tok.Pos, X: x}
	}
	return p.parsePrimary(params)
}

func (p *Parser) parsePrimary(params map[string]bool) Expr {
	tok := p.cur()
	switch tok.Type {
	case TokenNumber, TokenInt:
		p.advance()
		return &NumExpr{Pos: tok.Pos, Value: tok.Float}
	case TokenPi:
		p.advance()
		return &PiExpr{Pos: tok.Pos}
	case TokenLParen:
		p.advance()
		x := p.parseExpr(params)
		if x == nil {
			return nil
		}
		p.expect(TokenRParen)
		return x
	case TokenIdent:
		p.advance()
		if p.at(TokenLParen) {
			p.advance()
			call := &CallExpr{Pos: tok.Pos, Fn: tok.Text}
			for !p.at(TokenRParen) && !p.at(TokenEOF) {
				arg := p.parseExpr(params)
				if arg == nil {
					return nil
				}
				call.Args = append(call.Args, arg)
				if p.at(TokenComma) {
					p.advance()
				} else {
					break
				}
			}
			p.expect(TokenRParen)
			if _, ok := exprFuncs[call.Fn]; !ok && call.Fn != "pow" {
				p.errorf(tok.Pos, "unknown function %q", call.Fn)
				return nil
			}
			return call
		}
		if params != nil && !params[tok.Text] {
			p.errorf(tok.Pos, "undefined parameter %q", tok.Text)
			return nil
		}
		if params == nil {
			p.errorf(tok.Pos, "identifier %q is not a valid parameter expression here", tok.Text)
			return nil
		}
		return &IdentExpr{Pos: tok.Pos, Name: tok.Text}
	default:
		p.errorf(tok.Pos, "expected expression, found %s", describe(tok))
		return nil
	}
}

// MustParse is a test helper: it panics on any diagnostic.
func MustParse(src string) *Program {
	prog, err := Parse([]byte(src))
	if err != nil {
		panic(errors.Wrap(err, "MustParse"))
	}
	return prog
}
