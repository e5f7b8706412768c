package qasm

import (
	"math"
	"strings"
	"testing"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBellProgram(t *testing.T) {
	src := heredoc.Doc(`
		OPENQASM 2.0;
		include "qelib1.inc";
		qreg q[2];
		creg c[2];
		h q[0];
		cx q[0], q[1];
		measure q[0] -> c[0];
		measure q[1] -> c[1];
	`)
	prog, err := Parse([]byte(src))
	require.NoError(t, err)
	assert.Equal(t, "2.0", prog.Version)

	var calls, measures int
	for _, s := range prog.Stmts {
		switch s.(type) {
		case *GateCall:
			calls++
		case *MeasureStmt:
			measures++
		}
	}
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, measures)
}

func TestParseAccumulatesDiagnostics(t *testing.T) {
	src := heredoc.Doc(`
		OPENQASM 2.0;
		qreg q[2];
		bogus q[0];
		h q[5];
		cx q[0];
	`)
	_, err := Parse([]byte(src))
	require.Error(t, err)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	// One diagnostic per broken statement: unknown gate, index out of
	// bounds, arity mismatch.
	require.Len(t, perr.Diags, 3)
	assert.Contains(t, perr.Diags[0].Msg, "undefined gate")
	assert.Contains(t, perr.Diags[1].Msg, "out of bounds")
	assert.Contains(t, perr.Diags[2].Msg, "wants 2 qubits")
	assert.Equal(t, 3, perr.Diags[0].Pos.Line)
}

func TestParseSemanticChecks(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"zero width register", "OPENQASM 2.0; qreg q[0];", "positive width"},
		{"duplicate register", "OPENQASM 2.0; qreg q[2]; creg q[2];", "duplicate register"},
		{"undefined register", "OPENQASM 2.0; qreg q[1]; h r[0];", "undefined quantum register"},
		{"undefined creg in if", "OPENQASM 2.0; qreg q[1]; if (c==1) x q[0];", "undefined classical register"},
		{"measure into missing creg", "OPENQASM 2.0; qreg q[1]; measure q[0] -> c[0];", "undefined classical register"},
		{"measure width mismatch", "OPENQASM 2.0; qreg q[2]; creg c[1]; measure q -> c;", "width mismatch"},
		{"duplicate gate", "OPENQASM 2.0; gate foo a { x a; } gate foo a { y a; }", "duplicate gate"},
		{"shadow builtin", "OPENQASM 2.0; qreg q[1]; gate h a { x a; }", "shadows a built-in"},
	}
	for _, tt := range tests {
		_, err := Parse([]byte(tt.src))
		require.Error(t, err, tt.name)
		var perr *ParseError
		require.ErrorAs(t, err, &perr, tt.name)
		found := false
		for _, d := range perr.Diags {
			if strings.Contains(d.Msg, tt.want) {
				found = true
			}
		}
		assert.True(t, found, "%s: diagnostics %v should mention %q", tt.name, perr.Diags, tt.want)
	}
}

func TestParseGateDefinition(t *testing.T) {
	src := heredoc.Doc(`
		OPENQASM 2.0;
		qreg q[2];
		gate bell a, b {
			h a;
			cx a, b;
		}
		bell q[0], q[1];
	`)
	prog, err := Parse([]byte(src))
	require.NoError(t, err)

	var decl *GateDecl
	for _, s := range prog.Stmts {
		if d, ok := s.(*GateDecl); ok {
			decl = d
		}
	}
	require.NotNil(t, decl)
	assert.Equal(t, "bell", decl.Name)
	assert.Equal(t, []string{"a", "b"}, decl.Qubits)
	assert.Len(t, decl.Body, 2)
}

func TestParseExpressions(t *testing.T) {
	tests := []struct {
		expr string
		want float64
	}{
		{"pi", math.Pi},
		{"pi/2", math.Pi / 2},
		{"-pi", -math.Pi},
		{"2*pi/3", 2 * math.Pi / 3},
		{"1+2*3", 7},
		{"(1+2)*3", 9},
		{"sin(pi/2)", 1},
		{"cos(0)", 1},
		{"sqrt(4)", 2},
		{"ln(exp(1))", 1},
		{"pow(2, 10)", 1024},
		{"2^10", 1024},
		{"-3.5e-1", -0.35},
	}
	for _, tt := range tests {
		src := "OPENQASM 2.0; qreg q[1]; rz(" + tt.expr + ") q[0];"
		c, _, err := Compile([]byte(src))
		require.NoError(t, err, tt.expr)
		require.Len(t, c.Gates, 1, tt.expr)
		assert.InDelta(t, tt.want, c.Gates[0].Params[0], 1e-12, tt.expr)
	}
}

func TestParseRecoversAtStatementBoundary(t *testing.T) {
	src := heredoc.Doc(`
		OPENQASM 2.0;
		qreg q[1];
		h q[0 ;
		x q[0];
	`)
	_, err := Parse([]byte(src))
	require.Error(t, err)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	// The malformed line yields one diagnostic; the next statement parses.
	assert.Len(t, perr.Diags, 1)
}

func TestIncludeResolver(t *testing.T) {
	lib := "gate pair a, b { cx a, b; }\n"
	resolver := func(path string) ([]byte, error) {
		require.Equal(t, "pair.inc", path)
		return []byte(lib), nil
	}
	src := heredoc.Doc(`
		OPENQASM 2.0;
		include "pair.inc";
		qreg q[2];
		pair q[0], q[1];
	`)
	c, _, err := Compile([]byte(src), WithResolver(resolver))
	require.NoError(t, err)
	require.Len(t, c.Gates, 1)
	assert.Equal(t, "cx", c.Gates[0].Kind.String())
}

func TestIncludeWithoutResolverFails(t *testing.T) {
	src := `OPENQASM 2.0; include "missing.inc"; qreg q[1];`
	_, err := Parse([]byte(src))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no resolver")
}
