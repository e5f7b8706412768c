package sim

import "github.com/pkg/errors"

// Runtime failure sentinels. Callers branch with errors.Is; the wrapped
// messages carry the specifics.
var (
	// ErrUnderflow fires when a measurement collapses onto a branch whose
	// probability is below the underflow tolerance.
	ErrUnderflow = errors.New("measurement underflow")

	// ErrQubitOutOfRange fires when an operation names a qubit outside the
	// state's width.
	ErrQubitOutOfRange = errors.New("qubit out of range")

	// ErrDimensionMismatch fires when a matrix or snapshot does not fit
	// the state it is applied to.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrNonUnitary names a non-unitary custom matrix. No function in this
	// package returns it: quantum.NewCustom rejects such a matrix with a
	// *quantum.ValidationError when the gate is built.
	ErrNonUnitary = errors.New("matrix is not unitary")

	// ErrCacheMiss fires when restoring a snapshot label that does not
	// exist.
	ErrCacheMiss = errors.New("no snapshot with that label")

	// ErrResource fires when a requested state exceeds the qubit limit.
	ErrResource = errors.New("resource limit exceeded")
)

// NoiseError reports an invalid noise model: Kraus completeness violation
// or an unsupported kind.
type NoiseError struct {
	Msg string
}

func (e *NoiseError) Error() string { return e.Msg }
