package quantum

// Kind identifies a gate in the closed taxonomy. The zero value is KindX so
// that an uninitialized Gate is still a valid (if surprising) gate rather
// than a crash waiting in a matrix table lookup.
type Kind int

const (
	// Single-qubit gates.
	KindX Kind = iota
	KindY
	KindZ
	KindH
	KindS
	KindSdg
	KindT
	KindTdg
	KindRX
	KindRY
	KindRZ
	KindP
	KindU1
	KindU2
	KindU3
	KindReset

	// Two-qubit gates.
	KindCNOT
	KindCZ
	KindSWAP
	KindISWAP
	KindSqrtISWAP
	KindCP
	KindCRX
	KindCRY
	KindCRZ
	KindCU1
	KindCU2
	KindCU3

	// Three-qubit gates.
	KindCCX
	KindCCZ
	KindCSWAP

	// Meta operations.
	KindMeasure
	KindBarrier
	KindConditional
	KindCustom
)

// kindInfo carries the static shape of each kind.
type kindInfo struct {
	name      string // lower-case QASM spelling
	arity     int    // qubits consumed; 0 means variable (barrier, custom)
	numParams int
	unitary   bool
}

var kindTable = map[Kind]kindInfo{
	KindX:           {"x", 1, 0, true},
	KindY:           {"y", 1, 0, true},
	KindZ:           {"z", 1, 0, true},
	KindH:           {"h", 1, 0, true},
	KindS:           {"s", 1, 0, true},
	KindSdg:         {"sdg", 1, 0, true},
	KindT:           {"t", 1, 0, true},
	KindTdg:         {"tdg", 1, 0, true},
	KindRX:          {"rx", 1, 1, true},
	KindRY:          {"ry", 1, 1, true},
	KindRZ:          {"rz", 1, 1, true},
	KindP:           {"p", 1, 1, true},
	KindU1:          {"u1", 1, 1, true},
	KindU2:          {"u2", 1, 2, true},
	KindU3:          {"u3", 1, 3, true},
	KindReset:       {"reset", 1, 0, false},
	KindCNOT:        {"cx", 2, 0, true},
	KindCZ:          {"cz", 2, 0, true},
	KindSWAP:        {"swap", 2, 0, true},
	KindISWAP:       {"iswap", 2, 0, true},
	KindSqrtISWAP:   {"siswap", 2, 0, true},
	KindCP:          {"cp", 2, 1, true},
	KindCRX:         {"crx", 2, 1, true},
	KindCRY:         {"cry", 2, 1, true},
	KindCRZ:         {"crz", 2, 1, true},
	KindCU1:         {"cu1", 2, 1, true},
	KindCU2:         {"cu2", 2, 2, true},
	KindCU3:         {"cu3", 2, 3, true},
	KindCCX:         {"ccx", 3, 0, true},
	KindCCZ:         {"ccz", 3, 0, true},
	KindCSWAP:       {"cswap", 3, 0, true},
	KindMeasure:     {"measure", 1, 0, false},
	KindBarrier:     {"barrier", 0, 0, false},
	KindConditional: {"if", 0, 0, false},
	KindCustom:      {"custom", 0, 0, true},
}

// String returns the lower-case QASM spelling of the kind.
func (k Kind) String() string {
	info, ok := kindTable[k]
	if !ok {
		return "unknown"
	}
	return info.name
}

// Arity returns the number of qubits the kind consumes, or 0 for
// variable-arity kinds (barrier, conditional, custom).
func (k Kind) Arity() int { return kindTable[k].arity }

// NumParams returns the number of real parameters the kind requires.
func (k Kind) NumParams() int { return kindTable[k].numParams }

// IsUnitary reports whether the kind denotes a unitary operation.
func (k Kind) IsUnitary() bool { return kindTable[k].unitary }

// IsDiagonal reports whether the kind's matrix is diagonal in the
// computational basis. Diagonal gates on the same qubit commute.
func (k Kind) IsDiagonal() bool {
	switch k {
	case KindZ, KindS, KindSdg, KindT, KindTdg, KindRZ, KindP, KindU1, KindCZ, KindCP, KindCRZ, KindCU1, KindCCZ:
		return true
	}
	return false
}

// IsAntiDiagonal reports whether the kind is X or an X-axis rotation (RX).
// Both are functions of X, so any two of them on the same qubit commute;
// only X itself is anti-diagonal in the computational basis.
func (k Kind) IsAntiDiagonal() bool {
	switch k {
	case KindX, KindRX:
		return true
	}
	return false
}

// kindsByName maps lower-case QASM spellings back to kinds.
var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindTable))
	for k, info := range kindTable {
		m[info.name] = k
	}
	// qelib1 aliases.
	m["id"] = KindU1 // id == u1(0)
	m["u"] = KindU3
	return m
}()

// KindFromName resolves a lower-case QASM gate name to a Kind.
func KindFromName(name string) (Kind, bool) {
	k, ok := kindsByName[name]
	return k, ok
}

// cancelPairs lists gate pairs that compose to the identity when applied to
// the same qubit tuple with matching parameters. Lookup is symmetric.
var cancelPairs = map[[2]Kind]bool{
	{KindX, KindX}:       true,
	{KindY, KindY}:       true,
	{KindZ, KindZ}:       true,
	{KindH, KindH}:       true,
	{KindS, KindSdg}:     true,
	{KindT, KindTdg}:     true,
	{KindCNOT, KindCNOT}: true,
	{KindCZ, KindCZ}:     true,
	{KindSWAP, KindSWAP}: true,
	{KindCCX, KindCCX}:   true,
	{KindCCZ, KindCCZ}:   true,
}

// Cancels reports whether two kinds annihilate when adjacent on the same
// qubit tuple.
func Cancels(a, b Kind) bool {
	return cancelPairs[[2]Kind{a, b}] || cancelPairs[[2]Kind{b, a}]
}

// MergeAxis returns the rotation axis shared by mergeable kinds: adjacent
// same-axis rotations sum their angles. The bool is false for kinds that do
// not merge.
func MergeAxis(k Kind) (Kind, bool) {
	switch k {
	case KindRX, KindRY, KindRZ, KindP, KindU1:
		if k == KindU1 {
			return KindP, true
		}
		return k, true
	}
	return 0, false
}
