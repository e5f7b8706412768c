package sim

import (
	"encoding/binary"
	"io"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// DefaultCacheSize bounds the snapshot cache when the engine is built
// without an explicit size.
const DefaultCacheSize = 16

// snapshotMagic identifies the persisted cache format.
var snapshotMagic = [4]byte{'Q', 'S', 'S', 'C'}

const snapshotVersion uint32 = 1

// Snapshot is a labelled copy of a state's amplitudes. It never aliases
// live state.
type Snapshot struct {
	Label     string
	NumQubits int
	Amps      []complex128
}

// Cache maps opaque labels to snapshots, bounded by a maximum entry count.
// Overflow evicts the oldest entry.
type Cache struct {
	max     int
	entries map[string]*Snapshot
	order   []string
}

// NewCache returns a cache holding at most max entries; max < 1 falls back
// to DefaultCacheSize.
func NewCache(max int) *Cache {
	if max < 1 {
		max = DefaultCacheSize
	}
	return &Cache{max: max, entries: make(map[string]*Snapshot)}
}

// Len returns the number of stored snapshots.
func (c *Cache) Len() int { return len(c.entries) }

// Labels returns the stored labels, oldest first.
func (c *Cache) Labels() []string {
	return append([]string(nil), c.order...)
}

// Save copies the state's amplitudes under the label. An empty label draws
// a fresh UUID. Saving an existing label replaces its snapshot in place;
// otherwise the oldest entry is evicted once the cache is full. Returns
// the label used.
func (c *Cache) Save(label string, s *State) string {
	if label == "" {
		label = uuid.NewString()
	}
	if _, exists := c.entries[label]; !exists {
		if len(c.order) >= c.max {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, label)
	}
	amps := make([]complex128, s.Len())
	copy(amps, s.Amplitudes())
	c.entries[label] = &Snapshot{Label: label, NumQubits: s.NumQubits(), Amps: amps}
	return label
}

// Load replaces the state's amplitudes from the labelled snapshot after a
// width check.
func (c *Cache) Load(label string, s *State) error {
	snap, ok := c.entries[label]
	if !ok {
		return errors.Wrapf(ErrCacheMiss, "label %q", label)
	}
	if snap.NumQubits != s.NumQubits() {
		return errors.Wrapf(ErrDimensionMismatch, "snapshot %q has %d qubits, state %d",
			label, snap.NumQubits, s.NumQubits())
	}
	copy(s.Amplitudes(), snap.Amps)
	return nil
}

// Delete removes a snapshot; a missing label is a cache miss.
func (c *Cache) Delete(label string) error {
	if _, ok := c.entries[label]; !ok {
		return errors.Wrapf(ErrCacheMiss, "label %q", label)
	}
	delete(c.entries, label)
	for i, l := range c.order {
		if l == label {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// WriteTo persists the cache: magic "QSSC", version u32, then per entry
// label length u32, label bytes, qubit count u32 and the amplitudes as
// little-endian (f64 real, f64 imag) pairs.
func (c *Cache) WriteTo(w io.Writer) error {
	if _, err := w.Write(snapshotMagic[:]); err != nil {
		return errors.Wrap(err, "writing snapshot magic")
	}
	if err := binary.Write(w, binary.LittleEndian, snapshotVersion); err != nil {
		return errors.Wrap(err, "writing snapshot version")
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(c.order))); err != nil {
		return errors.Wrap(err, "writing entry count")
	}
	for _, label := range c.order {
		snap := c.entries[label]
		if err := binary.Write(w, binary.LittleEndian, uint32(len(label))); err != nil {
			return errors.Wrap(err, "writing label length")
		}
		if _, err := w.Write([]byte(label)); err != nil {
			return errors.Wrap(err, "writing label")
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(snap.NumQubits)); err != nil {
			return errors.Wrap(err, "writing qubit count")
		}
		for _, a := range snap.Amps {
			if err := binary.Write(w, binary.LittleEndian, real(a)); err != nil {
				return errors.Wrap(err, "writing amplitude")
			}
			if err := binary.Write(w, binary.LittleEndian, imag(a)); err != nil {
				return errors.Wrap(err, "writing amplitude")
			}
		}
	}
	return nil
}

// ReadFrom loads snapshots persisted by WriteTo, replacing the cache
// contents.
func (c *Cache) ReadFrom(r io.Reader) error {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return errors.Wrap(err, "reading snapshot magic")
	}
	if magic != snapshotMagic {
		return errors.Errorf("bad snapshot magic %q", magic[:])
	}
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return errors.Wrap(err, "reading snapshot version")
	}
	if version != snapshotVersion {
		return errors.Errorf("unsupported snapshot version %d", version)
	}
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return errors.Wrap(err, "reading entry count")
	}

	c.entries = make(map[string]*Snapshot)
	c.order = nil
	for i := uint32(0); i < count; i++ {
		var labelLen uint32
		if err := binary.Read(r, binary.LittleEndian, &labelLen); err != nil {
			return errors.Wrap(err, "reading label length")
		}
		label := make([]byte, labelLen)
		if _, err := io.ReadFull(r, label); err != nil {
			return errors.Wrap(err, "reading label")
		}
		var numQubits uint32
		if err := binary.Read(r, binary.LittleEndian, &numQubits); err != nil {
			return errors.Wrap(err, "reading qubit count")
		}
		n := 1 << numQubits
		amps := make([]complex128, n)
		for j := 0; j < n; j++ {
			var re, im float64
			if err := binary.Read(r, binary.LittleEndian, &re); err != nil {
				return errors.Wrap(err, "reading amplitude")
			}
			if err := binary.Read(r, binary.LittleEndian, &im); err != nil {
				return errors.Wrap(err, "reading amplitude")
			}
			amps[j] = complex(re, im)
		}
		snap := &Snapshot{Label: string(label), NumQubits: int(numQubits), Amps: amps}
		c.entries[snap.Label] = snap
		c.order = append(c.order, snap.Label)
	}
	return nil
}
