package cache

// Backend is the get/put surface shared by every cache tier.
type Backend interface {
	Get(fp string) ([]byte, bool)
	Put(fp string, data []byte)
}

var (
	_ Backend = (*Store)(nil)
	_ Backend = (*Memory)(nil)
	_ Backend = (*Tiered)(nil)
)

// checkedPutter is implemented by backends that can tell whether a write
// landed.
type checkedPutter interface {
	put(fp string, data []byte) bool
}

var _ checkedPutter = (*Store)(nil)

// Tiered puts a Memory LRU in front of a disk Store. The disk store stays
// authoritative: memory entries are only ever copies of bytes that were read
// from or written to disk. A write the disk rejects is not kept in memory
// either.
type Tiered struct {
	mem  *Memory
	disk Backend
}

// NewTiered combines mem and disk. A nil mem returns a Tiered that behaves
// exactly like disk.
func NewTiered(mem *Memory, disk Backend) *Tiered {
	return &Tiered{mem: mem, disk: disk}
}

// Get checks memory first, then disk, promoting disk hits into memory.
func (t *Tiered) Get(fp string) ([]byte, bool) {
	if t.mem != nil {
		if data, ok := t.mem.Get(fp); ok {
			return data, true
		}
	}
	data, ok := t.disk.Get(fp)
	if !ok {
		return nil, false
	}
	if t.mem != nil {
		t.mem.Put(fp, data)
	}
	return data, true
}

// Put writes through to disk, then to memory if the disk write succeeded.
// Backends that cannot report failure are assumed to have stored the entry.
func (t *Tiered) Put(fp string, data []byte) {
	stored := true
	if cp, ok := t.disk.(checkedPutter); ok {
		stored = cp.put(fp, data)
	} else {
		t.disk.Put(fp, data)
	}
	if stored && t.mem != nil {
		t.mem.Put(fp, data)
	}
}
