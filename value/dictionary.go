package value

import (
	"sort"
	"sync"

	"github.com/zeebo/xxh3"
)

// Hash returns the id a name interns to.
func Hash(name string) uint64 {
	return xxh3.HashString(name)
}

// Dictionary interns names to stable 64-bit ids and remembers the reverse
// mapping for printing and error reports. Safe for concurrent use.
type Dictionary struct {
	mu     sync.RWMutex
	byID   map[uint64]string
	byName map[string]uint64
}

func NewDictionary() *Dictionary {
	return &Dictionary{
		byID:   make(map[uint64]string),
		byName: make(map[string]uint64),
	}
}

// Intern returns the id for name, recording it if new.
func (d *Dictionary) Intern(name string) uint64 {
	d.mu.RLock()
	id, ok := d.byName[name]
	d.mu.RUnlock()
	if ok {
		return id
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if id, ok := d.byName[name]; ok {
		return id
	}
	id = Hash(name)
	d.byName[name] = id
	d.byID[id] = name
	return id
}

// Lookup returns the id for name without interning it.
func (d *Dictionary) Lookup(name string) (uint64, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byName[name]
	return id, ok
}

// Name returns the name an id was interned from.
func (d *Dictionary) Name(id uint64) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	name, ok := d.byID[id]
	return name, ok
}

// Len returns the number of interned names.
func (d *Dictionary) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byName)
}

// All returns every interned name, sorted.
func (d *Dictionary) All() []string {
	d.mu.RLock()
	names := make([]string, 0, len(d.byName))
	for n := range d.byName {
		names = append(names, n)
	}
	d.mu.RUnlock()
	sort.Strings(names)
	return names
}
