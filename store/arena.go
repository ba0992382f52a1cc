package store

import (
	"fmt"
	"math"

	"github.com/chazu/mech/value"
)

// Arena interns shared values behind small integer addresses with
// reference counts. Address 0 is a permanent Empty sentinel. Freed
// slots are reused before fresh space; the arena doubles when full.
type Arena struct {
	data []value.Value
	refs []uint16
	free []int
	next int
}

// NewArena allocates an arena with room for capacity values, including
// the sentinel.
func NewArena(capacity int) *Arena {
	if capacity < 2 {
		capacity = 2
	}
	a := &Arena{
		data: make([]value.Value, capacity),
		refs: make([]uint16, capacity),
		next: 1,
	}
	a.data[0] = value.Empty
	a.refs[0] = math.MaxUint16
	return a
}

// Intern stores v and returns its address with a reference count of one.
// Empty values map to the sentinel.
func (a *Arena) Intern(v value.Value) int {
	if value.IsEmpty(v) {
		return 0
	}
	var addr int
	if n := len(a.free); n > 0 {
		addr = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		if a.next == len(a.data) {
			a.grow()
		}
		addr = a.next
		a.next++
	}
	a.data[addr] = v
	a.refs[addr] = 1
	return addr
}

func (a *Arena) grow() {
	n := len(a.data) * 2
	data := make([]value.Value, n)
	refs := make([]uint16, n)
	copy(data, a.data)
	copy(refs, a.refs)
	a.data, a.refs = data, refs
}

// Get returns the value at addr.
func (a *Arena) Get(addr int) (value.Value, error) {
	if addr < 0 || addr >= a.next || (addr != 0 && a.refs[addr] == 0) {
		return nil, fmt.Errorf("arena: no live value at %d", addr)
	}
	return a.data[addr], nil
}

// maxRefs is the highest count a slot can hold. MaxUint16 marks the
// sentinel.
const maxRefs = math.MaxUint16 - 1

// Retain adds a reference to addr. The count saturates at maxRefs.
func (a *Arena) Retain(addr int) {
	if addr <= 0 || addr >= a.next || a.refs[addr] == 0 || a.refs[addr] >= maxRefs {
		return
	}
	a.refs[addr]++
}

// Dereference drops a reference to addr, freeing the slot at zero. The
// sentinel is never freed.
func (a *Arena) Dereference(addr int) {
	if addr <= 0 || addr >= a.next || a.refs[addr] == 0 || a.refs[addr] == math.MaxUint16 {
		return
	}
	a.refs[addr]--
	if a.refs[addr] == 0 {
		a.data[addr] = nil
		a.free = append(a.free, addr)
	}
}

// Refs returns the reference count at addr.
func (a *Arena) Refs(addr int) int {
	if addr < 0 || addr >= len(a.refs) {
		return 0
	}
	return int(a.refs[addr])
}

// Live is the number of addresses holding values, including the sentinel.
func (a *Arena) Live() int { return a.next - len(a.free) }

// Free is the number of released addresses awaiting reuse.
func (a *Arena) Free() int { return len(a.free) }

// Capacity is the total number of slots.
func (a *Arena) Capacity() int { return len(a.data) }
