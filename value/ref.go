package value

import "fmt"

// Ref is a shared, mutable cell. Kernels hold Refs to their inputs and
// outputs so that writing a new value into a cell is immediately visible to
// every kernel bound to it.
//
// Borrow tracking mirrors single-threaded interior mutability: any number
// of shared borrows, or exactly one exclusive borrow. A conflicting borrow
// is a programming error and panics.
type Ref[T any] struct {
	v     T
	state int32 // >0 shared borrows, -1 exclusive
}

// NewRef allocates a cell holding v.
func NewRef[T any](v T) *Ref[T] {
	return &Ref[T]{v: v}
}

// Get returns a copy of the current value.
func (r *Ref[T]) Get() T {
	if r.state < 0 {
		panic("value: Get on exclusively borrowed ref")
	}
	return r.v
}

// Set replaces the current value.
func (r *Ref[T]) Set(v T) {
	if r.state != 0 {
		panic(fmt.Sprintf("value: Set on borrowed ref (state %d)", r.state))
	}
	r.v = v
}

// Ptr returns the address of the held value without borrow tracking.
func (r *Ref[T]) Ptr() *T {
	return &r.v
}

// Borrow takes a shared borrow. Call Release when done.
func (r *Ref[T]) Borrow() *T {
	if r.state < 0 {
		panic("value: shared borrow of exclusively borrowed ref")
	}
	r.state++
	return &r.v
}

// BorrowMut takes the exclusive borrow. Call Release when done.
func (r *Ref[T]) BorrowMut() *T {
	if r.state != 0 {
		panic(fmt.Sprintf("value: exclusive borrow of borrowed ref (state %d)", r.state))
	}
	r.state = -1
	return &r.v
}

// Release drops one borrow.
func (r *Ref[T]) Release() {
	switch {
	case r.state < 0:
		r.state = 0
	case r.state > 0:
		r.state--
	}
}
