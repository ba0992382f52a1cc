// Package value implements the dynamically-kinded values that flow through
// mech tables: scalars, fixed and dynamic matrices, tables, records,
// tuples, sets, maps, enums and mutable references.
//
// Scalars and matrices live behind a shared Ref so that compiled kernels
// can read and write them in place. Aggregates are immutable once built;
// MutableReference is the only way to share a mutable aggregate.
package value

import (
	"errors"
	"strings"
)

// Value is one dynamically-kinded datum.
type Value interface {
	Kind() Kind
	// Size is the storage footprint in bytes.
	Size() int
	String() string

	appendKey(b []byte) []byte
}

// ErrNotAssignable is returned by Assign when the destination cannot be
// updated in place and must be replaced instead.
var ErrNotAssignable = errors.New("value: not assignable in place")

// ---------------------------------------------------------------------------
// Empty
// ---------------------------------------------------------------------------

// EmptyValue is the unset cell.
type EmptyValue struct{}

// Empty is the shared unset value.
var Empty Value = EmptyValue{}

func (EmptyValue) Kind() Kind                { return Kind{Tag: TagEmpty} }
func (EmptyValue) Size() int                 { return 0 }
func (EmptyValue) String() string            { return "_" }
func (EmptyValue) appendKey(b []byte) []byte { return append(b, '_') }

// IsEmpty reports whether v is nil or Empty.
func IsEmpty(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(EmptyValue)
	return ok
}

// ---------------------------------------------------------------------------
// Scalar
// ---------------------------------------------------------------------------

// Scalar is a single element behind a shared cell.
type Scalar[T Elem] struct {
	Ref *Ref[T]
}

// NewScalar allocates a fresh cell holding v.
func NewScalar[T Elem](v T) Scalar[T] {
	return Scalar[T]{Ref: NewRef(v)}
}

func Float(x float64) Scalar[F64]   { return NewScalar(F64(x)) }
func Float32(x float32) Scalar[F32] { return NewScalar(F32(x)) }
func Int(x int64) Scalar[int64]     { return NewScalar(x) }
func Uint(x uint64) Scalar[uint64]  { return NewScalar(x) }
func Bool(b bool) Scalar[bool]      { return NewScalar(b) }
func String(s string) Scalar[string] {
	return NewScalar(s)
}

// Get returns the current element.
func (s Scalar[T]) Get() T { return s.Ref.Get() }

func (s Scalar[T]) Kind() Kind { return ScalarKind(TagOf[T]()) }

func (s Scalar[T]) Size() int {
	if v, ok := any(s.Ref.Get()).(string); ok {
		return len(v)
	}
	return scalarSize(TagOf[T]())
}

func (s Scalar[T]) String() string { return formatElem(any(s.Ref.Get())) }

func (s Scalar[T]) appendKey(b []byte) []byte {
	b = append(b, byte(TagOf[T]()), ':')
	return keyElem(b, any(s.Ref.Get()))
}

func (s Scalar[T]) assign(src Value) (bool, bool) {
	o, ok := src.(Scalar[T])
	if !ok {
		return false, false
	}
	if o.Ref == s.Ref {
		return false, true
	}
	nv := o.Ref.Get()
	if s.Ref.Get() == nv {
		return false, true
	}
	s.Ref.Set(nv)
	return true, true
}

// ---------------------------------------------------------------------------
// MutableReference
// ---------------------------------------------------------------------------

// MutableReference is a shared cell holding another Value. Operations that
// do not handle references explicitly see through them.
type MutableReference struct {
	Ref *Ref[Value]
}

// NewReference wraps v in a fresh reference cell.
func NewReference(v Value) MutableReference {
	if v == nil {
		v = Empty
	}
	return MutableReference{Ref: NewRef(v)}
}

func (m MutableReference) Kind() Kind {
	inner := m.Ref.Get().Kind()
	return Kind{Tag: TagReference, Elem: &inner}
}

func (m MutableReference) Size() int      { return m.Ref.Get().Size() }
func (m MutableReference) String() string { return "&" + m.Ref.Get().String() }

func (m MutableReference) appendKey(b []byte) []byte {
	return m.Ref.Get().appendKey(b)
}

func (m MutableReference) assign(src Value) (bool, bool) {
	if o, ok := src.(MutableReference); ok && o.Ref == m.Ref {
		return false, true
	}
	if Equal(m.Ref.Get(), src) {
		return false, true
	}
	m.Ref.Set(src)
	return true, true
}

// ---------------------------------------------------------------------------
// KindValue
// ---------------------------------------------------------------------------

// KindValue carries a Kind as a first-class value, used as the target of
// conversions.
type KindValue struct {
	K Kind
}

func (k KindValue) Kind() Kind     { return Kind{Tag: TagKind} }
func (k KindValue) Size() int      { return 0 }
func (k KindValue) String() string { return "<" + k.K.String() + ">" }

func (k KindValue) appendKey(b []byte) []byte {
	return append(append(b, 'k', ':'), k.K.String()...)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type assigner interface {
	assign(src Value) (changed, ok bool)
}

// Assign writes src into dst in place, so every kernel bound to dst's cell
// observes the new value. It reports whether the stored value changed.
// ErrNotAssignable means the kinds or shapes differ and the caller must
// replace the cell instead.
func Assign(dst, src Value) (bool, error) {
	a, ok := dst.(assigner)
	if !ok {
		return false, ErrNotAssignable
	}
	changed, ok := a.assign(src)
	if !ok {
		return false, ErrNotAssignable
	}
	return changed, nil
}

// Deref follows MutableReferences until it reaches a non-reference value.
func Deref(v Value) Value {
	for {
		r, ok := v.(MutableReference)
		if !ok {
			return v
		}
		v = r.Ref.Get()
	}
}

// Key returns a canonical encoding of v suitable as a map key. Two values
// have the same key exactly when they are equal.
func Key(v Value) string {
	if v == nil {
		return "_"
	}
	return string(v.appendKey(nil))
}

// Equal reports value equality. Floats compare by bit pattern.
func Equal(a, b Value) bool {
	return Key(a) == Key(b)
}

// Clone returns a value equal to v that shares no cells with it.
func Clone(v Value) Value {
	switch x := v.(type) {
	case cloner:
		return x.clone()
	case MutableReference:
		return NewReference(Clone(x.Ref.Get()))
	}
	return v
}

type cloner interface {
	clone() Value
}

func (s Scalar[T]) clone() Value { return NewScalar(s.Ref.Get()) }

func joinValues(vs []Value, sep string) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return strings.Join(parts, sep)
}
