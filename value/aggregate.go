package value

import (
	"fmt"
	"strings"

	"github.com/chazu/mech/mecherr"
)

// ---------------------------------------------------------------------------
// Record
// ---------------------------------------------------------------------------

// RecordField is one named entry of a record.
type RecordField struct {
	ID    uint64
	Name  string
	Value Value
}

// Record is an ordered set of uniquely named fields.
type Record struct {
	fields []RecordField
	index  map[uint64]int
}

// NewRecord builds a record. Field ids must be unique.
func NewRecord(fields ...RecordField) (*Record, error) {
	r := &Record{fields: make([]RecordField, 0, len(fields)), index: make(map[uint64]int, len(fields))}
	for _, f := range fields {
		if _, dup := r.index[f.ID]; dup {
			return nil, mecherr.Duplicate(f.ID)
		}
		if f.Value == nil {
			f.Value = Empty
		}
		r.index[f.ID] = len(r.fields)
		r.fields = append(r.fields, f)
	}
	return r, nil
}

func (r *Record) Len() int { return len(r.fields) }

// Get returns the field with the given id.
func (r *Record) Get(id uint64) (Value, bool) {
	ix, ok := r.index[id]
	if !ok {
		return nil, false
	}
	return r.fields[ix].Value, true
}

// Fields returns a copy of the record's fields in order.
func (r *Record) Fields() []RecordField {
	return append([]RecordField(nil), r.fields...)
}

func (r *Record) Kind() Kind {
	fields := make([]Field, len(r.fields))
	for i, f := range r.fields {
		fields[i] = Field{ID: f.ID, Name: f.Name, Kind: f.Value.Kind()}
	}
	return Kind{Tag: TagRecord, Fields: fields}
}

func (r *Record) Size() int {
	n := 0
	for _, f := range r.fields {
		n += f.Value.Size()
	}
	return n
}

func (r *Record) String() string {
	parts := make([]string, len(r.fields))
	for i, f := range r.fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Name, f.Value)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (r *Record) appendKey(b []byte) []byte {
	b = append(b, 'r', '{')
	for _, f := range r.fields {
		b = fmt.Appendf(b, "%d=", f.ID)
		b = f.Value.appendKey(b)
		b = append(b, ',')
	}
	return append(b, '}')
}

// ---------------------------------------------------------------------------
// Tuple
// ---------------------------------------------------------------------------

// Tuple is a fixed-length heterogeneous sequence.
type Tuple struct {
	elems []Value
}

func NewTuple(elems ...Value) *Tuple {
	t := &Tuple{elems: make([]Value, len(elems))}
	for i, e := range elems {
		if e == nil {
			e = Empty
		}
		t.elems[i] = e
	}
	return t
}

func (t *Tuple) Len() int       { return len(t.elems) }
func (t *Tuple) At(i int) Value { return t.elems[i] }
func (t *Tuple) Elems() []Value { return append([]Value(nil), t.elems...) }
func (t *Tuple) String() string { return "(" + joinValues(t.elems, ", ") + ")" }

func (t *Tuple) Kind() Kind {
	ks := make([]Kind, len(t.elems))
	for i, e := range t.elems {
		ks[i] = e.Kind()
	}
	return Kind{Tag: TagTuple, Elems: ks}
}

func (t *Tuple) Size() int {
	n := 0
	for _, e := range t.elems {
		n += e.Size()
	}
	return n
}

func (t *Tuple) appendKey(b []byte) []byte {
	b = append(b, '(')
	for _, e := range t.elems {
		b = e.appendKey(b)
		b = append(b, ',')
	}
	return append(b, ')')
}

// ---------------------------------------------------------------------------
// Set
// ---------------------------------------------------------------------------

// Set is an insertion-ordered collection of distinct values of one kind.
type Set struct {
	elem  Kind
	items []Value
	index map[string]struct{}
}

// NewSet builds a set of elem-kinded values. Duplicates are dropped. A
// zero elem kind is taken from the first item.
func NewSet(elem Kind, items ...Value) (*Set, error) {
	s := &Set{elem: elem, index: make(map[string]struct{}, len(items))}
	for _, v := range items {
		if err := s.add(v); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Set) add(v Value) error {
	k := v.Kind()
	if s.elem.Tag == TagEmpty {
		s.elem = k
	} else if !s.elem.Equal(k) {
		return mecherr.Mismatch("set", s.elem.String(), k.String())
	}
	key := Key(v)
	if _, ok := s.index[key]; ok {
		return nil
	}
	s.index[key] = struct{}{}
	s.items = append(s.items, v)
	return nil
}

func (s *Set) Len() int       { return len(s.items) }
func (s *Set) ElemKind() Kind { return s.elem }
func (s *Set) Items() []Value { return append([]Value(nil), s.items...) }
func (s *Set) String() string { return "{" + joinValues(s.items, ", ") + "}" }

// Contains reports membership by value equality.
func (s *Set) Contains(v Value) bool {
	_, ok := s.index[Key(v)]
	return ok
}

// Union returns a new set with s's items followed by o's new items.
func (s *Set) Union(o *Set) (*Set, error) {
	out, err := NewSet(s.elem, s.items...)
	if err != nil {
		return nil, err
	}
	for _, v := range o.items {
		if err := out.add(v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Set) Kind() Kind {
	e := s.elem
	return Kind{Tag: TagSet, Elem: &e}
}

func (s *Set) Size() int {
	n := 0
	for _, v := range s.items {
		n += v.Size()
	}
	return n
}

func (s *Set) appendKey(b []byte) []byte {
	b = append(b, 's', '{')
	for _, v := range s.items {
		b = v.appendKey(b)
		b = append(b, ',')
	}
	return append(b, '}')
}

// ---------------------------------------------------------------------------
// Map
// ---------------------------------------------------------------------------

// Map is an insertion-ordered association from keys of one kind to values
// of one kind.
type Map struct {
	keyKind, valKind Kind
	keys, vals       []Value
	index            map[string]int
}

// NewMap builds a map from parallel key and value slices. A later entry
// for an existing key replaces its value.
func NewMap(keyKind, valKind Kind, keys, vals []Value) (*Map, error) {
	if len(keys) != len(vals) {
		return nil, mecherr.Dimensions("map", [2]int{len(keys), 1}, [2]int{len(vals), 1})
	}
	m := &Map{keyKind: keyKind, valKind: valKind, index: make(map[string]int, len(keys))}
	for i := range keys {
		if err := m.put(keys[i], vals[i]); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Map) put(k, v Value) error {
	if m.keyKind.Tag == TagEmpty {
		m.keyKind = k.Kind()
	}
	if m.valKind.Tag == TagEmpty {
		m.valKind = v.Kind()
	}
	if !m.keyKind.Equal(k.Kind()) {
		return mecherr.Mismatch("map key", m.keyKind.String(), k.Kind().String())
	}
	if !m.valKind.Equal(v.Kind()) {
		return mecherr.Mismatch("map value", m.valKind.String(), v.Kind().String())
	}
	key := Key(k)
	if ix, ok := m.index[key]; ok {
		m.vals[ix] = v
		return nil
	}
	m.index[key] = len(m.keys)
	m.keys = append(m.keys, k)
	m.vals = append(m.vals, v)
	return nil
}

// Get looks up the value stored under k.
func (m *Map) Get(k Value) (Value, bool) {
	ix, ok := m.index[Key(k)]
	if !ok {
		return nil, false
	}
	return m.vals[ix], true
}

func (m *Map) Len() int        { return len(m.keys) }
func (m *Map) Keys() []Value   { return append([]Value(nil), m.keys...) }
func (m *Map) Values() []Value { return append([]Value(nil), m.vals...) }

func (m *Map) Kind() Kind {
	k, v := m.keyKind, m.valKind
	return Kind{Tag: TagMap, Elem: &k, Val: &v}
}

func (m *Map) Size() int {
	n := 0
	for i := range m.keys {
		n += m.keys[i].Size() + m.vals[i].Size()
	}
	return n
}

func (m *Map) String() string {
	parts := make([]string, len(m.keys))
	for i := range m.keys {
		parts[i] = m.keys[i].String() + " => " + m.vals[i].String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (m *Map) appendKey(b []byte) []byte {
	b = append(b, 'm', '{')
	for i := range m.keys {
		b = m.keys[i].appendKey(b)
		b = append(b, '=')
		b = m.vals[i].appendKey(b)
		b = append(b, ',')
	}
	return append(b, '}')
}

// ---------------------------------------------------------------------------
// Enum
// ---------------------------------------------------------------------------

// EnumDef declares an enum and its variant ids.
type EnumDef struct {
	ID       uint64
	Name     string
	Variants []uint64
}

func (d EnumDef) has(variant uint64) bool {
	for _, v := range d.Variants {
		if v == variant {
			return true
		}
	}
	return false
}

// Enum is one variant of a declared enum with an optional payload.
type Enum struct {
	ID      uint64
	Variant uint64
	Payload Value
}

// NewEnum checks variant against def.
func NewEnum(def EnumDef, variant uint64, payload Value) (*Enum, error) {
	if !def.has(variant) {
		return nil, &mecherr.Error{Code: mecherr.UnknownEnumVariant, Op: def.Name, IDs: []uint64{def.ID, variant}}
	}
	return &Enum{ID: def.ID, Variant: variant, Payload: payload}, nil
}

func (e *Enum) Kind() Kind { return Kind{Tag: TagEnum, ID: e.ID} }

func (e *Enum) Size() int {
	if e.Payload == nil {
		return 8
	}
	return 8 + e.Payload.Size()
}

func (e *Enum) String() string {
	if e.Payload == nil {
		return fmt.Sprintf("`%#x", e.Variant)
	}
	return fmt.Sprintf("`%#x(%s)", e.Variant, e.Payload)
}

func (e *Enum) appendKey(b []byte) []byte {
	b = fmt.Appendf(b, "e%d:%d", e.ID, e.Variant)
	if e.Payload != nil {
		b = append(b, '(')
		b = e.Payload.appendKey(b)
		b = append(b, ')')
	}
	return b
}
