// Package persist records transactions so a program's state can be
// rebuilt at startup.
//
// Changes are encoded as canonical CBOR. The file log appends one record
// per transaction; the SQLite log stores the same records as rows.
// Neither format carries a version field.
package persist

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/mech/store"
	"github.com/chazu/mech/value"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("persist: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// ErrUnsupported is returned for values the log cannot represent.
var ErrUnsupported = errors.New("persist: unsupported value")

const (
	opNewTable uint8 = iota + 1
	opColumnAlias
	opSet
	opRemoveTable
)

type wireChange struct {
	Op     uint8      `cbor:"1,keyasint"`
	Table  uint64     `cbor:"2,keyasint"`
	Name   string     `cbor:"3,keyasint,omitempty"`
	Rows   int        `cbor:"4,keyasint,omitempty"`
	Cols   int        `cbor:"5,keyasint,omitempty"`
	Column int        `cbor:"6,keyasint,omitempty"`
	Alias  uint64     `cbor:"7,keyasint,omitempty"`
	Cells  []wireCell `cbor:"8,keyasint,omitempty"`
}

type wireIndex struct {
	Kind   store.IndexKind `cbor:"1,keyasint"`
	N      int             `cbor:"2,keyasint,omitempty"`
	Alias  uint64          `cbor:"3,keyasint,omitempty"`
	Table  uint64          `cbor:"4,keyasint,omitempty"`
	Global bool            `cbor:"5,keyasint,omitempty"`
}

type wireCell struct {
	Row   wireIndex `cbor:"1,keyasint"`
	Col   wireIndex `cbor:"2,keyasint"`
	Value wireValue `cbor:"3,keyasint"`
}

type wireValue struct {
	Tag   value.Tag       `cbor:"1,keyasint"`
	Elem  value.Tag       `cbor:"2,keyasint,omitempty"`
	Shape value.Shape     `cbor:"3,keyasint,omitempty"`
	Rows  int             `cbor:"4,keyasint,omitempty"`
	Cols  int             `cbor:"5,keyasint,omitempty"`
	Data  cbor.RawMessage `cbor:"6,keyasint,omitempty"`
	Items []wireValue     `cbor:"7,keyasint,omitempty"`
	Vals  []wireValue     `cbor:"8,keyasint,omitempty"`
	IDs   []uint64        `cbor:"9,keyasint,omitempty"`
	Names []string        `cbor:"10,keyasint,omitempty"`
	Kind  *value.Kind     `cbor:"11,keyasint,omitempty"`
	ID    uint64          `cbor:"12,keyasint,omitempty"`
}

// MarshalTransaction serializes a transaction to CBOR bytes.
func MarshalTransaction(txn store.Transaction) ([]byte, error) {
	w := make([]wireChange, len(txn))
	for i, c := range txn {
		wc, err := encodeChange(c)
		if err != nil {
			return nil, err
		}
		w[i] = wc
	}
	return cborEncMode.Marshal(w)
}

// UnmarshalTransaction deserializes a transaction from CBOR bytes.
func UnmarshalTransaction(data []byte) (store.Transaction, error) {
	var w []wireChange
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("persist: unmarshal transaction: %w", err)
	}
	txn := make(store.Transaction, len(w))
	for i, wc := range w {
		c, err := decodeChange(wc)
		if err != nil {
			return nil, err
		}
		txn[i] = c
	}
	return txn, nil
}

// MarshalValue serializes a single value.
func MarshalValue(v value.Value) ([]byte, error) {
	w, err := encodeValue(v)
	if err != nil {
		return nil, err
	}
	return cborEncMode.Marshal(w)
}

// UnmarshalValue deserializes a value written by MarshalValue.
func UnmarshalValue(data []byte) (value.Value, error) {
	var w wireValue
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("persist: unmarshal value: %w", err)
	}
	return decodeValue(w)
}

// ---------------------------------------------------------------------------
// Changes
// ---------------------------------------------------------------------------

func encodeChange(c store.Change) (wireChange, error) {
	switch c := c.(type) {
	case store.NewTableChange:
		return wireChange{Op: opNewTable, Table: c.Table, Name: c.Name, Rows: c.Rows, Cols: c.Cols}, nil
	case store.ColumnAliasChange:
		return wireChange{Op: opColumnAlias, Table: c.Table, Name: c.Name, Column: c.Column, Alias: c.Alias}, nil
	case store.RemoveTableChange:
		return wireChange{Op: opRemoveTable, Table: c.Table}, nil
	case store.SetChange:
		cells := make([]wireCell, len(c.Cells))
		for i, cell := range c.Cells {
			v, err := encodeValue(cell.Value)
			if err != nil {
				return wireChange{}, fmt.Errorf("persist: cell %d of %#x: %w", i, c.Table, err)
			}
			cells[i] = wireCell{Row: encodeIndex(cell.Row), Col: encodeIndex(cell.Col), Value: v}
		}
		return wireChange{Op: opSet, Table: c.Table, Cells: cells}, nil
	}
	return wireChange{}, fmt.Errorf("%w: change %T", ErrUnsupported, c)
}

func decodeChange(w wireChange) (store.Change, error) {
	switch w.Op {
	case opNewTable:
		return store.NewTableChange{Table: w.Table, Name: w.Name, Rows: w.Rows, Cols: w.Cols}, nil
	case opColumnAlias:
		return store.ColumnAliasChange{Table: w.Table, Name: w.Name, Column: w.Column, Alias: w.Alias}, nil
	case opRemoveTable:
		return store.RemoveTableChange{Table: w.Table}, nil
	case opSet:
		cells := make([]store.Cell, len(w.Cells))
		for i, wc := range w.Cells {
			v, err := decodeValue(wc.Value)
			if err != nil {
				return nil, err
			}
			cells[i] = store.Cell{Row: decodeIndex(wc.Row), Col: decodeIndex(wc.Col), Value: v}
		}
		return store.SetChange{Table: w.Table, Cells: cells}, nil
	}
	return nil, fmt.Errorf("persist: unknown change op %d", w.Op)
}

func encodeIndex(ix store.Index) wireIndex {
	return wireIndex{Kind: ix.Kind, N: ix.N, Alias: ix.Alias, Table: ix.Table.ID, Global: ix.Table.Global}
}

func decodeIndex(w wireIndex) store.Index {
	return store.Index{Kind: w.Kind, N: w.N, Alias: w.Alias, Table: store.TableID{ID: w.Table, Global: w.Global}}
}

// ---------------------------------------------------------------------------
// Values
// ---------------------------------------------------------------------------

func encodeValue(v value.Value) (wireValue, error) {
	if v == nil || value.IsEmpty(v) {
		return wireValue{Tag: value.TagEmpty}, nil
	}
	k := v.Kind()
	switch v := v.(type) {
	case value.MutableReference:
		inner, err := encodeValue(v.Ref.Get())
		if err != nil {
			return wireValue{}, err
		}
		return wireValue{Tag: value.TagReference, Items: []wireValue{inner}}, nil
	case value.KindValue:
		kk := v.K
		return wireValue{Tag: value.TagKind, Kind: &kk}, nil
	case *value.Tuple:
		items, err := encodeValues(v.Elems())
		return wireValue{Tag: value.TagTuple, Items: items}, err
	case *value.Set:
		items, err := encodeValues(v.Items())
		ek := v.ElemKind()
		return wireValue{Tag: value.TagSet, Items: items, Kind: &ek}, err
	case *value.Map:
		keys, err := encodeValues(v.Keys())
		if err != nil {
			return wireValue{}, err
		}
		vals, err := encodeValues(v.Values())
		return wireValue{Tag: value.TagMap, Items: keys, Vals: vals, Kind: &k}, err
	case *value.Record:
		w := wireValue{Tag: value.TagRecord}
		for _, f := range v.Fields() {
			fv, err := encodeValue(f.Value)
			if err != nil {
				return wireValue{}, err
			}
			w.Items = append(w.Items, fv)
			w.IDs = append(w.IDs, f.ID)
			w.Names = append(w.Names, f.Name)
		}
		return w, nil
	case *value.Enum:
		w := wireValue{Tag: value.TagEnum, ID: v.ID, IDs: []uint64{v.Variant}}
		if v.Payload != nil {
			p, err := encodeValue(v.Payload)
			if err != nil {
				return wireValue{}, err
			}
			w.Items = []wireValue{p}
		}
		return w, nil
	case *value.Table:
		return encodeTable(v)
	}

	c, ok := elemCodecs[k.ElemTag()]
	if !ok {
		return wireValue{}, fmt.Errorf("%w: %s", ErrUnsupported, k)
	}
	if k.Tag == value.TagMatrix {
		return c.encodeMatrix(v)
	}
	return c.encodeScalar(v)
}

func encodeValues(vs []value.Value) ([]wireValue, error) {
	out := make([]wireValue, len(vs))
	for i, v := range vs {
		w, err := encodeValue(v)
		if err != nil {
			return nil, err
		}
		out[i] = w
	}
	return out, nil
}

func encodeTable(t *value.Table) (wireValue, error) {
	w := wireValue{Tag: value.TagTable, ID: t.ID, Rows: t.Rows(), Cols: t.Cols(), Names: []string{t.Name}}
	for c := 0; c < t.Cols(); c++ {
		col, err := t.Column(c)
		if err != nil {
			return wireValue{}, err
		}
		w.IDs = append(w.IDs, col.Alias)
		w.Names = append(w.Names, col.Name)
		for _, cell := range col.Cells() {
			cv, err := encodeValue(cell)
			if err != nil {
				return wireValue{}, err
			}
			w.Items = append(w.Items, cv)
		}
	}
	return w, nil
}

func decodeValue(w wireValue) (value.Value, error) {
	switch w.Tag {
	case value.TagEmpty:
		return value.Empty, nil
	case value.TagReference:
		if len(w.Items) != 1 {
			return nil, fmt.Errorf("persist: reference without target")
		}
		inner, err := decodeValue(w.Items[0])
		if err != nil {
			return nil, err
		}
		return value.NewReference(inner), nil
	case value.TagKind:
		if w.Kind == nil {
			return nil, fmt.Errorf("persist: kind value without kind")
		}
		return value.KindValue{K: *w.Kind}, nil
	case value.TagTuple:
		items, err := decodeValues(w.Items)
		if err != nil {
			return nil, err
		}
		return value.NewTuple(items...), nil
	case value.TagSet:
		items, err := decodeValues(w.Items)
		if err != nil {
			return nil, err
		}
		var ek value.Kind
		if w.Kind != nil {
			ek = *w.Kind
		}
		return value.NewSet(ek, items...)
	case value.TagMap:
		if w.Kind == nil || w.Kind.Elem == nil || w.Kind.Val == nil {
			return nil, fmt.Errorf("persist: map without kind")
		}
		keys, err := decodeValues(w.Items)
		if err != nil {
			return nil, err
		}
		vals, err := decodeValues(w.Vals)
		if err != nil {
			return nil, err
		}
		return value.NewMap(*w.Kind.Elem, *w.Kind.Val, keys, vals)
	case value.TagRecord:
		if len(w.IDs) != len(w.Items) || len(w.Names) != len(w.Items) {
			return nil, fmt.Errorf("persist: malformed record")
		}
		fields := make([]value.RecordField, len(w.Items))
		for i, item := range w.Items {
			v, err := decodeValue(item)
			if err != nil {
				return nil, err
			}
			fields[i] = value.RecordField{ID: w.IDs[i], Name: w.Names[i], Value: v}
		}
		return value.NewRecord(fields...)
	case value.TagEnum:
		if len(w.IDs) != 1 {
			return nil, fmt.Errorf("persist: enum without variant")
		}
		e := &value.Enum{ID: w.ID, Variant: w.IDs[0]}
		if len(w.Items) == 1 {
			p, err := decodeValue(w.Items[0])
			if err != nil {
				return nil, err
			}
			e.Payload = p
		}
		return e, nil
	case value.TagTable:
		return decodeTable(w)
	case value.TagMatrix:
		c, ok := elemCodecs[w.Elem]
		if !ok {
			return nil, fmt.Errorf("%w: matrix of %s", ErrUnsupported, w.Elem)
		}
		return c.decodeMatrix(w)
	}
	c, ok := elemCodecs[w.Tag]
	if !ok {
		return nil, fmt.Errorf("%w: tag %s", ErrUnsupported, w.Tag)
	}
	return c.decodeScalar(w.Data)
}

func decodeValues(ws []wireValue) ([]value.Value, error) {
	out := make([]value.Value, len(ws))
	for i, w := range ws {
		v, err := decodeValue(w)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func decodeTable(w wireValue) (value.Value, error) {
	if len(w.IDs) != w.Cols || len(w.Names) != w.Cols+1 || len(w.Items) != w.Rows*w.Cols {
		return nil, fmt.Errorf("persist: malformed table %#x", w.ID)
	}
	t := value.NewTable(w.ID, w.Rows, w.Cols)
	t.Name = w.Names[0]
	for c := 0; c < w.Cols; c++ {
		if w.IDs[c] != 0 {
			if err := t.SetColumnAlias(c, w.IDs[c], w.Names[c+1]); err != nil {
				return nil, err
			}
		}
		for r := 0; r < w.Rows; r++ {
			v, err := decodeValue(w.Items[c*w.Rows+r])
			if err != nil {
				return nil, err
			}
			if err := t.Put(r, c, v); err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}

// ---------------------------------------------------------------------------
// Element codecs
// ---------------------------------------------------------------------------

type elemCodec struct {
	encodeScalar func(value.Value) (wireValue, error)
	encodeMatrix func(value.Value) (wireValue, error)
	decodeScalar func(cbor.RawMessage) (value.Value, error)
	decodeMatrix func(wireValue) (value.Value, error)
}

var elemCodecs = map[value.Tag]elemCodec{
	value.TagBool:   codecFor[bool](),
	value.TagI8:     codecFor[int8](),
	value.TagI16:    codecFor[int16](),
	value.TagI32:    codecFor[int32](),
	value.TagI64:    codecFor[int64](),
	value.TagU8:     codecFor[uint8](),
	value.TagU16:    codecFor[uint16](),
	value.TagU32:    codecFor[uint32](),
	value.TagU64:    codecFor[uint64](),
	value.TagF32:    codecFor[value.F32](),
	value.TagF64:    codecFor[value.F64](),
	value.TagString: codecFor[string](),
	value.TagC64:    complexCodec(),
}

func codecFor[T value.Elem]() elemCodec {
	tag := value.TagOf[T]()
	return elemCodec{
		encodeScalar: func(v value.Value) (wireValue, error) {
			s, ok := v.(value.Scalar[T])
			if !ok {
				return wireValue{}, fmt.Errorf("%w: %T", ErrUnsupported, v)
			}
			data, err := cborEncMode.Marshal(s.Get())
			return wireValue{Tag: tag, Data: data}, err
		},
		encodeMatrix: func(v value.Value) (wireValue, error) {
			m, ok := v.(value.Mat[T])
			if !ok {
				return wireValue{}, fmt.Errorf("%w: %T", ErrUnsupported, v)
			}
			data, err := cborEncMode.Marshal(m.Data())
			return wireValue{Tag: value.TagMatrix, Elem: tag, Shape: m.Shape(), Rows: m.Rows(), Cols: m.Cols(), Data: data}, err
		},
		decodeScalar: func(raw cbor.RawMessage) (value.Value, error) {
			var x T
			if err := cbor.Unmarshal(raw, &x); err != nil {
				return nil, fmt.Errorf("persist: decode %s: %w", tag, err)
			}
			return value.NewScalar(x), nil
		},
		decodeMatrix: func(w wireValue) (value.Value, error) {
			var xs []T
			if err := cbor.Unmarshal(w.Data, &xs); err != nil {
				return nil, fmt.Errorf("persist: decode [%s]: %w", tag, err)
			}
			m := value.NewMatShape[T](w.Shape, w.Rows, w.Cols)
			copy(m.Data(), xs)
			return m, nil
		},
	}
}

// complexCodec stores each element as a (real, imaginary) pair; CBOR has
// no complex type.
func complexCodec() elemCodec {
	pairs := func(cs []value.C64) [][2]float64 {
		out := make([][2]float64, len(cs))
		for i, c := range cs {
			out[i] = [2]float64{real(c), imag(c)}
		}
		return out
	}
	unpair := func(p [2]float64) value.C64 { return value.C64(complex(p[0], p[1])) }
	return elemCodec{
		encodeScalar: func(v value.Value) (wireValue, error) {
			s, ok := v.(value.Scalar[value.C64])
			if !ok {
				return wireValue{}, fmt.Errorf("%w: %T", ErrUnsupported, v)
			}
			data, err := cborEncMode.Marshal(pairs([]value.C64{s.Get()})[0])
			return wireValue{Tag: value.TagC64, Data: data}, err
		},
		encodeMatrix: func(v value.Value) (wireValue, error) {
			m, ok := v.(value.Mat[value.C64])
			if !ok {
				return wireValue{}, fmt.Errorf("%w: %T", ErrUnsupported, v)
			}
			data, err := cborEncMode.Marshal(pairs(m.Data()))
			return wireValue{Tag: value.TagMatrix, Elem: value.TagC64, Shape: m.Shape(), Rows: m.Rows(), Cols: m.Cols(), Data: data}, err
		},
		decodeScalar: func(raw cbor.RawMessage) (value.Value, error) {
			var p [2]float64
			if err := cbor.Unmarshal(raw, &p); err != nil {
				return nil, fmt.Errorf("persist: decode c64: %w", err)
			}
			return value.NewScalar(unpair(p)), nil
		},
		decodeMatrix: func(w wireValue) (value.Value, error) {
			var ps [][2]float64
			if err := cbor.Unmarshal(w.Data, &ps); err != nil {
				return nil, fmt.Errorf("persist: decode [c64]: %w", err)
			}
			m := value.NewMatShape[value.C64](w.Shape, w.Rows, w.Cols)
			for i, p := range ps {
				if i < len(m.Data()) {
					m.Data()[i] = unpair(p)
				}
			}
			return m, nil
		},
	}
}
