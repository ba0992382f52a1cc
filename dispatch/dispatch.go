// Package dispatch selects and compiles kernels for named operators.
//
// Each operator tries its typed arms in turn against the argument kinds.
// When no arm matches and some arguments are MutableReferences, the
// dispatcher retries with every combination of those references unwrapped
// before reporting UnhandledFunctionArgumentKind.
package dispatch

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/mech/kernel"
	"github.com/chazu/mech/mecherr"
	"github.com/chazu/mech/value"
)

var log = commonlog.GetLogger("mech.dispatch")

// Features gates families of kinds and shapes the dispatcher will compile.
type Features uint32

const (
	FeatureInteger Features = 1 << iota
	FeatureFloat
	FeatureComplex
	FeatureMatrixFixed
	FeatureMatrixDynamic

	FeatureAll = FeatureInteger | FeatureFloat | FeatureComplex | FeatureMatrixFixed | FeatureMatrixDynamic
)

var featureNames = map[string]Features{
	"integer":        FeatureInteger,
	"float":          FeatureFloat,
	"complex":        FeatureComplex,
	"matrix-fixed":   FeatureMatrixFixed,
	"matrix-dynamic": FeatureMatrixDynamic,
	"all":            FeatureAll,
}

// ParseFeatures maps feature names to a Features set. An empty list
// enables everything.
func ParseFeatures(names []string) (Features, error) {
	if len(names) == 0 {
		return FeatureAll, nil
	}
	var f Features
	for _, n := range names {
		bit, ok := featureNames[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			return 0, fmt.Errorf("unknown feature %q", n)
		}
		f |= bit
	}
	return f, nil
}

func (f Features) Has(g Features) bool { return f&g == g }

func (f Features) String() string {
	var names []string
	for _, n := range []string{"integer", "float", "complex", "matrix-fixed", "matrix-dynamic"} {
		if f.Has(featureNames[n]) {
			names = append(names, n)
		}
	}
	return strings.Join(names, ",")
}

// CompileFunc builds a kernel for args. It returns (nil, nil) when none of
// its arms match the argument kinds.
type CompileFunc func(d *Dispatcher, name string, args []value.Value) (kernel.Kernel, error)

// Variadic marks an operator that accepts one or more arguments.
const Variadic = -1

// Operator is one named entry in the function library.
type Operator struct {
	Name    string
	Arity   int
	Compile CompileFunc
}

// Dispatcher is the registry of operators.
type Dispatcher struct {
	features Features
	ops      map[string]*Operator
}

// New returns a dispatcher with the standard library registered.
func New(features Features) *Dispatcher {
	d := &Dispatcher{features: features, ops: make(map[string]*Operator)}
	registerStdlib(d)
	return d
}

func (d *Dispatcher) Features() Features { return d.features }

// Register adds or replaces an operator.
func (d *Dispatcher) Register(op Operator) {
	d.ops[op.Name] = &op
}

// Operators lists registered operator names, sorted.
func (d *Dispatcher) Operators() []string {
	names := make([]string, 0, len(d.ops))
	for n := range d.ops {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Dispatch selects a kernel for name and args without solving it.
func (d *Dispatcher) Dispatch(name string, args []value.Value) (kernel.Kernel, error) {
	op, ok := d.ops[name]
	if !ok {
		return nil, mecherr.NoFunction(name)
	}
	switch {
	case op.Arity == Variadic && len(args) == 0:
		return nil, mecherr.IncorrectArgs(name, 1, 0)
	case op.Arity != Variadic && len(args) != op.Arity:
		return nil, mecherr.IncorrectArgs(name, op.Arity, len(args))
	}
	k, err := d.resolve(op, args)
	if err != nil {
		return nil, err
	}
	if k == nil {
		return nil, mecherr.Unhandled(name, kindNames(args)...)
	}
	log.Debugf("dispatched %s", k)
	return k, nil
}

// Compile dispatches and solves the kernel once so its output holds a
// meaningful value before any block runs.
func (d *Dispatcher) Compile(name string, args []value.Value) (kernel.Kernel, error) {
	k, err := d.Dispatch(name, args)
	if err != nil {
		return nil, err
	}
	k.Solve()
	return k, nil
}

func (d *Dispatcher) resolve(op *Operator, args []value.Value) (kernel.Kernel, error) {
	k, err := op.Compile(d, op.Name, args)
	if k != nil || err != nil {
		return k, err
	}
	var refs []int
	for i, a := range args {
		if _, ok := a.(value.MutableReference); ok {
			refs = append(refs, i)
		}
	}
	for mask := 1; mask < 1<<len(refs); mask++ {
		unwrapped := append([]value.Value(nil), args...)
		for bit, ix := range refs {
			if mask&(1<<bit) != 0 {
				unwrapped[ix] = unwrapped[ix].(value.MutableReference).Ref.Get()
			}
		}
		k, err := d.resolve(op, unwrapped)
		if k != nil || err != nil {
			return k, err
		}
	}
	return nil, nil
}

func kindNames(args []value.Value) []string {
	names := make([]string, len(args))
	for i, a := range args {
		names[i] = a.Kind().String()
	}
	return names
}

// elemOK reports whether element kind t is enabled.
func (d *Dispatcher) elemOK(t value.Tag) bool {
	switch {
	case t.IsInteger():
		return d.features.Has(FeatureInteger)
	case t.IsFloat():
		return d.features.Has(FeatureFloat)
	case t == value.TagC64:
		return d.features.Has(FeatureComplex)
	}
	return true
}

// shapeOK reports whether matrix storage class s is enabled.
func (d *Dispatcher) shapeOK(s value.Shape) bool {
	if s.Fixed() {
		return d.features.Has(FeatureMatrixFixed)
	}
	return d.features.Has(FeatureMatrixDynamic)
}

// outShape picks the result class for rows x cols. Results of dynamic
// operands stay dynamic; fixed results fall back to dynamic when fixed
// shapes are disabled.
func (d *Dispatcher) outShape(rows, cols int, dynamic bool) (value.Shape, bool) {
	s := value.ShapeFor(rows, cols)
	if dynamic || !d.shapeOK(s) {
		s = value.DynamicShapeFor(rows, cols)
	}
	return s, d.shapeOK(s)
}

// try returns the first kernel produced by attempts, or the first error.
func try(attempts ...func() (kernel.Kernel, error)) (kernel.Kernel, error) {
	for _, a := range attempts {
		k, err := a()
		if k != nil || err != nil {
			return k, err
		}
	}
	return nil, nil
}
