// Package mecherr defines the error values produced by the mech runtime.
//
// Every failure carries a Code so callers can branch with Is without
// string matching. Errors raised while a block is being readied or solved
// are wrapped in Attributed so reports can point back at the source text.
package mecherr

import (
	"errors"
	"fmt"
	"strings"
)

// Code classifies a runtime error.
type Code int

const (
	Unknown Code = iota
	IncorrectNumberOfArguments
	UnhandledFunctionArgumentKind
	MissingFunction
	MissingTable
	DuplicateAlias
	UnsatisfiedTransformation
	UndefinedVariable
	NotMutable
	VariableRedefined
	UnknownEnumVariant
	UnableToConvertValueKind
	DimensionMismatch
	KindMismatch
	IndexOutOfBounds
	GenericError
)

var codeNames = [...]string{
	Unknown:                       "unknown",
	IncorrectNumberOfArguments:    "incorrect number of arguments",
	UnhandledFunctionArgumentKind: "unhandled function argument kind",
	MissingFunction:               "missing function",
	MissingTable:                  "missing table",
	DuplicateAlias:                "duplicate alias",
	UnsatisfiedTransformation:     "unsatisfied transformation",
	UndefinedVariable:             "undefined variable",
	NotMutable:                    "not mutable",
	VariableRedefined:             "variable redefined",
	UnknownEnumVariant:            "unknown enum variant",
	UnableToConvertValueKind:      "unable to convert value kind",
	DimensionMismatch:             "dimension mismatch",
	KindMismatch:                  "kind mismatch",
	IndexOutOfBounds:              "index out of bounds",
	GenericError:                  "error",
}

func (c Code) String() string {
	if int(c) >= 0 && int(c) < len(codeNames) {
		return codeNames[c]
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// Error is the structured error value used throughout the runtime.
type Error struct {
	Code Code

	// Op names the operator, table or variable involved, when known.
	Op string

	// Expected and Found are used by argument-count and shape errors.
	Expected int
	Found    int

	// ArgKinds lists the kinds of the arguments a dispatch could not match.
	ArgKinds []string

	// IDs lists table or alias ids relevant to the error.
	IDs []uint64

	// Dims holds [rows, cols] pairs for dimension mismatches.
	Dims [][2]int

	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Code.String())
	if e.Op != "" {
		fmt.Fprintf(&b, " %q", e.Op)
	}
	switch e.Code {
	case IncorrectNumberOfArguments:
		fmt.Fprintf(&b, ": expected %d, found %d", e.Expected, e.Found)
	case UnhandledFunctionArgumentKind, UnableToConvertValueKind, KindMismatch:
		if len(e.ArgKinds) > 0 {
			fmt.Fprintf(&b, ": (%s)", strings.Join(e.ArgKinds, ", "))
		}
	case DimensionMismatch:
		if len(e.Dims) > 0 {
			parts := make([]string, len(e.Dims))
			for i, d := range e.Dims {
				parts[i] = fmt.Sprintf("%dx%d", d[0], d[1])
			}
			fmt.Fprintf(&b, ": %s", strings.Join(parts, " vs "))
		}
	case IndexOutOfBounds:
		fmt.Fprintf(&b, ": index %d, size %d", e.Found, e.Expected)
	}
	if len(e.IDs) > 0 {
		ids := make([]string, len(e.IDs))
		for i, id := range e.IDs {
			ids[i] = fmt.Sprintf("%#x", id)
		}
		fmt.Fprintf(&b, " [%s]", strings.Join(ids, " "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether any error in err's tree carries the given code.
func Is(err error, code Code) bool {
	switch e := err.(type) {
	case nil:
		return false
	case *Error:
		return e.Code == code || Is(e.Err, code)
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			if Is(inner, code) {
				return true
			}
		}
		return false
	case interface{ Unwrap() error }:
		return Is(e.Unwrap(), code)
	}
	return false
}

// CodeOf returns the code of the first *Error in err's chain, or Unknown.
func CodeOf(err error) Code {
	var me *Error
	if errors.As(err, &me) {
		return me.Code
	}
	return Unknown
}

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

func IncorrectArgs(op string, expected, found int) *Error {
	return &Error{Code: IncorrectNumberOfArguments, Op: op, Expected: expected, Found: found}
}

func Unhandled(op string, kinds ...string) *Error {
	return &Error{Code: UnhandledFunctionArgumentKind, Op: op, ArgKinds: kinds}
}

func NoFunction(op string) *Error {
	return &Error{Code: MissingFunction, Op: op}
}

func NoTable(ids ...uint64) *Error {
	return &Error{Code: MissingTable, IDs: ids}
}

func Duplicate(alias uint64) *Error {
	return &Error{Code: DuplicateAlias, IDs: []uint64{alias}}
}

func Unsatisfied(missing ...uint64) *Error {
	return &Error{Code: UnsatisfiedTransformation, IDs: missing}
}

func Redefined(name string, id uint64) *Error {
	return &Error{Code: VariableRedefined, Op: name, IDs: []uint64{id}}
}

func Dimensions(op string, dims ...[2]int) *Error {
	return &Error{Code: DimensionMismatch, Op: op, Dims: dims}
}

func OutOfBounds(op string, index, size int) *Error {
	return &Error{Code: IndexOutOfBounds, Op: op, Found: index, Expected: size}
}

func Mismatch(op string, kinds ...string) *Error {
	return &Error{Code: KindMismatch, Op: op, ArgKinds: kinds}
}

func Conversion(from, to string) *Error {
	return &Error{Code: UnableToConvertValueKind, ArgKinds: []string{from, to}}
}

func Errorf(format string, args ...any) *Error {
	return &Error{Code: GenericError, Err: fmt.Errorf(format, args...)}
}
