package mecherr

import (
	"fmt"
	"sort"
	"strings"
)

// Range locates a span of source text.
type Range struct {
	File      string
	Line, Col int
}

func (r Range) String() string {
	if r.File == "" && r.Line == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", r.File, r.Line, r.Col)
}

// Attributed ties an error to the block and statement that raised it.
type Attributed struct {
	Block     string
	BlockID   uint64
	Statement string
	Source    Range
	Err       error
}

func (a *Attributed) Error() string {
	var b strings.Builder
	if loc := a.Source.String(); loc != "" {
		b.WriteString(loc)
		b.WriteString(": ")
	}
	if a.Block != "" {
		fmt.Fprintf(&b, "block %s: ", a.Block)
	}
	b.WriteString(a.Err.Error())
	return b.String()
}

func (a *Attributed) Unwrap() error { return a.Err }

// Attribute wraps err with block provenance. A nil err stays nil.
func Attribute(err error, block string, blockID uint64, statement string, src Range) error {
	if err == nil {
		return nil
	}
	return &Attributed{Block: block, BlockID: blockID, Statement: statement, Source: src, Err: err}
}

// Report renders a list of errors grouped by code, one per line, with the
// offending statement text indented under each attributed error.
func Report(errs []error) string {
	if len(errs) == 0 {
		return ""
	}
	groups := make(map[Code][]error)
	for _, err := range errs {
		if err == nil {
			continue
		}
		c := CodeOf(err)
		groups[c] = append(groups[c], err)
	}
	codes := make([]Code, 0, len(groups))
	for c := range groups {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })

	var b strings.Builder
	for _, c := range codes {
		fmt.Fprintf(&b, "%s (%d)\n", c, len(groups[c]))
		for _, err := range groups[c] {
			fmt.Fprintf(&b, "  %v\n", err)
			if a, ok := err.(*Attributed); ok && a.Statement != "" {
				fmt.Fprintf(&b, "    | %s\n", a.Statement)
			}
		}
	}
	return b.String()
}
