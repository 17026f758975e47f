package ql

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/wkalt/i3s/layer"
	"golang.org/x/exp/maps"
)

// Target is what a filter is evaluated against: a node and where it sits.
type Target struct {
	Node  *layer.Node
	Depth int
	Page  uint64
}

// Filter is a compiled expression.
type Filter struct {
	expr  *Expression
	match func(Target) bool
}

// ErrUnknownField is returned when an expression names a field that does not
// exist.
var ErrUnknownField = errors.New("unknown field")

// ErrInvalidComparison is returned when an operator or literal does not suit a
// field's type.
var ErrInvalidComparison = errors.New("invalid comparison")

type fieldKind int

const (
	numeric fieldKind = iota
	boolean
)

type field struct {
	kind fieldKind
	// value returns the field and whether it is present.
	value func(Target) (number, bool)
}

// number is a field value or literal. Integers are held exactly so that
// indices above 2^53 compare correctly.
type number struct {
	exact bool // u holds the value
	u     uint64
	f     float64
}

func integer(u uint64) number {
	return number{exact: true, u: u}
}

func inexact(f float64) number {
	return number{f: f}
}

// compare returns -1, 0, or +1 as a is less than, equal to, or greater than b.
func (a number) compare(b number) int {
	switch {
	case a.exact && b.exact:
		return cmp.Compare(a.u, b.u)
	case a.exact:
		return compareUintFloat(a.u, b.f)
	case b.exact:
		return -compareUintFloat(b.u, a.f)
	default:
		return cmp.Compare(a.f, b.f)
	}
}

// compareUintFloat compares without converting u to float64.
func compareUintFloat(u uint64, f float64) int {
	switch {
	case math.IsNaN(f):
		return cmp.Compare(0, f)
	case f < 0:
		return 1
	case f >= math.Exp2(64):
		return -1
	}
	whole := math.Trunc(f)
	if c := cmp.Compare(u, uint64(whole)); c != 0 {
		return c
	}
	if f > whole {
		return -1
	}
	return 0
}

func present(f func(Target) uint64) func(Target) (number, bool) {
	return func(t Target) (number, bool) {
		return integer(f(t)), true
	}
}

func flag(f func(Target) bool) func(Target) (number, bool) {
	return func(t Target) (number, bool) {
		if f(t) {
			return integer(1), true
		}
		return integer(0), true
	}
}

func lodThreshold(t Target) (number, bool) {
	if t.Node.LODThreshold == nil {
		return number{}, false
	}
	return inexact(*t.Node.LODThreshold), true
}

func vertexCount(t Target) uint64 {
	if t.Node.Mesh == nil {
		return 0
	}
	return t.Node.Mesh.Geometry.VertexCount
}

var fields = map[string]field{ // nolint:gochecknoglobals
	"index":    {numeric, present(func(t Target) uint64 { return t.Node.Index })},
	"page":     {numeric, present(func(t Target) uint64 { return t.Page })},
	"depth":    {numeric, present(func(t Target) uint64 { return uint64(max(t.Depth, 0)) })},
	"lod":      {numeric, lodThreshold},
	"children": {numeric, present(func(t Target) uint64 { return uint64(len(t.Node.Children)) })},
	"vertices": {numeric, present(vertexCount)},
	"leaf":     {boolean, flag(func(t Target) bool { return t.Node.IsLeaf() })},
	"root":     {boolean, flag(func(t Target) bool { return t.Node.IsRoot() })},
	"mesh":     {boolean, flag(func(t Target) bool { return t.Node.Mesh != nil })},
}

// Fields returns the names of the fields a filter may reference, sorted.
func Fields() []string {
	names := maps.Keys(fields)
	slices.Sort(names)
	return names
}

// Compile parses and type-checks a filter expression.
func Compile(text string) (*Filter, error) {
	expr, err := NewParser().ParseString("", text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse filter: %w", err)
	}
	match, err := compileExpression(expr)
	if err != nil {
		return nil, err
	}
	return &Filter{expr: expr, match: match}, nil
}

// Match reports whether the target satisfies the filter.
func (f *Filter) Match(t Target) bool {
	return f.match(t)
}

// String returns the filter in canonical form.
func (f *Filter) String() string {
	return f.expr.String()
}

func compileExpression(expr *Expression) (func(Target) bool, error) {
	terms := make([]func(Target) bool, 0, len(expr.Or))
	for _, or := range expr.Or {
		term, err := compileConjunction(or)
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}
	return func(t Target) bool {
		for _, term := range terms {
			if term(t) {
				return true
			}
		}
		return false
	}, nil
}

func compileConjunction(or *OrCondition) (func(Target) bool, error) {
	terms := make([]func(Target) bool, 0, len(or.And))
	for _, cond := range or.And {
		term, err := compileCondition(cond)
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}
	return func(t Target) bool {
		for _, term := range terms {
			if !term(t) {
				return false
			}
		}
		return true
	}, nil
}

func compileCondition(cond *Condition) (func(Target) bool, error) {
	var inner func(Target) bool
	var err error
	if cond.Subexpression != nil {
		inner, err = compileExpression(cond.Subexpression)
	} else {
		inner, err = compileComparison(cond.Comparison)
	}
	if err != nil {
		return nil, err
	}
	if cond.Not {
		return func(t Target) bool { return !inner(t) }, nil
	}
	return inner, nil
}

func compileComparison(c *Comparison) (func(Target) bool, error) {
	f, ok := fields[strings.ToLower(c.Field)]
	if !ok {
		return nil, fmt.Errorf("%w: %s (expected one of %s)", ErrUnknownField, c.Field, strings.Join(Fields(), ", "))
	}
	rhs := integer(0)
	switch f.kind {
	case boolean:
		if c.Value.Bool == nil {
			return nil, fmt.Errorf("%w: %s requires true or false", ErrInvalidComparison, c.Field)
		}
		if c.Op != "=" && c.Op != "!=" {
			return nil, fmt.Errorf("%w: %s does not support %s", ErrInvalidComparison, c.Field, c.Op)
		}
		if *c.Value.Bool {
			rhs = integer(1)
		}
	case numeric:
		switch {
		case c.Value.Integer != nil && *c.Value.Integer >= 0:
			rhs = integer(uint64(*c.Value.Integer))
		case c.Value.Integer != nil:
			rhs = inexact(float64(*c.Value.Integer))
		case c.Value.Float != nil:
			rhs = inexact(*c.Value.Float)
		default:
			return nil, fmt.Errorf("%w: %s requires a number", ErrInvalidComparison, c.Field)
		}
	}
	test, err := comparator(c.Op)
	if err != nil {
		return nil, err
	}
	return func(t Target) bool {
		lhs, ok := f.value(t)
		return ok && test(lhs.compare(rhs))
	}, nil
}

// comparator maps an operator to a test on the result of number.compare.
func comparator(op string) (func(c int) bool, error) {
	switch op {
	case "=":
		return func(c int) bool { return c == 0 }, nil
	case "!=":
		return func(c int) bool { return c != 0 }, nil
	case "<":
		return func(c int) bool { return c < 0 }, nil
	case "<=":
		return func(c int) bool { return c <= 0 }, nil
	case ">":
		return func(c int) bool { return c > 0 }, nil
	case ">=":
		return func(c int) bool { return c >= 0 }, nil
	default:
		return nil, fmt.Errorf("%w: unsupported operator %s", ErrInvalidComparison, op)
	}
}
