package ql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

/*
This file contains a participle grammar for node filter expressions. A filter
is a boolean combination of comparisons between a node field and a literal:

	lod > 100 and leaf = true or (depth <= 2 and not root = true)

"and" binds tighter than "or". Field names are resolved when the expression is
compiled, not when it is parsed.
*/

////////////////////////////////////////////////////////////////////////////////

var (
	Options = []participle.Option{ // nolint:gochecknoglobals
		participle.Lexer(
			lexer.MustSimple([]lexer.SimpleRule{
				{Name: "Word", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
				{Name: "whitespace", Pattern: `\s+`},
				{Name: "Operators", Pattern: `[()]`},
				{Name: "BinaryOperator", Pattern: `!=|<=|>=|=|<|>`},
				{Name: "Float", Pattern: `[-+]?\d*\.\d+([eE][-+]?\d+)?`},
				{Name: "Integer", Pattern: `[-+]?[0-9]+`},
			}),
		),
	}
)

// Expression is a disjunction of conjunctions.
type Expression struct {
	Or []*OrCondition `@@ ( "or" @@ )*`
}

// OrCondition is one operand of "or": a conjunction of conditions.
type OrCondition struct {
	And []*Condition `@@ ( "and" @@ )*`
}

// Condition is a possibly negated comparison or parenthesized expression.
type Condition struct {
	Not           bool        `@"not"?`
	Subexpression *Expression `( "(" @@ ")"`
	Comparison    *Comparison `| @@ )`
}

// Comparison compares a node field to a literal.
type Comparison struct {
	Field string `@Word`
	Op    string `@BinaryOperator`
	Value Value  `@@`
}

// Boolean captures "true" or "false".
type Boolean bool

// Capture implements participle.Capture.
func (b *Boolean) Capture(values []string) error {
	*b = values[0] == "true"
	return nil
}

// Value represents a literal.
type Value struct {
	Float   *float64 `@Float`
	Integer *int64   `| @Integer`
	Bool    *Boolean `| @("true" | "false")`
}

// String returns the string representation of the value.
func (v Value) String() string {
	switch {
	case v.Float != nil:
		return strconv.FormatFloat(*v.Float, 'g', -1, 64)
	case v.Integer != nil:
		return strconv.FormatInt(*v.Integer, 10)
	case v.Bool != nil:
		return strconv.FormatBool(bool(*v.Bool))
	default:
		panic("invalid value")
	}
}

// String returns the expression in canonical form.
func (e *Expression) String() string {
	parts := make([]string, len(e.Or))
	for i, or := range e.Or {
		parts[i] = or.String()
	}
	return strings.Join(parts, " or ")
}

// String returns the conjunction in canonical form.
func (o *OrCondition) String() string {
	parts := make([]string, len(o.And))
	for i, and := range o.And {
		parts[i] = and.String()
	}
	return strings.Join(parts, " and ")
}

// String returns the condition in canonical form.
func (c *Condition) String() string {
	var s string
	if c.Subexpression != nil {
		s = "(" + c.Subexpression.String() + ")"
	} else {
		s = c.Comparison.String()
	}
	if c.Not {
		return "not " + s
	}
	return s
}

// String returns the comparison in canonical form.
func (c *Comparison) String() string {
	return fmt.Sprintf("%s %s %s", c.Field, c.Op, c.Value)
}

// NewParser returns a new filter parser.
func NewParser() *participle.Parser[Expression] {
	return participle.MustBuild[Expression](Options...)
}
