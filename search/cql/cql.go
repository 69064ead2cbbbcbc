// Package cql parses component query expressions into archetype filters:
//
//	CONTAINS(game::position, game::hp) & !EXACT(game::tag) | ALL()
//
// Operators bind left to right with equal precedence; parentheses group.
package cql

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/rotisserie/eris"

	"pkg.world.dev/world-engine/ecstore/component"
	"pkg.world.dev/world-engine/ecstore/search/filter"
)

type cqlOperator int

const (
	opAnd cqlOperator = iota
	opOr
)

var operatorMap = map[string]cqlOperator{"&": opAnd, "|": opOr}

// Capture tells the parser how to turn the operator token into a cqlOperator.
func (o *cqlOperator) Capture(s []string) error {
	if len(s) == 0 {
		return eris.New("invalid operator")
	}
	operator, ok := operatorMap[s[0]]
	if !ok {
		return eris.New("invalid operator")
	}
	*o = operator
	return nil
}

type cqlComponent struct {
	Path string `@Path`
}

type cqlNot struct {
	SubExpression *cqlValue `"!" @@`
}

type cqlExact struct {
	Components []*cqlComponent `"EXACT" "(" (@@ ",")* @@ ")"`
}

type cqlContains struct {
	Components []*cqlComponent `"CONTAINS" "(" (@@ ",")* @@ ")"`
}

type cqlValue struct {
	All           bool         `@("ALL" "(" ")")`
	Exact         *cqlExact    `| @@`
	Contains      *cqlContains `| @@`
	Not           *cqlNot      `| @@`
	Subexpression *cqlTerm     `| "(" @@ ")"`
}

type cqlOpFactor struct {
	Operator cqlOperator `@("&" | "|")`
	Value    *cqlValue   `@@`
}

type cqlTerm struct {
	Left  *cqlValue      `@@`
	Right []*cqlOpFactor `@@*`
}

var cqlLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Path", Pattern: `[A-Za-z_][A-Za-z0-9_]*(::[A-Za-z_][A-Za-z0-9_]*)*`},
	{Name: "Punct", Pattern: `[(),!&|]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var internalCQLParser = participle.MustBuild[cqlTerm](
	participle.Lexer(cqlLexer),
	participle.Elide("Whitespace"),
)

// Resolver maps a component path in an expression to its descriptor.
type Resolver func(path string) (component.Desc, error)

func resolveAll(components []*cqlComponent, resolve Resolver) ([]component.Desc, error) {
	descs := make([]component.Desc, 0, len(components))
	for _, c := range components {
		desc, err := resolve(c.Path)
		if err != nil {
			return nil, eris.Wrapf(err, "unknown component %q in query", c.Path)
		}
		descs = append(descs, desc)
	}
	return descs, nil
}

func valueToComponentFilter(value *cqlValue, resolve Resolver) (filter.ComponentFilter, error) {
	switch {
	case value.Not != nil:
		resultFilter, err := valueToComponentFilter(value.Not.SubExpression, resolve)
		if err != nil {
			return nil, err
		}
		return filter.Not(resultFilter), nil
	case value.Exact != nil:
		descs, err := resolveAll(value.Exact.Components, resolve)
		if err != nil {
			return nil, err
		}
		return filter.Exact(descs...), nil
	case value.Contains != nil:
		descs, err := resolveAll(value.Contains.Components, resolve)
		if err != nil {
			return nil, err
		}
		return filter.Contains(descs...), nil
	case value.All:
		return filter.All(), nil
	case value.Subexpression != nil:
		return termToComponentFilter(value.Subexpression, resolve)
	}
	return nil, eris.New("unknown error during conversion from CQL AST to ComponentFilter")
}

func termToComponentFilter(term *cqlTerm, resolve Resolver) (filter.ComponentFilter, error) {
	if term.Left == nil {
		return nil, eris.New("not enough values in expression")
	}
	acc, err := valueToComponentFilter(term.Left, resolve)
	if err != nil {
		return nil, err
	}
	for _, opFactor := range term.Right {
		resultFilter, err := valueToComponentFilter(opFactor.Value, resolve)
		if err != nil {
			return nil, err
		}
		switch opFactor.Operator {
		case opAnd:
			acc = filter.And(acc, resultFilter)
		case opOr:
			acc = filter.Or(acc, resultFilter)
		default:
			return nil, eris.New("invalid operator")
		}
	}
	return acc, nil
}

// Parse turns cqlText into a filter, resolving component paths with resolve.
func Parse(cqlText string, resolve Resolver) (filter.ComponentFilter, error) {
	term, err := internalCQLParser.ParseString("", cqlText)
	if err != nil {
		return nil, eris.Wrap(err, "")
	}
	return termToComponentFilter(term, resolve)
}

// ParseForRegistry is Parse resolving paths through r.
func ParseForRegistry(cqlText string, r *component.Registry) (filter.ComponentFilter, error) {
	return Parse(cqlText, r.ByPath)
}
