package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/parchmint/corpora/core"
)

// TermResolver expands a tag literal to the tag and its registered
// aliases. A nil resolver leaves tag literals untouched.
type TermResolver func(term string) []string

// node is the parser's intermediate result: exactly one arm is set.
type node struct {
	cond  Condition
	op    Op
	value any
	field string // $field reference
	agg   *aggNode
}

type aggNode struct {
	fn    AggFn
	field string
}

func (n node) isCond() bool  { return n.cond != nil }
func (n node) isOp() bool    { return n.op != nil }
func (n node) isField() bool { return n.field != "" }

type parser struct {
	toks  []token
	pos   int
	terms TermResolver
}

// parseQuery parses an expression-mode query into an op list. Stages
// are separated by "=>"; a stage that evaluates to a bare condition or
// literal becomes a match op.
func parseQuery(input string, terms TermResolver) ([]Op, error) {
	toks, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, terms: terms}

	var ops []Op
	for {
		if p.peek().kind == tokEOF {
			break
		}
		n, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		op, err := nodeToOp(n)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
		switch p.peek().kind {
		case tokArrow:
			p.next()
		case tokEOF:
		default:
			return nil, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, p.peek().text, p.peek().pos)
		}
	}
	return ops, nil
}

// ParseCondition parses an expression that must reduce to a single
// per-record predicate. Used by flow-control stages.
func ParseCondition(input string, terms TermResolver) (Condition, error) {
	if strings.TrimSpace(input) == "" {
		return MatchAll{}, nil
	}
	toks, err := lex(strings.TrimPrefix(strings.TrimSpace(input), "?"))
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, terms: terms}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, p.peek().text, p.peek().pos)
	}
	cond, err := nodeToCond(n)
	if err != nil {
		return nil, err
	}
	return cond, nil
}

func nodeToOp(n node) (Op, error) {
	if n.isOp() {
		return n.op, nil
	}
	cond, err := nodeToCond(n)
	if err != nil {
		return nil, err
	}
	return Match{Cond: cond}, nil
}

func nodeToCond(n node) (Condition, error) {
	if n.isCond() {
		return n.cond, nil
	}
	if n.isOp() {
		return nil, fmt.Errorf("%w: %s is not a condition", ErrSyntax, n.op)
	}
	if n.isField() {
		return Exists{Field: n.field, Want: true}, nil
	}
	// Bare literal: equality on the default field.
	return Compare{Field: core.FieldTags, Op: OpEq, Value: n.value}, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	t := p.next()
	if t.kind != kind {
		return t, fmt.Errorf("%w: expected %s, got %q at %d", ErrSyntax, what, t.text, t.pos)
	}
	return t, nil
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return node{}, err
	}
	if p.peek().kind != tokOp || p.peek().text != "|" {
		return left, nil
	}
	conds := Or{}
	c, err := nodeToCond(left)
	if err != nil {
		return node{}, err
	}
	conds = append(conds, c)
	for p.peek().kind == tokOp && p.peek().text == "|" {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return node{}, err
		}
		c, err := nodeToCond(right)
		if err != nil {
			return node{}, err
		}
		conds = append(conds, c)
	}
	return node{cond: conds}, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return node{}, err
	}
	if p.peek().kind != tokOp || (p.peek().text != "&" && p.peek().text != ",") {
		return left, nil
	}
	conds := And{}
	c, err := nodeToCond(left)
	if err != nil {
		return node{}, err
	}
	conds = append(conds, c)
	for p.peek().kind == tokOp && (p.peek().text == "&" || p.peek().text == ",") {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return node{}, err
		}
		c, err := nodeToCond(right)
		if err != nil {
			return node{}, err
		}
		conds = append(conds, c)
	}
	return node{cond: conds}, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.peek().kind == tokOp && p.peek().text == "~" {
		p.next()
		inner, err := p.parseUnary()
		if err != nil {
			return node{}, err
		}
		cond, err := nodeToCond(inner)
		if err != nil {
			return node{}, err
		}
		return node{cond: Not{C: cond}}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	t := p.peek()
	switch t.kind {
	case tokLParen:
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return node{}, err
		}
		if _, err := p.expect(tokRParen, ")"); err != nil {
			return node{}, err
		}
		return inner, nil
	case tokField:
		p.next()
		if p.peek().kind == tokOp && isCmpOp(p.peek().text) {
			return p.parseComparison(t.text)
		}
		return node{field: t.text}, nil
	case tokIdent:
		p.next()
		if p.peek().kind == tokLParen {
			return p.parseCall(t.text)
		}
		if p.peek().kind == tokOp && isCmpOp(p.peek().text) {
			return p.parseComparison(t.text)
		}
		return node{value: identValue(t.text)}, nil
	case tokString:
		p.next()
		return node{value: t.text}, nil
	case tokNumber:
		p.next()
		return node{value: numberValue(t.text)}, nil
	case tokOp:
		if t.text == "-" {
			p.next()
			num, err := p.expect(tokNumber, "number")
			if err != nil {
				return node{}, err
			}
			return node{value: negate(numberValue(num.text))}, nil
		}
	}
	return node{}, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, t.text, t.pos)
}

func (p *parser) parseComparison(field string) (node, error) {
	opTok := p.next()
	val, err := p.parseValue()
	if err != nil {
		return node{}, err
	}
	// A comparison against a term() expansion becomes set membership.
	if in, ok := val.(In); ok {
		if opTok.text == string(OpEq) {
			in.Field = field
			return node{cond: in}, nil
		}
		return node{}, fmt.Errorf("%w: term() only supports equality", ErrBadArgument)
	}
	return node{cond: Compare{Field: field, Op: CmpOp(opTok.text), Value: val}}, nil
}

// parseValue parses a literal, field reference or value-returning call.
func (p *parser) parseValue() (any, error) {
	t := p.next()
	switch t.kind {
	case tokString:
		return t.text, nil
	case tokNumber:
		return numberValue(t.text), nil
	case tokIdent:
		if p.peek().kind == tokLParen {
			n, err := p.parseCall(t.text)
			if err != nil {
				return nil, err
			}
			if in, ok := n.cond.(In); ok {
				return in, nil
			}
			if n.isOp() || n.isCond() {
				return nil, fmt.Errorf("%w: %q is not a value", ErrBadArgument, t.text)
			}
			return n.value, nil
		}
		return identValue(t.text), nil
	case tokOp:
		if t.text == "-" {
			num, err := p.expect(tokNumber, "number")
			if err != nil {
				return nil, err
			}
			return negate(numberValue(num.text)), nil
		}
	case tokLBrack:
		var items []any
		for p.peek().kind != tokRBrack {
			v, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			items = append(items, v)
			if p.peek().kind == tokSemi || (p.peek().kind == tokOp && p.peek().text == ",") {
				p.next()
			}
		}
		p.next() // ]
		return items, nil
	}
	return nil, fmt.Errorf("%w: expected value, got %q at %d", ErrSyntax, t.text, t.pos)
}

func isCmpOp(s string) bool {
	switch CmpOp(s) {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpContains:
		return true
	}
	return false
}

func identValue(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	return s
}

func numberValue(s string) any {
	if !strings.Contains(s, ".") {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			return v
		}
	}
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func negate(v any) any {
	switch x := v.(type) {
	case int64:
		return -x
	case float64:
		return -x
	}
	return v
}

func parseTimeLiteral(s string) (time.Time, bool) {
	return toTime(s)
}
