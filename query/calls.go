package query

import (
	"fmt"
	"strings"

	"github.com/parchmint/corpora/core"
)

// parseCall lowers a function call to an op, a condition or a value.
// The opening parenthesis has not been consumed yet.
func (p *parser) parseCall(name string) (node, error) {
	if _, err := p.expect(tokLParen, "("); err != nil {
		return node{}, err
	}
	switch strings.ToLower(name) {
	case "sort":
		keys, err := p.parseSortArgs()
		if err != nil {
			return node{}, err
		}
		return node{op: Sort{Keys: keys}}, nil
	case "limit":
		n, err := p.parseIntArg(name)
		if err != nil {
			return node{}, err
		}
		return node{op: Limit{N: n}}, nil
	case "skip":
		n, err := p.parseIntArg(name)
		if err != nil {
			return node{}, err
		}
		return node{op: Skip{N: n}}, nil
	case "sample":
		n, err := p.parseIntArg(name)
		if err != nil {
			return node{}, err
		}
		return node{op: Sample{Size: n}}, nil
	case "groupby":
		return p.parseGroupBy()
	case "begin":
		s, err := p.parseStringArg(name)
		if err != nil {
			return node{}, err
		}
		return node{cond: Prefix{Field: core.FieldTags, Prefix: s}}, nil
	case "term":
		s, err := p.parseStringArg(name)
		if err != nil {
			return node{}, err
		}
		values := []any{s}
		if p.terms != nil {
			values = values[:0]
			for _, t := range p.terms(s) {
				values = append(values, t)
			}
			if len(values) == 0 {
				values = []any{s}
			}
		}
		return node{cond: In{Field: core.FieldTags, Values: values}}, nil
	case "id", "object_id":
		s, err := p.parseStringArg(name)
		if err != nil {
			return node{}, err
		}
		id, err := core.ParseID(s)
		if err != nil {
			if t, ok := parseTimeLiteral(s); ok {
				return node{value: core.IDFromTime(t)}, nil
			}
			return node{}, fmt.Errorf("%w: %v", ErrBadArgument, err)
		}
		return node{value: id}, nil
	case "gid":
		s, err := p.parseStringArg(name)
		if err != nil {
			return node{}, err
		}
		return node{cond: Compare{Field: core.FieldGroup, Op: OpEq, Value: s}}, nil
	case "auto":
		s, err := p.parseStringArg(name)
		if err != nil {
			return node{}, err
		}
		return node{cond: keywordCondition(s, p.terms)}, nil
	case "date", "d":
		s, err := p.parseStringArg(name)
		if err != nil {
			return node{}, err
		}
		t, ok := parseTimeLiteral(s)
		if !ok {
			return node{}, fmt.Errorf("%w: bad date %q", ErrBadArgument, s)
		}
		return node{value: t}, nil
	case "from":
		s, err := p.parseStringArg(name)
		if err != nil {
			return node{}, err
		}
		return node{op: From{Collection: s}}, nil
	case "plugin":
		s, err := p.parseMarkerArg(name)
		if err != nil {
			return node{}, err
		}
		return node{op: Plugin{Marker: s}}, nil
	case "raw":
		s, err := p.parseStringArg(name)
		if err != nil {
			return node{}, err
		}
		return node{op: Raw{Raw: s != "false" && s != "0"}}, nil
	case "exists":
		t, err := p.expect(tokField, "$field")
		if err != nil {
			return node{}, err
		}
		if _, err := p.expect(tokRParen, ")"); err != nil {
			return node{}, err
		}
		return node{cond: Exists{Field: t.text, Want: true}}, nil
	}
	return node{}, fmt.Errorf("%w: %q", ErrUnknownFunction, name)
}

func (p *parser) parseIntArg(name string) (int64, error) {
	v, err := p.parseValue()
	if err != nil {
		return 0, err
	}
	if _, err := p.expect(tokRParen, ")"); err != nil {
		return 0, err
	}
	switch x := v.(type) {
	case int64:
		return x, nil
	case float64:
		return int64(x), nil
	}
	return 0, fmt.Errorf("%w: %s() wants an integer", ErrBadArgument, name)
}

func (p *parser) parseStringArg(name string) (string, error) {
	t := p.next()
	var s string
	switch t.kind {
	case tokString, tokIdent, tokNumber:
		s = t.text
	case tokField:
		s = "$" + t.text
	default:
		return "", fmt.Errorf("%w: %s() wants a string, got %q", ErrBadArgument, name, t.text)
	}
	if _, err := p.expect(tokRParen, ")"); err != nil {
		return "", err
	}
	return s, nil
}

// parseMarkerArg reads a handler marker up to the closing parenthesis:
// either a single quoted string or slash-separated bare segments, as in
// plugin(gallery/thumb/12).
func (p *parser) parseMarkerArg(name string) (string, error) {
	var sb strings.Builder
	for {
		t := p.next()
		switch t.kind {
		case tokString, tokIdent, tokNumber:
			sb.WriteString(t.text)
		case tokOp:
			if t.text != "/" {
				return "", fmt.Errorf("%w: %s() wants a marker, got %q", ErrBadArgument, name, t.text)
			}
			sb.WriteByte('/')
		case tokRParen:
			if sb.Len() == 0 {
				return "", fmt.Errorf("%w: empty %s()", ErrBadArgument, name)
			}
			return sb.String(), nil
		default:
			return "", fmt.Errorf("%w: %s() wants a marker, got %q", ErrBadArgument, name, t.text)
		}
	}
}

// parseSortArgs accepts sort(-date, id) and sort('-date,id').
func (p *parser) parseSortArgs() ([]SortKey, error) {
	var keys []SortKey
	for {
		t := p.next()
		switch t.kind {
		case tokRParen:
			if len(keys) == 0 {
				return nil, fmt.Errorf("%w: empty sort()", ErrBadSortKey)
			}
			return keys, nil
		case tokString:
			parsed, err := ParseSortKeys(t.text)
			if err != nil {
				return nil, err
			}
			keys = append(keys, parsed...)
		case tokIdent:
			keys = append(keys, SortKey{Field: sortField(t.text)})
		case tokField:
			keys = append(keys, SortKey{Field: sortField(t.text)})
		case tokOp:
			if t.text != "-" && t.text != "," {
				return nil, fmt.Errorf("%w: %q", ErrBadSortKey, t.text)
			}
			if t.text == "-" {
				f := p.next()
				if f.kind != tokIdent && f.kind != tokField {
					return nil, fmt.Errorf("%w: %q", ErrBadSortKey, f.text)
				}
				keys = append(keys, SortKey{Field: sortField(f.text), Desc: true})
			}
		default:
			return nil, fmt.Errorf("%w: %q", ErrBadSortKey, t.text)
		}
	}
}

// parseGroupBy parses groupby($key; name=fn($field), ...). Bare field
// references are group keys; name=fn($field) adds an aggregate.
func (p *parser) parseGroupBy() (node, error) {
	g := GroupBy{}
	for {
		t := p.next()
		switch t.kind {
		case tokRParen:
			if len(g.Keys) == 0 {
				return node{}, fmt.Errorf("%w: groupby() needs a key", ErrBadArgument)
			}
			return node{op: g}, nil
		case tokSemi:
			continue
		case tokOp:
			if t.text == "," {
				continue
			}
			return node{}, fmt.Errorf("%w: unexpected %q in groupby()", ErrSyntax, t.text)
		case tokField:
			g.Keys = append(g.Keys, t.text)
		case tokIdent:
			eq, err := p.expect(tokOp, "=")
			if err != nil {
				return node{}, err
			}
			if eq.text != "=" {
				return node{}, fmt.Errorf("%w: expected = after %q", ErrSyntax, t.text)
			}
			agg, err := p.parseAggExpr(t.text)
			if err != nil {
				return node{}, err
			}
			g.Aggs = append(g.Aggs, agg)
		default:
			return node{}, fmt.Errorf("%w: unexpected %q in groupby()", ErrSyntax, t.text)
		}
	}
}

// parseAggExpr parses the right side of name=... inside groupby():
// either a plain $field (kept as-is per group) or fn($field) with fn
// one of first, max, min, sum, push, addToSet, count. sum(size($f))
// sums element counts instead of values.
func (p *parser) parseAggExpr(name string) (Agg, error) {
	t := p.next()
	switch t.kind {
	case tokField:
		return Agg{Name: name, Fn: AggFirst, Field: t.text}, nil
	case tokIdent:
		fn, ok := aggFns[strings.ToLower(t.text)]
		if !ok {
			return Agg{}, fmt.Errorf("%w: %q", ErrUnknownFunction, t.text)
		}
		if _, err := p.expect(tokLParen, "("); err != nil {
			return Agg{}, err
		}
		inner := p.next()
		switch {
		case inner.kind == tokField:
			if _, err := p.expect(tokRParen, ")"); err != nil {
				return Agg{}, err
			}
			return Agg{Name: name, Fn: fn, Field: inner.text}, nil
		case inner.kind == tokIdent && strings.EqualFold(inner.text, "size") && fn == AggSum:
			if _, err := p.expect(tokLParen, "("); err != nil {
				return Agg{}, err
			}
			f, err := p.expect(tokField, "$field")
			if err != nil {
				return Agg{}, err
			}
			if _, err := p.expect(tokRParen, ")"); err != nil {
				return Agg{}, err
			}
			if _, err := p.expect(tokRParen, ")"); err != nil {
				return Agg{}, err
			}
			return Agg{Name: name, Fn: AggSumLen, Field: f.text}, nil
		case inner.kind == tokRParen && fn == AggCount:
			return Agg{Name: name, Fn: AggCount}, nil
		}
		return Agg{}, fmt.Errorf("%w: %s() wants a $field", ErrBadArgument, t.text)
	}
	return Agg{}, fmt.Errorf("%w: bad aggregate for %q", ErrSyntax, name)
}

var aggFns = map[string]AggFn{
	"first":    AggFirst,
	"max":      AggMax,
	"min":      AggMin,
	"sum":      AggSum,
	"push":     AggPush,
	"addtoset": AggSet,
	"count":    AggCount,
}
