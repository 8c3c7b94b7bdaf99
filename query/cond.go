package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/parchmint/corpora/core"
)

// Condition is a per-record predicate. It is both the filter payload of
// a Match op and the condition language of flow-control stages.
type Condition interface {
	fmt.Stringer
	Matches(rec *core.Record) bool
}

// MatchAll accepts every record.
type MatchAll struct{}

func (MatchAll) Matches(*core.Record) bool { return true }
func (MatchAll) String() string            { return "all()" }

// And accepts records matching every child condition.
type And []Condition

func (a And) Matches(rec *core.Record) bool {
	for _, c := range a {
		if !c.Matches(rec) {
			return false
		}
	}
	return true
}

func (a And) String() string { return joinConds([]Condition(a), "&") }

// Or accepts records matching at least one child condition.
type Or []Condition

func (o Or) Matches(rec *core.Record) bool {
	for _, c := range o {
		if c.Matches(rec) {
			return true
		}
	}
	return false
}

func (o Or) String() string { return joinConds([]Condition(o), "|") }

// Not inverts a condition.
type Not struct {
	C Condition
}

func (n Not) Matches(rec *core.Record) bool { return !n.C.Matches(rec) }
func (n Not) String() string                { return "~(" + n.C.String() + ")" }

// CmpOp enumerates comparison operators.
type CmpOp string

const (
	OpEq       CmpOp = "="
	OpNe       CmpOp = "!="
	OpGt       CmpOp = ">"
	OpGte      CmpOp = ">="
	OpLt       CmpOp = "<"
	OpLte      CmpOp = "<="
	OpContains CmpOp = "%" // case-insensitive substring
)

// Compare matches one field against a literal. Equality against a list
// field matches any element, mirroring document-store semantics.
type Compare struct {
	Field string
	Op    CmpOp
	Value any
}

func (c Compare) Matches(rec *core.Record) bool {
	got := rec.Get(c.Field)

	switch c.Op {
	case OpEq:
		return valueEq(got, c.Value)
	case OpNe:
		return !valueEq(got, c.Value)
	case OpContains:
		return valueContains(got, c.Value)
	case OpGt, OpGte, OpLt, OpLte:
		ord, ok := valueCmp(got, c.Value)
		if !ok {
			return false
		}
		switch c.Op {
		case OpGt:
			return ord > 0
		case OpGte:
			return ord >= 0
		case OpLt:
			return ord < 0
		default:
			return ord <= 0
		}
	}
	return false
}

func (c Compare) String() string {
	return fmt.Sprintf("%s%s%s", c.Field, c.Op, literalString(c.Value))
}

// In matches records whose field equals (or contains) any listed value.
type In struct {
	Field  string
	Values []any
}

func (c In) Matches(rec *core.Record) bool {
	got := rec.Get(c.Field)
	for _, v := range c.Values {
		if valueEq(got, v) {
			return true
		}
	}
	return false
}

func (c In) String() string {
	parts := make([]string, len(c.Values))
	for i, v := range c.Values {
		parts[i] = literalString(v)
	}
	return c.Field + "=in(" + strings.Join(parts, ";") + ")"
}

// Prefix matches records whose field (or any of its elements) starts
// with the given literal.
type Prefix struct {
	Field  string
	Prefix string
}

func (c Prefix) Matches(rec *core.Record) bool {
	switch v := rec.Get(c.Field).(type) {
	case string:
		return strings.HasPrefix(v, c.Prefix)
	case []string:
		for _, s := range v {
			if strings.HasPrefix(s, c.Prefix) {
				return true
			}
		}
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok && strings.HasPrefix(s, c.Prefix) {
				return true
			}
		}
	}
	return false
}

func (c Prefix) String() string {
	return fmt.Sprintf("begin(%s,%s)", c.Field, literalString(c.Prefix))
}

// Exists matches records that have (or lack) a value at the field path.
type Exists struct {
	Field string
	Want  bool
}

func (c Exists) Matches(rec *core.Record) bool { return rec.Has(c.Field) == c.Want }

func (c Exists) String() string { return fmt.Sprintf("exists(%s,%v)", c.Field, c.Want) }

// valueEq compares a stored value against a query literal. A list on the
// stored side matches when any element equals the literal.
func valueEq(got, want any) bool {
	switch g := got.(type) {
	case []string:
		for _, e := range g {
			if valueEq(e, want) {
				return true
			}
		}
		return false
	case []any:
		for _, e := range g {
			if valueEq(e, want) {
				return true
			}
		}
		return false
	case []core.ID:
		for _, e := range g {
			if valueEq(e, want) {
				return true
			}
		}
		return false
	}
	if ord, ok := valueCmp(got, want); ok {
		return ord == 0
	}
	return got == want
}

// valueCmp orders two scalars of compatible types.
func valueCmp(a, b any) (int, bool) {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			}
			return 0, true
		}
	}
	if at, ok := toTime(a); ok {
		if bt, ok := toTime(b); ok {
			return at.Compare(bt), true
		}
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs), true
	}
	return 0, false
}

func valueContains(got, want any) bool {
	sub, ok := want.(string)
	if !ok {
		return false
	}
	sub = strings.ToLower(sub)
	switch g := got.(type) {
	case string:
		return strings.Contains(strings.ToLower(g), sub)
	case []string:
		for _, e := range g {
			if strings.Contains(strings.ToLower(e), sub) {
				return true
			}
		}
	case []any:
		for _, e := range g {
			if s, ok := e.(string); ok && strings.Contains(strings.ToLower(s), sub) {
				return true
			}
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case core.ID:
		return float64(x), true
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, x); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func literalString(v any) string {
	switch x := v.(type) {
	case string:
		return "`" + strings.ReplaceAll(x, "`", "\\`") + "`"
	case time.Time:
		return x.Format("2006-01-02 15:04:05")
	case core.ID:
		return "id(`" + x.String() + "`)"
	default:
		return fmt.Sprint(x)
	}
}

func joinConds(conds []Condition, sep string) string {
	parts := make([]string, len(conds))
	for i, c := range conds {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}

// MergeAnd combines two conditions into one conjunction, flattening
// nested Ands so repeated merges stay shallow.
func MergeAnd(a, b Condition) Condition {
	if a == nil || isMatchAll(a) {
		return b
	}
	if b == nil || isMatchAll(b) {
		return a
	}
	out := And{}
	if aa, ok := a.(And); ok {
		out = append(out, aa...)
	} else {
		out = append(out, a)
	}
	if ba, ok := b.(And); ok {
		out = append(out, ba...)
	} else {
		out = append(out, b)
	}
	return out
}

func isMatchAll(c Condition) bool {
	_, ok := c.(MatchAll)
	return ok
}
