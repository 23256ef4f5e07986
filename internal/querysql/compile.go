package querysql

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/svcstore/internal/ir"
	"github.com/roach88/svcstore/internal/queryir"
)

// ErrUnsupported marks predicates outside the compilable fragment.
var ErrUnsupported = errors.New("querysql: predicate not supported in SQL")

// RegexpFunc is the SQL function the compiled $regex calls as
// regexp(pattern, value). The store registers it on every connection.
const RegexpFunc = "regexp"

// Statement is a compiled query and its bound parameters.
type Statement struct {
	SQL  string
	Args []any
}

// Compiler compiles predicates against a document table. A Compiler
// numbers its json_each aliases and is not safe for concurrent use.
type Compiler struct {
	// Table holding the documents.
	Table string
	// Data is the JSON column.
	Data string
	// Scope is the column restricting rows to one service.
	Scope string
	// Seq is the insertion-order column used as the final tiebreak.
	Seq string

	alias int
}

// NewCompiler returns a compiler for the store's records table.
func NewCompiler() *Compiler {
	return &Compiler{Table: "records", Data: "data", Scope: "service", Seq: "seq"}
}

// Select compiles a find over scope's documents: WHERE from pred, ORDER BY
// from filters.Sort plus the sequence tiebreak, LIMIT/OFFSET from
// filters. The statement selects the data column.
func (c *Compiler) Select(scope string, pred queryir.Predicate, filters queryir.Filters) (Statement, error) {
	where, args, err := c.Where(pred)
	if err != nil {
		return Statement{}, err
	}
	order, orderArgs, err := c.OrderBy(filters.Sort)
	if err != nil {
		return Statement{}, err
	}

	limit := -1
	if filters.Limit != nil {
		limit = *filters.Limit
	}
	skip := 0
	if filters.Skip != nil {
		skip = *filters.Skip
	}

	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? AND (%s) ORDER BY %s LIMIT ? OFFSET ?",
		c.Data, c.Table, c.Scope, where, order)
	all := make([]any, 0, 1+len(args)+len(orderArgs)+2)
	all = append(all, scope)
	all = append(all, args...)
	all = append(all, orderArgs...)
	all = append(all, limit, skip)
	return Statement{SQL: sql, Args: all}, nil
}

// Count compiles the number of scope's documents matching pred.
func (c *Compiler) Count(scope string, pred queryir.Predicate) (Statement, error) {
	where, args, err := c.Where(pred)
	if err != nil {
		return Statement{}, err
	}
	sql := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = ? AND (%s)", c.Table, c.Scope, where)
	return Statement{SQL: sql, Args: append([]any{scope}, args...)}, nil
}

// Where compiles pred to a boolean SQL expression over the data column.
// A nil predicate compiles to "1 = 1". Every fragment evaluates to 0 or 1,
// never NULL, so negations stay exact for missing fields.
func (c *Compiler) Where(pred queryir.Predicate) (string, []any, error) {
	if res := queryir.Validate(pred); !res.IsPortable {
		return "", nil, fmt.Errorf("%w: %s", ErrUnsupported, strings.Join(res.Warnings, "; "))
	}
	return c.predicate(docScope{doc: c.Data}, pred)
}

// OrderBy compiles a sort to ORDER BY terms ending with the sequence
// tiebreak. Each key orders by type bracket, then by value.
func (c *Compiler) OrderBy(s queryir.Sort) (string, []any, error) {
	var (
		terms []string
		args  []any
	)
	for _, key := range s {
		path, err := jsonPath(key.Field)
		if err != nil {
			return "", nil, err
		}
		dir := "ASC"
		if key.Dir < 0 {
			dir = "DESC"
		}
		terms = append(terms,
			fmt.Sprintf("%s %s", rankExpr(fmt.Sprintf("json_type(%s, ?)", c.Data)), dir),
			fmt.Sprintf("json_extract(%s, ?) %s", c.Data, dir),
		)
		args = append(args, path, path)
	}
	terms = append(terms, c.Seq+" ASC")
	return strings.Join(terms, ", "), args, nil
}

// docScope is where a predicate's paths are resolved: the data column at
// the top level, or an array element inside $elemMatch.
type docScope struct {
	doc string
	// elem is the json_each alias when resolving inside $elemMatch.
	elem string
}

// source returns the document expression paths resolve against. Inside an
// element scope non-object elements resolve nothing.
func (s docScope) source() string {
	if s.elem == "" {
		return s.doc
	}
	return fmt.Sprintf("CASE WHEN %s.type = 'object' THEN %s.value ELSE '{}' END", s.elem, s.elem)
}

func (c *Compiler) predicate(s docScope, p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case *queryir.Compare:
		return c.compare(s, pred.Path, pred.Op, pred.Value)
	case *queryir.In:
		sql, args, err := c.in(s, pred.Path, pred.Values)
		if err != nil {
			return "", nil, err
		}
		if pred.Negate {
			sql = "NOT (" + sql + ")"
		}
		return sql, args, nil
	case *queryir.Exists:
		sql, args, err := c.typeOf(s, pred.Path)
		if err != nil {
			return "", nil, err
		}
		if pred.Want {
			return sql + " IS NOT NULL", args, nil
		}
		return sql + " IS NULL", args, nil
	case *queryir.Regex:
		return c.values(s, pred.Path, func(v, t string) (string, []any) {
			return fmt.Sprintf("%s = 'text' AND %s(?, %s)", t, RegexpFunc, v), []any{pred.Re.String()}
		})
	case *queryir.All:
		if len(pred.Values) == 0 {
			return "1 = 0", nil, nil
		}
		var parts []string
		var args []any
		for _, v := range pred.Values {
			sql, a, err := c.eq(s, pred.Path, v)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, "("+sql+")")
			args = append(args, a...)
		}
		return strings.Join(parts, " AND "), args, nil
	case *queryir.Size:
		return c.size(s, pred.Path, pred.N)
	case *queryir.ElemMatch:
		return c.elemMatch(s, pred)
	case *queryir.Not:
		sql, args, err := c.predicate(s, pred.Predicate)
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + sql + ")", args, nil
	case *queryir.And:
		return c.join(s, pred.Predicates, " AND ", "1 = 1")
	case *queryir.Or:
		return c.join(s, pred.Predicates, " OR ", "1 = 0")
	case *queryir.Nor:
		sql, args, err := c.join(s, pred.Predicates, " OR ", "1 = 0")
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + sql + ")", args, nil
	case *queryir.Custom:
		return "", nil, fmt.Errorf("%w: custom operator %s", ErrUnsupported, pred.Name)
	default:
		return "", nil, fmt.Errorf("%w: predicate type %T", ErrUnsupported, p)
	}
}

func (c *Compiler) join(s docScope, preds []queryir.Predicate, sep, empty string) (string, []any, error) {
	if len(preds) == 0 {
		return empty, nil, nil
	}
	parts := make([]string, 0, len(preds))
	var args []any
	for _, sub := range preds {
		sql, a, err := c.predicate(s, sub)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+sql+")")
		args = append(args, a...)
	}
	return strings.Join(parts, sep), args, nil
}

// typeOf returns the json_type of path: NULL when the path is missing.
func (c *Compiler) typeOf(s docScope, path string) (string, []any, error) {
	if path == "" && s.elem != "" {
		return s.elem + ".type", nil, nil
	}
	jp, err := jsonPath(path)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("json_type(%s, ?)", s.source()), []any{jp}, nil
}

// values builds EXISTS over the values at path: json_each yields a scalar
// as a single row and an array as its elements. Objects and missing paths
// have no candidate values. cond receives the value and type expressions
// of one candidate.
func (c *Compiler) values(s docScope, path string, cond func(v, t string) (string, []any)) (string, []any, error) {
	if path == "" && s.elem != "" {
		sql, args := cond(s.elem+".value", s.elem+".type")
		return sql, args, nil
	}
	jp, err := jsonPath(path)
	if err != nil {
		return "", nil, err
	}
	a := c.nextAlias()
	body, condArgs := cond(a+".value", a+".type")
	src := s.source()
	sql := fmt.Sprintf(
		"EXISTS (SELECT 1 FROM json_each(%s, ?) AS %s WHERE json_type(%s, ?) <> 'object' AND %s)",
		src, a, src, body)
	return sql, append([]any{jp, jp}, condArgs...), nil
}

func (c *Compiler) eq(s docScope, path string, want any) (string, []any, error) {
	if want == nil {
		t, args, err := c.typeOf(s, path)
		if err != nil {
			return "", nil, err
		}
		has, hasArgs, err := c.values(s, path, func(_, t string) (string, []any) {
			return t + " = 'null'", nil
		})
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("%s IS NULL OR %s", t, has), append(args, hasArgs...), nil
	}
	lit, err := literalOf(want)
	if err != nil {
		return "", nil, err
	}
	return c.values(s, path, func(v, t string) (string, []any) {
		return lit.cond(v, t, "=")
	})
}

func (c *Compiler) in(s docScope, path string, wants []any) (string, []any, error) {
	if len(wants) == 0 {
		return "1 = 0", nil, nil
	}
	parts := make([]string, 0, len(wants))
	var args []any
	for _, w := range wants {
		sql, a, err := c.eq(s, path, w)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+sql+")")
		args = append(args, a...)
	}
	return strings.Join(parts, " OR "), args, nil
}

var sqlOps = map[queryir.Op]string{
	queryir.OpGt:  ">",
	queryir.OpGte: ">=",
	queryir.OpLt:  "<",
	queryir.OpLte: "<=",
}

func (c *Compiler) compare(s docScope, path string, op queryir.Op, want any) (string, []any, error) {
	switch op {
	case queryir.OpEq:
		return c.eq(s, path, want)
	case queryir.OpNe:
		sql, args, err := c.eq(s, path, want)
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + sql + ")", args, nil
	}
	sqlOp, ok := sqlOps[op]
	if !ok {
		return "", nil, fmt.Errorf("%w: operator %s", ErrUnsupported, op)
	}
	if want == nil {
		if op == queryir.OpGte || op == queryir.OpLte {
			return c.eq(s, path, nil)
		}
		return "1 = 0", nil, nil
	}
	lit, err := literalOf(want)
	if err != nil {
		return "", nil, err
	}
	return c.values(s, path, func(v, t string) (string, []any) {
		return lit.cond(v, t, sqlOp)
	})
}

func (c *Compiler) size(s docScope, path string, n int) (string, []any, error) {
	if path == "" && s.elem != "" {
		return fmt.Sprintf("%s.type = 'array' AND json_array_length(%s.value) = ?", s.elem, s.elem), []any{n}, nil
	}
	jp, err := jsonPath(path)
	if err != nil {
		return "", nil, err
	}
	src := s.source()
	return fmt.Sprintf("IFNULL(json_type(%s, ?), '') = 'array' AND json_array_length(%s, ?) = ?", src, src),
		[]any{jp, jp, n}, nil
}

func (c *Compiler) elemMatch(s docScope, pred *queryir.ElemMatch) (string, []any, error) {
	if s.elem != "" {
		return "", nil, fmt.Errorf("%w: nested $elemMatch", ErrUnsupported)
	}
	jp, err := jsonPath(pred.Path)
	if err != nil {
		return "", nil, err
	}
	a := c.nextAlias()
	inner, innerArgs, err := c.predicate(docScope{doc: s.doc, elem: a}, pred.Filter)
	if err != nil {
		return "", nil, err
	}
	src := s.source()
	sql := fmt.Sprintf(
		"IFNULL(json_type(%s, ?), '') = 'array' AND EXISTS (SELECT 1 FROM json_each(%s, ?) AS %s WHERE %s)",
		src, src, a, inner)
	return sql, append([]any{jp, jp}, innerArgs...), nil
}

func (c *Compiler) nextAlias() string {
	c.alias++
	return "j" + strconv.Itoa(c.alias)
}

// literal is a scalar query value with its type bracket test.
type literal struct {
	types string
	value any
	bool  bool
}

func literalOf(v any) (literal, error) {
	if n, ok := ir.Number(v); ok {
		return literal{types: "IN ('integer', 'real')", value: n}, nil
	}
	switch val := v.(type) {
	case string:
		return literal{types: "= 'text'", value: val}, nil
	case bool:
		b := 0
		if val {
			b = 1
		}
		return literal{types: "IN ('true', 'false')", value: b, bool: true}, nil
	}
	return literal{}, fmt.Errorf("%w: literal of type %T", ErrUnsupported, v)
}

// cond compares the candidate against the literal within its bracket.
func (l literal) cond(v, t, op string) (string, []any) {
	if l.bool {
		return fmt.Sprintf("%s %s AND (%s = 'true') %s ?", t, l.types, t, op), []any{l.value}
	}
	return fmt.Sprintf("%s %s AND %s %s ?", t, l.types, v, op), []any{l.value}
}

// rankExpr maps a json_type expression to the sort bracket order used by
// the in-memory sorter: missing, null, number, string, bool, array, object.
func rankExpr(jsonType string) string {
	return fmt.Sprintf("CASE %s WHEN 'null' THEN 1 WHEN 'integer' THEN 2 WHEN 'real' THEN 2 "+
		"WHEN 'text' THEN 3 WHEN 'true' THEN 4 WHEN 'false' THEN 4 WHEN 'array' THEN 5 "+
		"WHEN 'object' THEN 6 ELSE 0 END", jsonType)
}

// jsonPath converts a dot path to a SQLite JSON path. Numeric segments
// index arrays; other segments are quoted member names.
func jsonPath(path string) (string, error) {
	if path == "" {
		return "$", nil
	}
	var b strings.Builder
	b.WriteString("$")
	for _, seg := range strings.Split(path, ".") {
		if seg == "" || strings.ContainsAny(seg, `"\`) {
			return "", fmt.Errorf("%w: field path %q", ErrUnsupported, path)
		}
		if n, err := strconv.Atoi(seg); err == nil && n >= 0 {
			fmt.Fprintf(&b, "[%d]", n)
			continue
		}
		b.WriteString(`."` + seg + `"`)
	}
	return b.String(), nil
}
