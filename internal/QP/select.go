package QP

import "strings"

// SelectItem is one entry of the projection list.
type SelectItem struct {
	Expr  Expr
	Alias string
}

func (s SelectItem) SQL() string {
	if s.Alias == "" {
		return s.Expr.SQL()
	}
	return s.Expr.SQL() + " AS " + s.Alias
}

// TableRef is a FROM-clause item.
type TableRef struct {
	Name string
	// NotIndexed forbids index use for the table (SQLite only).
	NotIndexed bool
}

func (t TableRef) SQL() string {
	if t.NotIndexed {
		return Ident(t.Name) + " NOT INDEXED"
	}
	return Ident(t.Name)
}

// OrderTerm is one ORDER BY term.
type OrderTerm struct {
	Expr Expr
	Desc bool
}

func (o OrderTerm) SQL() string {
	if o.Desc {
		return o.Expr.SQL() + " DESC"
	}
	return o.Expr.SQL() + " ASC"
}

// SelectStmt is an immutable SELECT statement. All clauses are supplied when
// it is built by NewSelect; there are no setters.
type SelectStmt struct {
	items   []SelectItem
	from    []TableRef
	where   Expr
	groupBy []Expr
	orderBy []OrderTerm
}

// SelectOption supplies an optional clause to NewSelect.
type SelectOption func(*SelectStmt)

// Where sets the WHERE clause. A nil expression leaves it unset.
func Where(e Expr) SelectOption {
	return func(s *SelectStmt) { s.where = e }
}

// GroupBy sets the GROUP BY clause.
func GroupBy(exprs ...Expr) SelectOption {
	return func(s *SelectStmt) { s.groupBy = append([]Expr(nil), exprs...) }
}

// OrderBy sets the ORDER BY clause.
func OrderBy(terms ...OrderTerm) SelectOption {
	return func(s *SelectStmt) { s.orderBy = append([]OrderTerm(nil), terms...) }
}

// NewSelect builds a complete statement. items and from are copied.
func NewSelect(items []SelectItem, from []TableRef, opts ...SelectOption) *SelectStmt {
	s := &SelectStmt{
		items: append([]SelectItem(nil), items...),
		from:  append([]TableRef(nil), from...),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SQL renders the statement.
func (s *SelectStmt) SQL() string {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	for i, it := range s.items {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(it.SQL())
	}
	if len(s.from) > 0 {
		sb.WriteString(" FROM ")
		sb.WriteString(FromSQL(s.from))
	}
	if s.where != nil {
		sb.WriteString(" WHERE ")
		sb.WriteString(s.where.SQL())
	}
	if len(s.groupBy) > 0 {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(joinExprs(s.groupBy))
	}
	if len(s.orderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		for i, o := range s.orderBy {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(o.SQL())
		}
	}
	return sb.String()
}

// FromSQL renders a comma-separated FROM list.
func FromSQL(from []TableRef) string {
	parts := make([]string, len(from))
	for i, t := range from {
		parts[i] = t.SQL()
	}
	return strings.Join(parts, ", ")
}
